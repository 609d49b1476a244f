package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrices(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadPricesCSV(t *testing.T) {
	path := writePrices(t, "date,close,open,high,low,volume\n2024-01-01,100,99,101,98,5000\n2024-01-02,110,,,,\n")

	points, err := readPricesCSV(path)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "2024-01-01", points[0].Date)
	assert.Equal(t, 100.0, points[0].Close)
	require.NotNil(t, points[0].Open)
	assert.Equal(t, 99.0, *points[0].Open)
	require.NotNil(t, points[0].Volume)
	assert.Equal(t, 5000.0, *points[0].Volume)

	assert.Equal(t, 110.0, points[1].Close)
	assert.Nil(t, points[1].Open)
}

func TestReadPricesCSV_NoHeader(t *testing.T) {
	path := writePrices(t, "2024-01-01,100\n2024-01-02,110\n")

	points, err := readPricesCSV(path)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestReadPricesCSV_BadClose(t *testing.T) {
	path := writePrices(t, "2024-01-01,100\n2024-01-02,oops\n")
	_, err := readPricesCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad close")
}

func TestReadPricesCSV_Empty(t *testing.T) {
	path := writePrices(t, "date,close\n")
	_, err := readPricesCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price rows")
}

func TestReadPricesCSV_MissingFile(t *testing.T) {
	_, err := readPricesCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
