package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/factor"
	"github.com/huhk345/alphagen-ai/internal/table"
)

func tableWithFactor(t *testing.T, values []float64) *table.Table {
	t.Helper()
	dates := make([]string, len(values))
	for i := range dates {
		dates[i] = "2024-01-0" + string(rune('1'+i))
	}
	tbl := table.New(dates)
	require.NoError(t, tbl.SetColumn("close", values))
	require.NoError(t, tbl.SetColumn(factor.FactorColumn, values))
	return tbl
}

func TestApply_ExplicitThresholds(t *testing.T) {
	// z-scores of {1,2,3} are {-1.2247, 0, 1.2247}.
	tbl := tableWithFactor(t, []float64{1, 2, 3})
	series := Apply(tbl, "0.5", "-0.5")

	assert.Equal(t, 0.5, series.BuyLevel)
	assert.Equal(t, -0.5, series.SellLevel)
	assert.Equal(t, []int{Flat, Flat, Long}, series.Position)

	require.NotNil(t, series.Signals[2])
	assert.Equal(t, domain.SignalBuy, *series.Signals[2])
	assert.Nil(t, series.Signals[0])
	assert.Nil(t, series.Signals[1])
}

func TestApply_LongThenExit(t *testing.T) {
	tbl := tableWithFactor(t, []float64{1, 10, 1, 1, 1})
	series := Apply(tbl, "0.5", "-0.2")

	assert.Equal(t, Long, series.Position[1])
	assert.Equal(t, Flat, series.Position[2])
	require.NotNil(t, series.Signals[2])
	assert.Equal(t, domain.SignalSell, *series.Signals[2])
}

func TestApply_TieNeverTriggers(t *testing.T) {
	// Zero variance leaves every z at exactly 0; with a 0 buy level the
	// strict comparison must keep the machine flat throughout.
	tbl := tableWithFactor(t, []float64{5, 5, 5, 5})
	series := Apply(tbl, "0", "-1")

	assert.Equal(t, []float64{0, 0, 0, 0}, series.Z)
	assert.Equal(t, []int{Flat, Flat, Flat, Flat}, series.Position)
	for _, s := range series.Signals {
		assert.Nil(t, s)
	}
}

func TestApply_UnparseableThresholdsFallBackToPercentiles(t *testing.T) {
	tbl := tableWithFactor(t, []float64{1, 2, 3, 4, 5})
	series := Apply(tbl, "abc", "xyz")

	assert.Equal(t, percentile(series.Z, buyPercentile), series.BuyLevel)
	assert.Equal(t, percentile(series.Z, sellPercentile), series.SellLevel)
	assert.Greater(t, series.BuyLevel, series.SellLevel)
}

func TestApply_EmptyThresholdsUsePercentiles(t *testing.T) {
	tbl := tableWithFactor(t, []float64{1, 2, 3, 4, 5})
	series := Apply(tbl, "", "")

	// The top observation sits above the 80th percentile, so the machine
	// ends the window long.
	assert.Equal(t, Long, series.Position[4])
}

func TestApply_AppendsColumns(t *testing.T) {
	tbl := tableWithFactor(t, []float64{1, 2, 3})
	series := Apply(tbl, "0.5", "-0.5")

	z, ok := tbl.Column("factor_z")
	require.True(t, ok)
	assert.Equal(t, series.Z, z)

	position, ok := tbl.Column("position")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 1}, position)
}

func TestZScore(t *testing.T) {
	z := zscore([]float64{1, 2, 3})
	assert.InDelta(t, -1.2247448, z[0], 1e-6)
	assert.InDelta(t, 0, z[1], 1e-9)
	assert.InDelta(t, 1.2247448, z[2], 1e-6)
}

func TestZScore_ZeroVariance(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, zscore([]float64{7, 7, 7}))
	assert.Empty(t, zscore(nil))
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	assert.InDelta(t, 4.2, percentile(values, 0.80), 1e-9)
	assert.InDelta(t, 1.8, percentile(values, 0.20), 1e-9)
	assert.InDelta(t, 1, percentile(values, 0), 1e-9)
	assert.InDelta(t, 5, percentile(values, 1), 1e-9)
	assert.Equal(t, 0.0, percentile(nil, 0.5))
}
