// Package table implements the columnar time series arena the engine operates
// on: a fixed, date-ordered row spine plus named float columns. Missing values
// are represented as NaN. After construction the row count and row order never
// change; components only append or overwrite columns.
package table

import (
	"fmt"
	"math"
	"sort"

	"github.com/huhk345/alphagen-ai/internal/domain"
)

// Table is an ordered sequence of rows addressed by column name.
type Table struct {
	dates []string
	cols  map[string][]float64
	order []string
}

// New creates an empty table over the given date spine.
func New(dates []string) *Table {
	return &Table{
		dates: dates,
		cols:  make(map[string][]float64),
	}
}

// FromPricePoints builds a table from daily bars, sorted ascending by date.
// Duplicate dates are kept as-is. The close column is always present; open,
// high, low and volume are added only when at least one bar carries them.
func FromPricePoints(points []domain.PricePoint) *Table {
	sorted := make([]domain.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	n := len(sorted)
	dates := make([]string, n)
	closes := make([]float64, n)
	optional := map[string]func(domain.PricePoint) *float64{
		"open":   func(p domain.PricePoint) *float64 { return p.Open },
		"high":   func(p domain.PricePoint) *float64 { return p.High },
		"low":    func(p domain.PricePoint) *float64 { return p.Low },
		"volume": func(p domain.PricePoint) *float64 { return p.Volume },
	}

	for i, p := range sorted {
		dates[i] = p.Date
		closes[i] = p.Close
	}

	t := New(dates)
	t.mustSet("close", closes)

	for name, get := range optional {
		values := make([]float64, n)
		seen := false
		for i, p := range sorted {
			if v := get(p); v != nil {
				values[i] = *v
				seen = true
			} else {
				values[i] = math.NaN()
			}
		}
		if seen {
			t.mustSet(name, values)
		}
	}
	return t
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.dates) }

// Dates returns the date spine. Callers must not mutate it.
func (t *Table) Dates() []string { return t.dates }

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the values for a named column. The slice is shared with the
// table; use SetColumn to replace it.
func (t *Table) Column(name string) ([]float64, bool) {
	col, ok := t.cols[name]
	return col, ok
}

// SetColumn adds or overwrites a column. The value count must match the row
// count exactly.
func (t *Table) SetColumn(name string, values []float64) error {
	if len(values) != len(t.dates) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.dates))
	}
	if _, exists := t.cols[name]; !exists {
		t.order = append(t.order, name)
	}
	t.cols[name] = values
	return nil
}

// Columns returns the column names in append order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) mustSet(name string, values []float64) {
	if err := t.SetColumn(name, values); err != nil {
		panic(err)
	}
}
