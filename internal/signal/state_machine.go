// Package signal converts a factor column into discrete long/flat positions.
// The factor is z-score normalized, then a two-state machine walks the rows in
// date order: FLAT goes LONG when z crosses strictly above the buy level, LONG
// goes FLAT when z crosses strictly below the sell level. Ties never trigger.
//
// The table holds float64 columns only, so the machine appends factor_z and
// position to it while the textual BUY/SELL markers travel on the returned
// Series instead of a table column.
package signal

import (
	"math"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/factor"
	"github.com/huhk345/alphagen-ai/internal/table"
)

// Position states.
const (
	Flat = 0
	Long = 1
)

const (
	buyPercentile  = 0.80
	sellPercentile = 0.20
)

// Series is the state machine output. Position[i] is the state after row i was
// processed; Signals[i] is nil when the row emitted no signal.
type Series struct {
	Z         []float64
	Position  []int
	Signals   []*domain.Signal
	BuyLevel  float64
	SellLevel float64
}

// Apply normalizes the factor column and runs the threshold state machine,
// appending factor_z and position columns to the table. Threshold strings that
// are empty or fail to parse fall back to percentile defaults; they never
// raise.
func Apply(tbl *table.Table, buyThreshold, sellThreshold string) *Series {
	col, _ := tbl.Column(factor.FactorColumn)
	z := zscore(col)
	buyLevel, sellLevel := resolveThresholds(z, buyThreshold, sellThreshold)

	n := len(z)
	positions := make([]int, n)
	signals := make([]*domain.Signal, n)
	state := Flat
	for i, v := range z {
		if state == Flat && v > buyLevel {
			state = Long
			s := domain.SignalBuy
			signals[i] = &s
		} else if state == Long && v < sellLevel {
			state = Flat
			s := domain.SignalSell
			signals[i] = &s
		}
		positions[i] = state
	}

	positionCol := make([]float64, n)
	for i, p := range positions {
		positionCol[i] = float64(p)
	}
	tbl.SetColumn("factor_z", z)
	tbl.SetColumn("position", positionCol)

	return &Series{
		Z:         z,
		Position:  positions,
		Signals:   signals,
		BuyLevel:  buyLevel,
		SellLevel: sellLevel,
	}
}

// zscore normalizes with the population standard deviation. Zero or undefined
// variance yields an all-zero series rather than NaN.
func zscore(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(n))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

func resolveThresholds(z []float64, buyThreshold, sellThreshold string) (float64, float64) {
	if buyThreshold != "" && sellThreshold != "" {
		buy, buyErr := strconv.ParseFloat(buyThreshold, 64)
		sell, sellErr := strconv.ParseFloat(sellThreshold, 64)
		if buyErr == nil && sellErr == nil {
			return buy, sell
		}
		log.Debug().Str("buy", buyThreshold).Str("sell", sellThreshold).
			Msg("unparseable thresholds, falling back to percentile defaults")
	}
	return percentile(z, buyPercentile), percentile(z, sellPercentile)
}

// percentile uses linear interpolation between closest ranks, matching the
// quantile convention the threshold defaults were tuned against.
func percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
