package factor

import (
	"math"

	"github.com/huhk345/alphagen-ai/internal/indicators"
)

// value is a scalar or a row-aligned series. Binary operations broadcast
// scalars across series.
type value struct {
	series []float64
	scalar float64
}

func scalarValue(v float64) value   { return value{scalar: v} }
func seriesValue(s []float64) value { return value{series: s} }
func (v value) isSeries() bool      { return v.series != nil }

func (v value) broadcast(n int) []float64 {
	if v.isSeries() {
		return v.series
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v.scalar
	}
	return out
}

// builtin is one allow-listed function. The registry below is the entire
// surface reachable from calculation logic: no I/O, no reflection, nothing
// touching process state.
type builtin struct {
	arity int
	apply func(args []value, rows int) (value, error)
}

// seriesIndicator adapts a (series, period) indicator to the builtin shape.
func seriesIndicator(name string, fn func([]float64, int) []float64) builtin {
	return builtin{
		arity: 2,
		apply: func(args []value, rows int) (value, error) {
			period, err := intArg(name, 2, args[1])
			if err != nil {
				return value{}, err
			}
			return seriesValue(fn(args[0].broadcast(rows), period)), nil
		},
	}
}

func elementwise(fn func(float64) float64) builtin {
	return builtin{
		arity: 1,
		apply: func(args []value, rows int) (value, error) {
			if !args[0].isSeries() {
				return scalarValue(fn(args[0].scalar)), nil
			}
			out := make([]float64, rows)
			for i, v := range args[0].series {
				out[i] = fn(v)
			}
			return seriesValue(out), nil
		},
	}
}

func pairwise(fn func(a, b float64) float64) builtin {
	return builtin{
		arity: 2,
		apply: func(args []value, rows int) (value, error) {
			if !args[0].isSeries() && !args[1].isSeries() {
				return scalarValue(fn(args[0].scalar, args[1].scalar)), nil
			}
			a := args[0].broadcast(rows)
			b := args[1].broadcast(rows)
			out := make([]float64, rows)
			for i := range out {
				out[i] = fn(a[i], b[i])
			}
			return seriesValue(out), nil
		},
	}
}

func intArg(name string, position int, v value) (int, error) {
	if v.isSeries() {
		return 0, execErrorf("%s: argument %d must be a number, got a series", name, position)
	}
	n := int(v.scalar)
	if float64(n) != v.scalar {
		return 0, execErrorf("%s: argument %d must be a whole number, got %v", name, position, v.scalar)
	}
	return n, nil
}

func sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

var builtins = map[string]builtin{
	// Rolling indicators
	"sma":         seriesIndicator("sma", indicators.SMA),
	"ema":         seriesIndicator("ema", indicators.EMA),
	"rsi":         seriesIndicator("rsi", indicators.RSI),
	"std":         seriesIndicator("std", indicators.RollingStd),
	"rolling_max": seriesIndicator("rolling_max", indicators.RollingMax),
	"rolling_min": seriesIndicator("rolling_min", indicators.RollingMin),
	"sum":         seriesIndicator("sum", indicators.RollingSum),
	"shift":       seriesIndicator("shift", indicators.Shift),
	"delta":       seriesIndicator("delta", indicators.Diff),
	"pct_change":  seriesIndicator("pct_change", indicators.PctChange),

	"macd": {
		arity: 3,
		apply: func(args []value, rows int) (value, error) {
			fast, err := intArg("macd", 2, args[1])
			if err != nil {
				return value{}, err
			}
			slow, err := intArg("macd", 3, args[2])
			if err != nil {
				return value{}, err
			}
			return seriesValue(indicators.MACD(args[0].broadcast(rows), fast, slow)), nil
		},
	},
	"bb_upper": bollingerBuiltin("bb_upper", indicators.BollingerUpper),
	"bb_lower": bollingerBuiltin("bb_lower", indicators.BollingerLower),

	"rank": {
		arity: 1,
		apply: func(args []value, rows int) (value, error) {
			return seriesValue(indicators.Rank(args[0].broadcast(rows))), nil
		},
	},

	// Elementwise math
	"log":  elementwise(math.Log),
	"abs":  elementwise(math.Abs),
	"sqrt": elementwise(math.Sqrt),
	"exp":  elementwise(math.Exp),
	"sign": elementwise(sign),
	"min":  pairwise(math.Min),
	"max":  pairwise(math.Max),
	"pow":  pairwise(math.Pow),
}

func bollingerBuiltin(name string, fn func([]float64, int, float64) []float64) builtin {
	return builtin{
		arity: 3,
		apply: func(args []value, rows int) (value, error) {
			period, err := intArg(name, 2, args[1])
			if err != nil {
				return value{}, err
			}
			if args[2].isSeries() {
				return value{}, execErrorf("%s: argument 3 must be a number, got a series", name)
			}
			return seriesValue(fn(args[0].broadcast(rows), period, args[2].scalar)), nil
		},
	}
}
