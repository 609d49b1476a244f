package factor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huhk345/alphagen-ai/internal/table"
)

func newTable(t *testing.T, closes []float64) *table.Table {
	t.Helper()
	dates := make([]string, len(closes))
	for i := range dates {
		dates[i] = "2024-01-0" + string(rune('1'+i))
	}
	tbl := table.New(dates)
	require.NoError(t, tbl.SetColumn("close", closes))
	return tbl
}

func evaluate(t *testing.T, tbl *table.Table, logic string) error {
	t.Helper()
	return NewEvaluator().Evaluate(context.Background(), tbl, logic)
}

func TestEvaluate_ColumnAssignment(t *testing.T) {
	tbl := newTable(t, []float64{100, 110, 90})
	require.NoError(t, evaluate(t, tbl, "factor = close"))

	factor, ok := tbl.Column(FactorColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{100, 110, 90}, factor)
}

func TestEvaluate_FactorNeverAliasesSource(t *testing.T) {
	tbl := newTable(t, []float64{100, 110, 90})
	// shift introduces a NaN at row 0; sanitization zeroes the factor copy
	// and must leave close untouched.
	require.NoError(t, evaluate(t, tbl, "factor = close / shift(close, 1)"))

	factor, _ := tbl.Column(FactorColumn)
	assert.Equal(t, 0.0, factor[0])
	assert.InDelta(t, 1.1, factor[1], 1e-9)

	closes, _ := tbl.Column("close")
	assert.Equal(t, []float64{100, 110, 90}, closes)
}

func TestEvaluate_MultiStatement(t *testing.T) {
	tbl := newTable(t, []float64{1, 2, 3})
	logic := `
spread = close - sma(close, 2)
factor = spread * 2
`
	require.NoError(t, evaluate(t, tbl, logic))

	assert.True(t, tbl.Has("spread"))
	factor, _ := tbl.Column(FactorColumn)
	assert.Equal(t, 0.0, factor[0]) // NaN warmup sanitized
	assert.InDelta(t, 1.0, factor[1], 1e-9)
	assert.InDelta(t, 1.0, factor[2], 1e-9)
}

func TestEvaluate_ScalarBroadcast(t *testing.T) {
	tbl := newTable(t, []float64{1, 2, 3})
	require.NoError(t, evaluate(t, tbl, "factor = 2"))

	factor, _ := tbl.Column(FactorColumn)
	assert.Equal(t, []float64{2, 2, 2}, factor)
}

func TestEvaluate_Precedence(t *testing.T) {
	cases := []struct {
		name  string
		logic string
		want  float64
	}{
		{"multiply binds tighter", "factor = 2 + 3 * 4", 14},
		{"parentheses override", "factor = (2 + 3) * 4", 20},
		{"power right associative", "factor = 2 ^ 3 ^ 2", 512},
		{"unary minus below power", "factor = -2 ^ 2", -4},
		{"division", "factor = 1 / 4", 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := newTable(t, []float64{1})
			require.NoError(t, evaluate(t, tbl, tc.logic))
			factor, _ := tbl.Column(FactorColumn)
			assert.InDelta(t, tc.want, factor[0], 1e-9)
		})
	}
}

func TestEvaluate_CommentsAndSeparators(t *testing.T) {
	tbl := newTable(t, []float64{1, 2})
	logic := "# momentum factor\nx = close * 2; factor = x # done"
	require.NoError(t, evaluate(t, tbl, logic))

	factor, _ := tbl.Column(FactorColumn)
	assert.Equal(t, []float64{2, 4}, factor)
}

func TestEvaluate_SanitizesNonFinite(t *testing.T) {
	tbl := newTable(t, []float64{0, 1})
	// log(0) is -Inf and 1/close is +Inf at row 0.
	require.NoError(t, evaluate(t, tbl, "factor = log(close) + 1 / close"))

	factor, _ := tbl.Column(FactorColumn)
	assert.Equal(t, 0.0, factor[0])
	assert.InDelta(t, 1.0, factor[1], 1e-9)
}

func TestEvaluate_MissingFactorColumn(t *testing.T) {
	tbl := newTable(t, []float64{1, 2})
	err := evaluate(t, tbl, "momentum = close")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingFactorColumn)
}

func TestEvaluate_EmptyLogicReportsMissingFactor(t *testing.T) {
	tbl := newTable(t, []float64{1, 2})
	for _, logic := range []string{"", "  \n\n", "# only a comment\n"} {
		err := evaluate(t, tbl, logic)
		assert.ErrorIs(t, err, ErrMissingFactorColumn, "logic %q", logic)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	cases := []struct {
		name    string
		logic   string
		wantMsg string
	}{
		{"unknown column", "factor = volume", `unknown column "volume"`},
		{"unknown function", "factor = nope(close)", `unknown function "nope"`},
		{"wrong arity", "factor = sma(close)", "expects 2 arguments"},
		{"series period", "factor = sma(close, close)", "must be a number"},
		{"fractional period", "factor = sma(close, 2.5)", "whole number"},
		{"dangling expression", "factor = ", "unexpected"},
		{"missing assignment", "close + 1", "expected '='"},
		{"unbalanced paren", "factor = (close + 1", "missing ')'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := newTable(t, []float64{1, 2})
			err := evaluate(t, tbl, tc.logic)
			require.Error(t, err)

			var execErr *ExecutionError
			assert.True(t, errors.As(err, &execErr), "want ExecutionError, got %T", err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestEvaluate_SourceTooLarge(t *testing.T) {
	tbl := newTable(t, []float64{1})
	logic := "factor = close " + strings.Repeat("# padding padding\n", 2048)
	err := evaluate(t, tbl, logic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestEvaluate_CancelledContext(t *testing.T) {
	tbl := newTable(t, []float64{1, 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEvaluator().Evaluate(ctx, tbl, "factor = close")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")
}

func TestEvaluate_Builtins(t *testing.T) {
	cases := []struct {
		name  string
		logic string
		check func(t *testing.T, factor []float64)
	}{
		{"abs", "factor = abs(0 - close)", func(t *testing.T, f []float64) {
			assert.Equal(t, []float64{1, 2, 3, 4, 5}, f)
		}},
		{"sign", "factor = sign(close - 3)", func(t *testing.T, f []float64) {
			assert.Equal(t, []float64{-1, -1, 0, 1, 1}, f)
		}},
		{"min max", "factor = min(close, 3) + max(close, 3)", func(t *testing.T, f []float64) {
			assert.Equal(t, []float64{4, 5, 6, 7, 8}, f)
		}},
		{"pow", "factor = pow(close, 2)", func(t *testing.T, f []float64) {
			assert.Equal(t, []float64{1, 4, 9, 16, 25}, f)
		}},
		{"rank", "factor = rank(close)", func(t *testing.T, f []float64) {
			assert.Equal(t, []float64{1, 1, 1, 1, 1}, f)
		}},
		{"rsi", "factor = rsi(close, 2)", func(t *testing.T, f []float64) {
			assert.Equal(t, 0.0, f[0]) // warmup sanitized
			assert.InDelta(t, 100, f[4], 1e-9)
		}},
		{"bollinger", "factor = bb_upper(close, 2, 2) - bb_lower(close, 2, 2)", func(t *testing.T, f []float64) {
			assert.Equal(t, 0.0, f[0])
			// width 2 both sides of SMA over a window with std 0.5
			assert.InDelta(t, 2.0, f[1], 1e-9)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := newTable(t, []float64{1, 2, 3, 4, 5})
			require.NoError(t, evaluate(t, tbl, tc.logic))
			factor, _ := tbl.Column(FactorColumn)
			tc.check(t, factor)
		})
	}
}
