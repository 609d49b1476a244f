// Package factor evaluates user- or model-supplied calculation logic against a
// time series table, producing the factor column consumed by the signal state
// machine. The logic runs in a pure data-transform sandbox: the only reachable
// operations are arithmetic, the builtin registry, and reads/writes of table
// columns. Evaluation is bounded by the caller's context deadline.
package factor

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/huhk345/alphagen-ai/internal/table"
)

// FactorColumn is the column name calculation logic must assign.
const FactorColumn = "factor"

const (
	maxSourceBytes = 16 * 1024
	maxStatements  = 128
)

// Evaluator executes calculation logic against a table. It holds no state
// between invocations; bindings never leak across requests because every
// evaluation works directly on the request-scoped table.
type Evaluator struct{}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate runs the calculation logic, writing every assigned column into the
// table. On success the table has a fully finite factor column: NaN and ±Inf
// values are replaced with 0 before handoff.
func (e *Evaluator) Evaluate(ctx context.Context, tbl *table.Table, logic string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = execErrorf("internal evaluation fault: %v", r)
		}
	}()

	if len(logic) > maxSourceBytes {
		return execErrorf("calculation logic exceeds %d bytes", maxSourceBytes)
	}
	program, err := parse(logic)
	if err != nil {
		return err
	}
	if len(program) > maxStatements {
		return execErrorf("calculation logic exceeds %d statements", maxStatements)
	}

	log.Debug().Int("statements", len(program)).Str("logic", sourceExcerpt(logic)).Msg("evaluating factor logic")

	for _, stmt := range program {
		if err := ctx.Err(); err != nil {
			return execErrorf("evaluation aborted: %v", err)
		}
		result, err := evalNode(tbl, stmt.expr)
		if err != nil {
			return err
		}
		if err := tbl.SetColumn(stmt.target, result.broadcast(tbl.Len())); err != nil {
			return &ExecutionError{Cause: err}
		}
	}

	col, ok := tbl.Column(FactorColumn)
	if !ok {
		return ErrMissingFactorColumn
	}
	sanitizeSeries(col)
	return nil
}

// sanitizeSeries replaces NaN and infinities with 0 in place.
func sanitizeSeries(values []float64) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[i] = 0
		}
	}
}

func evalNode(tbl *table.Table, n node) (value, error) {
	switch n := n.(type) {
	case *numberNode:
		return scalarValue(n.value), nil

	case *identNode:
		col, ok := tbl.Column(n.name)
		if !ok {
			return value{}, execErrorf("line %d: unknown column %q", n.line, n.name)
		}
		// Copy so that assigning a bare column never aliases table storage.
		out := make([]float64, len(col))
		copy(out, col)
		return seriesValue(out), nil

	case *unaryNode:
		operand, err := evalNode(tbl, n.operand)
		if err != nil {
			return value{}, err
		}
		return applyUnaryMinus(operand, tbl.Len()), nil

	case *binaryNode:
		left, err := evalNode(tbl, n.left)
		if err != nil {
			return value{}, err
		}
		right, err := evalNode(tbl, n.right)
		if err != nil {
			return value{}, err
		}
		return applyBinary(n.op, left, right, tbl.Len())

	case *callNode:
		fn, ok := builtins[n.name]
		if !ok {
			return value{}, execErrorf("line %d: unknown function %q", n.line, n.name)
		}
		if len(n.args) != fn.arity {
			return value{}, execErrorf("line %d: %s expects %d arguments, got %d", n.line, n.name, fn.arity, len(n.args))
		}
		args := make([]value, len(n.args))
		for i, arg := range n.args {
			v, err := evalNode(tbl, arg)
			if err != nil {
				return value{}, err
			}
			args[i] = v
		}
		return fn.apply(args, tbl.Len())

	default:
		return value{}, execErrorf("unsupported expression node %T", n)
	}
}

func applyUnaryMinus(v value, rows int) value {
	if !v.isSeries() {
		return scalarValue(-v.scalar)
	}
	out := make([]float64, rows)
	for i, x := range v.series {
		out[i] = -x
	}
	return seriesValue(out)
}

func applyBinary(op tokenKind, left, right value, rows int) (value, error) {
	fn, err := binaryOp(op)
	if err != nil {
		return value{}, err
	}
	if !left.isSeries() && !right.isSeries() {
		return scalarValue(fn(left.scalar, right.scalar)), nil
	}
	a := left.broadcast(rows)
	b := right.broadcast(rows)
	out := make([]float64, rows)
	for i := range out {
		out[i] = fn(a[i], b[i])
	}
	return seriesValue(out), nil
}

func binaryOp(op tokenKind) (func(a, b float64) float64, error) {
	switch op {
	case tokenPlus:
		return func(a, b float64) float64 { return a + b }, nil
	case tokenMinus:
		return func(a, b float64) float64 { return a - b }, nil
	case tokenStar:
		return func(a, b float64) float64 { return a * b }, nil
	case tokenSlash:
		// Division by zero yields ±Inf/NaN here and is sanitized downstream.
		return func(a, b float64) float64 { return a / b }, nil
	case tokenCaret:
		return math.Pow, nil
	default:
		return nil, fmt.Errorf("unsupported operator %d", op)
	}
}
