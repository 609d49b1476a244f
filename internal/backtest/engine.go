// Package backtest is the engine boundary: it wires the table, factor
// evaluator, signal state machine, metrics calculator and trade reconstructor
// into a single stateless invocation, and maps every internal failure into the
// {status, error} response shape. Nothing propagates past Execute as a fault.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/factor"
	"github.com/huhk345/alphagen-ai/internal/perf"
	"github.com/huhk345/alphagen-ai/internal/signal"
	"github.com/huhk345/alphagen-ai/internal/table"
	"github.com/huhk345/alphagen-ai/internal/trades"
)

// Request is the engine-level input contract.
type Request struct {
	PriceData        []domain.PricePoint `json:"priceData"`
	CalculationLogic string              `json:"calculationLogic"`
	BenchmarkLabel   string              `json:"benchmarkLabel"`
	BuyThreshold     string              `json:"buyThreshold,omitempty"`
	SellThreshold    string              `json:"sellThreshold,omitempty"`
}

// Response is the engine-level output contract. Status is "success" or
// "error"; exactly one of Result and Error is populated.
type Response struct {
	Status string                 `json:"status"`
	Result *domain.BacktestResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Config holds engine tuning knobs.
type Config struct {
	// EvalTimeout bounds one evaluation of calculation logic. It closes the
	// resource-exhaustion gap of unbounded user formulas.
	EvalTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{EvalTimeout: 5 * time.Second}
}

// Engine runs backtests. It is stateless: every invocation builds a fresh
// table and evaluation context, so nothing leaks across requests.
type Engine struct {
	cfg       Config
	evaluator *factor.Evaluator
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = DefaultConfig().EvalTimeout
	}
	return &Engine{cfg: cfg, evaluator: factor.NewEvaluator()}
}

// Run executes one backtest and returns typed errors for the caller to map.
func (e *Engine) Run(ctx context.Context, req Request) (*domain.BacktestResult, error) {
	if len(req.PriceData) == 0 {
		return nil, validationErrorf("priceData is empty")
	}
	for i, p := range req.PriceData {
		if p.Date == "" {
			return nil, validationErrorf("priceData[%d] is missing a date", i)
		}
	}

	tbl := table.FromPricePoints(req.PriceData)

	evalCtx, cancel := context.WithTimeout(ctx, e.cfg.EvalTimeout)
	defer cancel()
	start := time.Now()
	if err := e.evaluator.Evaluate(evalCtx, tbl, req.CalculationLogic); err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("factor evaluation failed")
		return nil, err
	}

	sig := signal.Apply(tbl, req.BuyThreshold, req.SellThreshold)

	benchmark := req.BenchmarkLabel
	if benchmark == "" {
		benchmark = "Benchmark"
	}
	report := perf.Compute(tbl, sig, benchmark)

	result := &domain.BacktestResult{
		Data:          report.Data,
		Metrics:       report.Metrics,
		Trades:        trades.Reconstruct(report.Data, req.PriceData),
		GeneratedCode: req.CalculationLogic,
	}
	if result.Trades == nil {
		result.Trades = []domain.Trade{}
	}
	return result, nil
}

// Execute is the recover-all boundary: it runs the backtest and converts any
// failure, including panics, into the error response shape.
func (e *Engine) Execute(ctx context.Context, req Request) (resp Response) {
	requestID := uuid.New().String()[:8]
	logger := log.With().Str("request_id", requestID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("backtest panicked")
			resp = Response{Status: "error", Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	logger.Info().
		Int("price_points", len(req.PriceData)).
		Str("benchmark", req.BenchmarkLabel).
		Int("logic_bytes", len(req.CalculationLogic)).
		Msg("backtest started")

	start := time.Now()
	result, err := e.Run(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("backtest failed")
		return Response{Status: "error", Error: err.Error()}
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("trades", len(result.Trades)).
		Float64("sharpe", result.Metrics.SharpeRatio).
		Msg("backtest completed")
	return Response{Status: "success", Result: result}
}
