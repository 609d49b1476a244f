package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/factor"
)

func threeBarRequest() Request {
	return Request{
		PriceData: []domain.PricePoint{
			{Date: "2024-01-01", Close: 100},
			{Date: "2024-01-02", Close: 110},
			{Date: "2024-01-03", Close: 90.2},
		},
		CalculationLogic: "factor = close",
		BenchmarkLabel:   "BTC-USD",
		BuyThreshold:     "0.5",
		SellThreshold:    "-0.5",
	}
}

func TestRun_FullPipeline(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	result, err := engine.Run(context.Background(), threeBarRequest())
	require.NoError(t, err)
	require.Len(t, result.Data, 3)

	// close z-scores cross the +0.5/-0.5 thresholds on rows 1 and 2.
	require.NotNil(t, result.Data[1].Signal)
	assert.Equal(t, domain.SignalBuy, *result.Data[1].Signal)
	require.NotNil(t, result.Data[2].Signal)
	assert.Equal(t, domain.SignalSell, *result.Data[2].Signal)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, 110.0, result.Trades[0].Price)
	assert.Equal(t, 90.2, result.Trades[1].Price)
	assert.InDelta(t, 100*90.2/110, result.Trades[1].Amount, 1e-9)

	assert.Equal(t, "BTC-USD", result.Metrics.BenchmarkName)
	assert.InDelta(t, 90.2/110-1, result.Data[2].StrategyReturn, 1e-9)
	assert.Equal(t, "factor = close", result.GeneratedCode)
}

func TestRun_EmptyPriceData(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	_, err := engine.Run(context.Background(), Request{CalculationLogic: "factor = close"})
	require.Error(t, err)

	var invalid *InputValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestRun_MissingDate(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	req := threeBarRequest()
	req.PriceData[1].Date = ""
	_, err := engine.Run(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a date")
}

func TestRun_FactorErrorPropagates(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	req := threeBarRequest()
	req.CalculationLogic = "momentum = close"
	_, err := engine.Run(context.Background(), req)
	assert.ErrorIs(t, err, factor.ErrMissingFactorColumn)
}

func TestRun_DefaultBenchmarkLabel(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	req := threeBarRequest()
	req.BenchmarkLabel = ""
	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Benchmark", result.Metrics.BenchmarkName)
}

func TestRun_TradesNeverNil(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	req := threeBarRequest()
	// Thresholds no z-score can cross: no signals, no trades.
	req.BuyThreshold = "100"
	req.SellThreshold = "-100"
	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, result.Trades)
	assert.Empty(t, result.Trades)
}

func TestRun_AllMetricsFinite(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	req := threeBarRequest()
	req.CalculationLogic = "factor = log(close - close)" // all -Inf, sanitized to 0
	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	m := result.Metrics
	for name, v := range map[string]float64{
		"sharpe":     m.SharpeRatio,
		"annualized": m.AnnualizedReturn,
		"drawdown":   m.MaxDrawdown,
		"volatility": m.Volatility,
		"winRate":    m.WinRate,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s is not finite: %v", name, v)
	}
}

func TestRun_Deterministic(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	first, err := engine.Run(context.Background(), threeBarRequest())
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), threeBarRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Trades, second.Trades)
}

func TestExecute_SuccessResponse(t *testing.T) {
	engine := NewEngine(Config{EvalTimeout: time.Second})
	resp := engine.Execute(context.Background(), threeBarRequest())

	assert.Equal(t, "success", resp.Status)
	assert.Empty(t, resp.Error)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Data, 3)
}

func TestExecute_ErrorResponse(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	resp := engine.Execute(context.Background(), Request{CalculationLogic: "factor = close"})

	assert.Equal(t, "error", resp.Status)
	assert.Nil(t, resp.Result)
	assert.Contains(t, resp.Error, "priceData")
}

func TestNewEngine_DefaultsTimeout(t *testing.T) {
	engine := NewEngine(Config{})
	assert.Equal(t, DefaultConfig().EvalTimeout, engine.cfg.EvalTimeout)
}
