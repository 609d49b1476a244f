// Package perf derives per-period return series and aggregate strategy
// statistics from the price table and the position series. Every emitted
// number is finite: NaN and infinities are replaced with stated defaults (0.0
// for metrics and returns, 1.0 for cumulative curves) so results are always
// JSON-safe.
package perf

import (
	"math"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/factor"
	"github.com/huhk345/alphagen-ai/internal/signal"
	"github.com/huhk345/alphagen-ai/internal/table"
)

// TradingDaysPerYear is the annualization constant. Fixed policy, not
// configurable.
const TradingDaysPerYear = 252

// Report bundles the calculator output.
type Report struct {
	Metrics domain.BacktestMetrics
	Data    []domain.BacktestDataPoint
}

// Compute runs the full metrics pass: per-period returns, cumulative curves,
// aggregate statistics, and the information coefficient. The return and curve
// columns are appended to the table.
func Compute(tbl *table.Table, sig *signal.Series, benchmarkName string) Report {
	closes, _ := tbl.Column("close")
	n := len(closes)

	returns := periodReturns(closes)

	strategyReturns := make([]float64, n)
	benchmarkReturns := make([]float64, n)
	for i := range returns {
		lagged := 0.0
		if i > 0 {
			lagged = float64(sig.Position[i-1])
		}
		strategyReturns[i] = sanitize(lagged*returns[i], 0)
		benchmarkReturns[i] = sanitize(returns[i], 0)
	}

	cumulativeStrategy := cumulativeProduct(strategyReturns)
	cumulativeBenchmark := cumulativeProduct(benchmarkReturns)

	tbl.SetColumn("return", returns)
	tbl.SetColumn("strategyReturn", strategyReturns)
	tbl.SetColumn("benchmarkReturn", benchmarkReturns)
	tbl.SetColumn("cumulativeStrategy", cumulativeStrategy)
	tbl.SetColumn("cumulativeBenchmark", cumulativeBenchmark)

	metrics := aggregate(strategyReturns, cumulativeStrategy)
	metrics.BenchmarkName = benchmarkName

	factorCol, _ := tbl.Column(factor.FactorColumn)
	metrics.IC = InformationCoefficient(factorCol, closes)

	data := make([]domain.BacktestDataPoint, n)
	dates := tbl.Dates()
	for i := 0; i < n; i++ {
		data[i] = domain.BacktestDataPoint{
			Date:                dates[i],
			StrategyReturn:      sanitize(strategyReturns[i], 0),
			BenchmarkReturn:     sanitize(benchmarkReturns[i], 0),
			CumulativeStrategy:  sanitize(cumulativeStrategy[i], 1),
			CumulativeBenchmark: sanitize(cumulativeBenchmark[i], 1),
			Signal:              sig.Signals[i],
		}
	}

	return Report{Metrics: metrics, Data: data}
}

// periodReturns calculates close[i]/close[i-1] - 1 with NaN at row 0.
func periodReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 || closes[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

func cumulativeProduct(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		out[i] = acc
	}
	return out
}

// aggregate computes the strategy statistics. Tables with one row or fewer
// yield exactly 0.0 for every metric.
func aggregate(strategyReturns, cumulativeStrategy []float64) domain.BacktestMetrics {
	n := len(strategyReturns)
	if n <= 1 {
		return domain.BacktestMetrics{}
	}

	mean := 0.0
	for _, r := range strategyReturns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range strategyReturns {
		d := r - mean
		variance += d * d
	}
	dailyVol := math.Sqrt(variance / float64(n))

	sharpe := 0.0
	if dailyVol != 0 {
		sharpe = mean / dailyVol * math.Sqrt(TradingDaysPerYear)
	}

	final := cumulativeStrategy[n-1]
	annualized := math.Pow(final, TradingDaysPerYear/float64(n)) - 1

	maxDrawdown := 0.0
	runningMax := math.Inf(-1)
	for _, v := range cumulativeStrategy {
		if v > runningMax {
			runningMax = v
		}
		if runningMax != 0 {
			if dd := v/runningMax - 1; dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	wins, nonZero := 0, 0
	for _, r := range strategyReturns {
		if r != 0 {
			nonZero++
		}
		if r > 0 {
			wins++
		}
	}
	winRate := 0.0
	if nonZero > 0 {
		winRate = float64(wins) / float64(nonZero) * 100
	}

	return domain.BacktestMetrics{
		SharpeRatio:      sanitize(sharpe, 0),
		AnnualizedReturn: sanitize(annualized, 0),
		MaxDrawdown:      sanitize(maxDrawdown, 0),
		Volatility:       sanitize(dailyVol*math.Sqrt(TradingDaysPerYear), 0),
		WinRate:          sanitize(winRate, 0),
	}
}

// InformationCoefficient is the Spearman rank correlation between the factor
// value at row i and the forward return close[i+1]/close[i] - 1, after
// dropping pairs where either side is NaN or infinite. Fewer than two valid
// pairs is undeterminable and reported as nil, distinct from zero correlation.
func InformationCoefficient(factorValues, closes []float64) *float64 {
	var xs, ys []float64
	for i := 0; i+1 < len(closes); i++ {
		if i >= len(factorValues) {
			break
		}
		if closes[i] == 0 {
			continue
		}
		forward := closes[i+1]/closes[i] - 1
		if !isFinite(factorValues[i]) || !isFinite(forward) {
			continue
		}
		xs = append(xs, factorValues[i])
		ys = append(ys, forward)
	}
	if len(xs) < 2 {
		return nil
	}
	ic := spearman(xs, ys)
	if !isFinite(ic) {
		return nil
	}
	return &ic
}

func sanitize(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
