package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// MetricsRegistry holds the Prometheus metrics for the backtest service.
type MetricsRegistry struct {
	BacktestDuration *prometheus.HistogramVec
	BacktestRequests *prometheus.CounterVec
	EvalErrors       prometheus.Counter
	ActiveBacktests  prometheus.Gauge
	MarketDataFetch  *prometheus.HistogramVec
}

var (
	registryOnce sync.Once
	registry     *MetricsRegistry
)

// Metrics returns the process-wide metrics registry, registering the
// collectors on first use.
func Metrics() *MetricsRegistry {
	registryOnce.Do(func() {
		registry = &MetricsRegistry{
			BacktestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "alphagen_backtest_duration_seconds",
					Help:    "Wall-clock duration of one backtest invocation",
					Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				},
				[]string{"result"},
			),
			BacktestRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alphagen_backtest_requests_total",
					Help: "Backtest requests by outcome",
				},
				[]string{"result"},
			),
			EvalErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "alphagen_factor_eval_errors_total",
					Help: "Calculation logic evaluations that failed",
				},
			),
			ActiveBacktests: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "alphagen_active_backtests",
					Help: "Backtests currently executing",
				},
			),
			MarketDataFetch: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "alphagen_market_data_fetch_seconds",
					Help:    "Market data fetch duration by ticker source",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"source"},
			),
		}
		prometheus.MustRegister(
			registry.BacktestDuration,
			registry.BacktestRequests,
			registry.EvalErrors,
			registry.ActiveBacktests,
			registry.MarketDataFetch,
		)
	})
	return registry
}

// ObserveBacktest records one backtest invocation.
func (m *MetricsRegistry) ObserveBacktest(result string, elapsed time.Duration) {
	m.BacktestDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	m.BacktestRequests.WithLabelValues(result).Inc()
}

// MetricsHandler serves the Prometheus exposition endpoint.
func MetricsHandler() http.Handler {
	Metrics()
	return promhttp.Handler()
}

// GatherSummary flattens the registered metric families into name → sample
// count, used by the health payload to confirm the collectors are alive.
func GatherSummary() map[string]int {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil
	}
	out := make(map[string]int, len(families))
	for _, family := range families {
		out[family.GetName()] = countSamples(family)
	}
	return out
}

func countSamples(family *dto.MetricFamily) int {
	return len(family.GetMetric())
}
