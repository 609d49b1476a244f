// Package domain holds the request-scoped value types shared by the factor
// evaluation and backtest components.
package domain

// PricePoint is a single daily bar. Close is required and positive; the
// remaining fields are optional and reported as nil when the vendor omits them.
type PricePoint struct {
	Date   string   `json:"date"`
	Close  float64  `json:"close"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// Signal is the discrete trading action emitted by the threshold state machine.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// Trade is one reconstructed fill from the long-only replay.
type Trade struct {
	Date     string  `json:"date"`
	Type     Signal  `json:"type"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// BacktestDataPoint is the per-period public record of the simulation.
type BacktestDataPoint struct {
	Date                string  `json:"date"`
	StrategyReturn      float64 `json:"strategyReturn"`
	BenchmarkReturn     float64 `json:"benchmarkReturn"`
	CumulativeStrategy  float64 `json:"cumulativeStrategy"`
	CumulativeBenchmark float64 `json:"cumulativeBenchmark"`
	Signal              *Signal `json:"signal"`
}

// BacktestMetrics aggregates the strategy statistics. Every float is finite by
// construction; IC is nil when the rank correlation is undeterminable.
type BacktestMetrics struct {
	SharpeRatio      float64  `json:"sharpeRatio"`
	AnnualizedReturn float64  `json:"annualizedReturn"`
	MaxDrawdown      float64  `json:"maxDrawdown"`
	Volatility       float64  `json:"volatility"`
	WinRate          float64  `json:"winRate"`
	BenchmarkName    string   `json:"benchmarkName"`
	IC               *float64 `json:"ic"`
}

// BacktestResult is the full engine output for one invocation.
type BacktestResult struct {
	Data          []BacktestDataPoint `json:"data"`
	Metrics       BacktestMetrics     `json:"metrics"`
	Trades        []Trade             `json:"trades"`
	GeneratedCode string              `json:"generatedCode,omitempty"`
}

// Source is a reference citation attached to a generated factor.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AlphaFactor is a stored factor definition. Formula is the human-readable
// expression; Code is the executable calculation logic derived from it.
type AlphaFactor struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId,omitempty"`
	Name          string   `json:"name"`
	Formula       string   `json:"formula"`
	Description   string   `json:"description"`
	Intuition     string   `json:"intuition"`
	Category      string   `json:"category"`
	CreatedAt     int64    `json:"createdAt"`
	Sources       []Source `json:"sources,omitempty"`
	LastBenchmark string   `json:"lastBenchmark,omitempty"`
	BuyThreshold  string   `json:"buyThreshold,omitempty"`
	SellThreshold string   `json:"sellThreshold,omitempty"`
	Code          string   `json:"code,omitempty"`
}
