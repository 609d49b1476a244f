// Package providers implements the market-data fetcher collaborators. The
// Yahoo provider pulls one year of daily bars for a ticker, rate limited per
// the vendor's free tier and wrapped in a circuit breaker so a flapping
// upstream degrades fast instead of queueing requests.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/huhk345/alphagen-ai/internal/domain"
)

// YahooConfig configures the chart endpoint client.
type YahooConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// YahooProvider fetches daily bars from the v8 chart API.
type YahooProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewYahooProvider creates a provider from config.
func NewYahooProvider(cfg YahooConfig) *YahooProvider {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "yahoo-chart",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("market data circuit breaker state change")
		},
	})

	return &YahooProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: breaker,
	}
}

// DailyBars returns one year of daily bars for the ticker, ascending by date.
// Bars without a positive close are dropped.
func (p *YahooProvider) DailyBars(ctx context.Context, ticker string) ([]domain.PricePoint, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PricePoint), nil
}

func (p *YahooProvider) fetch(ctx context.Context, ticker string) ([]domain.PricePoint, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=1y&interval=1d", p.baseURL, ticker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "alphagen/1.0")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("chart request failed")
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", ticker, resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode chart response for %s: %w", ticker, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("fetch %s: %s (%s)", ticker, payload.Chart.Error.Description, payload.Chart.Error.Code)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for %s", ticker)
	}

	series := payload.Chart.Result[0]
	if len(series.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data for %s", ticker)
	}
	quote := series.Indicators.Quote[0]

	points := make([]domain.PricePoint, 0, len(series.Timestamp))
	for i, ts := range series.Timestamp {
		close := at(quote.Close, i)
		if close == nil || *close <= 0 {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:   time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close:  *close,
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Volume: at(quote.Volume, i),
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no valid price points for %s", ticker)
	}

	log.Debug().Str("ticker", ticker).Int("bars", len(points)).
		Dur("elapsed", time.Since(start)).Msg("fetched daily bars")
	return points, nil
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}
