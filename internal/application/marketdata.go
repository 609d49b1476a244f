package application

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/infrastructure/cache"
)

// PriceSource fetches daily bars for a vendor ticker.
type PriceSource interface {
	DailyBars(ctx context.Context, ticker string) ([]domain.PricePoint, error)
}

// MarketDataService resolves benchmarks and A-share codes to price series,
// with an optional read-through cache in front of the vendor.
type MarketDataService struct {
	source PriceSource
	cache  *cache.PriceCache
}

// NewMarketDataService creates a service. The cache may be nil when caching
// is disabled.
func NewMarketDataService(source PriceSource, priceCache *cache.PriceCache) *MarketDataService {
	return &MarketDataService{source: source, cache: priceCache}
}

// ForBenchmark returns the price series for a named benchmark.
func (s *MarketDataService) ForBenchmark(ctx context.Context, benchmark domain.Benchmark) ([]domain.PricePoint, error) {
	ticker, err := benchmark.Ticker()
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, ticker)
}

// ForAShareCode returns the price series for a 6-digit A-share code.
func (s *MarketDataService) ForAShareCode(ctx context.Context, code string) ([]domain.PricePoint, error) {
	ticker, err := domain.NormalizeAShareCode(code)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, ticker)
}

func (s *MarketDataService) fetch(ctx context.Context, ticker string) ([]domain.PricePoint, error) {
	if s.cache != nil {
		points, hit, err := s.cache.Get(ctx, ticker)
		if err != nil {
			// Cache trouble degrades to a vendor fetch.
			log.Warn().Err(err).Str("ticker", ticker).Msg("price cache read failed")
		} else if hit {
			return points, nil
		}
	}

	points, err := s.source.DailyBars(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ticker, points); err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("price cache write failed")
		}
	}
	return points, nil
}
