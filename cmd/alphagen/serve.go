package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/huhk345/alphagen-ai/internal/application"
	"github.com/huhk345/alphagen-ai/internal/backtest"
	"github.com/huhk345/alphagen-ai/internal/infrastructure/cache"
	"github.com/huhk345/alphagen-ai/internal/infrastructure/llm"
	"github.com/huhk345/alphagen-ai/internal/infrastructure/providers"
	httpapi "github.com/huhk345/alphagen-ai/internal/interfaces/http"
	"github.com/huhk345/alphagen-ai/internal/persistence/postgres"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	provider := providers.NewYahooProvider(providers.YahooConfig{
		BaseURL:           cfg.Market.BaseURL,
		RequestTimeout:    cfg.Market.RequestTimeout(),
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		Burst:             cfg.Market.Burst,
		BreakerFailures:   cfg.Market.BreakerFailures,
		BreakerTimeout:    cfg.Market.BreakerTimeout(),
	})

	var priceCache *cache.PriceCache
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		priceCache = cache.NewPriceCache(client, cfg.Cache.TTL())
		log.Info().Str("addr", cfg.Cache.Addr).Msg("price cache enabled")
	}

	handlers := &httpapi.Handlers{
		Engine:  backtest.NewEngine(backtest.Config{EvalTimeout: cfg.Engine.EvalTimeout()}),
		Market:  application.NewMarketDataService(provider, priceCache),
		Version: version,
	}

	if keys := cfg.LLM.Keys(); cfg.LLM.Enabled && len(keys) > 0 {
		handlers.Generator = llm.NewClient(llm.Config{
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			APIKeys:        keys,
			RequestTimeout: cfg.LLM.RequestTimeout(),
		})
		log.Info().Str("model", cfg.LLM.Model).Int("keys", len(keys)).Msg("factor generation enabled")
	}

	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		handlers.Factors = postgres.NewFactorsRepo(db, cfg.Database.QueryTimeout())
		handlers.Results = postgres.NewResultsRepo(db, cfg.Database.QueryTimeout())
		log.Info().Msg("persistence enabled")
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}, handlers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
