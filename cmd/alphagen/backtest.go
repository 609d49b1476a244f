package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/huhk345/alphagen-ai/internal/application"
	"github.com/huhk345/alphagen-ai/internal/backtest"
	"github.com/huhk345/alphagen-ai/internal/domain"
	"github.com/huhk345/alphagen-ai/internal/infrastructure/providers"
)

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logic, err := resolveLogic(cmd)
	if err != nil {
		return err
	}

	benchmark, _ := cmd.Flags().GetString("benchmark")
	pricesPath, _ := cmd.Flags().GetString("prices")
	buy, _ := cmd.Flags().GetString("buy")
	sell, _ := cmd.Flags().GetString("sell")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var prices []domain.PricePoint
	if pricesPath != "" {
		prices, err = readPricesCSV(pricesPath)
	} else {
		provider := providers.NewYahooProvider(providers.YahooConfig{
			BaseURL:           cfg.Market.BaseURL,
			RequestTimeout:    cfg.Market.RequestTimeout(),
			RequestsPerSecond: cfg.Market.RequestsPerSecond,
			Burst:             cfg.Market.Burst,
			BreakerFailures:   cfg.Market.BreakerFailures,
			BreakerTimeout:    cfg.Market.BreakerTimeout(),
		})
		prices, err = application.NewMarketDataService(provider, nil).
			ForBenchmark(ctx, domain.Benchmark(benchmark))
	}
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(backtest.Config{EvalTimeout: cfg.Engine.EvalTimeout()})
	resp := engine.Execute(ctx, backtest.Request{
		PriceData:        prices,
		CalculationLogic: logic,
		BenchmarkLabel:   benchmark,
		BuyThreshold:     buy,
		SellThreshold:    sell,
	})

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return errors.New(resp.Error)
	}
	return nil
}

func resolveLogic(cmd *cobra.Command) (string, error) {
	logic, _ := cmd.Flags().GetString("code")
	if logic != "" {
		return logic, nil
	}
	path, _ := cmd.Flags().GetString("code-file")
	if path == "" {
		return "", errors.New("either --code or --code-file is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readPricesCSV loads date,close[,open,high,low,volume] rows. A header row is
// detected by a non-numeric close field and skipped.
func readPricesCSV(path string) ([]domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var points []domain.PricePoint
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected at least date,close", i+1)
		}
		closePrice, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: bad close %q", i+1, row[1])
		}
		p := domain.PricePoint{Date: row[0], Close: closePrice}
		for j, field := range []**float64{&p.Open, &p.High, &p.Low, &p.Volume} {
			idx := j + 2
			if idx < len(row) && row[idx] != "" {
				v, err := strconv.ParseFloat(row[idx], 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: bad value %q", i+1, row[idx])
				}
				*field = &v
			}
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, errors.New("no price rows in file")
	}
	return points, nil
}
