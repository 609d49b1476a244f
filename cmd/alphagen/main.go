package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/huhk345/alphagen-ai/internal/application"
)

const (
	appName = "alphagen"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	// Pretty console output on a terminal, JSON when piped or under a
	// supervisor.
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Alpha factor backtest service",
		Version: version,
		Long: `AlphaGen evaluates user-supplied factor calculation logic against daily
price history and reports backtested performance: returns, risk metrics and a
reconstructed trade log.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a single backtest from the command line",
		Long:  "Fetches benchmark price data, evaluates the calculation logic, and prints the result as JSON.",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("benchmark", "BTC-USD", "Benchmark (BTC-USD, ETH-USD, S&P 500, CSI 300)")
	backtestCmd.Flags().String("code", "", "Calculation logic (inline)")
	backtestCmd.Flags().String("code-file", "", "Calculation logic file")
	backtestCmd.Flags().String("prices", "", "CSV price file (date,close[,open,high,low,volume]) instead of fetching")
	backtestCmd.Flags().String("buy", "", "Buy threshold (z-score); empty uses the 80th percentile")
	backtestCmd.Flags().String("sell", "", "Sell threshold (z-score); empty uses the 20th percentile")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backtestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*application.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.InheritedFlags().GetString("config")
	}
	if path == "" {
		return application.Default(), nil
	}
	cfg, err := application.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("loaded configuration")
	return cfg, nil
}
