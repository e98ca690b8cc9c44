package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/quantmill/tradecore/internal/backtest"
	"github.com/quantmill/tradecore/internal/config"
	"github.com/quantmill/tradecore/internal/marketdata"
	"github.com/quantmill/tradecore/pkg/types"
)

var (
	btSymbol    string
	btStrategy  string
	btTimeframe string
	btDaysBack  int
	btCSVFile   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through a strategy",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&btSymbol, "symbol", "", "symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "sma_crossover", "strategy type")
	backtestCmd.Flags().StringVar(&btTimeframe, "timeframe", string(types.Timeframe1h), "bar timeframe")
	backtestCmd.Flags().IntVar(&btDaysBack, "days", 30, "days of history")
	backtestCmd.Flags().StringVar(&btCSVFile, "csv", "", "replay a single bar CSV file instead of the data dir")
	backtestCmd.MarkFlagRequired("symbol")
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := setupLogger(logLevel)
	defer logger.Sync()

	strat, ok := builtinStrategies()[btStrategy]
	if !ok {
		return fmt.Errorf("unknown strategy type %q", btStrategy)
	}

	eng, err := backtest.NewEngine(logger, backtest.Config{
		StartingCash:        decimal.NewFromFloat(cfg.Backtest.StartingCash),
		RiskPerTrade:        cfg.Backtest.RiskPerTrade,
		SlippagePct:         cfg.Backtest.SlippagePct,
		CryptoCommissionPct: cfg.Backtest.CryptoCommissionPct,
		StockCommission:     decimal.NewFromFloat(cfg.Backtest.StockCommission),
	}, strat)
	if err != nil {
		return err
	}

	var result *backtest.Result
	if btCSVFile != "" {
		f, err := os.Open(btCSVFile)
		if err != nil {
			return err
		}
		defer f.Close()
		bars, err := marketdata.ParseBars(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", btCSVFile, err)
		}
		result = eng.RunBars(btSymbol, bars)
	} else {
		provider := marketdata.NewCSVProvider(logger, cfg.Data.Dir)
		result, err = eng.Run(context.Background(), provider, btSymbol, types.Timeframe(btTimeframe), btDaysBack)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Summary())
}
