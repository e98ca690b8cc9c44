package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantmill/tradecore/internal/api"
	"github.com/quantmill/tradecore/internal/backtest"
	"github.com/quantmill/tradecore/internal/broker"
	"github.com/quantmill/tradecore/internal/config"
	"github.com/quantmill/tradecore/internal/engine"
	"github.com/quantmill/tradecore/internal/journal"
	"github.com/quantmill/tradecore/internal/marketdata"
	"github.com/quantmill/tradecore/internal/risk"
	"github.com/quantmill/tradecore/internal/strategy"
	"github.com/quantmill/tradecore/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live trading engine and API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// builtinStrategies maps config strategy types to implementations.
func builtinStrategies() map[string]strategy.Strategy {
	return map[string]strategy.Strategy{
		"sma_crossover": strategy.NewSMACrossover(),
		"hold":          strategy.Hold,
	}
}

func buildJournal(logger *zap.Logger, cfg config.JournalConfig) (journal.TradeLogger, error) {
	switch cfg.Backend {
	case "csv":
		return journal.NewCSV(logger, cfg.Dir)
	case "sql":
		return journal.NewSQL(logger, cfg.Driver, cfg.DSN)
	case "none", "":
		return journal.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

func riskFromConfig(sc config.StrategyConfig) risk.Config {
	rc := risk.DefaultConfig()
	if sc.RiskPerTrade > 0 {
		rc.RiskPerTrade = sc.RiskPerTrade
	}
	if sc.StopLossPct > 0 {
		rc.StopLossPct = sc.StopLossPct
	}
	if sc.TakeProfitPct > 0 {
		rc.TakeProfitPct = sc.TakeProfitPct
	}
	if sc.MaxPositionSize > 0 {
		rc.MaxPositionSize = sc.MaxPositionSize
	}
	if sc.MaxPositions > 0 {
		rc.MaxPositionsOpen = sc.MaxPositions
	}
	if sc.MaxDailyLossPct > 0 {
		rc.MaxDailyLossPct = sc.MaxDailyLossPct
	}
	return rc
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := setupLogger(logLevel)
	defer logger.Sync()

	logger.Info("starting tradingd",
		zap.String("addr", cfg.API.Addr),
		zap.String("journal", cfg.Journal.Backend),
		zap.Int("strategies", len(cfg.Strategies)))

	tradeLog, err := buildJournal(logger, cfg.Journal)
	if err != nil {
		return err
	}
	defer tradeLog.Close()

	provider := marketdata.NewCSVProvider(logger, cfg.Data.Dir)

	pb := broker.NewPaperBroker(logger, decimal.NewFromFloat(cfg.Broker.StartingCash))

	eng := engine.New(logger, engine.Config{
		TickInterval: cfg.Engine.TickInterval,
		FillTimeout:  cfg.Engine.FillTimeout,
		FillInterval: cfg.Engine.FillInterval,
	}, pb, provider, tradeLog)

	strategies := builtinStrategies()
	for _, sc := range cfg.Strategies {
		impl, ok := strategies[sc.Type]
		if !ok {
			return fmt.Errorf("strategy %q: unknown type %q", sc.Name, sc.Type)
		}
		err := eng.RegisterStrategy(engine.StrategyConfig{
			Name:      sc.Name,
			Symbol:    sc.Symbol,
			AssetType: types.AssetType(sc.AssetType),
			Timeframe: types.Timeframe(sc.Timeframe),
			Interval:  sc.Interval,
			Risk:      riskFromConfig(sc),
			Strategy:  impl,
		})
		if err != nil {
			return err
		}
	}

	btConfig := backtest.Config{
		StartingCash:        decimal.NewFromFloat(cfg.Backtest.StartingCash),
		RiskPerTrade:        cfg.Backtest.RiskPerTrade,
		SlippagePct:         cfg.Backtest.SlippagePct,
		CryptoCommissionPct: cfg.Backtest.CryptoCommissionPct,
		StockCommission:     decimal.NewFromFloat(cfg.Backtest.StockCommission),
	}

	server := api.NewServer(logger, api.Config{
		Addr:           cfg.API.Addr,
		AllowedOrigins: cfg.API.AllowedOrigins,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
	}, eng, provider, btConfig, strategies)

	eng.SetOnTrade(server.OnTrade)

	if err := eng.Start(); err != nil {
		return err
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	if err := eng.Stop(); err != nil {
		logger.Error("engine stop", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("tradingd stopped")
	return nil
}
