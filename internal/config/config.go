// Package config loads service configuration from a YAML file with
// environment-variable overrides (TRADECORE_ prefix).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	API      APIConfig      `mapstructure:"api"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Backtest BacktestConfig `mapstructure:"backtest"`

	Strategies []StrategyConfig `mapstructure:"strategies"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DataConfig locates the market data source.
type DataConfig struct {
	Dir string `mapstructure:"dir"` // directory of per-symbol bar CSVs
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EngineConfig controls scheduler and fill-poll timing.
type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	FillTimeout  time.Duration `mapstructure:"fill_timeout"`
	FillInterval time.Duration `mapstructure:"fill_interval"`
}

// BrokerConfig selects and parameterizes the broker backend.
type BrokerConfig struct {
	Backend      string  `mapstructure:"backend"` // "paper"
	StartingCash float64 `mapstructure:"starting_cash"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	Backend string `mapstructure:"backend"` // "csv", "sql", "none"
	Dir     string `mapstructure:"dir"`     // csv backend
	Driver  string `mapstructure:"driver"`  // sql backend: "sqlite3" or "postgres"
	DSN     string `mapstructure:"dsn"`     // sql backend
}

// BacktestConfig carries backtest friction defaults.
type BacktestConfig struct {
	StartingCash        float64 `mapstructure:"starting_cash"`
	RiskPerTrade        float64 `mapstructure:"risk_per_trade"`
	SlippagePct         float64 `mapstructure:"slippage_pct"`
	CryptoCommissionPct float64 `mapstructure:"crypto_commission_pct"`
	StockCommission     float64 `mapstructure:"stock_commission"`
}

// StrategyConfig describes one strategy binding.
type StrategyConfig struct {
	Name      string        `mapstructure:"name"`
	Type      string        `mapstructure:"type"` // implementation: "sma_crossover", "hold"
	Symbol    string        `mapstructure:"symbol"`
	AssetType string        `mapstructure:"asset_type"`
	Timeframe string        `mapstructure:"timeframe"`
	Interval  time.Duration `mapstructure:"interval"`

	RiskPerTrade    float64 `mapstructure:"risk_per_trade"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64 `mapstructure:"take_profit_pct"`
	MaxPositionSize int     `mapstructure:"max_position_size"`
	MaxPositions    int     `mapstructure:"max_positions"`
	MaxDailyLossPct float64 `mapstructure:"max_daily_loss_pct"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("data.dir", "data")

	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.allowed_origins", []string{"*"})

	v.SetDefault("engine.tick_interval", time.Second)
	v.SetDefault("engine.fill_timeout", 30*time.Second)
	v.SetDefault("engine.fill_interval", time.Second)

	v.SetDefault("broker.backend", "paper")
	v.SetDefault("broker.starting_cash", 100000.0)

	v.SetDefault("journal.backend", "csv")
	v.SetDefault("journal.dir", "logs")
	v.SetDefault("journal.driver", "sqlite3")
	v.SetDefault("journal.dsn", "tradecore.db")

	v.SetDefault("backtest.starting_cash", 100000.0)
	v.SetDefault("backtest.risk_per_trade", 0.02)
	v.SetDefault("backtest.slippage_pct", 0.0005)
	v.SetDefault("backtest.crypto_commission_pct", 0.0025)
	v.SetDefault("backtest.stock_commission", 0.0)
}

// Load reads path (optional; defaults apply when empty or missing) and
// merges TRADECORE_-prefixed environment variables over it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRADECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
