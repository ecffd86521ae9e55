package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the root application configuration, loaded from an optional
// JSON file with environment-variable overrides.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Binance  BinanceConfig  `json:"binance"`
	Redis    RedisConfig    `json:"redis"`
	Paper    PaperConfig    `json:"paper"`
	Analysis AnalysisConfig `json:"analysis"`
	Stream   StreamConfig   `json:"stream"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int    `json:"port"`
	GinMode         string `json:"gin_mode"`          // "debug" or "release"
	RateLimit       int    `json:"rate_limit"`        // requests per window per client
	RateLimitWindow int    `json:"rate_limit_window"` // seconds
}

// BinanceConfig holds candle-source settings. Kline endpoints are public,
// so keys are optional.
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// RedisConfig holds the key-value store connection settings.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PaperConfig holds paper-trading ledger and backtest account settings.
type PaperConfig struct {
	InitialBalance float64 `json:"initial_balance"`
	RiskPerTrade   float64 `json:"risk_per_trade"` // fraction of balance, e.g. 0.01
}

// AnalysisConfig holds detector tuning parameters.
type AnalysisConfig struct {
	SwingLength       int     `json:"swing_length"`
	ImpulseMultiplier float64 `json:"impulse_multiplier"`
}

// StreamConfig holds the websocket snapshot stream settings.
type StreamConfig struct {
	Symbol         string `json:"symbol"`
	Interval       string `json:"interval"`
	RefreshSeconds int    `json:"refresh_seconds"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // console writer when false
}

// Load reads config.json (or the file named by CONFIG_FILE) when present,
// applies defaults, then applies environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.json"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Paper.RiskPerTrade <= 0 || cfg.Paper.RiskPerTrade > 0.1 {
		return nil, fmt.Errorf("paper.risk_per_trade must be in (0, 0.1], got %v", cfg.Paper.RiskPerTrade)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			GinMode:         "release",
			RateLimit:       120,
			RateLimitWindow: 60,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Paper: PaperConfig{
			InitialBalance: 50000,
			RiskPerTrade:   0.01,
		},
		Analysis: AnalysisConfig{
			SwingLength:       5,
			ImpulseMultiplier: 1.5,
		},
		Stream: StreamConfig{
			Symbol:         "BTCUSDT",
			Interval:       "15m",
			RefreshSeconds: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.GinMode = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		cfg.Binance.SecretKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STREAM_SYMBOL"); v != "" {
		cfg.Stream.Symbol = v
	}
	if v := os.Getenv("STREAM_INTERVAL"); v != "" {
		cfg.Stream.Interval = v
	}
}
