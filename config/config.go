/*
config.go - Server configuration

PURPOSE:
  Resolves runtime settings for the ledger engine server from
  command-line flags with environment variable overrides. Flags win
  over environment variables, environment variables win over defaults.

SETTINGS:
  -port / PORT                  HTTP server port (default: 8080)
  -db / DATABASE_PATH           SQLite database path (default: vault.db)
                                Use ":memory:" for an in-memory database
  -scan-interval / SCAN_INTERVAL  Due-payout sweep interval (default: 1h)
  -log-level / LOG_LEVEL        zap level: debug, info, warn, error (default: info)
  -min-lock / MIN_LOCK_AMOUNT   Minimum lock amount (default: 1000)
  -max-lock-days / MAX_LOCK_DAYS  Maximum lock interval in days (default: 365)

EXAMPLES:
  ./server -db="./data/vault.db" -scan-interval=15m
  PORT=3000 LOG_LEVEL=debug ./server
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all server settings.
type Config struct {
	Port         int
	DatabasePath string
	ScanInterval time.Duration
	LogLevel     string

	// Engine bounds
	MinLockAmount string
	MaxLockDays   int
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:          8080,
		DatabasePath:  "vault.db",
		ScanInterval:  time.Hour,
		LogLevel:      "info",
		MinLockAmount: "1000",
		MaxLockDays:   365,
	}
}

// Load resolves settings from the environment and the given argument
// list. Pass os.Args[1:] from main.
func Load(args []string) (Config, error) {
	cfg := Default()

	// Environment layer
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SCAN_INTERVAL %q: %w", v, err)
		}
		cfg.ScanInterval = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MIN_LOCK_AMOUNT"); v != "" {
		cfg.MinLockAmount = v
	}
	if v := os.Getenv("MAX_LOCK_DAYS"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MAX_LOCK_DAYS %q: %w", v, err)
		}
		cfg.MaxLockDays = d
	}

	// Flag layer
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	fs.DurationVar(&cfg.ScanInterval, "scan-interval", cfg.ScanInterval, "due-payout sweep interval")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.MinLockAmount, "min-lock", cfg.MinLockAmount, "minimum lock amount")
	fs.IntVar(&cfg.MaxLockDays, "max-lock-days", cfg.MaxLockDays, "maximum lock interval in days")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("port out of range: %d", cfg.Port)
	}
	if cfg.DatabasePath == "" {
		return cfg, fmt.Errorf("database path is required")
	}
	if cfg.ScanInterval <= 0 {
		return cfg, fmt.Errorf("scan interval must be positive: %s", cfg.ScanInterval)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	min, err := decimal.NewFromString(cfg.MinLockAmount)
	if err != nil || !min.IsPositive() {
		return cfg, fmt.Errorf("invalid minimum lock amount %q", cfg.MinLockAmount)
	}
	if cfg.MaxLockDays <= 0 {
		return cfg, fmt.Errorf("max lock days must be positive: %d", cfg.MaxLockDays)
	}
	return cfg, nil
}

// MinLock returns the minimum lock amount as a decimal. Load guarantees it
// parses.
func (c Config) MinLock() decimal.Decimal {
	return decimal.RequireFromString(c.MinLockAmount)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds a zap logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
