// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory holding hrpfolio.db and backup staging (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Universe     []string // Base assets, e.g. BTC, ETH
	QuoteAsset   string   // Quote asset for trading pairs, e.g. USDT
	LookbackDays int
	Linkage      string
	BackfillDays int

	Binance     BinanceConfig
	Trading     TradingConfig
	Schedules   ScheduleConfig
	Backup      BackupConfig
	PriceStream bool
}

// BinanceConfig holds exchange credentials and endpoint selection.
type BinanceConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// TradingConfig controls paper-trading rebalances.
type TradingConfig struct {
	Enabled     bool
	MinNotional float64
	CashBuffer  float64
}

// ScheduleConfig holds cron expressions (with seconds).
type ScheduleConfig struct {
	Sync        string
	Rebalance   string
	Backup      string
	Maintenance string
}

// BackupConfig holds S3-compatible backup settings. Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Keep            int
}

// Enabled reports whether a bucket is configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HRP_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("PORT", 8080),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		Universe:     getEnvAsList("HRP_UNIVERSE", []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA"}),
		QuoteAsset:   strings.ToUpper(getEnv("HRP_QUOTE_ASSET", "USDT")),
		LookbackDays: getEnvAsInt("HRP_LOOKBACK_DAYS", 90),
		Linkage:      getEnv("HRP_LINKAGE", string(optimization.DefaultLinkage)),
		BackfillDays: getEnvAsInt("HRP_BACKFILL_DAYS", 730),
		Binance: BinanceConfig{
			APIKey:    getEnv("BINANCE_API_KEY", ""),
			APISecret: getEnv("BINANCE_API_SECRET", ""),
			Testnet:   getEnvAsBool("BINANCE_TESTNET", true),
		},
		Trading: TradingConfig{
			Enabled:     getEnvAsBool("TRADING_ENABLED", false),
			MinNotional: getEnvAsFloat("TRADING_MIN_NOTIONAL", 10),
			CashBuffer:  getEnvAsFloat("TRADING_CASH_BUFFER", 0.02),
		},
		PriceStream: getEnvAsBool("PRICE_STREAM_ENABLED", false),
		Schedules: ScheduleConfig{
			Sync:        getEnv("SYNC_SCHEDULE", "0 10 0 * * *"),
			Rebalance:   getEnv("REBALANCE_SCHEDULE", "0 30 0 1 * *"),
			Backup:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			Maintenance: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * *"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "auto"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("S3_PREFIX", "hrpfolio-backups/"),
			Keep:            getEnvAsInt("BACKUP_KEEP", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath is the location of the single SQLite file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "hrpfolio.db")
}

// Symbols returns the exchange pair for every universe asset, e.g. BTCUSDT.
func (c *Config) Symbols() []string {
	out := make([]string, len(c.Universe))
	for i, asset := range c.Universe {
		out[i] = asset + c.QuoteAsset
	}
	return out
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if _, err := optimization.ParseLinkage(c.Linkage); err != nil {
		return fmt.Errorf("invalid HRP_LINKAGE: %w", err)
	}
	if c.LookbackDays < 2 {
		return fmt.Errorf("HRP_LOOKBACK_DAYS must be at least 2, got %d", c.LookbackDays)
	}
	if len(c.Universe) == 0 {
		return fmt.Errorf("HRP_UNIVERSE must list at least one asset")
	}
	if c.QuoteAsset == "" {
		return fmt.Errorf("HRP_QUOTE_ASSET must not be empty")
	}
	if c.Trading.Enabled && (c.Binance.APIKey == "" || c.Binance.APISecret == "") {
		return fmt.Errorf("TRADING_ENABLED requires BINANCE_API_KEY and BINANCE_API_SECRET")
	}
	if c.Trading.CashBuffer < 0 || c.Trading.CashBuffer >= 1 {
		return fmt.Errorf("TRADING_CASH_BUFFER must be in [0, 1), got %v", c.Trading.CashBuffer)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, trimming and upper-casing entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
