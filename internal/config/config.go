package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration values.
type Config struct {
	Secret      string
	HTTPPort    string
	DatabaseDSN string

	// Stock ledger backend: "csv" (default) or "sqlite".
	StockBackend string
	StockFile    string
	// Optional receiving CSV loaded into the ledger at startup.
	StockSeedFile string

	LowStockThreshold int64
	ReorderThreshold  int64
	ReorderAmount     int64
	ExpiryWindowDays  int
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		log.Printf("invalid %s value %q, defaulting to %d", key, raw, fallback)
		return fallback
	}
	return v
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	cfg := Config{
		Secret:            envOr("SECRET", "dev_secret"),
		HTTPPort:          envOr("HTTP_PORT", "8080"),
		DatabaseDSN:       envOr("DATABASE_DSN", "pharmacy.db"),
		StockBackend:      envOr("STOCK_BACKEND", "csv"),
		StockFile:         envOr("STOCK_FILE", "DBFiles/db_inventory.csv"),
		StockSeedFile:     os.Getenv("STOCK_SEED_FILE"),
		LowStockThreshold: envIntOr("LOW_STOCK_THRESHOLD", 120),
		ReorderThreshold:  envIntOr("REORDER_THRESHOLD", 120),
		ReorderAmount:     envIntOr("REORDER_AMOUNT", 120),
		ExpiryWindowDays:  int(envIntOr("EXPIRY_WINDOW_DAYS", 30)),
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}
	if cfg.StockBackend != "csv" && cfg.StockBackend != "sqlite" {
		log.Printf("unknown STOCK_BACKEND %q, defaulting to csv", cfg.StockBackend)
		cfg.StockBackend = "csv"
	}
	return cfg
}
