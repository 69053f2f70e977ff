package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the bridge.
type Config struct {
	Port string

	Environment string // "testnet" or "mainnet"
	TestnetKey  string
	MainnetKey  string

	// WalletAddress is the account address the configured private key
	// signs for. The venue derives roles/state from this address, not
	// from the key itself, so it is supplied directly rather than
	// recovered from the key's public point.
	WalletAddress string

	DBPath string

	SymbolLockTimeout   time.Duration
	BalanceCacheTTL     time.Duration
	UptimeProbeInterval time.Duration
	UptimeProbeTarget   string

	VenueBaseURL string
}

// ActiveKey returns the private key configured for the active environment.
func (c *Config) ActiveKey() (string, error) {
	return c.KeyFor(c.Environment)
}

// ActiveBaseURL returns the venue endpoint for the active environment.
// VenueBaseURL, when set, overrides the environment-implied default for
// both testnet and mainnet.
func (c *Config) ActiveBaseURL() string {
	return c.BaseURLFor(c.Environment)
}

// BaseURLFor returns the venue endpoint for an arbitrary environment
// name, used by the /api/environment switch handler to build a client
// for whichever side the caller is switching to.
func (c *Config) BaseURLFor(env string) string {
	if c.VenueBaseURL != "" {
		return c.VenueBaseURL
	}
	if env == "testnet" {
		return "https://api.hyperliquid-testnet.xyz"
	}
	return "https://api.hyperliquid.xyz"
}

// KeyFor returns the private key configured for an arbitrary environment
// name. Same error behavior as ActiveKey, parameterized by env.
func (c *Config) KeyFor(env string) (string, error) {
	switch env {
	case "testnet":
		if c.TestnetKey == "" {
			return "", fmt.Errorf("HYPERLIQUID_TESTNET_KEY is required to switch to testnet")
		}
		return c.TestnetKey, nil
	case "mainnet":
		if c.MainnetKey == "" {
			return "", fmt.Errorf("HYPERLIQUID_MAINNET_KEY is required to switch to mainnet")
		}
		return c.MainnetKey, nil
	default:
		return "", fmt.Errorf("environment must be 'testnet' or 'mainnet', got %q", env)
	}
}

// Load reads environment variables (optionally via .env) into Config.
// It returns an error (never panics) when the active environment's key
// is missing; callers treat this as a fatal ConfigurationError.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	dbPath := getEnv("DB_PATH", "./data/bridge.db")

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "testnet"),
		TestnetKey:          os.Getenv("HYPERLIQUID_TESTNET_KEY"),
		MainnetKey:          os.Getenv("HYPERLIQUID_MAINNET_KEY"),
		WalletAddress:       os.Getenv("WALLET_ADDRESS"),
		DBPath:              dbPath,
		SymbolLockTimeout:   getEnvDuration("SYMBOL_LOCK_TIMEOUT", 30*time.Second),
		BalanceCacheTTL:     getEnvDuration("BALANCE_CACHE_TTL", 30*time.Second),
		UptimeProbeInterval: getEnvDuration("UPTIME_PROBE_INTERVAL", 5*time.Second),
		UptimeProbeTarget:   getEnv("UPTIME_PROBE_TARGET", "https://api.hyperliquid.xyz/info"),
		VenueBaseURL:        getEnv("VENUE_BASE_URL", ""),
	}

	if _, err := cfg.ActiveKey(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
