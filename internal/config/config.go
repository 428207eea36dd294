package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"webhookrecv/internal/parser/webhook"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Server ServerConfig

	// History Configuration
	History HistoryConfig

	// Rate limiting for captured requests
	RateLimit RateLimitConfig

	// GeoIP Configuration
	GeoIP GeoIPConfig

	// Log configuration
	LogLevel string
	LogFile  string
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Host            string
	Port            int
	Production      bool
	TrustedProxies  []string // Empty means the peer address is always the source
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// HistoryConfig contains capture history settings
type HistoryConfig struct {
	MaxHistory  int
	SavePath    string // Snapshot written on shutdown and by POST /_snapshot
	LoadPath    string // Snapshot restored on startup
	ForceParser string // Skip detection and always use this provider
}

// RateLimitConfig contains per-client request limits (RPS 0 = disabled)
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// GeoIPConfig contains GeoIP database paths
type GeoIPConfig struct {
	CityDBPath string
	ASNDBPath  string
	CacheSize  int
	Enabled    bool
}

// Load reads configuration from .env file and environment variables,
// then applies command-line flags from args on top.
func Load(args []string) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 3000),
			Production:      getEnvAsBool("SERVER_PRODUCTION", false),
			TrustedProxies:  getEnvAsList("TRUSTED_PROXIES"),
			MaxBodyBytes:    int64(getEnvAsInt("MAX_BODY_BYTES", 10<<20)),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		History: HistoryConfig{
			MaxHistory:  getEnvAsInt("MAX_HISTORY", 100),
			SavePath:    getEnv("HISTORY_SAVE_PATH", ""),
			LoadPath:    getEnv("HISTORY_LOAD_PATH", ""),
			ForceParser: getEnv("FORCE_PARSER", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 0),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		GeoIP: GeoIPConfig{
			CityDBPath: getEnv("GEOIP_CITY_DB", "geoip/GeoLite2-City.mmdb"),
			ASNDBPath:  getEnv("GEOIP_ASN_DB", "geoip/GeoLite2-ASN.mmdb"),
			CacheSize:  getEnvAsInt("GEOIP_CACHE_SIZE", 10000),
			Enabled:    getEnvAsBool("GEOIP_ENABLED", false),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides settings with any command-line flags that were set
func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("webhook-recv", flag.ContinueOnError)
	port := fs.Int("port", c.Server.Port, "Port to run server on")
	host := fs.String("host", c.Server.Host, "Host to bind to")
	save := fs.String("save", c.History.SavePath, "Save webhooks to file on exit")
	load := fs.String("load", c.History.LoadPath, "Load webhooks from file on start")
	parser := fs.String("parser", c.History.ForceParser, "Force specific webhook parser (github, stripe, slack)")
	maxHistory := fs.Int("max-history", c.History.MaxHistory, "Maximum number of requests kept in memory")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.BoolVar(verbose, "v", false, "Verbose output (shorthand)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	c.Server.Port = *port
	c.Server.Host = *host
	c.History.SavePath = *save
	c.History.LoadPath = *load
	c.History.ForceParser = *parser
	c.History.MaxHistory = *maxHistory
	if *verbose {
		c.LogLevel = "debug"
	}
	return nil
}

func (c *Config) validate() error {
	if c.History.MaxHistory <= 0 {
		return fmt.Errorf("max history must be positive, got %d", c.History.MaxHistory)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.History.ForceParser != "" {
		if _, err := webhook.ParseProvider(c.History.ForceParser); err != nil {
			return err
		}
	}
	if c.History.LoadPath != "" {
		info, err := os.Stat(c.History.LoadPath)
		if err != nil {
			return fmt.Errorf("load file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("load file %s is a directory", c.History.LoadPath)
		}
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper functions to read environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
