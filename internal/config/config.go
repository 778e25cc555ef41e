package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Models   ModelsConfig
	Pricing  PricingConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig locates the three source tables. Each may be a .csv or .xlsx file.
type DataConfig struct {
	SellMetaFile     string
	TransactionsFile string
	DateInfoFile     string
	CacheDir         string
	ReloadSchedule   string
}

type ModelsConfig struct {
	DBPath string
}

type PricingConfig struct {
	DefaultBuyingPrice float64
	DerivedCostRatio   float64
	Workers            int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8085),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			SellMetaFile:     getEnvString("DATA_SELL_META_FILE", "data/Cafe - Sell Meta Data.csv"),
			TransactionsFile: getEnvString("DATA_TRANSACTIONS_FILE", "data/Cafe - Transaction - Store.csv"),
			DateInfoFile:     getEnvString("DATA_DATE_INFO_FILE", "data/DateInfo.csv"),
			CacheDir:         getEnvString("DATA_CACHE_DIR", ".cache"),
			ReloadSchedule:   getEnvString("DATA_RELOAD_SCHEDULE", ""),
		},
		Models: ModelsConfig{
			DBPath: getEnvString("MODELS_DB_PATH", "models.db"),
		},
		Pricing: PricingConfig{
			DefaultBuyingPrice: getEnvFloat("PRICING_DEFAULT_BUYING_PRICE", 9.0),
			DerivedCostRatio:   getEnvFloat("PRICING_DERIVED_COST_RATIO", 0.8),
			Workers:            getEnvInt("PRICING_WORKERS", 0),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8085"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.SellMetaFile == "" || c.Data.TransactionsFile == "" || c.Data.DateInfoFile == "" {
		return fmt.Errorf("data file paths cannot be empty")
	}

	if c.Models.DBPath == "" {
		return fmt.Errorf("models database path cannot be empty")
	}

	if c.Pricing.DefaultBuyingPrice < 0 {
		return fmt.Errorf("default buying price must not be negative, got %.2f", c.Pricing.DefaultBuyingPrice)
	}

	if c.Pricing.DerivedCostRatio <= 0 || c.Pricing.DerivedCostRatio > 1 {
		return fmt.Errorf("derived cost ratio must be in (0, 1], got %.2f", c.Pricing.DerivedCostRatio)
	}

	if c.Pricing.Workers < 0 {
		return fmt.Errorf("pricing workers must not be negative")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
