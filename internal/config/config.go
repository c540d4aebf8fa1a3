package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MongoURI       string `envconfig:"MONGO_URI"`
	MongoDatabase  string `envconfig:"MONGO_DATABASE" default:"salonpos"`

	StoreRetryAttempts  int           `envconfig:"STORE_RETRY_ATTEMPTS" default:"3"`
	StoreRetryBaseDelay time.Duration `envconfig:"STORE_RETRY_BASE_DELAY" default:"1s"`

	RedisAddr              string `envconfig:"REDIS_ADDR"`
	RedisPassword          string `envconfig:"REDIS_PASSWORD"`
	RedisDB                int    `envconfig:"REDIS_DB" default:"0"`
	MetricsCacheTTLSeconds int    `envconfig:"METRICS_CACHE_TTL_SECONDS" default:"60"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	AdminPassword         string `envconfig:"ADMIN_PASSWORD"`
	CashierPassword       string `envconfig:"CASHIER_PASSWORD"`

	Timezone               string `envconfig:"TIMEZONE" default:"UTC"`
	StockPolicy            string `envconfig:"STOCK_POLICY" default:"reject"`
	AllowDeleteActiveSales bool   `envconfig:"ALLOW_DELETE_ACTIVE_SALES" default:"true"`
	ReportLocale           string `envconfig:"REPORT_LOCALE" default:"es"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AdminPassword = strings.TrimSpace(cfg.AdminPassword)
	cfg.CashierPassword = strings.TrimSpace(cfg.CashierPassword)

	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendMemory
	}
	if cfg.MetricsCacheTTLSeconds < 1 {
		cfg.MetricsCacheTTLSeconds = 60
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.StoreRetryAttempts < 1 {
		cfg.StoreRetryAttempts = 1
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("STORAGE_BACKEND=mongo requires MONGO_URI")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location is the zone calendar days are cut in for date-range filters.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) MetricsCacheTTL() time.Duration {
	return time.Duration(c.MetricsCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}
