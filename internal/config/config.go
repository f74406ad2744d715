package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	SyncDB    SyncDBConfig
	Amazon    AmazonConfig
	Poller    PollerConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"resellhub-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds Redis settings for the queue mark buffer.
type CacheConfig struct {
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	FlushInterval time.Duration `envconfig:"QUEUE_FLUSH_INTERVAL" default:"15s"`
}

// DatabaseConfig holds MySQL connection settings (back-office schema).
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"resellhub"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// SyncDBConfig selects the storage backend for feeds and the sync queue.
type SyncDBConfig struct {
	Type string `envconfig:"SYNC_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"SYNC_DB_PATH" default:"./data/sync.db"`
}

// AmazonConfig holds SP-API client settings.
type AmazonConfig struct {
	BaseURL       string        `envconfig:"AMAZON_BASE_URL" default:"https://sellingpartnerapi-eu.amazon.com"`
	AccessToken   string        `envconfig:"AMAZON_ACCESS_TOKEN" default:""`
	SellerID      string        `envconfig:"AMAZON_SELLER_ID" default:""`
	MarketplaceID string        `envconfig:"AMAZON_MARKETPLACE_ID" default:"A1F83G8C2ARO7P"`
	HTTPTimeout   time.Duration `envconfig:"AMAZON_HTTP_TIMEOUT" default:"30s"`
	MaxRetries    uint          `envconfig:"AMAZON_MAX_RETRIES" default:"3"`
}

// PollerConfig bounds verification attempts and processing wall clock.
type PollerConfig struct {
	MaxPollAttempts   int           `envconfig:"MAX_POLL_ATTEMPTS" default:"30"`
	ProcessingCeiling time.Duration `envconfig:"AMAZON_PROCESSING_CEILING" default:"6h"`
}

// SchedulerConfig holds the background poll cadence.
type SchedulerConfig struct {
	Enabled            bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	TickInterval       time.Duration `envconfig:"SCHEDULER_TICK_INTERVAL" default:"5s"`
	ProcessingInterval time.Duration `envconfig:"SCHEDULER_PROCESSING_INTERVAL" default:"30s"`
	VerifyInitialDelay time.Duration `envconfig:"SCHEDULER_VERIFY_INITIAL_DELAY" default:"5s"`
	VerifyInterval     time.Duration `envconfig:"SCHEDULER_VERIFY_INTERVAL" default:"60s"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
