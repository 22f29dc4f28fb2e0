package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Logging      LoggingConfig
	Sweeper      SweeperConfig
	Reconcile    ReconcileConfig
	Subscription SubscriptionConfig
	Mpesa        MpesaConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Upper bound for a single store call
	QueryTimeout time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains token verification configuration.
// Tokens are issued by the external auth service and share this secret.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration // only used by the dev token minting command
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// SweeperConfig controls the expiry sweeper loop
type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
}

// ReconcileConfig controls the reconciliation retry job
type ReconcileConfig struct {
	Enabled     bool
	Schedule    string // cron spec
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BatchSize   int
}

// SubscriptionConfig contains lifecycle options
type SubscriptionConfig struct {
	AllowPayLater bool
	RenewRetries  int
}

// MpesaConfig contains Safaricom Daraja credentials
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	CallbackToken  string
	Timeout        time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "wiman"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			QueryTimeout:    getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second),
			Path:            getEnv("DB_PATH", "./wiman.db"),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", "supersecretkey"),
			TokenExpiry: getEnvAsDuration("JWT_EXPIRY", time.Hour),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Sweeper: SweeperConfig{
			Enabled:  getEnvAsBool("SWEEP_ENABLED", true),
			Interval: getEnvAsDuration("SWEEP_INTERVAL", time.Hour),
			Timeout:  getEnvAsDuration("SWEEP_TIMEOUT", 30*time.Second),
		},
		Reconcile: ReconcileConfig{
			Enabled:     getEnvAsBool("RECONCILE_ENABLED", true),
			Schedule:    getEnv("RECONCILE_SCHEDULE", "*/5 * * * *"),
			MaxAttempts: getEnvAsInt("RECONCILE_MAX_ATTEMPTS", 8),
			BaseDelay:   getEnvAsDuration("RECONCILE_BASE_DELAY", time.Minute),
			MaxDelay:    getEnvAsDuration("RECONCILE_MAX_DELAY", 6*time.Hour),
			BatchSize:   getEnvAsInt("RECONCILE_BATCH_SIZE", 50),
		},
		Subscription: SubscriptionConfig{
			AllowPayLater: getEnvAsBool("ALLOW_PAY_LATER", false),
			RenewRetries:  getEnvAsInt("RENEW_RETRIES", 3),
		},
		Mpesa: MpesaConfig{
			BaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:      getEnv("MPESA_SHORTCODE", "174379"),
			PassKey:        getEnv("MPESA_PASSKEY", ""),
			CallbackURL:    getEnv("MPESA_CALLBACK_URL", "http://localhost:8080/api/v1/payments/mpesa/callback"),
			CallbackToken:  getEnv("MPESA_CALLBACK_TOKEN", ""),
			Timeout:        getEnvAsDuration("MPESA_TIMEOUT", 15*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" || (c.IsProduction() && c.Auth.JWTSecret == "supersecretkey") {
		return fmt.Errorf("JWT_SECRET must be set and should not use default value in production")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be positive")
	}

	if c.Sweeper.Interval <= 0 || c.Sweeper.Timeout <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL and SWEEP_TIMEOUT must be positive")
	}

	if c.Reconcile.Enabled {
		if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
			return fmt.Errorf("invalid RECONCILE_SCHEDULE %q: %w", c.Reconcile.Schedule, err)
		}
		if c.Reconcile.MaxAttempts < 1 {
			return fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be at least 1")
		}
	}

	if c.Subscription.RenewRetries < 1 {
		return fmt.Errorf("RENEW_RETRIES must be at least 1")
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions

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
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
