package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Queue     QueueConfig
	Gateways  GatewaysConfig
	Inventory InventoryConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// Queue drivers
const (
	QueueDriverAsynq     = "asynq"
	QueueDriverInProcess = "inprocess"
)

// QueueConfig controls asynchronous callback processing
type QueueConfig struct {
	Driver        string // asynq or inprocess
	Concurrency   int
	MaxRetries    int
	SweepInterval time.Duration // how often unprocessed callbacks are re-enqueued
	SweepGrace    time.Duration // minimum age before a callback is swept
	SweepBatch    int
}

// GatewaysConfig holds per-method payment gateway settings. Cash is always enabled.
type GatewaysConfig struct {
	Mpesa  MpesaConfig
	Airtel AirtelConfig
	Card   CardConfig
}

// MpesaConfig holds Daraja STK push credentials
type MpesaConfig struct {
	Enabled        bool
	Environment    string // sandbox or production
	BaseURL        string // overrides the environment URL when set
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// AirtelConfig holds Airtel Money collection credentials
type AirtelConfig struct {
	Enabled      bool
	BaseURL      string
	ClientID     string
	ClientSecret string
	Country      string
	Currency     string
	CallbackURL  string
	Timeout      time.Duration
}

// CardConfig holds hosted card processor credentials
type CardConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Secret      string
	Currency    string
	CallbackURL string
	Timeout     time.Duration
}

// InventoryConfig holds stock defaults
type InventoryConfig struct {
	DefaultLowStockThreshold int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
	// Log export and continuous profiling
	LogsEnabled       bool   // Tee zap output to the collector over OTLP
	LogsLevel         string // Minimum level exported; defaults to log.level
	ProfilingEnabled  bool
	ProfilingServer   string // Pyroscope server address
	ProfilingAuthUser string
	ProfilingAuthPass string
	SpanProfiles      bool // Link CPU profiles to trace spans
}

// Load loads configuration from .env, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_DATABASE_PASSWORD)
// 2. .env file in the working directory (only fills unset variables)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Queue: QueueConfig{
			Driver:        v.GetString("queue.driver"),
			Concurrency:   v.GetInt("queue.concurrency"),
			MaxRetries:    v.GetInt("queue.max_retries"),
			SweepInterval: v.GetDuration("queue.sweep_interval"),
			SweepGrace:    v.GetDuration("queue.sweep_grace"),
			SweepBatch:    v.GetInt("queue.sweep_batch"),
		},
		Gateways: GatewaysConfig{
			Mpesa: MpesaConfig{
				Enabled:        v.GetBool("gateways.mpesa.enabled"),
				Environment:    v.GetString("gateways.mpesa.environment"),
				BaseURL:        v.GetString("gateways.mpesa.base_url"),
				ConsumerKey:    v.GetString("gateways.mpesa.consumer_key"),
				ConsumerSecret: v.GetString("gateways.mpesa.consumer_secret"),
				Shortcode:      v.GetString("gateways.mpesa.shortcode"),
				Passkey:        v.GetString("gateways.mpesa.passkey"),
				CallbackURL:    v.GetString("gateways.mpesa.callback_url"),
				Timeout:        v.GetDuration("gateways.mpesa.timeout"),
			},
			Airtel: AirtelConfig{
				Enabled:      v.GetBool("gateways.airtel.enabled"),
				BaseURL:      v.GetString("gateways.airtel.base_url"),
				ClientID:     v.GetString("gateways.airtel.client_id"),
				ClientSecret: v.GetString("gateways.airtel.client_secret"),
				Country:      v.GetString("gateways.airtel.country"),
				Currency:     v.GetString("gateways.airtel.currency"),
				CallbackURL:  v.GetString("gateways.airtel.callback_url"),
				Timeout:      v.GetDuration("gateways.airtel.timeout"),
			},
			Card: CardConfig{
				Enabled:     v.GetBool("gateways.card.enabled"),
				BaseURL:     v.GetString("gateways.card.base_url"),
				APIKey:      v.GetString("gateways.card.api_key"),
				Secret:      v.GetString("gateways.card.secret"),
				Currency:    v.GetString("gateways.card.currency"),
				CallbackURL: v.GetString("gateways.card.callback_url"),
				Timeout:     v.GetDuration("gateways.card.timeout"),
			},
		},
		Inventory: InventoryConfig{
			DefaultLowStockThreshold: v.GetInt("inventory.default_low_stock_threshold"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			LogsLevel:         v.GetString("telemetry.logs_level"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			ProfilingAuthUser: v.GetString("telemetry.profiling_auth_user"),
			ProfilingAuthPass: v.GetString("telemetry.profiling_auth_password"),
			SpanProfiles:      v.GetBool("telemetry.span_profiles"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "retailpos-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "retailpos"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 12 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "retailpos-backend"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 45 * time.Second // gateway calls run inside requests
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	// No default CORS origins: cross-origin requests stay blocked until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = QueueDriverInProcess
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 4
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 8
	}
	if cfg.Queue.SweepInterval == 0 {
		cfg.Queue.SweepInterval = time.Minute
	}
	if cfg.Queue.SweepGrace == 0 {
		cfg.Queue.SweepGrace = 2 * time.Minute
	}
	if cfg.Queue.SweepBatch == 0 {
		cfg.Queue.SweepBatch = 100
	}
	if cfg.Gateways.Mpesa.Environment == "" {
		cfg.Gateways.Mpesa.Environment = "sandbox"
	}
	if cfg.Gateways.Mpesa.Timeout == 0 {
		cfg.Gateways.Mpesa.Timeout = 30 * time.Second
	}
	if cfg.Gateways.Airtel.BaseURL == "" {
		cfg.Gateways.Airtel.BaseURL = "https://openapiuat.airtel.africa"
	}
	if cfg.Gateways.Airtel.Country == "" {
		cfg.Gateways.Airtel.Country = "KE"
	}
	if cfg.Gateways.Airtel.Currency == "" {
		cfg.Gateways.Airtel.Currency = "KES"
	}
	if cfg.Gateways.Airtel.Timeout == 0 {
		cfg.Gateways.Airtel.Timeout = 30 * time.Second
	}
	if cfg.Gateways.Card.Currency == "" {
		cfg.Gateways.Card.Currency = "KES"
	}
	if cfg.Gateways.Card.Timeout == 0 {
		cfg.Gateways.Card.Timeout = 30 * time.Second
	}
	if cfg.Inventory.DefaultLowStockThreshold == 0 {
		cfg.Inventory.DefaultLowStockThreshold = 10
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "retailpos-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = cfg.Log.Level
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Queue.Driver {
	case QueueDriverAsynq, QueueDriverInProcess:
	default:
		return fmt.Errorf("queue.driver must be %q or %q, got %q", QueueDriverAsynq, QueueDriverInProcess, c.Queue.Driver)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be positive")
	}
	if c.Inventory.DefaultLowStockThreshold < 0 {
		return fmt.Errorf("inventory.default_low_stock_threshold cannot be negative")
	}

	if err := c.Gateways.validate(); err != nil {
		return err
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// validate requires credentials for every enabled gateway
func (g GatewaysConfig) validate() error {
	if g.Mpesa.Enabled {
		if g.Mpesa.ConsumerKey == "" || g.Mpesa.ConsumerSecret == "" {
			return fmt.Errorf("gateways.mpesa: consumer_key and consumer_secret are required when enabled")
		}
		if g.Mpesa.Shortcode == "" || g.Mpesa.Passkey == "" {
			return fmt.Errorf("gateways.mpesa: shortcode and passkey are required when enabled")
		}
		if g.Mpesa.CallbackURL == "" {
			return fmt.Errorf("gateways.mpesa.callback_url is required when enabled")
		}
		if g.Mpesa.Environment != "sandbox" && g.Mpesa.Environment != "production" {
			return fmt.Errorf("gateways.mpesa.environment must be sandbox or production")
		}
	}
	if g.Airtel.Enabled {
		if g.Airtel.ClientID == "" || g.Airtel.ClientSecret == "" {
			return fmt.Errorf("gateways.airtel: client_id and client_secret are required when enabled")
		}
	}
	if g.Card.Enabled {
		if g.Card.BaseURL == "" {
			return fmt.Errorf("gateways.card.base_url is required when enabled")
		}
		if g.Card.APIKey == "" || g.Card.Secret == "" {
			return fmt.Errorf("gateways.card: api_key and secret are required when enabled")
		}
	}
	return nil
}

// MpesaBaseURL resolves the Daraja host for the configured environment
func (m MpesaConfig) MpesaBaseURL() string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	if m.Environment == "production" {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
