// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
// It is built once by Load and passed by pointer into constructors; nothing mutates it afterwards.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health/auth surface listens on. Empty disables gRPC.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" or "console".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// DatabaseURL is the Postgres DSN. Empty selects the in-memory store (development only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL enables the Redis-backed session touch debouncer when set.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTAlgorithm is RS256 or ES256 and must match the configured key type.
	JWTAlgorithm string `mapstructure:"JWT_ALGORITHM"`
	// JWTPrivateKey is the PEM-encoded private key or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// PrivateKeyPath and PublicKeyPath are accepted as aliases of the two keys above.
	PrivateKeyPath string `mapstructure:"PRIVATE_KEY_PATH"`
	PublicKeyPath  string `mapstructure:"PUBLIC_KEY_PATH"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// AccessTokenExpireMinutes is the access token and session access-window lifetime.
	AccessTokenExpireMinutes int `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	// RefreshTokenExpireDays is the refresh secret lifetime.
	RefreshTokenExpireDays int `mapstructure:"REFRESH_TOKEN_EXPIRE_DAYS"`
	// SessionCleanupDays is how long after access expiry a still-active session is soft-deactivated by the sweep.
	SessionCleanupDays int `mapstructure:"SESSION_CLEANUP_DAYS"`
	// SessionSweepInterval is the sweeper period (e.g. "1h"). "0" disables the timer.
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// SessionTouchInterval debounces last_used writes per session (e.g. "1m"). "0" writes on every request.
	SessionTouchInterval string `mapstructure:"SESSION_TOUCH_INTERVAL"`
	// MaxSessionsPerUser is logged at login but not enforced.
	MaxSessionsPerUser int `mapstructure:"MAX_SESSIONS_PER_USER"`

	// CookieDomain scopes the refresh_token cookie.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`
	// SecureCookies sets the Secure flag on the refresh cookie. Forced to true when Env is production.
	SecureCookies bool `mapstructure:"SECURE_COOKIES"`
	// AllowedOrigins is the comma-separated CORS origin list.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// DefaultMaxDailyRecords is the daily recording quota assigned at registration.
	DefaultMaxDailyRecords int `mapstructure:"DEFAULT_MAX_DAILY_RECORDS"`

	// KafkaBrokers is a comma-separated list of brokers; when set, auth events are published to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events.
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so Unmarshal sees env-only values.
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_ALGORITHM", "RS256")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("PRIVATE_KEY_PATH", "")
	v.SetDefault("PUBLIC_KEY_PATH", "")
	v.SetDefault("JWT_ISSUER", "voice-journal-auth")
	v.SetDefault("JWT_AUDIENCE", "voice-journal-api")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	v.SetDefault("SESSION_CLEANUP_DAYS", 30)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("SESSION_TOUCH_INTERVAL", "1m")
	v.SetDefault("MAX_SESSIONS_PER_USER", 5)
	v.SetDefault("COOKIE_DOMAIN", "localhost")
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("DEFAULT_MAX_DAILY_RECORDS", 5)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_TOPIC", "voice-journal-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "voice-journal-auth-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTPrivateKey == "" {
		cfg.JWTPrivateKey = cfg.PrivateKeyPath
	}
	if cfg.JWTPublicKey == "" {
		cfg.JWTPublicKey = cfg.PublicKeyPath
	}
	if cfg.IsProduction() {
		cfg.SecureCookies = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return errors.New("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RefreshTokenExpireDays <= 0 {
		return errors.New("config: REFRESH_TOKEN_EXPIRE_DAYS must be positive")
	}
	// Retention must cover the refresh window or the sweep revokes refreshable sessions.
	if c.SessionCleanupDays < c.RefreshTokenExpireDays {
		return errors.New("config: SESSION_CLEANUP_DAYS must not be shorter than REFRESH_TOKEN_EXPIRE_DAYS")
	}
	switch strings.ToUpper(c.JWTAlgorithm) {
	case "RS256", "ES256":
		c.JWTAlgorithm = strings.ToUpper(c.JWTAlgorithm)
	default:
		return errors.New("config: JWT_ALGORITHM must be RS256 or ES256")
	}
	if c.IsProduction() && (c.JWTPrivateKey == "" || c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when APP_ENV=production")
	}
	return nil
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// CleanupRetention returns the sweep soft-deactivation window.
func (c *Config) CleanupRetention() time.Duration {
	return time.Duration(c.SessionCleanupDays) * 24 * time.Hour
}

// SweepInterval parses SessionSweepInterval. Returns 1h if unset or invalid, 0 if explicitly disabled.
func (c *Config) SweepInterval() time.Duration {
	return parseInterval(c.SessionSweepInterval, time.Hour)
}

// TouchInterval parses SessionTouchInterval. Returns 1m if unset or invalid, 0 if explicitly disabled.
func (c *Config) TouchInterval() time.Duration {
	return parseInterval(c.SessionTouchInterval, time.Minute)
}

func parseInterval(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// AllowedOriginsList returns CORS origins from the comma-separated config.
func (c *Config) AllowedOriginsList() []string {
	return splitList(c.AllowedOrigins)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the event stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
