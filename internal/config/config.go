package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	RateLimit RateLimitConfig
	Encoder   EncoderConfig
	R2        R2Config
	Notify    NotifyConfig
	Session   SessionConfig
	Worker    WorkerConfig
}

// Auth modes
const (
	AuthModeJWT     = "jwt"
	AuthModeGateway = "gateway"
)

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	AuthMode string // "jwt" or "gateway"
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// OIDCConfig enables JWKS token verification when Issuer is set.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type RateLimitConfig struct {
	DispatchPerHour int
	SharePerHour    int
}

type EncoderConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Configured reports whether object storage credentials are present.
func (c R2Config) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

type NotifyConfig struct {
	DedupeWindowMs int
}

// DedupeWindow returns the notification dedupe window.
func (c NotifyConfig) DedupeWindow() time.Duration {
	return time.Duration(c.DedupeWindowMs) * time.Millisecond
}

type SessionConfig struct {
	TTLHours int
}

// TTL returns how long an idle pipeline session is kept.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type WorkerConfig struct {
	Concurrency int
}

// Load reads config.yaml from . or ./config, then applies environment
// overrides. A missing config file is not an error.
func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.auth_mode", "AUTH_MODE")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = v.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = v.BindEnv("ratelimit.dispatch_per_hour", "RATELIMIT_DISPATCH_PER_HOUR")
	_ = v.BindEnv("ratelimit.share_per_hour", "RATELIMIT_SHARE_PER_HOUR")
	_ = v.BindEnv("encoder.service_url", "ENCODER_SERVICE_URL")
	_ = v.BindEnv("encoder.timeout", "ENCODER_SERVICE_TIMEOUT")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("notify.dedupe_window_ms", "NOTIFY_DEDUPE_WINDOW_MS")
	_ = v.BindEnv("session.ttl_hours", "SESSION_TTL_HOURS")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.auth_mode", AuthModeJWT)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.dispatch_per_hour", 60)
	v.SetDefault("ratelimit.share_per_hour", 30)
	v.SetDefault("encoder.service_url", "")
	v.SetDefault("encoder.timeout", 120)
	v.SetDefault("notify.dedupe_window_ms", 1500)
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("worker.concurrency", 10)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
			AuthMode: v.GetString("server.auth_mode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Issuer:   v.GetString("oidc.issuer"),
			ClientID: v.GetString("oidc.client_id"),
		},
		RateLimit: RateLimitConfig{
			DispatchPerHour: v.GetInt("ratelimit.dispatch_per_hour"),
			SharePerHour:    v.GetInt("ratelimit.share_per_hour"),
		},
		Encoder: EncoderConfig{
			ServiceURL: v.GetString("encoder.service_url"),
			Timeout:    v.GetInt("encoder.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Notify: NotifyConfig{
			DedupeWindowMs: v.GetInt("notify.dedupe_window_ms"),
		},
		Session: SessionConfig{
			TTLHours: v.GetInt("session.ttl_hours"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	if c.Server.AuthMode != AuthModeJWT && c.Server.AuthMode != AuthModeGateway {
		return fmt.Errorf("server.auth_mode must be %q or %q, got %q", AuthModeJWT, AuthModeGateway, c.Server.AuthMode)
	}
	if c.Notify.DedupeWindowMs < 0 {
		return fmt.Errorf("notify.dedupe_window_ms must not be negative, got %d", c.Notify.DedupeWindowMs)
	}
	if c.Session.TTLHours <= 0 {
		return fmt.Errorf("session.ttl_hours must be positive, got %d", c.Session.TTLHours)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Encoder.Timeout <= 0 {
		return fmt.Errorf("encoder.timeout must be positive, got %d", c.Encoder.Timeout)
	}
	return nil
}
