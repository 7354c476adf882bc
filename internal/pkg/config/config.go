package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PropSync/internal/pkg/env"
)

const (
	AuthModeSecret = "secret"
	AuthModeHMAC   = "hmac"
)

// Config is built once at startup and handed to every component constructor.
type Config struct {
	AppEnv        string
	Host          string
	Port          string
	HTTPBodyLimit int

	Database    DatabaseConfig
	Cache       CacheConfig
	Log         LogConfig
	Webhook     WebhookConfig
	Volumetrica VolumetricaConfig

	AdminAPIKeyHashes []string
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	// AutoMigrate runs gorm AutoMigrate at startup instead of cmd/migrate.
	AutoMigrate bool
}

// DSN returns the go-sql-driver/mysql data source name.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL returns the golang-migrate mysql URL.
func (c DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type CacheConfig struct {
	Host     string
	Port     int
	Password string
}

// Enabled reports whether a redis endpoint is configured.
func (c CacheConfig) Enabled() bool {
	return c.Host != ""
}

type LogConfig struct {
	Level string
	File  string
}

type WebhookConfig struct {
	AuthMode      string
	SecretHeader  string
	Secret        string
	HMACHeader    string
	HMACAlgorithm string
	HMACEncoding  string
	HMACSecret    string
	EventIDPath   string
	MaxBodyBytes  int
}

type VolumetricaConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// IsProduction reports whether auth failures must be answered with a bare 401.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// Load reads the environment (see internal/pkg/env) into a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        strings.TrimSpace(env.GetEnv("APP_ENV", "prod")),
		Host:          env.GetEnv("APP_HOST", "0.0.0.0"),
		Port:          env.GetEnv("APP_PORT", "4000"),
		HTTPBodyLimit: intEnv("HTTP_BODY_LIMIT", 8<<20),
		Database: DatabaseConfig{
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			Name:     env.GetEnv("DB_NAME", ""),

			AutoMigrate: strings.EqualFold(env.GetEnv("DB_AUTO_MIGRATE", "false"), "true"),
		},
		Cache: CacheConfig{
			Host:     strings.TrimSpace(env.GetEnv("CACHE_HOST", "")),
			Port:     intEnv("CACHE_PORT", 6379),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(env.GetEnv("LOG_LEVEL", "info")),
			File:  strings.TrimSpace(env.GetEnv("LOG_FILE", "")),
		},
		Webhook: WebhookConfig{
			AuthMode:      strings.ToLower(strings.TrimSpace(env.GetEnv("WEBHOOK_AUTH_MODE", AuthModeSecret))),
			SecretHeader:  strings.TrimSpace(env.GetEnv("WEBHOOK_SECRET_HEADER", "X-Webhook-Secret")),
			Secret:        env.GetEnv("WEBHOOK_SECRET", ""),
			HMACHeader:    strings.TrimSpace(env.GetEnv("WEBHOOK_HMAC_HEADER", "X-Signature")),
			HMACAlgorithm: strings.ToLower(strings.TrimSpace(env.GetEnv("WEBHOOK_HMAC_ALGORITHM", "sha256"))),
			HMACEncoding:  strings.ToLower(strings.TrimSpace(env.GetEnv("WEBHOOK_HMAC_ENCODING", "hex"))),
			HMACSecret:    env.GetEnv("WEBHOOK_HMAC_SECRET", ""),
			EventIDPath:   strings.TrimSpace(env.GetEnv("WEBHOOK_EVENT_ID_PATH", "id")),
			MaxBodyBytes:  intEnv("WEBHOOK_MAX_BODY_BYTES", 1<<20),
		},
		Volumetrica: VolumetricaConfig{
			BaseURL:    strings.TrimRight(strings.TrimSpace(env.GetEnv("VOLUMETRICA_API_BASE_URL", "")), "/"),
			APIKey:     strings.TrimSpace(env.GetEnv("VOLUMETRICA_API_KEY", "")),
			Timeout:    time.Duration(intEnv("VOLUMETRICA_API_TIMEOUT_MS", 10000)) * time.Millisecond,
			Retries:    intEnv("VOLUMETRICA_API_RETRIES", 2),
			RetryDelay: time.Duration(intEnv("VOLUMETRICA_API_RETRY_DELAY_MS", 500)) * time.Millisecond,
		},
		AdminAPIKeyHashes: splitList(env.GetEnv("ADMIN_API_KEY_HASHES", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Webhook.AuthMode {
	case AuthModeSecret:
		if c.Webhook.SecretHeader == "" {
			return errors.New("WEBHOOK_SECRET_HEADER is required when WEBHOOK_AUTH_MODE=secret")
		}
	case AuthModeHMAC:
		if c.Webhook.HMACHeader == "" {
			return errors.New("WEBHOOK_HMAC_HEADER is required when WEBHOOK_AUTH_MODE=hmac")
		}
		switch c.Webhook.HMACAlgorithm {
		case "sha256", "sha1", "sha512", "md5":
		default:
			return fmt.Errorf("unsupported WEBHOOK_HMAC_ALGORITHM %q", c.Webhook.HMACAlgorithm)
		}
		switch c.Webhook.HMACEncoding {
		case "hex", "base64":
		default:
			return fmt.Errorf("unsupported WEBHOOK_HMAC_ENCODING %q", c.Webhook.HMACEncoding)
		}
	default:
		return fmt.Errorf("unsupported WEBHOOK_AUTH_MODE %q (expected %q or %q)", c.Webhook.AuthMode, AuthModeSecret, AuthModeHMAC)
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		return errors.New("WEBHOOK_MAX_BODY_BYTES must be positive")
	}
	if c.HTTPBodyLimit < c.Webhook.MaxBodyBytes {
		return errors.New("HTTP_BODY_LIMIT must not be smaller than WEBHOOK_MAX_BODY_BYTES")
	}
	if c.Volumetrica.Retries < 0 {
		return errors.New("VOLUMETRICA_API_RETRIES must not be negative")
	}
	if c.Volumetrica.Timeout <= 0 {
		return errors.New("VOLUMETRICA_API_TIMEOUT_MS must be positive")
	}
	return nil
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
