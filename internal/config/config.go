// Package config loads gateway configuration from an optional YAML file
// with environment-variable overrides, mirroring the precedence order of
// the wider rijan-wa ambient stack: defaults < config.yaml < environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// Config is the full process configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Security   SecurityConfig   `yaml:"security"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Device     DeviceConfig     `yaml:"device"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Instance   InstanceConfig   `yaml:"instance"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	LogLevel        string `yaml:"log_level"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
	Timezone        string `yaml:"timezone"`
}

type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SecurityConfig carries the master-key reference and token defaults.
// MasterKeyHash is the 64-hex-character SHA-256 reference described in
// spec.md §4.A/§6; it is never the plaintext.
type SecurityConfig struct {
	MasterKeyHash string `yaml:"master_key_hash"`
	TokenTTLDays  int    `yaml:"token_ttl_days"`
}

type RateLimitConfig struct {
	Backend string `yaml:"backend"` // "memory" or "redis"
	Max     int    `yaml:"max"`
	WindowS int    `yaml:"window_seconds"`
	RedisURL string `yaml:"redis_url"`
}

type DeviceConfig struct {
	LockTTLSec          int `yaml:"lock_ttl_sec"`
	LockRefreshSec       int `yaml:"lock_refresh_sec"`
	LockAcquireTimeoutSec int `yaml:"lock_acquire_timeout_sec"`
	ReconnectMaxBackoffSec int `yaml:"reconnect_max_backoff_sec"`
	ReconnectMaxRetries int `yaml:"reconnect_max_retries"`
	QRExpirySec         int `yaml:"qr_expiry_sec"`
}

type WebhookConfig struct {
	WorkerCount   int `yaml:"worker_count"`
	DefaultRetryCount int `yaml:"default_retry_count"`
	DefaultTimeoutMS  int `yaml:"default_timeout_ms"`
}

type SessionsConfig struct {
	Root string `yaml:"root"`
}

type InstanceConfig struct {
	ID string `yaml:"id"`
}

// Load reads an optional YAML file at path (ignored if empty or missing),
// then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, uerr)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("NODE_ENV", c.Server.Env)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.Timezone = getEnv("TIMEZONE", c.Server.Timezone)

	c.Security.MasterKeyHash = getEnv("MASTER_KEY", c.Security.MasterKeyHash)

	c.Store.DatabasePath = getEnv("DATABASE_PATH", c.Store.DatabasePath)

	if v := getEnvInt("RATE_LIMIT_MAX", 0); v > 0 {
		c.RateLimit.Max = v
	}
	if v := getEnvInt("RATE_LIMIT_WINDOW", 0); v > 0 {
		c.RateLimit.WindowS = v
	}
	c.RateLimit.Backend = getEnv("RATE_LIMIT_BACKEND", c.RateLimit.Backend)
	c.RateLimit.RedisURL = getEnv("REDIS_URL", c.RateLimit.RedisURL)

	c.Instance.ID = getEnv("INSTANCE_ID", c.Instance.ID)

	c.Sessions.Root = getEnv("SESSIONS_ROOT", c.Sessions.Root)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.ShutdownSec == 0 {
		c.Server.ShutdownSec = 30
	}
	if c.Server.Timezone == "" {
		c.Server.Timezone = "UTC"
	}
	if c.Store.DatabasePath == "" {
		c.Store.DatabasePath = "./data/gateway.db"
	}
	if c.Security.TokenTTLDays == 0 {
		c.Security.TokenTTLDays = 365
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 60
	}
	if c.RateLimit.WindowS == 0 {
		c.RateLimit.WindowS = 60
	}
	if c.Device.LockTTLSec == 0 {
		c.Device.LockTTLSec = 300
	}
	if c.Device.LockRefreshSec == 0 {
		c.Device.LockRefreshSec = 60
	}
	if c.Device.LockAcquireTimeoutSec == 0 {
		c.Device.LockAcquireTimeoutSec = 5
	}
	if c.Device.ReconnectMaxBackoffSec == 0 {
		c.Device.ReconnectMaxBackoffSec = 30
	}
	if c.Device.ReconnectMaxRetries == 0 {
		c.Device.ReconnectMaxRetries = 10
	}
	if c.Device.QRExpirySec == 0 {
		c.Device.QRExpirySec = 60
	}
	if c.Webhook.WorkerCount == 0 {
		c.Webhook.WorkerCount = 4
	}
	if c.Webhook.DefaultRetryCount == 0 {
		c.Webhook.DefaultRetryCount = 3
	}
	if c.Webhook.DefaultTimeoutMS == 0 {
		c.Webhook.DefaultTimeoutMS = 5000
	}
	if c.Sessions.Root == "" {
		c.Sessions.Root = "./data/sessions"
	}
	if c.Instance.ID == "" {
		c.Instance.ID = uuid.NewString()
	}
}

func (c *Config) validate() error {
	if len(c.Security.MasterKeyHash) != 64 {
		return fmt.Errorf("config: MASTER_KEY must be a 64-hex-character digest, got %d chars", len(c.Security.MasterKeyHash))
	}
	if _, err := isHex(c.Security.MasterKeyHash); err != nil {
		return fmt.Errorf("config: MASTER_KEY must be hex-encoded: %w", err)
	}
	return nil
}

func isHex(s string) (bool, error) {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false, fmt.Errorf("non-hex character %q", r)
		}
	}
	return true, nil
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.TokenTTLDays) * 24 * time.Hour
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
