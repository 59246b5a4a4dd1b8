// Package config loads and validates the server configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// AdminSigningKey verifies the admin JWTs guarding the audit, list
	// and task routes.
	AdminSigningKey string `yaml:"admin_signing_key"`

	Signing    SigningConfig    `yaml:"signing"`
	Issuance   IssuanceConfig   `yaml:"issuance"`
	RateLimit  BackendConfig    `yaml:"ratelimit"`
	Revocation BackendConfig    `yaml:"revocation"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Tasks      TasksConfig      `yaml:"tasks"`
	APILimit   APILimitConfig   `yaml:"api_rate_limit"`
}

// SigningConfig holds the versioned capability-token signing keys.
type SigningConfig struct {
	// Active names the key version used for new tokens.
	Active string `yaml:"active"`

	// Keys maps version -> secret. Rotation adds a new version and moves
	// Active; old versions stay so existing tokens keep verifying.
	Keys map[string]string `yaml:"keys"`
}

type IssuanceConfig struct {
	MaxTTL     time.Duration `yaml:"max_ttl"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// BackendConfig selects a pluggable backend ("memory" or "redis") with
// backend-specific settings captured inline.
type BackendConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:",inline"`
}

// RedisConfig is decoded from a BackendConfig's inline settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Redis decodes the backend's inline settings as Redis options.
func (b BackendConfig) Redis() (RedisConfig, error) {
	var rc RedisConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &rc})
	if err != nil {
		return rc, fmt.Errorf("building redis config decoder: %w", err)
	}
	if err := decoder.Decode(b.Config); err != nil {
		return rc, fmt.Errorf("decoding redis config: %w", err)
	}
	if rc.Addr == "" {
		return rc, fmt.Errorf("redis backend requires addr")
	}
	return rc, nil
}

type LedgerConfig struct {
	Type string `yaml:"type"` // "memory" or "file"
	Path string `yaml:"path"`
}

type SessionsConfig struct {
	Driver string `yaml:"driver"` // "static"

	// Subjects maps service -> subject for the static driver.
	Subjects map[string]string `yaml:"subjects"`
}

type TasksConfig struct {
	ExpireSweepInterval time.Duration `yaml:"expire_sweep_interval"`
	BucketGCInterval    time.Duration `yaml:"bucket_gc_interval"`
}

// APILimitConfig is the per-IP limit protecting the login and issue routes.
type APILimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Issuance.MaxTTL == 0 {
		c.Issuance.MaxTTL = 24 * time.Hour
	}
	if c.Issuance.SessionTTL == 0 {
		c.Issuance.SessionTTL = 30 * time.Minute
	}
	if c.RateLimit.Type == "" {
		c.RateLimit.Type = "memory"
	}
	if c.Revocation.Type == "" {
		c.Revocation.Type = "memory"
	}
	if c.Ledger.Type == "" {
		c.Ledger.Type = "memory"
	}
	if c.Sessions.Driver == "" {
		c.Sessions.Driver = "static"
	}
	if c.Tasks.ExpireSweepInterval == 0 {
		c.Tasks.ExpireSweepInterval = 5 * time.Minute
	}
	if c.Tasks.BucketGCInterval == 0 {
		c.Tasks.BucketGCInterval = 15 * time.Minute
	}
}

func (c *Config) Validate() error {
	if len(c.Signing.Keys) == 0 {
		return fmt.Errorf("signing.keys must contain at least one key")
	}
	if c.Signing.Active == "" {
		return fmt.Errorf("signing.active is required")
	}
	if _, ok := c.Signing.Keys[c.Signing.Active]; !ok {
		return fmt.Errorf("signing.active %q is not in signing.keys", c.Signing.Active)
	}
	for version, key := range c.Signing.Keys {
		if key == "" {
			return fmt.Errorf("signing.keys[%s] is empty", version)
		}
	}

	switch c.RateLimit.Type {
	case "memory":
	case "redis":
		if _, err := c.RateLimit.Redis(); err != nil {
			return fmt.Errorf("ratelimit: %w", err)
		}
	default:
		return fmt.Errorf("ratelimit.type %q is not supported", c.RateLimit.Type)
	}

	switch c.Revocation.Type {
	case "memory":
	case "redis":
		if _, err := c.Revocation.Redis(); err != nil {
			return fmt.Errorf("revocation: %w", err)
		}
	default:
		return fmt.Errorf("revocation.type %q is not supported", c.Revocation.Type)
	}

	switch c.Ledger.Type {
	case "memory":
	case "file":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the file ledger")
		}
	default:
		return fmt.Errorf("ledger.type %q is not supported", c.Ledger.Type)
	}

	if c.Sessions.Driver != "static" {
		return fmt.Errorf("sessions.driver %q is not supported", c.Sessions.Driver)
	}
	return nil
}
