package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "CONFIG_PATH"
	EnvPort       = "PORT"
	EnvAssetsDir  = "ASSETS_DIR"
	EnvRedisAddr  = "REDIS_ADDR"
)

// DefaultPolicyName is the policy guarding the forecast endpoint.
const DefaultPolicyName = "fixed"

// Config holds the resolved server configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	RateLimit map[string]PolicyConfig `yaml:"rate-limit"`
	Assets    AssetsConfig            `yaml:"assets"`
	Redis     RedisConfig             `yaml:"redis"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// PolicyConfig declares one named fixed-window rate limit policy.
type PolicyConfig struct {
	PermitLimit int           `yaml:"permit-limit"`
	Window      time.Duration `yaml:"window"`
	QueueLimit  int           `yaml:"queue-limit"`
}

// AssetsConfig locates binary assets and tunes the image transform.
type AssetsConfig struct {
	Dir             string `yaml:"dir"`
	DownscaleFactor int    `yaml:"downscale-factor"`
}

// RedisConfig enables the distributed rate limit backend.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8318},
		RateLimit: map[string]PolicyConfig{
			DefaultPolicyName: {PermitLimit: 4, Window: 12 * time.Second, QueueLimit: 2},
		},
		Assets: AssetsConfig{Dir: "./assets", DownscaleFactor: 20},
		Redis:  RedisConfig{Prefix: "rumshelf:rl"},
	}
}

// Load reads the YAML config file, applies defaults and env overrides, and
// validates the result. A missing file is not an error; env overrides and
// defaults still apply.
func Load(configPath string) (Config, error) {
	cfg := Default()

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if dir := strings.TrimSpace(os.Getenv(EnvAssetsDir)); dir != "" {
		cfg.Assets.Dir = dir
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if len(cfg.RateLimit) == 0 {
		cfg.RateLimit = def.RateLimit
	}
	if strings.TrimSpace(cfg.Assets.Dir) == "" {
		cfg.Assets.Dir = def.Assets.Dir
	}
	if cfg.Assets.DownscaleFactor == 0 {
		cfg.Assets.DownscaleFactor = def.Assets.DownscaleFactor
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = def.Redis.Prefix
	}
	if cfg.Redis.DB < 0 {
		cfg.Redis.DB = 0
	}
}

// Validate rejects configurations that must not serve traffic.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Assets.DownscaleFactor < 1 {
		return fmt.Errorf("invalid downscale factor: %d", c.Assets.DownscaleFactor)
	}
	for name, policy := range c.RateLimit {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("rate limit policy with empty name")
		}
		if policy.PermitLimit < 1 {
			return fmt.Errorf("rate limit policy %q: permit-limit must be >= 1, got %d", name, policy.PermitLimit)
		}
		if policy.Window <= 0 {
			return fmt.Errorf("rate limit policy %q: window must be positive, got %s", name, policy.Window)
		}
		if policy.QueueLimit < 0 {
			return fmt.Errorf("rate limit policy %q: queue-limit must be >= 0, got %d", name, policy.QueueLimit)
		}
	}
	if _, ok := c.RateLimit[DefaultPolicyName]; !ok {
		return fmt.Errorf("rate limit policy %q is not configured", DefaultPolicyName)
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis enabled without address")
	}
	return nil
}
