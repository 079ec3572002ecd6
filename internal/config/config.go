// Package config loads the staticembed service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the staticembed service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Encoder EncoderConfig `yaml:"encoder"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys"` // empty = auth disabled
}

// EncoderConfig selects and configures the encoder backend.
type EncoderConfig struct {
	Backend string       `yaml:"backend"` // static, remote (default: static)
	Static  StaticConfig `yaml:"static"`
	Remote  RemoteConfig `yaml:"remote"`
}

// StaticConfig holds the static (vector-table) backend settings.
type StaticConfig struct {
	VectorsPath   string `yaml:"vectors_path"`
	PCA           *bool  `yaml:"pca"`            // default true
	PCAComponents int    `yaml:"pca_components"` // default 300
	Weighting     string `yaml:"weighting"`      // zipf, frequency, none (default: zipf)
	FrequencyFile string `yaml:"frequency_file"` // required for weighting: frequency
}

// RemoteConfig holds the remote (OpenAI-compatible) backend settings.
type RemoteConfig struct {
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	Budget     BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings for the remote backend.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// CacheConfig holds the Redis-backed encode cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Encoder.Backend == "" {
		c.Encoder.Backend = "static"
	}
	if c.Encoder.Static.PCAComponents <= 0 {
		c.Encoder.Static.PCAComponents = 300
	}
	if c.Encoder.Static.Weighting == "" {
		c.Encoder.Static.Weighting = "zipf"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Encoder.Backend {
	case "static":
		if c.Encoder.Static.VectorsPath == "" {
			return fmt.Errorf("encoder.static.vectors_path is required for the static backend")
		}
	case "remote":
		if c.Encoder.Remote.Model == "" {
			return fmt.Errorf("encoder.remote.model is required for the remote backend")
		}
	default:
		return fmt.Errorf("encoder.backend must be \"static\" or \"remote\", got %q", c.Encoder.Backend)
	}

	switch c.Encoder.Static.Weighting {
	case "zipf", "frequency", "none":
		// ok
	default:
		return fmt.Errorf(
			"encoder.static.weighting must be \"zipf\", \"frequency\" or \"none\", got %q",
			c.Encoder.Static.Weighting,
		)
	}
	if c.Encoder.Static.Weighting == "frequency" && c.Encoder.Static.FrequencyFile == "" {
		return fmt.Errorf("encoder.static.frequency_file is required for frequency weighting")
	}

	switch c.Encoder.Remote.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"encoder.remote.budget.action must be \"warn\" or \"reject\", got %q",
			c.Encoder.Remote.Budget.Action,
		)
	}

	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when the cache is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

// PCAEnabled reports whether PCA is on (default true).
func (s StaticConfig) PCAEnabled() bool {
	return s.PCA == nil || *s.PCA
}
