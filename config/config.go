// ABOUTME: Configuration loader for the courier client
// ABOUTME: Merges defaults, an optional YAML file, .env and environment variables

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backends
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

const (
	DefaultAPIURL            = "https://api996.syntlex.kg/api"
	DefaultAcceptLanguage    = "kg-KY"
	DefaultKeepAliveInterval = 115 * time.Minute
)

type Config struct {
	// API
	APIURL         string        `yaml:"api_url"`
	AcceptLanguage string        `yaml:"accept_language"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`

	// Session persistence
	SessionBackend  string        `yaml:"session_backend"` // memory, file, redis (default: file)
	SessionFile     string        `yaml:"session_file"`
	SessionKey      string        `yaml:"session_key"`
	SessionCacheTTL time.Duration `yaml:"session_cache_ttl"`
	RedisURL        string        `yaml:"redis_url"`
	RedisPrefix     string        `yaml:"redis_prefix"`

	// Keep-alive
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	// Network (optional): ssh+socks5://user@host:port?private-key=/path
	AllProxy string `yaml:"all_proxy"`

	// Observability (optional)
	MetricsAddr  string `yaml:"metrics_addr"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		APIURL:            DefaultAPIURL,
		AcceptLanguage:    DefaultAcceptLanguage,
		RequestTimeout:    30 * time.Second,
		RefreshTimeout:    30 * time.Second,
		SessionBackend:    BackendFile,
		SessionFile:       filepath.Join(DefaultConfigDir(), "session.json"),
		SessionKey:        "user",
		SessionCacheTTL:   10 * time.Minute,
		RedisPrefix:       "courier:",
		KeepAliveInterval: DefaultKeepAliveInterval,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load builds the configuration. Precedence (lowest first): defaults, YAML file at path
// (or COURIER_CONFIG when path is empty), .env in the working directory, process environment.
func Load(path string) (*Config, error) {
	// Missing .env is fine; existing env vars win over the file
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("COURIER_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.APIURL = getEnv("COURIER_API_URL", cfg.APIURL)
	cfg.AcceptLanguage = getEnv("COURIER_ACCEPT_LANGUAGE", cfg.AcceptLanguage)
	cfg.RequestTimeout = getEnvDuration("COURIER_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RefreshTimeout = getEnvDuration("COURIER_REFRESH_TIMEOUT", cfg.RefreshTimeout)
	cfg.SessionBackend = strings.ToLower(getEnv("COURIER_SESSION_BACKEND", cfg.SessionBackend))
	cfg.SessionFile = getEnv("COURIER_SESSION_FILE", cfg.SessionFile)
	cfg.SessionKey = getEnv("COURIER_SESSION_KEY", cfg.SessionKey)
	cfg.SessionCacheTTL = getEnvDuration("COURIER_SESSION_CACHE_TTL", cfg.SessionCacheTTL)
	cfg.RedisURL = getEnv("COURIER_REDIS_URL", cfg.RedisURL)
	cfg.RedisPrefix = getEnv("COURIER_REDIS_PREFIX", cfg.RedisPrefix)
	cfg.KeepAliveInterval = getEnvDuration("COURIER_KEEPALIVE_INTERVAL", cfg.KeepAliveInterval)
	cfg.AllProxy = getEnv("COURIER_ALL_PROXY", cfg.AllProxy)
	cfg.MetricsAddr = getEnv("COURIER_METRICS_ADDR", cfg.MetricsAddr)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.APIURL = strings.TrimSuffix(ensureScheme(cfg.APIURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("COURIER_API_URL is required")
	}

	switch c.SessionBackend {
	case BackendMemory:
	case BackendFile:
		if c.SessionFile == "" {
			return fmt.Errorf("COURIER_SESSION_FILE is required for the file session backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("COURIER_REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q (want memory, file or redis)", c.SessionBackend)
	}

	if c.SessionKey == "" {
		return fmt.Errorf("COURIER_SESSION_KEY must not be empty")
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"COURIER_REQUEST_TIMEOUT", c.RequestTimeout},
		{"COURIER_REFRESH_TIMEOUT", c.RefreshTimeout},
		{"COURIER_KEEPALIVE_INTERVAL", c.KeepAliveInterval},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	// The keep-alive has to fire inside the two-hour validity window
	if c.KeepAliveInterval >= 2*time.Hour {
		return fmt.Errorf("COURIER_KEEPALIVE_INTERVAL must be shorter than 2h, got %s", c.KeepAliveInterval)
	}

	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// DefaultConfigDir returns the default config directory following XDG spec
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "courier")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".courier"
	}
	return filepath.Join(home, ".config", "courier")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "115m") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// ensureScheme adds https:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "https://" + url
	}
	return url
}
