// Package config loads process configuration from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "GIFTED_CONFIG"
	braveKeyEnv     = "BRAVE_SEARCH_KEY"
	googleKeyEnv    = "GOOGLE_CSE_KEY"
	googleCXEnv     = "GOOGLE_CSE_ID"
	affiliateTagEnv = "AMAZON_ASSOCIATE_TAG"
	addrEnv         = "GIFTED_ADDR"
)

// Config holds every setting the CLI and server need.
type Config struct {
	Addr      string          `yaml:"addr"`
	Log       LogConfig       `yaml:"log"`
	Search    SearchConfig    `yaml:"search"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Cache     CacheConfig     `yaml:"cache"`
	Resolve   ResolveConfig   `yaml:"resolve"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SearchConfig holds provider credentials. Brave wins when both are set.
type SearchConfig struct {
	BraveKey  string `yaml:"braveKey"`
	GoogleKey string `yaml:"googleKey"`
	GoogleCX  string `yaml:"googleCx"`
}

// FetchConfig tunes page fetching.
type FetchConfig struct {
	UserAgent      string        `yaml:"userAgent"`
	Timeout        time.Duration `yaml:"timeout"`
	HostPace       time.Duration `yaml:"hostPace"`
	MaxBytes       int64         `yaml:"maxBytes"`
	Attempts       uint          `yaml:"attempts"`
	BrowserCookies bool          `yaml:"browserCookies"`
}

// CacheConfig enables the on-disk response cache.
type CacheConfig struct {
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
	Enabled bool          `yaml:"enabled"`
}

// ResolveConfig tunes identity resolution.
type ResolveConfig struct {
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	Concurrency  int           `yaml:"concurrency"`
}

// RecommendConfig points at optional catalog and rule files.
type RecommendConfig struct {
	AffiliateTag string `yaml:"affiliateTag"`
	CatalogPath  string `yaml:"catalog"`
	RulesPath    string `yaml:"rules"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr: ":8080",
		Log:  LogConfig{Level: "info", Format: "text"},
		Fetch: FetchConfig{
			Timeout:  10 * time.Second,
			HostPace: 500 * time.Millisecond,
			MaxBytes: 2 << 20,
			Attempts: 1,
		},
		Cache:   CacheConfig{TTL: 24 * time.Hour},
		Resolve: ResolveConfig{FetchTimeout: 8 * time.Second, Concurrency: 8},
	}
}

// Load reads path (or $GIFTED_CONFIG when path is empty) over the defaults, then applies
// environment overrides. A missing path is not an error; an unreadable or invalid file is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(braveKeyEnv); v != "" {
		c.Search.BraveKey = v
	}
	if v := os.Getenv(googleKeyEnv); v != "" {
		c.Search.GoogleKey = v
	}
	if v := os.Getenv(googleCXEnv); v != "" {
		c.Search.GoogleCX = v
	}
	if v := os.Getenv(affiliateTagEnv); v != "" {
		c.Recommend.AffiliateTag = v
	}
	if v := os.Getenv(addrEnv); v != "" {
		c.Addr = v
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Fetch.Attempts < 1 {
		errs = append(errs, errors.New("fetch.attempts must be at least 1"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxBytes < 0 {
		errs = append(errs, errors.New("fetch.maxBytes must not be negative"))
	}
	if c.Resolve.Concurrency < 1 {
		errs = append(errs, errors.New("resolve.concurrency must be at least 1"))
	}
	if c.Resolve.FetchTimeout <= 0 {
		errs = append(errs, errors.New("resolve.fetchTimeout must be positive"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
