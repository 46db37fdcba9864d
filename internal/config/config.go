// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	Roster   RosterConfig   `mapstructure:"roster"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Headless HeadlessConfig `mapstructure:"headless"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig holds the Postgres connection string.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RosterConfig points at the operator-managed building list export.
type RosterConfig struct {
	Path   string `mapstructure:"path"`
	OutDir string `mapstructure:"out_dir"`
}

// ScrapeConfig governs batch dispatch and the state machine.
type ScrapeConfig struct {
	MaxWorkers    int           `mapstructure:"max_workers"`
	BrowserSlots  int           `mapstructure:"browser_slots"`
	HTTPSlots     int           `mapstructure:"http_slots"`
	BrowserDelay  time.Duration `mapstructure:"browser_delay"`
	HTTPDelay     time.Duration `mapstructure:"http_delay"`
	ZeroThreshold int           `mapstructure:"zero_threshold"`
	RunRetention  time.Duration `mapstructure:"run_retention"`
	UserAgent     string        `mapstructure:"user_agent"`
	HostRPS       float64       `mapstructure:"host_rps"`
}

// HeadlessConfig tunes the shared Chrome renderer.
type HeadlessConfig struct {
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
}

// GenAIConfig configures the fallback extraction model.
type GenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// LoggingConfig selects the log flavor.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from an optional file plus RENTPULSE_*
// environment variables, applies defaults, and validates.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RENTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rentpulse")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rentpulse/")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
			// No file is fine; defaults plus environment carry the load.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	// Empty-string defaults register the keys so environment-only values
	// survive Unmarshal.
	v.SetDefault("db.dsn", "")
	v.SetDefault("roster.path", "roster.csv")
	v.SetDefault("roster.out_dir", "")

	v.SetDefault("scrape.max_workers", 8)
	v.SetDefault("scrape.browser_slots", 1)
	v.SetDefault("scrape.http_slots", 2)
	v.SetDefault("scrape.browser_delay", "1s")
	v.SetDefault("scrape.http_delay", "200ms")
	v.SetDefault("scrape.zero_threshold", 5)
	v.SetDefault("scrape.run_retention", "720h")
	v.SetDefault("scrape.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("scrape.host_rps", 2.0)

	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.navigation_timeout", "45s")
	v.SetDefault("headless.settle_delay", "2s")

	v.SetDefault("genai.api_key", "")
	v.SetDefault("genai.model", "claude-haiku-4-5")
	v.SetDefault("genai.max_tokens", 8192)

	v.SetDefault("logging.development", false)
}

// Validate rejects configurations that would misbehave at runtime rather
// than failing fast.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Scrape.MaxWorkers <= 0 {
		return fmt.Errorf("scrape.max_workers must be positive, got %d", c.Scrape.MaxWorkers)
	}
	if c.Scrape.BrowserSlots <= 0 || c.Scrape.HTTPSlots <= 0 {
		return fmt.Errorf("scrape slot counts must be positive (browser=%d http=%d)",
			c.Scrape.BrowserSlots, c.Scrape.HTTPSlots)
	}
	if c.Scrape.ZeroThreshold <= 0 {
		return fmt.Errorf("scrape.zero_threshold must be positive, got %d", c.Scrape.ZeroThreshold)
	}
	if c.Scrape.RunRetention <= 0 {
		return fmt.Errorf("scrape.run_retention must be positive, got %s", c.Scrape.RunRetention)
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be positive, got %d", c.Headless.MaxParallel)
	}
	return nil
}
