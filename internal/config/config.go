// Package config handles configuration loading for the pipeline.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
)

// Config holds all pipeline configuration.
type Config struct {
	Quality Quality `mapstructure:"quality"`
	Streams Streams `mapstructure:"streams"`
	Tracker Tracker `mapstructure:"tracker"`
	Storage Storage `mapstructure:"storage"`
}

// Quality holds quality gate settings.
type Quality struct {
	// Threshold is the pass bar for the weighted score.
	Threshold float64 `mapstructure:"threshold"`
	// MaxReworkCycles bounds the rework loop.
	MaxReworkCycles int `mapstructure:"max_rework_cycles"`
}

// Streams holds analysis stream scheduling settings.
type Streams struct {
	// Concurrency bounds how many streams run at once.
	Concurrency int `mapstructure:"concurrency"`
}

// Tracker holds external replication settings.
type Tracker struct {
	// URL is the tracker base URL. Required for external creation.
	URL string `mapstructure:"url"`
	// Token is the bearer credential for the tracker API.
	Token string `mapstructure:"token"`
	// BatchSize is the maximum items per batch.
	BatchSize int `mapstructure:"batch_size"`
	// Concurrency bounds concurrent sibling batches.
	Concurrency int `mapstructure:"concurrency"`
	// RatePerSecond is the outbound request budget.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	// RateWaitTimeout bounds blocking on the rate limiter before a
	// batch is deferred.
	RateWaitTimeout time.Duration `mapstructure:"rate_wait_timeout"`
	// RetryAttempts is the per-item call budget.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBaseDelay is the first backoff delay.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// BreakerThreshold is the consecutive-failure trip count.
	BreakerThreshold int `mapstructure:"breaker_threshold"`
	// BreakerCooldown is the initial open window.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	// ProceedWithoutLink creates children even when the parent's
	// replication failed, leaving them unlinked in the tracker.
	ProceedWithoutLink bool `mapstructure:"proceed_without_link"`
}

// Storage holds persistence settings.
type Storage struct {
	// DBPath overrides the default database location.
	DBPath string `mapstructure:"db_path"`
}

// Load reads configuration with this precedence, highest first:
// environment variables (CAIA_*), project config (.caia.yaml in the
// current directory or a parent), user config
// (~/.config/caia/config.yaml), built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CAIA")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 1 {
		return errors.NewConfiguration("quality.threshold", "must be in [0,1], got %v", c.Quality.Threshold)
	}
	if c.Quality.MaxReworkCycles < 0 {
		return errors.NewConfiguration("quality.max_rework_cycles", "must be non-negative, got %d", c.Quality.MaxReworkCycles)
	}
	if c.Tracker.RatePerSecond < 0 {
		return errors.NewConfiguration("tracker.rate_per_second", "must be non-negative, got %v", c.Tracker.RatePerSecond)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("quality.threshold", cfg.Quality.Threshold)
	v.Set("quality.max_rework_cycles", cfg.Quality.MaxReworkCycles)
	v.Set("streams.concurrency", cfg.Streams.Concurrency)
	v.Set("tracker.url", cfg.Tracker.URL)
	v.Set("tracker.token", cfg.Tracker.Token)
	v.Set("tracker.batch_size", cfg.Tracker.BatchSize)
	v.Set("tracker.concurrency", cfg.Tracker.Concurrency)
	v.Set("tracker.rate_per_second", cfg.Tracker.RatePerSecond)
	v.Set("tracker.rate_wait_timeout", cfg.Tracker.RateWaitTimeout.String())
	v.Set("tracker.retry_attempts", cfg.Tracker.RetryAttempts)
	v.Set("tracker.retry_base_delay", cfg.Tracker.RetryBaseDelay.String())
	v.Set("tracker.breaker_threshold", cfg.Tracker.BreakerThreshold)
	v.Set("tracker.breaker_cooldown", cfg.Tracker.BreakerCooldown.String())
	v.Set("tracker.proceed_without_link", cfg.Tracker.ProceedWithoutLink)
	v.Set("storage.db_path", cfg.Storage.DBPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("quality.threshold", 0.85)
	v.SetDefault("quality.max_rework_cycles", 3)

	v.SetDefault("streams.concurrency", 4)

	v.SetDefault("tracker.url", "")
	v.SetDefault("tracker.token", "")
	v.SetDefault("tracker.batch_size", 10)
	v.SetDefault("tracker.concurrency", 3)
	v.SetDefault("tracker.rate_per_second", 10.0)
	v.SetDefault("tracker.rate_wait_timeout", "5s")
	v.SetDefault("tracker.retry_attempts", 4)
	v.SetDefault("tracker.retry_base_delay", "200ms")
	v.SetDefault("tracker.breaker_threshold", 5)
	v.SetDefault("tracker.breaker_cooldown", "2s")
	v.SetDefault("tracker.proceed_without_link", false)

	v.SetDefault("storage.db_path", "")
}

// Default returns the built-in defaults without touching disk.
func Default() *Config {
	return &Config{
		Quality: Quality{Threshold: 0.85, MaxReworkCycles: 3},
		Streams: Streams{Concurrency: 4},
		Tracker: Tracker{
			BatchSize:        10,
			Concurrency:      3,
			RatePerSecond:    10,
			RateWaitTimeout:  5 * time.Second,
			RetryAttempts:    4,
			RetryBaseDelay:   200 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerCooldown:  2 * time.Second,
		},
	}
}

// getUserConfigDir returns the XDG config directory.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "caia")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "caia")
	}
	return filepath.Join(home, ".config", "caia")
}

// findProjectConfig searches for .caia.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".caia.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
