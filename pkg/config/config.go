package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
type Config struct {
	ProjectName     string        `mapstructure:"project_name"`
	RegistryURL     string        `mapstructure:"registry_url"`
	Offline         bool          `mapstructure:"offline"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	CacheDir        string        `mapstructure:"cache_dir"`
	MemoryCacheTTL  time.Duration `mapstructure:"memory_cache_ttl"`
	DiskCacheTTL    time.Duration `mapstructure:"disk_cache_ttl"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	OfflineCooldown time.Duration `mapstructure:"offline_cooldown"`
	MaxRetries      int           `mapstructure:"max_retries"`
	LogFile         string        `mapstructure:"log_file"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ProjectName:     "my-app",
		RegistryURL:     "https://registry.npmjs.org",
		Offline:         false,
		MaxConcurrency:  4,
		CacheDir:        defaultCacheDir(),
		MemoryCacheTTL:  15 * time.Minute,
		DiskCacheTTL:    24 * time.Hour,
		RequestTimeout:  3 * time.Second,
		OfflineCooldown: 30 * time.Second,
		MaxRetries:      2,
		LogFile:         "spark.log",
	}
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".spark"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and env still apply
	}

	// Environment variables
	v.SetEnvPrefix("SPARK")
	v.AutomaticEnv()
	v.BindEnv("offline", "SPARK_OFFLINE")
	v.BindEnv("registry_url", "SPARK_REGISTRY_URL")

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.RegistryURL == "" {
		return fmt.Errorf("registry URL is required")
	}
	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", config.MaxRetries)
	}
	return nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spark-cache"
	}
	return filepath.Join(home, ".spark", "cache")
}
