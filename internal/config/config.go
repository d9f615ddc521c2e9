package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Bandcamp BandcampConfig `mapstructure:"bandcamp"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Tags     TagsConfig     `mapstructure:"tags"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BandcampConfig holds settings for the bandcamp.com adapter
type BandcampConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"` // Requests per second across all sessions
	RateBurst      int           `mapstructure:"rate_burst"`
}

// EngineConfig holds settings for the recommendation engine
type EngineConfig struct {
	MaxSessions        int           `mapstructure:"max_sessions"`        // Upper bound on pooled fetch sessions
	MaxWorkers         int           `mapstructure:"max_workers"`         // Upper bound on concurrent supporter tasks
	TaskTimeout        time.Duration `mapstructure:"task_timeout"`        // Per-supporter fetch ceiling
	MinSupporters      int           `mapstructure:"min_supporters"`      // Co-occurrence cutoff
	MaxRecommendations int           `mapstructure:"max_recommendations"` // Result list cap
	MinSimilarity      float64       `mapstructure:"min_similarity"`      // Tag similarity cutoff
}

// TagsConfig holds tag normalization settings. Synonyms maps a normalized
// tag spelling to its canonical form and extends the built-in table.
type TagsConfig struct {
	Synonyms map[string]string `mapstructure:"synonyms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Bandcamp: BandcampConfig{
			BaseURL:        "https://bandcamp.com",
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
			RatePerSecond:  8,
			RateBurst:      16,
		},
		Engine: EngineConfig{
			MaxSessions:        10,
			MaxWorkers:         15,
			TaskTimeout:        30 * time.Second,
			MinSupporters:      2,
			MaxRecommendations: 10,
			MinSimilarity:      0.1,
		},
		Tags: TagsConfig{
			Synonyms: map[string]string{},
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "bandwagon", "bandwagon.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "bandwagon", "bandwagon.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "bandwagon")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "bandwagon")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("BANDWAGON")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("bandcamp.base_url", cfg.Bandcamp.BaseURL)
	viper.Set("bandcamp.user_agent", cfg.Bandcamp.UserAgent)
	viper.Set("bandcamp.request_timeout", cfg.Bandcamp.RequestTimeout)
	viper.Set("bandcamp.rate_per_second", cfg.Bandcamp.RatePerSecond)
	viper.Set("bandcamp.rate_burst", cfg.Bandcamp.RateBurst)

	viper.Set("engine.max_sessions", cfg.Engine.MaxSessions)
	viper.Set("engine.max_workers", cfg.Engine.MaxWorkers)
	viper.Set("engine.task_timeout", cfg.Engine.TaskTimeout)
	viper.Set("engine.min_supporters", cfg.Engine.MinSupporters)
	viper.Set("engine.max_recommendations", cfg.Engine.MaxRecommendations)
	viper.Set("engine.min_similarity", cfg.Engine.MinSimilarity)

	viper.Set("tags.synonyms", cfg.Tags.Synonyms)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
