package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Review    ReviewConfig    `mapstructure:"review"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Trending  TrendingConfig  `mapstructure:"trending"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// YouTubeConfig holds YouTube Data API settings
type YouTubeConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Region     string `mapstructure:"region"`      // regionCode for search
	MaxResults int64  `mapstructure:"max_results"` // candidates per keyword search
	Order      string `mapstructure:"order"`       // relevance, viewCount, date
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// ReviewConfig holds AI pre-moderation settings
type ReviewConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	SpamThreshold float64 `mapstructure:"spam_threshold"` // 0-100
	AutoReject    bool    `mapstructure:"auto_reject"`    // reject above threshold instead of annotating
	BatchSize     int     `mapstructure:"batch_size"`     // pending videos per sweep
}

// SchedulerConfig holds the primary scheduler settings
type SchedulerConfig struct {
	Timezone            string `mapstructure:"timezone"`
	DaytimeCron         string `mapstructure:"daytime_cron"`
	NighttimeCron       string `mapstructure:"nighttime_cron"`
	TrendingCron        string `mapstructure:"trending_cron"`
	CleanupCron         string `mapstructure:"cleanup_cron"`
	StatsCron           string `mapstructure:"stats_cron"`
	TrendingRefreshCron string `mapstructure:"trending_refresh_cron"`
	ReviewCron          string `mapstructure:"review_cron"`
	RetentionCap        int    `mapstructure:"retention_cap"` // max stored videos before cleanup
}

// FetcherConfig holds standalone fallback fetcher settings
type FetcherConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	KeywordLimit int           `mapstructure:"keyword_limit"` // keywords per cycle
	RetentionCap int           `mapstructure:"retention_cap"`
}

// TrendingConfig holds trending keyword harvesting settings
type TrendingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Feeds           []Feed `mapstructure:"feeds"`
	MaxNewKeywords  int    `mapstructure:"max_new_keywords"` // per refresh
	DefaultPriority int    `mapstructure:"default_priority"`
}

// Feed represents a single news feed
type Feed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// APIConfig holds HTTP API settings
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pattaya-videos"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("PATTAYA")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("youtube.api_key", "PATTAYA_YOUTUBE_API_KEY")
	v.BindEnv("youtube.region", "PATTAYA_YOUTUBE_REGION")
	v.BindEnv("anthropic.api_key", "PATTAYA_ANTHROPIC_API_KEY")
	v.BindEnv("database.driver", "PATTAYA_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "PATTAYA_DATABASE_DSN")
	v.BindEnv("review.enabled", "PATTAYA_REVIEW_ENABLED")
	v.BindEnv("review.auto_reject", "PATTAYA_REVIEW_AUTO_REJECT")
	v.BindEnv("scheduler.timezone", "PATTAYA_SCHEDULER_TIMEZONE")
	v.BindEnv("scheduler.retention_cap", "PATTAYA_SCHEDULER_RETENTION_CAP")
	v.BindEnv("fetcher.retention_cap", "PATTAYA_FETCHER_RETENTION_CAP")
	v.BindEnv("api.addr", "PATTAYA_API_ADDR")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/videos.db")

	// YouTube defaults
	v.SetDefault("youtube.region", "TH")
	v.SetDefault("youtube.max_results", 10)
	v.SetDefault("youtube.order", "relevance")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 1024)

	// Review defaults
	v.SetDefault("review.enabled", false)
	v.SetDefault("review.spam_threshold", 80.0)
	v.SetDefault("review.auto_reject", false)
	v.SetDefault("review.batch_size", 20)

	// Scheduler defaults. Daytime/nighttime windows are enforced inside
	// the tick, the cron expressions only set the cadence.
	v.SetDefault("scheduler.timezone", "Asia/Bangkok")
	v.SetDefault("scheduler.daytime_cron", "*/30 * * * *")  // every 30 min, gated to 06:00-23:59
	v.SetDefault("scheduler.nighttime_cron", "0 */2 * * *") // every 2 hours, gated to 00:00-05:59
	v.SetDefault("scheduler.trending_cron", "*/5 * * * *")  // trending burst
	v.SetDefault("scheduler.cleanup_cron", "45 4 * * *")    // daily retention cleanup
	v.SetDefault("scheduler.stats_cron", "10 */6 * * *")    // keyword stats recompute
	v.SetDefault("scheduler.trending_refresh_cron", "20 */6 * * *")
	v.SetDefault("scheduler.review_cron", "50 * * * *")
	v.SetDefault("scheduler.retention_cap", 500)

	// Fetcher defaults
	v.SetDefault("fetcher.interval", "2m")
	v.SetDefault("fetcher.keyword_limit", 2)
	v.SetDefault("fetcher.retention_cap", 50)

	// Trending defaults
	v.SetDefault("trending.enabled", true)
	v.SetDefault("trending.max_new_keywords", 10)
	v.SetDefault("trending.default_priority", 3)

	// API defaults
	v.SetDefault("api.addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("youtube.api_key is required")
	}
	if c.Review.Enabled && c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required when review is enabled")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return nil
}
