package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/ratescan/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Waveform  WaveformConfig  `mapstructure:"waveform"`
	Fit       FitConfig       `mapstructure:"fit"`
	Intervals IntervalsConfig `mapstructure:"intervals"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Report    ReportConfig    `mapstructure:"report"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WaveformConfig holds the charge-integration settings
type WaveformConfig struct {
	SourceFile    string  `mapstructure:"source_file"`
	Channel       string  `mapstructure:"channel"`
	MaxThreshold  float64 `mapstructure:"max_threshold"`
	MinThreshold  float64 `mapstructure:"min_threshold"`
	BinCount      int     `mapstructure:"bin_count"`
	MaxSampleTime int     `mapstructure:"max_sample_time"`
	Workers       int     `mapstructure:"workers"`
	Correlate     bool    `mapstructure:"correlate"`
}

// FitConfig holds the rate-scan input series and fit options
type FitConfig struct {
	Dataset       string    `mapstructure:"dataset"`
	ControlValues []float64 `mapstructure:"control_values"`
	EventCounts   []int64   `mapstructure:"event_counts"`
	LiveTimes     []float64 `mapstructure:"live_times"` // microseconds
	Covariance    string    `mapstructure:"covariance"` // scaled | absolute
	ExcludeZero   bool      `mapstructure:"exclude_zero"`
	CurveMin      float64   `mapstructure:"curve_min"`
	CurveMax      float64   `mapstructure:"curve_max"`
	CurveStep     float64   `mapstructure:"curve_step"`
}

// IntervalsConfig holds the inter-event time distribution settings
type IntervalsConfig struct {
	Bins             int     `mapstructure:"bins"`
	MinCount         int     `mapstructure:"min_count"`
	MinFirstBinWidth float64 `mapstructure:"min_first_bin_width"` // microseconds
}

// StorageConfig holds the measurement catalog location
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ReportConfig holds output rendering configuration
type ReportConfig struct {
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"` // empty = stdout
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RATESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Waveform defaults
	v.SetDefault("waveform.channel", "D")
	v.SetDefault("waveform.max_threshold", 40000.0)
	v.SetDefault("waveform.min_threshold", 2000.0)
	v.SetDefault("waveform.bin_count", 20)
	v.SetDefault("waveform.max_sample_time", 150)
	v.SetDefault("waveform.workers", 1)
	v.SetDefault("waveform.correlate", false)

	// Fit defaults
	v.SetDefault("fit.covariance", "scaled")
	v.SetDefault("fit.exclude_zero", false)
	v.SetDefault("fit.curve_min", 0.0)
	v.SetDefault("fit.curve_max", 2000.0)
	v.SetDefault("fit.curve_step", 10.0)

	// Intervals defaults
	v.SetDefault("intervals.bins", 20)
	v.SetDefault("intervals.min_count", 8)
	v.SetDefault("intervals.min_first_bin_width", 3e6)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/ratescan.db")

	// Report defaults
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid.
// Every failure wraps models.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Validate Waveform config
	if !validChannels[c.Waveform.Channel] {
		return fmt.Errorf("waveform.channel must be one of: A, B, C, D")
	}
	if c.Waveform.MinThreshold > c.Waveform.MaxThreshold {
		return fmt.Errorf("waveform.min_threshold must not exceed waveform.max_threshold")
	}
	if c.Waveform.BinCount < 1 {
		return fmt.Errorf("waveform.bin_count must be at least 1")
	}
	if c.Waveform.MaxSampleTime < 1 {
		return fmt.Errorf("waveform.max_sample_time must be at least 1")
	}
	if c.Waveform.Workers < 1 {
		return fmt.Errorf("waveform.workers must be at least 1")
	}

	// Validate Fit config
	n := len(c.Fit.ControlValues)
	if len(c.Fit.EventCounts) != n || len(c.Fit.LiveTimes) != n {
		return fmt.Errorf("fit.control_values, fit.event_counts and fit.live_times must have equal length (got %d, %d, %d)",
			n, len(c.Fit.EventCounts), len(c.Fit.LiveTimes))
	}
	validCovariance := map[string]bool{"scaled": true, "absolute": true}
	if !validCovariance[c.Fit.Covariance] {
		return fmt.Errorf("fit.covariance must be one of: scaled, absolute")
	}
	if c.Fit.CurveStep <= 0 {
		return fmt.Errorf("fit.curve_step must be positive")
	}
	if c.Fit.CurveMax <= c.Fit.CurveMin {
		return fmt.Errorf("fit.curve_max must be greater than fit.curve_min")
	}

	// Validate Intervals config
	if c.Intervals.Bins < 3 {
		return fmt.Errorf("intervals.bins must be at least 3")
	}
	if c.Intervals.MinCount < 1 {
		return fmt.Errorf("intervals.min_count must be at least 1")
	}
	if c.Intervals.MinFirstBinWidth < 0 {
		return fmt.Errorf("intervals.min_first_bin_width must not be negative")
	}

	// Validate Report config
	validFormats := map[string]bool{"text": true, "json": true, "yaml": true}
	if !validFormats[c.Report.Format] {
		return fmt.Errorf("report.format must be one of: text, json, yaml")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

var validChannels = map[string]bool{"A": true, "B": true, "C": true, "D": true}
