// Package config loads the application configuration from a TOML file,
// creating one with defaults on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// Config represents the application configuration
type Config struct {
	Audio   AudioConfig   `toml:"audio"`
	Media   MediaConfig   `toml:"media"`
	Logging LoggingConfig `toml:"logging"`
}

// AudioConfig contains engine and output device configuration
type AudioConfig struct {
	SampleRate  int `toml:"sample_rate"`
	BlockFrames int `toml:"block_frames"`
}

// MediaConfig contains media import configuration
type MediaConfig struct {
	Dir              string   `toml:"dir"`
	SupportedFormats []string `toml:"supported_formats"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:  44100,
			BlockFrames: 1024,
		},
		Media: MediaConfig{
			Dir:              "./media",
			SupportedFormats: []string{".wav", ".mp3", ".flac"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a TOML file. A missing file is not an
// error: it is created with the defaults so the user has something to edit.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("sample rate %d outside 8000..192000", c.Audio.SampleRate)
	}
	if c.Audio.BlockFrames < 64 || c.Audio.BlockFrames > 8192 {
		return fmt.Errorf("block size %d outside 64..8192 frames", c.Audio.BlockFrames)
	}
	if c.Media.Dir == "" {
		return fmt.Errorf("media dir cannot be empty")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}
	return nil
}

// ApplyLogging configures the global logger from the logging section.
func (c *Config) ApplyLogging() {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if c.Logging.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Media.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
