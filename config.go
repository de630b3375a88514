package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all configuration for the memkv server and client CLIs
type Config struct {
	// Server settings
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	WorkerCount int    `mapstructure:"worker_count"`

	// Logging
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Client retry policy
	MaxRetries int `mapstructure:"max_retries"`

	// Advanced. Zero disables a deadline; the protocol has no
	// per-request timeout, so both default off.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         9001,
		WorkerCount:  10,
		Debug:        false,
		LogLevel:     "info",
		LogFormat:    "console",
		MaxRetries:   DefaultMaxRetries,
		ReadTimeout:  0,
		WriteTimeout: 0,
	}
}

// LoadConfig loads configuration from environment variables, an optional
// config file, and command line flags
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("memkv")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/memkv/")
	viper.AddConfigPath("$HOME/.memkv")

	viper.SetEnvPrefix("MEMKV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("host", config.Host)
	viper.SetDefault("port", config.Port)
	viper.SetDefault("worker_count", config.WorkerCount)
	viper.SetDefault("debug", config.Debug)
	viper.SetDefault("log_level", config.LogLevel)
	viper.SetDefault("log_format", config.LogFormat)
	viper.SetDefault("max_retries", config.MaxRetries)
	viper.SetDefault("read_timeout", config.ReadTimeout)
	viper.SetDefault("write_timeout", config.WriteTimeout)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", c.Port)
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be at least 1")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}

	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be console or json)", c.LogFormat)
	}

	return nil
}

// NewLogger builds the process logger from the logging settings. --debug
// wins over log_level.
func (c *Config) NewLogger() zerolog.Logger {
	var output io.Writer = os.Stderr
	if c.LogFormat == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("memkv config: %s:%d, workers: %d, log level: %s",
		c.Host, c.Port, c.WorkerCount, c.LogLevel)
}
