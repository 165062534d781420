// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	once sync.Once
	// Logger is the global logger instance shared across the application.
	Logger = logrus.New()
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Ledger struct {
		FilePath       string `mapstructure:"file_path" yaml:"file_path"`
		DefaultAccount string `mapstructure:"default_account" yaml:"default_account"`
		BackupEnabled  bool   `mapstructure:"backup_enabled" yaml:"backup_enabled"`
	} `mapstructure:"ledger" yaml:"ledger"`

	Hledger struct {
		BinaryPath     string `mapstructure:"binary_path" yaml:"binary_path"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"hledger" yaml:"hledger"`

	Import struct {
		SampleRows          int     `mapstructure:"sample_rows" yaml:"sample_rows"`
		ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	} `mapstructure:"import" yaml:"import"`

	Data struct {
		Directory string `mapstructure:"directory" yaml:"directory"`
	} `mapstructure:"data" yaml:"data"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then config file, then CSVHLEDGER_* environment variables.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.csv-hledger")
	v.AddConfigPath(".csv-hledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CSVHLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Continue with defaults and env vars.
			Logger.Warnf("error reading config file %s: %v", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("ledger.file_path", filepath.Join(home, ".csv-hledger", "ledger.hledger"))
	v.SetDefault("ledger.default_account", "Assets:Checking")
	v.SetDefault("ledger.backup_enabled", true)

	v.SetDefault("hledger.binary_path", "hledger")
	v.SetDefault("hledger.timeout_seconds", 30)

	v.SetDefault("import.sample_rows", 10)
	v.SetDefault("import.confidence_threshold", 0.7)

	v.SetDefault("data.directory", filepath.Join(home, ".csv-hledger"))
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Hledger.TimeoutSeconds < 1 || config.Hledger.TimeoutSeconds > 300 {
		return fmt.Errorf("hledger.timeout_seconds must be between 1 and 300, got: %d", config.Hledger.TimeoutSeconds)
	}

	if config.Import.SampleRows < 1 {
		return fmt.Errorf("import.sample_rows must be positive, got: %d", config.Import.SampleRows)
	}

	if config.Import.ConfidenceThreshold < 0.0 || config.Import.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("import.confidence_threshold must be between 0.0 and 1.0, got: %f", config.Import.ConfidenceThreshold)
	}

	return nil
}

// ConfigureLogging sets up the global logger from environment variables and
// returns it. Used before the full config is loaded.
func ConfigureLogging() *logrus.Logger {
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info"
	}

	logLevel, err := logrus.ParseLevel(strings.ToLower(logLevelStr))
	if err != nil {
		Logger.Warnf("Invalid log level '%s', using 'info'", logLevelStr)
		logLevel = logrus.InfoLevel
	}
	Logger.SetLevel(logLevel)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return Logger
}

// ConfigureLoggingFromConfig configures the global logger based on the Config
// struct and returns it.
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		Logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	Logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return Logger
}

// LoadEnv loads environment variables from a .env file if one exists.
func LoadEnv() {
	once.Do(func() {
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				return
			}
		}

		if err := godotenv.Load(envFile); err != nil {
			Logger.Warnf("Error loading .env file: %v", err)
			return
		}
		ConfigureLogging()
	})
}
