// Package config loads mockdb settings from a config file, MOCKDB_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "MOCKDB"

// Config represents a loaded configuration.
type Config struct {
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	Database  string `mapstructure:"database" validate:"required"`
	Backend   string `mapstructure:"backend" validate:"oneof=jsonfile sqlite badger memory"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`
	Listen    string `mapstructure:"listen" validate:"hostname_port"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":   "data_dir",
	"db":         "database",
	"backend":    "backend",
	"log-level":  "log_level",
	"log-format": "log_format",
	"listen":     "listen",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database", "default")
	v.SetDefault("backend", "jsonfile")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("listen", "127.0.0.1:8080")
}

// Load reads the configuration. An explicit file must exist; without one,
// mockdb.{json,yaml,toml} is looked up in the working directory and its
// absence is not an error. Flags that were set on the command line win over
// every other source.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("mockdb")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := persistence.ValidateName(c.Database); err != nil {
		return fmt.Errorf("invalid config: database: %w", err)
	}
	return nil
}

// Logger builds the logger described by c.
func (c *Config) Logger() (*zap.Logger, error) {
	return NewLogger(c.LogLevel, c.LogFormat)
}

// NewLogger builds a production (json) or development (console) logger at
// the given level.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder // Human-readable timestamps
	config.EncoderConfig.TimeKey = "timestamp"                   // Key for the timestamp field
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}
