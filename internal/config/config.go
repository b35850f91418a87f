// Package config loads taskdeck configuration from file and environment.
//
// Configuration is read from taskdeck.yaml in the working directory (or an
// explicit path), with TASKDECK_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all taskdeck settings.
type Config struct {
	Server struct {
		Port int `mapstructure:"port" yaml:"port"`
	} `mapstructure:"server" yaml:"server"`

	DB struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"db" yaml:"db"`

	Tasks struct {
		Dir string `mapstructure:"dir" yaml:"dir"`
	} `mapstructure:"tasks" yaml:"tasks"`

	Log struct {
		// File enables rotating log output when non-empty.
		File       string `mapstructure:"file" yaml:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	} `mapstructure:"log" yaml:"log"`
}

// Load reads configuration from the given file path. When path is empty,
// taskdeck.yaml in the working directory is used if present; a missing config
// file is not an error, defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("db.path", ".taskdeck/cache.db")
	v.SetDefault("tasks.dir", ".taskdeck/tasks")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix("TASKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskdeck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Dump renders the configuration as YAML, for config inspection output.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}
