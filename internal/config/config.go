// Package config provides configuration management for the viewtree CLI
// using Viper, loading from files, environment variables and command-line
// flags.
//
// Sources, highest priority first: command-line flags, VIEWTREE_-prefixed
// environment variables, the .viewtree.yml configuration file.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Paths       PathsConfig       `yaml:"paths"`
	Preview     PreviewConfig     `yaml:"preview"`
	Development DevelopmentConfig `yaml:"development"`
	LogLevel    string            `yaml:"log-level"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type PathsConfig struct {
	Templates string `yaml:"templates"`
	Layouts   string `yaml:"layouts"`
}

type PreviewConfig struct {
	// Layout names the root layout the preview composes.
	Layout string `yaml:"layout"`
	// Template names the root view's template.
	Template string `yaml:"template"`
	// Document is an HTML file used as the host document; empty uses a
	// minimal built-in shell.
	Document string `yaml:"document"`
	// Selector locates the root view's element in the host document.
	Selector string `yaml:"selector"`
}

type DevelopmentConfig struct {
	HotReload bool `yaml:"hot_reload"`
}

// Load materializes the configuration from viper's merged sources.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Paths.Templates == "" {
		config.Paths.Templates = "./templates"
	}
	if config.Paths.Layouts == "" {
		config.Paths.Layouts = "./layouts"
	}
	if config.Preview.Selector == "" {
		config.Preview.Selector = "body"
	}
	if config.LogLevel == "" {
		config.LogLevel = viper.GetString("log-level")
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	// Workaround for viper bool handling when set via env only.
	if viper.IsSet("development.hot_reload") {
		config.Development.HotReload = viper.GetBool("development.hot_reload")
	}

	return &config, nil
}

// Validate checks invariants the commands rely on.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Paths.Templates == "" {
		return fmt.Errorf("templates path must not be empty")
	}
	return nil
}
