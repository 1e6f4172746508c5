// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for chatsync.
type Config struct {
	// Service configures the connection to the chat service.
	Service ServiceConfig `yaml:"service"`

	// State configures local state persistence.
	State StateConfig `yaml:"state"`

	// Sync configures the incremental sync engine.
	Sync SyncConfig `yaml:"sync"`
}

// ServiceConfig configures the remote chat service connection.
type ServiceConfig struct {
	// URL is the base URL of the chat service API
	// (e.g., "https://talk.example.com").
	URL string `yaml:"url"`

	// Timeout is the per-request timeout for remote calls, as a Go
	// duration string (e.g., "30s"). The long-poll operation fetch is
	// exempt — the server holds that connection deliberately.
	// Default: 30s.
	Timeout string `yaml:"timeout"`
}

// RequestTimeout parses the Timeout field. Returns an error for an
// unparseable or non-positive value.
func (s ServiceConfig) RequestTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("service.timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("service.timeout must be positive, got %s", s.Timeout)
	}
	return timeout, nil
}

// StateConfig configures local state persistence.
type StateConfig struct {
	// File is the path of the session state file. It holds the auth
	// token, so it is written with mode 0600.
	// Default: ${HOME}/.config/chatsync/state.cbz
	File string `yaml:"file"`
}

// SyncConfig configures the incremental sync engine.
type SyncConfig struct {
	// BatchSize is the maximum number of operations fetched per poll
	// cycle. Default: 50.
	BatchSize int `yaml:"batch_size"`

	// PageSize is the message-box listing page size used when
	// refreshing active rooms. A page returning fewer entries than
	// this ends the pagination. Default: 50.
	PageSize int `yaml:"page_size"`
}

// Default returns the default configuration. The defaults ensure all
// fields have usable zero-values before the config file is merged in;
// Service.URL has no default and must come from the file or a flag.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Service: ServiceConfig{
			Timeout: "30s",
		},
		State: StateConfig{
			File: filepath.Join(homeDir, ".config", "chatsync", "state.cbz"),
		},
		Sync: SyncConfig{
			BatchSize: 50,
			PageSize:  50,
		},
	}
}

// Load loads configuration from the CHATSYNC_CONFIG environment
// variable. There are no fallbacks — if CHATSYNC_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CHATSYNC_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CHATSYNC_CONFIG environment variable not set; " +
			"set it to the path of your chatsync.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging the
// file over the defaults and expanding ${HOME}-style variables in
// paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.State.File = expandVars(cfg.State.File, map[string]string{
		"HOME": os.Getenv("HOME"),
	})

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.URL == "" {
		errs = append(errs, fmt.Errorf("service.url is required"))
	}
	if _, err := c.Service.RequestTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.State.File == "" {
		errs = append(errs, fmt.Errorf("state.file is required"))
	}
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.batch_size must be positive"))
	}
	if c.Sync.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.page_size must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// varPattern matches ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
