// Copyright 2026 The OBS Chat Bot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the bot.
//
// Configuration is loaded from a single YAML file specified by:
//   - OBS_CHAT_BOT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The file is the
// single source of truth; environment variables do not override
// values in it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the bot's configuration.
type Config struct {
	// Matrix configures the chat connection.
	Matrix MatrixConfig `yaml:"matrix"`

	// Prefix, when set, must lead a message for the bot to examine
	// it. When empty every message is a candidate command.
	Prefix string `yaml:"prefix"`

	// Poll configures the state polling loop.
	Poll PollConfig `yaml:"poll"`

	// StatePath is the SQLite file holding subscriptions and state
	// snapshots.
	StatePath string `yaml:"state_path"`

	// Backends lists the build services the bot can watch. At least
	// one is required.
	Backends []BackendConfig `yaml:"backends"`

	// DefaultSubscriptions are seeded into the registry at startup.
	// Seeding is best effort: entries that do not parse or fail to
	// persist are logged and skipped.
	DefaultSubscriptions []SeedConfig `yaml:"default_subscriptions"`
}

// MatrixConfig configures the Matrix connection.
type MatrixConfig struct {
	// Homeserver is the base URL of the Matrix homeserver.
	Homeserver string `yaml:"homeserver"`

	// User is the bot's full Matrix user ID (e.g. @bot:example.org).
	User string `yaml:"user"`

	// Password is the bot account's password.
	Password string `yaml:"password"`
}

// PollConfig configures the state polling loop.
type PollConfig struct {
	// Interval is the pause between poll cycles. Default: 5m.
	Interval Duration `yaml:"interval"`

	// FetchTimeout bounds each individual state fetch. Default: 30s.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// Parallel is the maximum number of concurrent fetches within a
	// cycle. Default: 4.
	Parallel int `yaml:"parallel"`
}

// BackendConfig configures one build-service backend.
type BackendConfig struct {
	// Name identifies the backend in stored subscriptions. Must be
	// unique and stable across restarts.
	Name string `yaml:"name"`

	// APIURL is the base URL of the build service API
	// (e.g. https://api.opensuse.org).
	APIURL string `yaml:"api_url"`

	// Hosts are the web hostnames whose URLs this backend claims
	// (e.g. build.opensuse.org). Must be unique across backends.
	Hosts []string `yaml:"hosts"`

	// Username and Password are the HTTP basic auth credentials for
	// the API.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SeedConfig is one default subscription seeded at startup.
type SeedConfig struct {
	// Room is the Matrix room ID to subscribe.
	Room string `yaml:"room"`

	// URL is the entity URL, in the same form users paste in chat.
	URL string `yaml:"url"`
}

// Default returns a configuration with all optional values filled.
func Default() *Config {
	return &Config{
		Poll: PollConfig{
			Interval:     Duration(5 * time.Minute),
			FetchTimeout: Duration(30 * time.Second),
			Parallel:     4,
		},
		StatePath: "obs-chat-bot.db",
	}
}

// Load loads configuration from the OBS_CHAT_BOT_CONFIG environment
// variable. Fails if the variable is not set.
func Load() (*Config, error) {
	path := os.Getenv("OBS_CHAT_BOT_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: OBS_CHAT_BOT_CONFIG environment variable not set; " +
			"set it to the path of your config file, or use the --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Unknown
// keys in the file are an error, catching typos at startup rather
// than silently ignoring a misspelled option.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Matrix.Homeserver == "" {
		errs = append(errs, fmt.Errorf("matrix.homeserver is required"))
	} else if _, err := url.Parse(c.Matrix.Homeserver); err != nil {
		errs = append(errs, fmt.Errorf("matrix.homeserver: %w", err))
	}
	if c.Matrix.User == "" {
		errs = append(errs, fmt.Errorf("matrix.user is required"))
	}
	if c.Matrix.Password == "" {
		errs = append(errs, fmt.Errorf("matrix.password is required"))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive"))
	}
	if c.Poll.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poll.fetch_timeout must be positive"))
	}
	if c.Poll.Parallel <= 0 {
		errs = append(errs, fmt.Errorf("poll.parallel must be positive"))
	}

	if c.StatePath == "" {
		errs = append(errs, fmt.Errorf("state_path is required"))
	}

	if len(c.Backends) == 0 {
		errs = append(errs, fmt.Errorf("at least one backend is required"))
	}
	names := make(map[string]bool)
	for i, b := range c.Backends {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("backends[%d].name is required", i))
		} else if names[b.Name] {
			errs = append(errs, fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name))
		}
		names[b.Name] = true
		if b.APIURL == "" {
			errs = append(errs, fmt.Errorf("backends[%d].api_url is required", i))
		} else if _, err := url.Parse(b.APIURL); err != nil {
			errs = append(errs, fmt.Errorf("backends[%d].api_url: %w", i, err))
		}
		if len(b.Hosts) == 0 {
			errs = append(errs, fmt.Errorf("backends[%d].hosts is required", i))
		}
	}

	return errors.Join(errs...)
}
