// Package config loads irclogd's YAML configuration: connection
// defaults, git author identity, and liveness-timer overrides, with
// CLI flags taking precedence over file values (wired by cmd/).
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

const DefaultMaxSilenceSeconds = 60
const DefaultPongResponseTimeout = 20
const DefaultAuthorName = "irclogd"
const DefaultAuthorEmail = "irclogd@localhost"

// Config holds everything the logger and publisher binaries need beyond
// their required CLI flags (server/user/channel/dir are always flags,
// never config-file-only, per spec §6).
type Config struct {
	NickservPassword    string `yaml:"nickserv_password"`
	MaxSilenceSeconds   int    `yaml:"max_silence_seconds"`
	PongResponseTimeout int    `yaml:"pong_response_timeout"`
	AuthorName          string `yaml:"author_name"`
	AuthorEmail         string `yaml:"author_email"`
}

// Unmarshal parses config's YAML bytes over top of the package defaults.
func Unmarshal(config []byte) (*Config, error) {
	cfg := &Config{
		MaxSilenceSeconds:   DefaultMaxSilenceSeconds,
		PongResponseTimeout: DefaultPongResponseTimeout,
		AuthorName:          DefaultAuthorName,
		AuthorEmail:         DefaultAuthorEmail,
	}
	if err := yaml.Unmarshal(config, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v. make sure to use 'single quotes' around strings with special characters", err.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads and parses filename. A missing file is not an
// error: the caller gets the package defaults back (the config file is
// optional — spec §6 only requires --server/--user/--channel/--dir).
func LoadConfigFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Unmarshal(nil)
		}
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	cfg, err := Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err.Error())
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxSilenceSeconds <= 0 {
		return fmt.Errorf("max_silence_seconds must be positive, got %d", c.MaxSilenceSeconds)
	}
	if c.PongResponseTimeout <= 0 {
		return fmt.Errorf("pong_response_timeout must be positive, got %d", c.PongResponseTimeout)
	}
	return nil
}
