/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package config loads the optional keybroker configuration file.
//
// The file is read from exactly one place: the --config flag, or else the
// KEYBROKER_CONFIG environment variable. Without either, built-in defaults
// apply. There is no discovery of files in well-known locations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "KEYBROKER_CONFIG"

// DefaultSocketPath is the broker's well-known address.
const DefaultSocketPath = "/tmp/protectu84.sock"

// Config is the keybroker configuration.
type Config struct {
	// SealedConfig is the sealed file used when none is given on the
	// command line.
	SealedConfig string `yaml:"sealed_config"`

	// SocketPath is where the request server listens.
	// Default: /tmp/protectu84.sock
	SocketPath string `yaml:"socket_path"`

	// MaxFrameSize bounds one request line, as a byte size ("4 KiB").
	// Default: 4096
	MaxFrameSize string `yaml:"max_frame_size"`

	// ReadTimeout and WriteTimeout are Go durations.
	// Default: 30s and 10s
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SocketPath:   DefaultSocketPath,
		MaxFrameSize: "4096",
		ReadTimeout:  "30s",
		WriteTimeout: "10s",
		LogLevel:     "info",
	}
}

// Resolve loads the file at flagPath, or at $KEYBROKER_CONFIG when flagPath
// is empty. With neither set it returns Default().
func Resolve(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults and validates it.
// Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	c.SocketPath = expandVars(c.SocketPath)
	c.SealedConfig = expandVars(c.SealedConfig)
}

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// FrameSize parses MaxFrameSize.
func (c *Config) FrameSize() (int, error) {
	size, err := humanize.ParseBytes(c.MaxFrameSize)
	if err != nil {
		return 0, fmt.Errorf("max_frame_size: %w", err)
	}
	if size == 0 || size > math.MaxInt32 {
		return 0, fmt.Errorf("max_frame_size: %s out of range", c.MaxFrameSize)
	}
	return int(size), nil
}

// Timeouts parses ReadTimeout and WriteTimeout.
func (c *Config) Timeouts() (read, write time.Duration, err error) {
	if read, err = parsePositiveDuration("read_timeout", c.ReadTimeout); err != nil {
		return 0, 0, err
	}
	if write, err = parsePositiveDuration("write_timeout", c.WriteTimeout); err != nil {
		return 0, 0, err
	}
	return read, write, nil
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}
	if _, err := c.FrameSize(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Timeouts(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
