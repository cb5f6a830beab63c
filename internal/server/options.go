/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// options.go: Configuration options for the local request server
package server

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	MinFrameSize = 16 // Smallest frame that still fits "DECRYPT " and a payload
	// DefaultFrameSize bounds a single request line. Longer input is truncated.
	DefaultFrameSize = 4096
	// MaxFrameSize is the hard ceiling unless KEYBROKER_FRAME_LIMIT raises it.
	MaxFrameSize = 1024 * 1024

	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second

	// Backlog is the listen queue depth for pending connections.
	Backlog = 5

	// FrameLimitEnv overrides MaxFrameSize, as a humanized byte size ("64 KiB").
	FrameLimitEnv = "KEYBROKER_FRAME_LIMIT"
)

type Config struct {
	MaxFrameSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
	OnReady      func(socketPath string)
}

func defaultConfig() Config {
	return Config{
		MaxFrameSize: DefaultFrameSize,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a Server.
type Option func(*Config)

// FrameLimit returns the largest frame size WithMaxFrameSize accepts.
func FrameLimit() (int, error) {
	limit := MaxFrameSize
	if envLimit, exists := os.LookupEnv(FrameLimitEnv); exists {
		parsed, err := humanize.ParseBytes(envLimit)
		if err != nil || parsed == 0 {
			return 0, errors.New(FrameLimitEnv + " is not a valid byte size")
		}
		// G115: Prevent integer overflow conversion uint64 -> int
		if parsed > uint64(math.MaxInt) {
			return 0, errors.New(FrameLimitEnv + " too large: exceeds int max value")
		}
		limit = int(parsed)
	}
	return limit, nil
}

// WithMaxFrameSize sets the request line bound.
func WithMaxFrameSize(size int) (Option, error) {
	limit, err := FrameLimit()
	if err != nil {
		return nil, err
	}
	if size < MinFrameSize || size > limit {
		return nil, errors.New("invalid frame size: must be between 16 bytes and the maximum limit")
	}
	return func(cfg *Config) {
		cfg.MaxFrameSize = size
	}, nil
}

// WithReadTimeout bounds how long a client may take to send its request.
func WithReadTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.ReadTimeout = d
		}
	}
}

// WithWriteTimeout bounds how long writing a response may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.WriteTimeout = d
		}
	}
}

// WithLogger sets the server logger. Nil keeps the discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *Config) {
		if logger != nil {
			cfg.Logger = logger
		}
	}
}

// WithOnReady registers a callback run once the socket is accepting.
func WithOnReady(fn func(socketPath string)) Option {
	return func(cfg *Config) {
		cfg.OnReady = fn
	}
}
