/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package server

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestWithMaxFrameSize(t *testing.T) {
	tests := []struct {
		name      string
		frameSize int
		envLimit  string
		wantError bool
	}{
		{"default", DefaultFrameSize, "", false},
		{"minimum", MinFrameSize, "", false},
		{"maximum", MaxFrameSize, "", false},
		{"too small", MinFrameSize - 1, "", true},
		{"zero", 0, "", true},
		{"negative", -1, "", true},
		{"above maximum", MaxFrameSize + 1, "", true},
		{"env raises limit", 2 * 1024 * 1024, "4MiB", false},
		{"env lowers limit", 8192, "4 KiB", true},
		{"env within lowered limit", 4096, "4 KiB", false},
		{"env invalid", 4096, "lots", true},
		{"env zero", 4096, "0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envLimit != "" {
				t.Setenv(FrameLimitEnv, tt.envLimit)
			} else {
				// t.Setenv registers the restore; Unsetenv clears any inherited value.
				t.Setenv(FrameLimitEnv, "")
				os.Unsetenv(FrameLimitEnv)
			}

			opt, err := WithMaxFrameSize(tt.frameSize)
			if (err != nil) != tt.wantError {
				t.Fatalf("WithMaxFrameSize(%d) error = %v, wantError %v", tt.frameSize, err, tt.wantError)
			}
			if err != nil {
				return
			}
			cfg := defaultConfig()
			opt(&cfg)
			if cfg.MaxFrameSize != tt.frameSize {
				t.Errorf("MaxFrameSize = %d, want %d", cfg.MaxFrameSize, tt.frameSize)
			}
		})
	}
}

func TestTimeoutOptions(t *testing.T) {
	cfg := defaultConfig()
	WithReadTimeout(time.Second)(&cfg)
	WithWriteTimeout(2 * time.Second)(&cfg)
	if cfg.ReadTimeout != time.Second || cfg.WriteTimeout != 2*time.Second {
		t.Errorf("timeouts = %v/%v, want 1s/2s", cfg.ReadTimeout, cfg.WriteTimeout)
	}

	// Non-positive durations keep the previous value.
	WithReadTimeout(0)(&cfg)
	WithWriteTimeout(-time.Second)(&cfg)
	if cfg.ReadTimeout != time.Second || cfg.WriteTimeout != 2*time.Second {
		t.Errorf("non-positive timeout changed config: %v/%v", cfg.ReadTimeout, cfg.WriteTimeout)
	}
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()
	if cfg.MaxFrameSize != 4096 {
		t.Errorf("default frame size = %d, want 4096", cfg.MaxFrameSize)
	}
	if cfg.ReadTimeout != 30*time.Second || cfg.WriteTimeout != 10*time.Second {
		t.Errorf("default timeouts = %v/%v", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.Logger == nil {
		t.Error("default logger is nil")
	}
	if Backlog != 5 {
		t.Errorf("Backlog = %d, want 5", Backlog)
	}
}

func TestWithLogger(t *testing.T) {
	cfg := defaultConfig()
	logger := slog.Default()
	WithLogger(logger)(&cfg)
	if cfg.Logger != logger {
		t.Error("logger not set")
	}
	WithLogger(nil)(&cfg)
	if cfg.Logger != logger {
		t.Error("nil logger replaced the configured one")
	}
}
