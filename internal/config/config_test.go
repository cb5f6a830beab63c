/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keybroker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.SocketPath != "/tmp/protectu84.sock" {
		t.Errorf("expected socket_path=/tmp/protectu84.sock, got %s", cfg.SocketPath)
	}
	if size, err := cfg.FrameSize(); err != nil || size != 4096 {
		t.Errorf("expected frame size 4096, got %d (%v)", size, err)
	}
	read, write, err := cfg.Timeouts()
	if err != nil || read != 30*time.Second || write != 10*time.Second {
		t.Errorf("expected 30s/10s timeouts, got %v/%v (%v)", read, write, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
socket_path: /run/keybroker/broker.sock
sealed_config: /etc/keybroker/identity.sealed
max_frame_size: 16 KiB
read_timeout: 5s
write_timeout: 2s
log_level: debug
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.SocketPath != "/run/keybroker/broker.sock" {
		t.Errorf("socket_path = %s", cfg.SocketPath)
	}
	if cfg.SealedConfig != "/etc/keybroker/identity.sealed" {
		t.Errorf("sealed_config = %s", cfg.SealedConfig)
	}
	if size, _ := cfg.FrameSize(); size != 16*1024 {
		t.Errorf("frame size = %d, want 16384", size)
	}
	if read, write, _ := cfg.Timeouts(); read != 5*time.Second || write != 2*time.Second {
		t.Errorf("timeouts = %v/%v", read, write)
	}
	if level, _ := cfg.Level(); level != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "log_level: warn\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("socket_path = %s, want default", cfg.SocketPath)
	}
	if cfg.MaxFrameSize != "4096" {
		t.Errorf("max_frame_size = %s, want default", cfg.MaxFrameSize)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile of empty file failed: %v", err)
	}
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("socket_path = %s, want default", cfg.SocketPath)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "socket: /tmp/x.sock\n", "field socket not found"},
		{"bad yaml", "socket_path: [unterminated\n", "parsing config"},
		{"bad frame size", "max_frame_size: huge\n", "max_frame_size"},
		{"zero frame size", "max_frame_size: \"0\"\n", "max_frame_size"},
		{"bad duration", "read_timeout: soon\n", "read_timeout"},
		{"negative duration", "write_timeout: -1s\n", "write_timeout"},
		{"bad level", "log_level: loud\n", "log_level"},
		{"empty socket", "socket_path: \"\"\n", "socket_path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := &Config{MaxFrameSize: "x", ReadTimeout: "x", WriteTimeout: "x", LogLevel: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"socket_path", "max_frame_size", "read_timeout", "log_level"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error does not mention %s: %v", field, err)
		}
	}
}

func TestResolve(t *testing.T) {
	flagPath := writeConfig(t, "log_level: error\n")
	envPath := writeConfig(t, "log_level: warn\n")

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(EnvConfig, envPath)
		cfg, err := Resolve(flagPath)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.LogLevel != "error" {
			t.Errorf("log_level = %s, want error", cfg.LogLevel)
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv(EnvConfig, envPath)
		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("log_level = %s, want warn", cfg.LogLevel)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("log_level = %s, want info", cfg.LogLevel)
		}
	})
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("KEYBROKER_TEST_RUNTIME", "/run/user/1000")
	path := writeConfig(t, `
socket_path: ${KEYBROKER_TEST_RUNTIME}/broker.sock
sealed_config: ${KEYBROKER_TEST_UNSET:-/etc/keybroker}/identity.sealed
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.SocketPath != "/run/user/1000/broker.sock" {
		t.Errorf("socket_path = %s", cfg.SocketPath)
	}
	if cfg.SealedConfig != "/etc/keybroker/identity.sealed" {
		t.Errorf("sealed_config = %s", cfg.SealedConfig)
	}
}
