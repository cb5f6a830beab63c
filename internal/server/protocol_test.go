/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package server

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    CommandKind
		payload string
	}{
		{"encrypt", "ENCRYPT hello", CommandEncrypt, "hello"},
		{"encrypt keeps spaces", "ENCRYPT  two  spaces ", CommandEncrypt, " two  spaces "},
		{"encrypt empty payload", "ENCRYPT ", CommandEncrypt, ""},
		{"decrypt", "DECRYPT Zm9v", CommandDecrypt, "Zm9v"},
		{"exit", "EXIT", CommandExit, ""},
		{"exit with suffix", "EXIT now", CommandUnknown, ""},
		{"lowercase", "encrypt hello", CommandUnknown, ""},
		{"verb without space", "ENCRYPT", CommandUnknown, ""},
		{"empty", "", CommandUnknown, ""},
		{"garbage", "\x00\xff", CommandUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ParseCommand([]byte(tt.line))
			if cmd.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", cmd.Kind, tt.kind)
			}
			if string(cmd.Payload) != tt.payload {
				t.Errorf("payload = %q, want %q", cmd.Payload, tt.payload)
			}
		})
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"newline", "EXIT\n", 64, "EXIT"},
		{"crlf", "EXIT\r\n", 64, "EXIT"},
		{"lone carriage return kept", "EXIT\r", 64, "EXIT\r"},
		{"eof without newline", "ENCRYPT hi", 64, "ENCRYPT hi"},
		{"stops at first newline", "EXIT\nENCRYPT x\n", 64, "EXIT"},
		{"truncated", strings.Repeat("a", 100), 16, strings.Repeat("a", 16)},
		{"empty", "", 64, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readFrame(strings.NewReader(tt.input), tt.limit)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("frame = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadFrame_ReadError(t *testing.T) {
	boom := errors.New("boom")
	r := iotest.TimeoutReader(bytes.NewReader([]byte("ENCRYPT partial")))
	if _, err := readFrame(r, 64); err == nil {
		t.Fatal("expected error from a reader that fails mid-frame")
	}
	if _, err := readFrame(iotest.ErrReader(boom), 64); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestCommandKind_String(t *testing.T) {
	for kind, want := range map[CommandKind]string{
		CommandEncrypt: "ENCRYPT",
		CommandDecrypt: "DECRYPT",
		CommandExit:    "EXIT",
		CommandUnknown: "UNKNOWN",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
