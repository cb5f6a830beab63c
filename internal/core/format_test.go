/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"testing"
)

func TestFormatConstants(t *testing.T) {
	if SaltSize != 16 || IVSize != 16 || TagSize != 16 {
		t.Fatalf("unexpected field sizes: salt=%d iv=%d tag=%d", SaltSize, IVSize, TagSize)
	}
	if KeySize != 32 || IdentifierSize != 32 {
		t.Fatalf("unexpected key sizes: key=%d identifier=%d", KeySize, IdentifierSize)
	}
	if SealedHeaderSize != 48 {
		t.Fatalf("unexpected SealedHeaderSize: %d", SealedHeaderSize)
	}
	if EnvelopeOverhead != 32 {
		t.Fatalf("unexpected EnvelopeOverhead: %d", EnvelopeOverhead)
	}
	if PBKDF2Iterations != 100000 {
		t.Fatalf("unexpected PBKDF2Iterations: %d", PBKDF2Iterations)
	}
}

func TestFormatLayout(t *testing.T) {
	identifier := make([]byte, IdentifierSize)
	blob, err := SealConfig(identifier, []byte("layout"))
	if err != nil {
		t.Fatalf("SealConfig failed: %v", err)
	}
	if len(blob) != SealedHeaderSize+IdentifierSize {
		t.Fatalf("sealed config length = %d, want %d", len(blob), SealedHeaderSize+IdentifierSize)
	}

	tr := newTestTranscoder(t)
	envelope, err := tr.Seal([]byte("abc"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(envelope) != EnvelopeOverhead+3 {
		t.Fatalf("envelope length = %d, want %d", len(envelope), EnvelopeOverhead+3)
	}
}
