/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// key.go: Key derivation and random material for sealed configs
package core

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the iteration count the sealed config format is
	// produced with. It is not stored in the file, so it cannot change
	// without breaking existing configs.
	PBKDF2Iterations = 100000

	// MinPBKDF2Iterations is the lowest count DeriveKeyPBKDF2 accepts.
	MinPBKDF2Iterations = PBKDF2Iterations
)

// DeriveKeyPBKDF2 derives a key from a password using PBKDF2-HMAC-SHA256.
// Returns the derived key. The caller must securely zero the key after use.
//
// Parameters:
//   - password: The password bytes (will not be modified)
//   - salt: The salt bytes (must be at least 16 bytes)
//   - iterations: Number of iterations (must be >= MinPBKDF2Iterations)
//   - keyLen: Length of the derived key in bytes (typically 32 for AES-256)
func DeriveKeyPBKDF2(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("password cannot be empty")
	}

	if len(salt) < SaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", SaltSize, len(salt))
	}

	if iterations < MinPBKDF2Iterations {
		return nil, fmt.Errorf("iterations must be at least %d, got %d", MinPBKDF2Iterations, iterations)
	}

	if keyLen <= 0 || keyLen > 128 {
		return nil, fmt.Errorf("keyLen must be between 1 and 128 bytes, got %d", keyLen)
	}

	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt(size int) ([]byte, error) {
	if size < SaltSize {
		return nil, fmt.Errorf("salt size must be at least %d bytes, got %d", SaltSize, size)
	}

	salt := make([]byte, size)
	if err := readRandom(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return salt, nil
}

// GenerateIdentifier returns a fresh random 32-byte identifier for a new
// sealed config. The caller must zero it after sealing.
func GenerateIdentifier() ([]byte, error) {
	id := make([]byte, IdentifierSize)
	if err := readRandom(id); err != nil {
		return nil, fmt.Errorf("failed to generate identifier: %w", err)
	}
	return id, nil
}
