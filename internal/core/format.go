/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// format.go: Sealed config and envelope layout constants
package core

const (
	// SaltSize is the PBKDF2 salt length stored at the start of a sealed config.
	SaltSize = 16
	// IVSize is the AES-GCM nonce length used by both the sealed config and envelopes.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
	// KeySize is the AES-256 key length, and the length of the sealed identifier.
	KeySize = 32
	// IdentifierSize is the expected plaintext length of a sealed config.
	IdentifierSize = KeySize

	// SealedHeaderSize is the fixed prefix of a sealed config.
	// Layout: [16 bytes salt][16 bytes iv][16 bytes tag][ciphertext...]
	// There is no magic or version byte; the scheme is fixed.
	SealedHeaderSize = SaltSize + IVSize + TagSize

	// EnvelopeOverhead is the fixed prefix of an envelope.
	// Layout: [16 bytes iv][16 bytes tag][ciphertext...]
	EnvelopeOverhead = IVSize + TagSize

	// MaxSealedConfigSize caps how much of a sealed config file is read.
	// Real configs are SealedHeaderSize+IdentifierSize bytes.
	MaxSealedConfigSize = 64 * 1024
)
