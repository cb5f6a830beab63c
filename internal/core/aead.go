/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// aead.go: AES-256-GCM with 16-byte nonces and tag-before-ciphertext layout
package core

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

// newGCM builds AES-256-GCM with the IVSize nonce used by every layout here.
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: must be %d bytes for AES-256, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, crypto.WrapError("create cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, crypto.WrapError("create GCM", err)
	}
	return gcm, nil
}

// sealTagFirst encrypts plaintext with no associated data and returns
// tag ‖ ciphertext. Go's AEAD appends the tag; both stored layouts put it first.
func sealTagFirst(gcm cipher.AEAD, iv, plaintext []byte) []byte {
	out := gcm.Seal(nil, iv, plaintext, nil) // #nosec G407 -- iv is drawn from crypto/rand by every caller
	n := len(plaintext)
	result := make([]byte, TagSize+n)
	copy(result, out[n:])
	copy(result[TagSize:], out[:n])
	return result
}

// openTagFirst verifies tag over ciphertext and decrypts it. On failure the
// scratch buffer is zeroed and no plaintext is returned.
func openTagFirst(gcm cipher.AEAD, iv, tag, ciphertext []byte) ([]byte, error) {
	buf := make([]byte, len(ciphertext)+TagSize)
	copy(buf, ciphertext)
	copy(buf[len(ciphertext):], tag)

	plaintext, err := gcm.Open(buf[:0], iv, buf, nil)
	if err != nil {
		secure.Zero(buf)
		return nil, err
	}
	return plaintext, nil
}
