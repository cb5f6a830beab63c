/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// sealed.go: Sealed config codec
package core

import (
	"fmt"
	"io"
	"os"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

// Unseal reads the sealed config at path and returns the 32-byte identifier
// it protects. The caller owns the result and must zero it.
//
// Errors wrap crypto.ErrIO when the file cannot be read, is shorter than
// SealedHeaderSize or is longer than MaxSealedConfigSize. They wrap
// crypto.ErrNoPassphrase for an empty passphrase and crypto.ErrUnsealFailed
// for everything that happens after key derivation.
// A wrong passphrase and a corrupted file are indistinguishable.
func Unseal(path string, passphrase []byte) ([]byte, error) {
	data, err := readSealedConfig(path)
	if err != nil {
		return nil, crypto.NewBrokerError("unseal", path, fmt.Errorf("%w: %w", crypto.ErrIO, err))
	}

	identifier, err := UnsealBytes(data, passphrase)
	if err != nil {
		return nil, crypto.NewBrokerError("unseal", path, err)
	}
	return identifier, nil
}

// readSealedConfig reads at most MaxSealedConfigSize bytes from path, so a
// device or an endless pipe cannot grow memory without bound.
func readSealedConfig(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSealedConfigSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSealedConfigSize {
		return nil, fmt.Errorf("sealed config exceeds %d bytes", MaxSealedConfigSize)
	}
	return data, nil
}

// UnsealBytes is Unseal over an in-memory sealed config.
func UnsealBytes(data, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, crypto.ErrNoPassphrase
	}
	if len(data) < SealedHeaderSize {
		return nil, fmt.Errorf("%w: sealed config is %d bytes, need at least %d", crypto.ErrIO, len(data), SealedHeaderSize)
	}

	salt := data[:SaltSize]
	iv := data[SaltSize : SaltSize+IVSize]
	tag := data[SaltSize+IVSize : SealedHeaderSize]
	ciphertext := data[SealedHeaderSize:]

	key, err := DeriveKeyPBKDF2(passphrase, salt, PBKDF2Iterations, KeySize)
	if err != nil {
		return nil, crypto.WrapError("derive key", err)
	}
	defer secure.Zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, crypto.ErrUnsealFailed
	}

	plaintext, err := openTagFirst(gcm, iv, tag, ciphertext)
	if err != nil {
		return nil, crypto.ErrUnsealFailed
	}
	if len(plaintext) != IdentifierSize {
		secure.Zero(plaintext)
		return nil, crypto.ErrUnsealFailed
	}
	return plaintext, nil
}

// SealConfig produces a sealed config protecting identifier under a key
// derived from passphrase, with fresh random salt and iv.
func SealConfig(identifier, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, crypto.ErrNoPassphrase
	}
	if len(identifier) != IdentifierSize {
		return nil, fmt.Errorf("identifier must be %d bytes, got %d", IdentifierSize, len(identifier))
	}

	salt, err := GenerateSalt(SaltSize)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, IVSize)
	if err := readRandom(iv); err != nil {
		return nil, crypto.WrapError("generate iv", err)
	}

	key, err := DeriveKeyPBKDF2(passphrase, salt, PBKDF2Iterations, KeySize)
	if err != nil {
		return nil, crypto.WrapError("derive key", err)
	}
	defer secure.Zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, SealedHeaderSize+len(identifier))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, sealTagFirst(gcm, iv, identifier)...)
	return blob, nil
}

// WriteSealedConfig seals identifier and writes the result to path with mode
// 0600. An existing file is never overwritten.
func WriteSealedConfig(path string, identifier, passphrase []byte) (err error) {
	blob, err := SealConfig(identifier, passphrase)
	if err != nil {
		return crypto.NewBrokerError("seal", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return crypto.NewBrokerError("seal", path, fmt.Errorf("%w: %w", crypto.ErrIO, err))
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = crypto.NewBrokerError("seal", path, fmt.Errorf("%w: %w", crypto.ErrIO, closeErr))
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err := f.Write(blob); err != nil {
		return crypto.NewBrokerError("seal", path, fmt.Errorf("%w: %w", crypto.ErrIO, err))
	}
	if err := f.Sync(); err != nil {
		return crypto.NewBrokerError("seal", path, fmt.Errorf("%w: %w", crypto.ErrIO, err))
	}
	return nil
}
