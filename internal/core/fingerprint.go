/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// fingerprint.go: Non-secret digest of a sealed config, for audit logs
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/gitrgoliveira/go-keybroker/secure"
)

// Fingerprint computes the SHA-256 digest of the sealed config at path. The
// file is ciphertext, so its digest reveals nothing about the identifier.
func Fingerprint(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// FingerprintHex is Fingerprint as a lowercase hex string.
func FingerprintHex(path string) (string, error) {
	sum, err := Fingerprint(path)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// VerifyFingerprintHex reports whether the file at path has the given
// hex-encoded fingerprint.
func VerifyFingerprintHex(path string, hexSum string) (bool, error) {
	sum, err := hex.DecodeString(hexSum)
	if err != nil {
		return false, fmt.Errorf("invalid hex fingerprint: %w", err)
	}
	actual, err := Fingerprint(path)
	if err != nil {
		return false, err
	}
	return secure.SecureCompare(actual, sum), nil
}
