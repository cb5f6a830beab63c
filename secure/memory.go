/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package secure holds the memory helpers used for key custody: zeroing,
// constant-time comparison, and page locking for buffers that hold key
// material.
package secure

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros. It does not allocate, so it is safe to call
// while tearing down on a termination signal.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	// x ^ x == 0 for every byte; the store goes through an exported crypto
	// routine the compiler cannot prove dead.
	subtle.XORBytes(b, b, b)
	runtime.KeepAlive(b)
}

// IsZero reports whether every byte of b is zero, in constant time.
func IsZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return subtle.ConstantTimeByteEq(acc, 0) == 1
}

// SecureCompare performs constant-time comparison of two byte slices
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
