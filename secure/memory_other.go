//go:build !unix

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package secure

import "fmt"

// Alloc falls back to a heap slice where anonymous mappings are unavailable.
func Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secure: allocation size must be positive, got %d", size)
	}
	return make([]byte, size), nil
}

// Free is a no-op for heap-backed buffers; the caller has already zeroed b.
func Free(b []byte) error {
	return nil
}

// LockMemory is a no-op on this platform
func LockMemory(b []byte) error {
	return nil
}

// UnlockMemory is a no-op on this platform
func UnlockMemory(b []byte) error {
	return nil
}
