//go:build unix

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package secure

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Alloc maps size bytes of anonymous memory outside the Go heap. The garbage
// collector never moves or copies it, so zeroing it really removes the data.
// Release it with Free.
func Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secure: allocation size must be positive, got %d", size)
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("secure: mmap failed: %w", err)
	}
	return b, nil
}

// Free unmaps memory returned by Alloc. The caller zeroes it first.
func Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("secure: munmap failed: %w", err)
	}
	return nil
}

// LockMemory uses mlock for Unix/macOS
func LockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

// UnlockMemory uses munlock for Unix/macOS
func UnlockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}
