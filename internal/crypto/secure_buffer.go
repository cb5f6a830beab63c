/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"fmt"

	"github.com/gitrgoliveira/go-keybroker/secure"
)

// SecureBuffer is fixed-size storage for key material outside the Go heap.
// It is not safe for concurrent use; owners serialize access.
//
// Wipe and Release are separate steps: Wipe only stores zeros, so it is
// usable from a termination path, while Release returns the mapping.
type SecureBuffer struct {
	buf      []byte
	locked   bool
	wiped    bool
	released bool
}

// NewSecureBuffer allocates a zero-filled buffer of size bytes. Locking
// against swap and exclusion from core dumps are best effort.
func NewSecureBuffer(size int) (*SecureBuffer, error) {
	buf, err := secure.Alloc(size)
	if err != nil {
		return nil, err
	}
	s := &SecureBuffer{buf: buf}
	if err := secure.LockMemory(buf); err == nil {
		s.locked = true
	}
	_ = secure.ExcludeFromDump(buf)
	return s, nil
}

// NewSecureBufferFromBytes copies b into a new SecureBuffer and zeroes b.
func NewSecureBufferFromBytes(b []byte) (*SecureBuffer, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("cannot protect an empty buffer")
	}
	s, err := NewSecureBuffer(len(b))
	if err != nil {
		secure.Zero(b)
		return nil, err
	}
	copy(s.buf, b)
	secure.Zero(b)
	return s, nil
}

// Data returns the buffer contents. The slice aliases protected memory and
// must not be retained. Panics after Release.
func (s *SecureBuffer) Data() []byte {
	if s.released {
		panic("crypto: read from released SecureBuffer")
	}
	return s.buf
}

// Len returns the buffer size.
func (s *SecureBuffer) Len() int {
	return len(s.buf)
}

// Locked reports whether mlock succeeded for this buffer.
func (s *SecureBuffer) Locked() bool {
	return s.locked
}

// Wiped reports whether Wipe has run.
func (s *SecureBuffer) Wiped() bool {
	return s.wiped
}

// Wipe zeroes the contents in place. It is idempotent and does not allocate.
func (s *SecureBuffer) Wipe() {
	if s.released {
		return
	}
	secure.Zero(s.buf)
	s.wiped = true
}

// Release wipes the buffer, then unlocks and unmaps it. Idempotent.
func (s *SecureBuffer) Release() error {
	if s.released {
		return nil
	}
	s.Wipe()
	s.released = true

	var firstErr error
	if s.locked {
		if err := secure.UnlockMemory(s.buf); err != nil {
			firstErr = fmt.Errorf("munlock failed: %w", err)
		}
	}
	if err := secure.Free(s.buf); err != nil && firstErr == nil {
		firstErr = err
	}
	s.buf = nil
	return firstErr
}
