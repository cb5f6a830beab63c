/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package session owns the session key for the lifetime of the process.
//
// A Store is loaded exactly once with the identifier recovered from the
// sealed config. Cryptographic code borrows the key through WithKey; the
// key never leaves the store otherwise. Erase zeroes the key in place and
// is safe to call from a signal-handling goroutine, any number of times.
package session

import (
	"fmt"
	"sync"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
)

// KeySize is the length of the session key.
const KeySize = 32

// Store holds the session key in protected memory.
type Store struct {
	mu     sync.Mutex
	key    *crypto.SecureBuffer
	loaded bool
	erased bool
	closed bool
}

// NewStore returns an empty store. Load it once with the unsealed identifier.
func NewStore() *Store {
	return &Store{}
}

// Load moves identifier into protected memory and zeroes the caller's slice.
// Loading a store twice means two keys are in play for one process, which is
// a programming error, so it panics.
func (s *Store) Load(identifier []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		panic("session: Store.Load called twice")
	}
	if len(identifier) != KeySize {
		return fmt.Errorf("session key must be %d bytes, got %d", KeySize, len(identifier))
	}
	if s.erased || s.closed {
		return crypto.ErrKeyErased
	}

	key, err := crypto.NewSecureBufferFromBytes(identifier)
	if err != nil {
		return crypto.WrapError("protect session key", err)
	}
	s.key = key
	s.loaded = true
	return nil
}

// Locked reports whether the key memory is locked against swapping.
func (s *Store) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != nil && s.key.Locked()
}

// WithKey calls fn with read access to the key. The slice is only valid
// inside fn and must not be modified or retained. Erase blocks until fn
// returns, so an erase never lands in the middle of an operation.
func (s *Store) WithKey(fn func(key []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.erased || s.closed:
		return crypto.ErrKeyErased
	case !s.loaded:
		return crypto.ErrKeyNotLoaded
	}
	return fn(s.key.Data())
}

// Erase overwrites the key with zeros. It does not allocate and is
// idempotent. Every later WithKey fails with crypto.ErrKeyErased.
func (s *Store) Erase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eraseLocked()
}

func (s *Store) eraseLocked() {
	if s.key != nil {
		s.key.Wipe()
	}
	s.erased = true
}

// Erased reports whether Erase or Close has run.
func (s *Store) Erased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.erased
}

// Close erases the key and releases its memory. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.eraseLocked()
	s.closed = true
	if s.key == nil {
		return nil
	}
	return s.key.Release()
}
