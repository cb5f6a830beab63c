/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"errors"
	"fmt"
)

// Error kinds. Callers test for them with errors.Is.
var (
	// ErrIO: the sealed config or the local channel could not be read.
	ErrIO = errors.New("i/o error")
	// ErrUnsealFailed covers both a wrong passphrase and a corrupted file.
	ErrUnsealFailed = errors.New("unseal failed")
	// ErrMalformedEnvelope: envelope shorter than iv plus tag.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrAuth: tag verification failed on a well-formed envelope.
	ErrAuth = errors.New("authentication failed")
	// ErrDecode: transport text is not valid standard base64.
	ErrDecode = errors.New("invalid transport encoding")
	// ErrNoPassphrase: the passphrase was empty or missing.
	ErrNoPassphrase = errors.New("no passphrase supplied")
	// ErrKeyNotLoaded: the session key store has not been loaded yet.
	ErrKeyNotLoaded = errors.New("session key not loaded")
	// ErrKeyErased: the session key has been erased.
	ErrKeyErased = errors.New("session key erased")
)

// SanitizeError removes sensitive details for external consumption
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNoPassphrase):
		return errors.New("no passphrase supplied")
	case errors.Is(err, ErrUnsealFailed):
		return errors.New("unseal failed")
	case errors.Is(err, ErrIO):
		return errors.New("sealed config unreadable")
	case errors.Is(err, ErrMalformedEnvelope), errors.Is(err, ErrAuth), errors.Is(err, ErrDecode):
		return errors.New("request rejected")
	case errors.Is(err, ErrKeyNotLoaded), errors.Is(err, ErrKeyErased):
		return errors.New("session key unavailable")
	default:
		return errors.New("broker operation failed")
	}
}

// BrokerError carries the operation and path that failed alongside the
// underlying error kind.
type BrokerError struct {
	Op   string // "unseal", "seal", "listen", ...
	Path string // file or socket path, empty when not applicable
	Err  error
}

func (e *BrokerError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError
func NewBrokerError(op, path string, err error) *BrokerError {
	return &BrokerError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// WrapError adds context to an error
func WrapError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
