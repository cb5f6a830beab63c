/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package keybroker unseals a passphrase-protected identifier and serves
// authenticated encryption under it to local clients.
//
// A sealed config is a small binary file:
//
//	[16 bytes salt][16 bytes iv][16 bytes tag][ciphertext]
//
// The key is PBKDF2-HMAC-SHA256 (100,000 iterations) over the passphrase and
// salt; the ciphertext is AES-256-GCM with a 16-byte nonce and no associated
// data. Its plaintext is a 32-byte identifier, which becomes the session key.
//
// # Unsealing
//
//	identifier, err := keybroker.Unseal("identity.sealed", passphrase)
//	secure.Zero(passphrase)
//	if err != nil {
//	    // errors.Is(err, keybroker.ErrUnsealFailed) covers both a wrong
//	    // passphrase and a damaged file.
//	}
//
// # Session key and envelopes
//
//	store := keybroker.NewStore()
//	defer store.Close()
//	if err := store.Load(identifier); err != nil { // zeroes identifier
//	    return err
//	}
//	tc := keybroker.NewTranscoder(store)
//	envelope, _ := tc.Seal([]byte("hello")) // [16 iv][16 tag][ciphertext]
//	text := keybroker.ToText(envelope)      // base64, one line
//
// # Serving
//
//	srv, _ := keybroker.NewServer(keybroker.DefaultSocketPath, tc)
//	err := srv.Serve(ctx) // returns on EXIT or when ctx is cancelled
//
// Clients use package client. The server reads one line per connection:
// "ENCRYPT <bytes>", "DECRYPT <base64>" or "EXIT".
//
// # Security Considerations
//
//   - Store.Erase zeroes the key in place and is safe to call from a
//     signal handler goroutine; call Close on every exit path.
//   - The socket is created mode 0600. Anyone who can connect can use the key.
//   - Decryption failures reply "ERR" without saying why.
package keybroker

import (
	"github.com/gitrgoliveira/go-keybroker/internal/core"
	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
	"github.com/gitrgoliveira/go-keybroker/internal/server"
	"github.com/gitrgoliveira/go-keybroker/internal/session"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

// Re-export format constants from internal/core
const (
	SaltSize            = core.SaltSize
	IVSize              = core.IVSize
	TagSize             = core.TagSize
	KeySize             = core.KeySize
	IdentifierSize      = core.IdentifierSize
	SealedHeaderSize    = core.SealedHeaderSize
	EnvelopeOverhead    = core.EnvelopeOverhead
	PBKDF2Iterations    = core.PBKDF2Iterations
	MaxSealedConfigSize = core.MaxSealedConfigSize
)

// DefaultSocketPath is the broker's well-known address.
const DefaultSocketPath = "/tmp/protectu84.sock"

// Error kinds (re-exported from internal/crypto).
var (
	ErrIO                = crypto.ErrIO
	ErrUnsealFailed      = crypto.ErrUnsealFailed
	ErrMalformedEnvelope = crypto.ErrMalformedEnvelope
	ErrAuth              = crypto.ErrAuth
	ErrDecode            = crypto.ErrDecode
	ErrNoPassphrase      = crypto.ErrNoPassphrase
	ErrKeyNotLoaded      = crypto.ErrKeyNotLoaded
	ErrKeyErased         = crypto.ErrKeyErased
)

// BrokerError carries the failing operation and path.
type BrokerError = crypto.BrokerError

// SanitizeError maps err to a message safe to show an operator.
var SanitizeError = crypto.SanitizeError

// Sealed config codec.
var (
	Unseal            = core.Unseal
	UnsealBytes       = core.UnsealBytes
	SealConfig        = core.SealConfig
	WriteSealedConfig = core.WriteSealedConfig
)

// Key helpers.
var (
	DeriveKeyPBKDF2    = core.DeriveKeyPBKDF2
	GenerateSalt       = core.GenerateSalt
	GenerateIdentifier = core.GenerateIdentifier
)

// Re-export fingerprint helpers so callers can audit which sealed file was used.
var (
	Fingerprint          = core.Fingerprint
	FingerprintHex       = core.FingerprintHex
	VerifyFingerprintHex = core.VerifyFingerprintHex
)

// Text transport codec.
var (
	ToText   = core.ToText
	FromText = core.FromText
)

// Store owns the session key.
type Store = session.Store

// NewStore returns an empty session key store.
func NewStore() *Store {
	return session.NewStore()
}

// KeySource lends a key to a Transcoder. *Store implements it.
type KeySource = core.KeySource

// Transcoder seals and opens envelopes under a session key.
type Transcoder = core.Transcoder

// NewTranscoder returns a Transcoder reading its key from keys.
func NewTranscoder(keys KeySource) *Transcoder {
	return core.NewTranscoder(keys)
}

// Server is the local request server.
type Server = server.Server

// ServerOption configures a Server (re-exported from internal/server).
type ServerOption = server.Option

// Server options.
var (
	WithMaxFrameSize = server.WithMaxFrameSize
	WithReadTimeout  = server.WithReadTimeout
	WithWriteTimeout = server.WithWriteTimeout
	WithLogger       = server.WithLogger
	WithOnReady      = server.WithOnReady
)

// NewServer creates a request server on socketPath backed by tc.
func NewServer(socketPath string, tc *Transcoder, opts ...ServerOption) (*Server, error) {
	if tc == nil {
		return server.New(socketPath, nil, opts...)
	}
	return server.New(socketPath, tc, opts...)
}

// ZeroKey securely zeroes a key or passphrase slice.
var ZeroKey = secure.Zero
