/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// transcoder.go: One-shot authenticated encryption under the session key
package core

import (
	"fmt"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
)

// KeySource lends the session key to fn for the duration of the call.
// *session.Store implements it.
type KeySource interface {
	WithKey(fn func(key []byte) error) error
}

// Transcoder seals and opens envelopes under a session key. It only reads
// the key and holds no other state, so one Transcoder serves the whole
// process.
type Transcoder struct {
	keys KeySource
}

// NewTranscoder returns a Transcoder that borrows its key from keys.
func NewTranscoder(keys KeySource) *Transcoder {
	return &Transcoder{keys: keys}
}

// Seal encrypts plaintext under a fresh random iv and returns the envelope
// iv ‖ tag ‖ ciphertext.
func (t *Transcoder) Seal(plaintext []byte) ([]byte, error) {
	iv := make([]byte, IVSize)
	if err := readRandom(iv); err != nil {
		return nil, crypto.WrapError("generate iv", err)
	}

	var body []byte
	err := t.keys.WithKey(func(key []byte) error {
		gcm, err := newGCM(key)
		if err != nil {
			return err
		}
		body = sealTagFirst(gcm, iv, plaintext)
		return nil
	})
	if err != nil {
		return nil, crypto.NewBrokerError("seal", "", err)
	}

	envelope := make([]byte, 0, IVSize+len(body))
	envelope = append(envelope, iv...)
	envelope = append(envelope, body...)
	return envelope, nil
}

// Open verifies and decrypts an envelope produced by Seal. Envelopes shorter
// than EnvelopeOverhead fail with crypto.ErrMalformedEnvelope; a tag mismatch
// fails with crypto.ErrAuth and releases no plaintext.
func (t *Transcoder) Open(envelope []byte) ([]byte, error) {
	if len(envelope) < EnvelopeOverhead {
		return nil, crypto.NewBrokerError("open", "",
			fmt.Errorf("%w: %d bytes, need at least %d", crypto.ErrMalformedEnvelope, len(envelope), EnvelopeOverhead))
	}

	iv := envelope[:IVSize]
	tag := envelope[IVSize:EnvelopeOverhead]
	ciphertext := envelope[EnvelopeOverhead:]

	var plaintext []byte
	err := t.keys.WithKey(func(key []byte) error {
		gcm, err := newGCM(key)
		if err != nil {
			return err
		}
		plaintext, err = openTagFirst(gcm, iv, tag, ciphertext)
		if err != nil {
			return crypto.ErrAuth
		}
		return nil
	})
	if err != nil {
		return nil, crypto.NewBrokerError("open", "", err)
	}
	return plaintext, nil
}
