/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// text.go: Printable transport form of envelopes
package core

import (
	"encoding/base64"
	"fmt"
	"strings"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
)

// textEncoding is padded standard base64. Strict rejects non-zero trailing
// bits, so every accepted string has exactly one decoding.
var textEncoding = base64.StdEncoding.Strict()

// ToText encodes b as a single line of standard base64.
func ToText(b []byte) string {
	return textEncoding.EncodeToString(b)
}

// FromText decodes standard base64. Invalid characters, bad padding and
// line breaks fail with crypto.ErrDecode.
func FromText(s string) ([]byte, error) {
	// The decoder silently skips CR and LF; the transport forbids them.
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("%w: embedded line break", crypto.ErrDecode)
	}
	b, err := textEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrDecode, err)
	}
	return b, nil
}
