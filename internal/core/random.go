/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"crypto/rand"
	"io"
)

// randReader supplies salts, ivs and identifiers. Only the testhooks build
// replaces it.
var randReader io.Reader = rand.Reader

func readRandom(b []byte) error {
	_, err := io.ReadFull(randReader, b)
	return err
}
