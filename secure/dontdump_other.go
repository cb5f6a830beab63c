//go:build !linux

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package secure

// ExcludeFromDump is a no-op where MADV_DONTDUMP does not exist.
func ExcludeFromDump(b []byte) error {
	return nil
}
