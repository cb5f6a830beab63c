//go:build linux

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package secure

import "golang.org/x/sys/unix"

// ExcludeFromDump marks b with MADV_DONTDUMP so it never lands in a core file.
// b must be page-aligned memory from Alloc.
func ExcludeFromDump(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Madvise(b, unix.MADV_DONTDUMP)
}
