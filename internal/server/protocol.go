/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// CommandKind identifies a parsed request line.
type CommandKind uint8

const (
	CommandUnknown CommandKind = iota
	CommandEncrypt
	CommandDecrypt
	CommandExit
)

// String returns the protocol verb.
func (k CommandKind) String() string {
	switch k {
	case CommandEncrypt:
		return "ENCRYPT"
	case CommandDecrypt:
		return "DECRYPT"
	case CommandExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// Command is one request. Payload aliases the frame it was parsed from.
type Command struct {
	Kind    CommandKind
	Payload []byte
}

var (
	prefixEncrypt = []byte("ENCRYPT ")
	prefixDecrypt = []byte("DECRYPT ")
	verbExit      = []byte("EXIT")

	// errReply is the literal written to a client whose request failed.
	errReply = []byte("ERR")
)

// ParseCommand parses a request line with its terminator already removed.
// Verbs are case-sensitive. The payload is everything after the single
// separating space, possibly empty.
func ParseCommand(line []byte) Command {
	switch {
	case bytes.HasPrefix(line, prefixEncrypt):
		return Command{Kind: CommandEncrypt, Payload: line[len(prefixEncrypt):]}
	case bytes.HasPrefix(line, prefixDecrypt):
		return Command{Kind: CommandDecrypt, Payload: line[len(prefixDecrypt):]}
	case bytes.Equal(line, verbExit):
		return Command{Kind: CommandExit}
	default:
		return Command{Kind: CommandUnknown}
	}
}

// readFrame reads one request line of at most limit bytes. Input past the
// limit is left unread. A peer that closes without a newline still yields
// whatever it sent; a read error before EOF yields nothing.
func readFrame(r io.Reader, limit int) ([]byte, error) {
	br := bufio.NewReaderSize(io.LimitReader(r, int64(limit)), min(limit, 4096))
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return trimLineEnding(line), nil
}

func trimLineEnding(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}
