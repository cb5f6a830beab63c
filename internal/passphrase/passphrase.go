/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package passphrase acquires the operator passphrase exactly once.
//
// Sources, in order: the KEYBROKER_PASSPHRASE environment variable (removed
// from the environment after reading), the terminal without echo when stdin
// is a terminal, otherwise the first line of stdin.
package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

// EnvVar names the environment variable that overrides interactive input.
const EnvVar = "KEYBROKER_PASSPHRASE"

// MaxLength is the longest passphrase read from stdin; the rest of the
// line is discarded.
const MaxLength = 255

// ErrMismatch is returned when the confirmation differs.
var ErrMismatch = errors.New("passphrases do not match")

// Reader reads a passphrase from the process environment and stdin.
type Reader struct {
	in     io.Reader
	prompt io.Writer

	lookupEnv    func(string) (string, bool)
	unsetEnv     func(string) error
	isTerminal   func() bool
	readPassword func() ([]byte, error)
}

// NewReader reads from in, writing prompts to prompt (normally stderr).
func NewReader(in *os.File, prompt io.Writer) *Reader {
	fd := int(in.Fd())
	return &Reader{
		in:           in,
		prompt:       prompt,
		lookupEnv:    os.LookupEnv,
		unsetEnv:     os.Unsetenv,
		isTerminal:   func() bool { return term.IsTerminal(fd) },
		readPassword: func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

// Interactive reports whether prompts will be shown.
func (r *Reader) Interactive() bool {
	if v, ok := r.lookupEnv(EnvVar); ok && v != "" {
		return false
	}
	return r.isTerminal()
}

// Read returns the passphrase. An empty passphrase is crypto.ErrNoPassphrase.
// The caller zeroes the result after use.
func (r *Reader) Read(prompt string) ([]byte, error) {
	if v, ok := r.lookupEnv(EnvVar); ok && v != "" {
		_ = r.unsetEnv(EnvVar)
		return []byte(v), nil
	}
	return r.readInput(prompt)
}

// ReadWithConfirm is Read, asking twice when reading from a terminal.
func (r *Reader) ReadWithConfirm(prompt, confirmPrompt string) ([]byte, error) {
	if v, ok := r.lookupEnv(EnvVar); ok && v != "" {
		_ = r.unsetEnv(EnvVar)
		return []byte(v), nil
	}
	passphrase, err := r.readInput(prompt)
	if err != nil || !r.isTerminal() {
		return passphrase, err
	}

	confirm, err := r.readInput(confirmPrompt)
	if err != nil {
		secure.Zero(passphrase)
		return nil, err
	}
	defer secure.Zero(confirm)
	if !secure.SecureCompare(passphrase, confirm) {
		secure.Zero(passphrase)
		return nil, ErrMismatch
	}
	return passphrase, nil
}

func (r *Reader) readInput(prompt string) ([]byte, error) {
	var (
		passphrase []byte
		err        error
	)
	if r.isTerminal() {
		fmt.Fprint(r.prompt, prompt)
		passphrase, err = r.readPassword()
		fmt.Fprintln(r.prompt)
	} else {
		passphrase, err = ReadLine(r.in, MaxLength)
	}
	if errors.Is(err, crypto.ErrNoPassphrase) {
		return nil, err
	}
	if err != nil {
		secure.Zero(passphrase)
		return nil, fmt.Errorf("%w: %w", crypto.ErrNoPassphrase, err)
	}
	if len(passphrase) == 0 {
		return nil, crypto.ErrNoPassphrase
	}
	return passphrase, nil
}

// ReadLine reads one line from r a byte at a time, so nothing past the
// newline is consumed and no intermediate buffer holds the secret. At most
// limit bytes are kept; a trailing "\r" is dropped. EOF after at least one
// byte ends the line; EOF before any byte is crypto.ErrNoPassphrase.
func ReadLine(r io.Reader, limit int) ([]byte, error) {
	line := make([]byte, 0, limit)
	var b [1]byte
	sawInput := false
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			sawInput = true
			if b[0] == '\n' {
				break
			}
			if len(line) < limit {
				line = append(line, b[0])
			}
		}
		if errors.Is(err, io.EOF) {
			if !sawInput {
				return nil, crypto.ErrNoPassphrase
			}
			break
		}
		if err != nil {
			secure.Zero(line)
			return nil, err
		}
	}
	b[0] = 0
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line[n-1] = 0
		line = line[:n-1]
	}
	return line, nil
}
