/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// keybroker unseals a passphrase-protected identifier.
//
// One-shot mode (default) prints the identifier as lowercase hex and exits.
// Server mode (--server) keeps it as the session key and serves ENCRYPT and
// DECRYPT requests on a Unix socket until EXIT or SIGINT/SIGTERM. Seal mode
// (--seal) writes a new sealed config.
//
// The passphrase comes from KEYBROKER_PASSPHRASE, the terminal, or the first
// line of stdin, in that order.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitNoPassphrase = 2
	exitUnsealFailed = 3
	exitIOFailure    = 4
)

// shutdownGrace bounds teardown after a termination signal.
var shutdownGrace = 5 * time.Second

func main() {
	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		exit:   os.Exit,
	}
	if err := a.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "keybroker: %v\n", err)
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		os.Exit(exitFailure)
	}
}

// exitError carries a process exit code and an operator-safe message.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

// fail maps a broker error to its exit code and a sanitized message.
func fail(err error) error {
	if err == nil {
		return nil
	}
	var already *exitError
	if errors.As(err, &already) {
		return err
	}
	return &exitError{code: exitCodeFor(err), msg: crypto.SanitizeError(err).Error(), err: err}
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, crypto.ErrNoPassphrase):
		return exitNoPassphrase
	case errors.Is(err, crypto.ErrUnsealFailed):
		return exitUnsealFailed
	case errors.Is(err, crypto.ErrIO):
		return exitIOFailure
	default:
		return exitFailure
	}
}

func usageError(format string, args ...any) error {
	return &exitError{code: exitFailure, msg: fmt.Sprintf(format, args...)}
}

// app holds the process handles so tests can drive run directly.
type app struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	// signals overrides os/signal delivery when non-nil.
	signals <-chan os.Signal
	exit    func(int)
}
