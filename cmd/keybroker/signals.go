/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// watchSignals takes over SIGINT and SIGTERM and calls onSignal for the
// first one. If the command is still running shutdownGrace later, cleanup
// (when non-nil) runs and the process exits 0.
//
// stop must be called before the command returns. It waits for an
// in-progress onSignal to finish.
func (a *app) watchSignals(logger *slog.Logger, onSignal, cleanup func()) (stop func()) {
	signals := a.signals
	var notified chan os.Signal
	if signals == nil {
		notified = make(chan os.Signal, 1)
		signal.Notify(notified, syscall.SIGINT, syscall.SIGTERM)
		signals = notified
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case sig := <-signals:
			onSignal()
			logger.Info("received shutdown signal", "signal", sig.String())
			timer := time.AfterFunc(shutdownGrace, func() {
				if cleanup != nil {
					cleanup()
				}
				a.exit(exitOK)
			})
			<-done
			timer.Stop()
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-finished
		if notified != nil {
			signal.Stop(notified)
		}
	}
}
