/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package server implements the local request server: a Unix socket that
// seals and opens payloads under the session key, one connection at a time.
//
// Each connection carries exactly one request line:
//
//	ENCRYPT <bytes>\n   -> base64 envelope
//	DECRYPT <base64>\n  -> raw plaintext, or ERR
//	EXIT\n              -> server stops
//
// Anything else closes the connection without a reply.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/gitrgoliveira/go-keybroker/internal/core"
	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

// Transcoder seals and opens envelopes. *core.Transcoder implements it.
type Transcoder interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(envelope []byte) ([]byte, error)
}

// State is the server lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateHandling
	StateStopped
)

// String returns the state name.
func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateHandling:
		return "handling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server serves the request protocol on a single goroutine.
type Server struct {
	socketPath string
	transcoder Transcoder
	cfg        Config
	logger     *slog.Logger

	state   atomic.Int32
	started atomic.Bool
}

// New creates a server for socketPath. Nothing is bound until Serve.
func New(socketPath string, transcoder Transcoder, opts ...Option) (*Server, error) {
	if socketPath == "" {
		return nil, errors.New("socket path is required")
	}
	if transcoder == nil {
		return nil, errors.New("transcoder is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		socketPath: socketPath,
		transcoder: transcoder,
		cfg:        cfg,
		logger:     cfg.Logger,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// State returns the current lifecycle state. Safe from any goroutine.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Serve listens on the socket and handles connections until a client sends
// EXIT or ctx is cancelled, then returns nil. A connection being handled
// when ctx is cancelled runs to completion first. Any stale socket file is
// replaced on start, and the socket file is removed on return.
//
// Serve may be called once.
func (s *Server) Serve(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("server: Serve called more than once")
	}
	defer s.state.Store(int32(StateStopped))

	if ctx.Err() != nil {
		return nil
	}
	if err := removeStaleSocket(s.socketPath); err != nil {
		return crypto.NewBrokerError("listen", s.socketPath, fmt.Errorf("%w: %w", crypto.ErrIO, err))
	}
	listener, err := listenUnix(s.socketPath, Backlog)
	if err != nil {
		return crypto.NewBrokerError("listen", s.socketPath, fmt.Errorf("%w: %w", crypto.ErrIO, err))
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()
	return s.serve(ctx, listener)
}

// serve runs the accept loop on listener, which it closes when ctx is
// cancelled.
func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	// Unblock Accept when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-done:
		}
	}()

	// A cancellation that raced with binding must not announce readiness.
	if ctx.Err() != nil {
		s.logger.Info("request server stopped", "reason", "shutdown")
		return nil
	}
	s.state.Store(int32(StateListening))
	s.logger.Info("request server listening", "path", s.socketPath, "max_frame", s.cfg.MaxFrameSize)
	if s.cfg.OnReady != nil {
		s.cfg.OnReady(s.socketPath)
	}

	var retryDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("request server stopped", "reason", "shutdown")
				return nil
			}
			retryDelay = nextAcceptDelay(retryDelay)
			s.logger.Error("accept failed", "error", err, "retry_in", retryDelay)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
			continue
		}
		retryDelay = 0

		s.state.Store(int32(StateHandling))
		if s.handleConnection(conn) {
			s.logger.Info("request server stopped", "reason", "exit command")
			return nil
		}
		s.state.Store(int32(StateListening))
	}
}

// Accept retry delays double from minAcceptDelay up to maxAcceptDelay, as
// net/http does for temporary errors.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(2*prev, maxAcceptDelay)
}

// handleConnection serves one request and closes conn. It reports whether
// the client asked the server to stop.
func (s *Server) handleConnection(conn net.Conn) (exit bool) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request handler panicked", "panic", r)
			exit = false
		}
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	frame, err := readFrame(conn, s.cfg.MaxFrameSize)
	if err != nil {
		s.logger.Debug("request read failed", "error", err)
		return false
	}
	defer secure.Zero(frame)

	cmd := ParseCommand(frame)
	var reply []byte
	switch cmd.Kind {
	case CommandExit:
		return true
	case CommandEncrypt:
		reply = s.encrypt(cmd.Payload)
	case CommandDecrypt:
		plaintext, ok := s.decrypt(cmd.Payload)
		if !ok {
			reply = errReply
			break
		}
		defer secure.Zero(plaintext)
		reply = plaintext
	default:
		if len(frame) > 0 {
			s.logger.Debug("unrecognized request dropped", "bytes", len(frame))
		}
		return false
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := conn.Write(reply); err != nil {
		s.logger.Debug("response write failed", "command", cmd.Kind.String(), "error", err)
	}
	return false
}

func (s *Server) encrypt(payload []byte) []byte {
	envelope, err := s.transcoder.Seal(payload)
	if err != nil {
		s.logger.Debug("seal failed", "error", err)
		return errReply
	}
	return []byte(core.ToText(envelope))
}

func (s *Server) decrypt(payload []byte) ([]byte, bool) {
	envelope, err := core.FromText(string(payload))
	if err == nil {
		var plaintext []byte
		if plaintext, err = s.transcoder.Open(envelope); err == nil {
			return plaintext, true
		}
	}
	s.logger.Debug("request rejected", "command", "DECRYPT", "error", err)
	return nil, false
}

// removeStaleSocket deletes a leftover socket at path. Anything other than
// a socket is left alone and reported.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode().Type() != fs.ModeSocket {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}
