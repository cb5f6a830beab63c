/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package client talks to a running keybroker server over its Unix socket.
//
// Each call opens a fresh connection, writes one request line, half-closes
// the write side and reads the reply until the server closes.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// DefaultSocketPath is the well-known address of the broker.
const DefaultSocketPath = "/tmp/protectu84.sock"

const (
	dialTimeout     = 5 * time.Second
	responseTimeout = 30 * time.Second

	// maxResponseSize bounds a reply. Replies are never larger than a
	// base64 envelope of a full frame.
	maxResponseSize = 4 * 1024 * 1024
)

// DefaultMaxPayload is the largest payload a server with the default
// 4096-byte frame receives intact: the frame minus the eight-byte verb.
// The server truncates longer requests without telling the client.
const DefaultMaxPayload = 4096 - len("ENCRYPT ")

var (
	// ErrRejected is returned when the server answers ERR.
	ErrRejected = errors.New("request rejected by broker")
	// ErrNoReply is returned when the server closes without answering.
	ErrNoReply = errors.New("broker closed the connection without a reply")
	// ErrInvalidPayload is returned for payloads that cannot be framed:
	// empty envelopes, line breaks, or more than the payload limit.
	ErrInvalidPayload = errors.New("payload cannot be framed")
)

var errReply = []byte("ERR")

// Client is safe for concurrent use; the server serializes connections.
type Client struct {
	socketPath string
	maxPayload int
}

// Option configures a Client.
type Option func(*Client)

// WithMaxPayload sets the payload limit. It must match the frame size the
// server was started with, minus eight. Non-positive values are ignored.
func WithMaxPayload(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPayload = n
		}
	}
}

// New returns a client for the broker at socketPath. An empty path uses
// DefaultSocketPath.
func New(socketPath string, opts ...Option) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	c := &Client{socketPath: socketPath, maxPayload: DefaultMaxPayload}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SocketPath returns the broker address.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Encrypt seals plaintext under the session key and returns the base64
// envelope. Plaintext longer than the payload limit, or containing line
// breaks, fails with ErrInvalidPayload before anything is sent.
func (c *Client) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	if len(plaintext) > c.maxPayload || bytes.ContainsAny(plaintext, "\r\n") {
		return "", ErrInvalidPayload
	}
	reply, err := c.send(ctx, "ENCRYPT ", plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt via %s: %w", c.socketPath, err)
	}
	switch {
	case len(reply) == 0:
		return "", fmt.Errorf("encrypt via %s: %w", c.socketPath, ErrNoReply)
	case bytes.Equal(reply, errReply):
		return "", fmt.Errorf("encrypt via %s: %w", c.socketPath, ErrRejected)
	}
	return string(reply), nil
}

// Decrypt opens a base64 envelope produced by Encrypt. A reply of exactly
// "ERR" is always reported as ErrRejected.
func (c *Client) Decrypt(ctx context.Context, text string) ([]byte, error) {
	if text == "" || len(text) > c.maxPayload || bytes.ContainsAny([]byte(text), "\r\n") {
		return nil, ErrInvalidPayload
	}
	reply, err := c.send(ctx, "DECRYPT ", []byte(text))
	if err != nil {
		return nil, fmt.Errorf("decrypt via %s: %w", c.socketPath, err)
	}
	if bytes.Equal(reply, errReply) {
		return nil, fmt.Errorf("decrypt via %s: %w", c.socketPath, ErrRejected)
	}
	return reply, nil
}

// Stop asks the server to shut down.
func (c *Client) Stop(ctx context.Context) error {
	if _, err := c.send(ctx, "EXIT", nil); err != nil {
		return fmt.Errorf("stop %s: %w", c.socketPath, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, verb string, payload []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	// Close the connection early if ctx is cancelled mid-exchange.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	frame := make([]byte, 0, len(verb)+len(payload)+1)
	frame = append(frame, verb...)
	frame = append(frame, payload...)
	frame = append(frame, '\n')
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	reply, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	// The server resets connections it closed with input unread, after
	// its reply is already queued.
	if err != nil && !errors.Is(err, syscall.ECONNRESET) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return reply, nil
}
