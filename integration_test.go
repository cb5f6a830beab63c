//go:build unix

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package keybroker_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gitrgoliveira/go-keybroker"
	"github.com/gitrgoliveira/go-keybroker/client"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

func sealTestConfig(t *testing.T, passphrase string) (path string, identifier []byte) {
	t.Helper()
	identifier, err := keybroker.GenerateIdentifier()
	if err != nil {
		t.Fatalf("Failed to generate identifier: %v", err)
	}
	path = filepath.Join(t.TempDir(), "identity.sealed")
	if err := keybroker.WriteSealedConfig(path, identifier, []byte(passphrase)); err != nil {
		t.Fatalf("WriteSealedConfig failed: %v", err)
	}
	return path, identifier
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "kbi")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "broker.sock")
}

func TestIntegration_FullWorkflow(t *testing.T) {
	ctx := context.Background()
	sealedPath, want := sealTestConfig(t, "correct horse battery staple")

	// Unseal
	passphrase := []byte("correct horse battery staple")
	identifier, err := keybroker.Unseal(sealedPath, passphrase)
	secure.Zero(passphrase)
	if err != nil {
		t.Fatalf("Unseal failed: %v", err)
	}
	if !bytes.Equal(identifier, want) {
		t.Fatal("unsealed identifier does not match")
	}

	// Load the session key
	store := keybroker.NewStore()
	defer store.Close()
	if err := store.Load(identifier); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !secure.IsZero(identifier) {
		t.Error("Load did not zero the unsealed identifier")
	}

	// Serve
	socketPath := shortSocketPath(t)
	ready := make(chan struct{})
	srv, err := keybroker.NewServer(socketPath, keybroker.NewTranscoder(store),
		keybroker.WithOnReady(func(string) { close(ready) }))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	<-ready

	// Round trip through the client
	c := client.New(socketPath)
	text, err := c.Encrypt(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	envelope, err := keybroker.FromText(text)
	if err != nil {
		t.Fatalf("FromText failed: %v", err)
	}
	if len(envelope) != keybroker.EnvelopeOverhead+5 {
		t.Errorf("envelope length = %d, want %d", len(envelope), keybroker.EnvelopeOverhead+5)
	}
	plaintext, err := c.Decrypt(ctx, text)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(plaintext) != "hello" {
		t.Errorf("Decrypt = %q, want hello", plaintext)
	}

	// Stop and erase
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after EXIT")
	}
	store.Erase()
	if !store.Erased() {
		t.Error("store not erased")
	}

	t.Log("Full workflow test passed: seal → unseal → load → serve → encrypt → decrypt → exit → erase")
}

func TestIntegration_EnvelopesSurviveRestart(t *testing.T) {
	sealedPath, _ := sealTestConfig(t, "restart")

	sealWith := func() *keybroker.Transcoder {
		identifier, err := keybroker.Unseal(sealedPath, []byte("restart"))
		if err != nil {
			t.Fatalf("Unseal failed: %v", err)
		}
		store := keybroker.NewStore()
		t.Cleanup(func() { _ = store.Close() })
		if err := store.Load(identifier); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return keybroker.NewTranscoder(store)
	}

	envelope, err := sealWith().Seal([]byte("persisted"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	// A second process unsealing the same config opens the envelope.
	plaintext, err := sealWith().Open(envelope)
	if err != nil {
		t.Fatalf("Open after restart failed: %v", err)
	}
	if string(plaintext) != "persisted" {
		t.Errorf("Open = %q, want persisted", plaintext)
	}
}

func TestIntegration_DistinctConfigsDoNotInteroperate(t *testing.T) {
	pathA, _ := sealTestConfig(t, "same passphrase")
	pathB, _ := sealTestConfig(t, "same passphrase")

	transcoder := func(path string) *keybroker.Transcoder {
		identifier, err := keybroker.Unseal(path, []byte("same passphrase"))
		if err != nil {
			t.Fatalf("Unseal failed: %v", err)
		}
		store := keybroker.NewStore()
		t.Cleanup(func() { _ = store.Close() })
		if err := store.Load(identifier); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return keybroker.NewTranscoder(store)
	}

	envelope, err := transcoder(pathA).Seal([]byte("for A only"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := transcoder(pathB).Open(envelope); !errors.Is(err, keybroker.ErrAuth) {
		t.Fatalf("expected ErrAuth opening with another identifier, got %v", err)
	}
}

func TestIntegration_FingerprintAudit(t *testing.T) {
	sealedPath, _ := sealTestConfig(t, "audit")

	sum, err := keybroker.FingerprintHex(sealedPath)
	if err != nil {
		t.Fatalf("FingerprintHex failed: %v", err)
	}
	ok, err := keybroker.VerifyFingerprintHex(sealedPath, sum)
	if err != nil || !ok {
		t.Fatalf("VerifyFingerprintHex = %v, %v", ok, err)
	}
}
