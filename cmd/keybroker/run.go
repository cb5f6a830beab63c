/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/gitrgoliveira/go-keybroker/internal/config"
	"github.com/gitrgoliveira/go-keybroker/internal/core"
	crypto "github.com/gitrgoliveira/go-keybroker/internal/crypto"
	"github.com/gitrgoliveira/go-keybroker/internal/passphrase"
	"github.com/gitrgoliveira/go-keybroker/internal/server"
	"github.com/gitrgoliveira/go-keybroker/internal/session"
	"github.com/gitrgoliveira/go-keybroker/secure"
)

type options struct {
	server      bool
	seal        bool
	socketPath  string
	configPath  string
	identifier  string
	logLevel    string
	showVersion bool
	help        bool
}

func (a *app) run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("keybroker", pflag.ContinueOnError)
	flagSet.SetOutput(a.stderr)
	flagSet.BoolVar(&opts.server, "server", false, "keep the identifier as session key and serve requests on the socket")
	flagSet.BoolVar(&opts.seal, "seal", false, "write a new sealed config to the given path")
	flagSet.StringVar(&opts.socketPath, "socket", "", "socket path (default "+config.DefaultSocketPath+")")
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file (or $"+config.EnvConfig+")")
	flagSet.StringVar(&opts.identifier, "identifier", "", "hex identifier to seal (default: random)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			a.printHelp(flagSet)
			return nil
		}
		return usageError("%v", err)
	}
	if opts.help {
		a.printHelp(flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(a.stdout, "keybroker %s\n", version)
		return nil
	}
	if opts.server && opts.seal {
		return usageError("--server and --seal are mutually exclusive")
	}
	if opts.identifier != "" && !opts.seal {
		return usageError("--identifier is only valid with --seal")
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return usageError("%v", err)
	}
	if opts.socketPath != "" {
		cfg.SocketPath = opts.socketPath
	}

	logger, err := a.newLogger(opts.logLevel, cfg)
	if err != nil {
		return usageError("%v", err)
	}

	positional := flagSet.Args()
	if len(positional) > 1 {
		return usageError("unexpected argument: %s", positional[1])
	}
	path := cfg.SealedConfig
	if len(positional) == 1 {
		path = positional[0]
	}
	if path == "" {
		return usageError("missing sealed config path (see --help)")
	}

	reader := passphrase.NewReader(a.stdin, a.stderr)
	switch {
	case opts.seal:
		return fail(a.runSeal(logger, reader, path, opts.identifier))
	case opts.server:
		return fail(a.runServer(logger, reader, path, cfg))
	default:
		return fail(a.runOneShot(logger, reader, path))
	}
}

// newLogger builds the stderr text logger. The flag wins over
// KEYBROKER_DEBUG, which wins over the config file.
func (a *app) newLogger(flagLevel string, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if os.Getenv("KEYBROKER_DEBUG") != "" {
		level = slog.LevelDebug
	}
	if flagLevel != "" {
		if err := level.UnmarshalText([]byte(flagLevel)); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})), nil
}

// unseal reads the passphrase and recovers the identifier from path. The
// passphrase is zeroed before return.
func (a *app) unseal(logger *slog.Logger, reader *passphrase.Reader, path string) ([]byte, error) {
	if sum, err := core.FingerprintHex(path); err == nil {
		attrs := []any{"path", path, "sha256", sum}
		if info, err := os.Stat(path); err == nil {
			attrs = append(attrs, "size", humanize.Bytes(uint64(info.Size())))
		}
		logger.Info("sealed config", attrs...)
	}

	pass, err := reader.Read("Passphrase: ")
	if err != nil {
		return nil, err
	}
	identifier, err := core.Unseal(path, pass)
	secure.Zero(pass)
	if err != nil {
		logger.Debug("unseal failed", "error", err)
		return nil, err
	}
	return identifier, nil
}

func (a *app) runOneShot(logger *slog.Logger, reader *passphrase.Reader, path string) error {
	var signalled atomic.Bool
	stop := a.watchSignals(logger, func() { signalled.Store(true) }, nil)
	defer stop()

	identifier, err := a.unseal(logger, reader, path)
	if signalled.Load() {
		secure.Zero(identifier)
		return nil
	}
	if err != nil {
		return err
	}
	defer secure.Zero(identifier)

	out := make([]byte, hex.EncodedLen(len(identifier))+1)
	defer secure.Zero(out)
	hex.Encode(out, identifier)
	out[len(out)-1] = '\n'
	if _, err := a.stdout.Write(out); err != nil {
		return fmt.Errorf("%w: writing identifier: %w", crypto.ErrIO, err)
	}
	return nil
}

func (a *app) runSeal(logger *slog.Logger, reader *passphrase.Reader, path, identifierHex string) error {
	var identifier []byte
	var err error
	if identifierHex != "" {
		identifier, err = hex.DecodeString(identifierHex)
		if err != nil || len(identifier) != core.IdentifierSize {
			return usageError("--identifier must be %d hex characters", 2*core.IdentifierSize)
		}
	} else if identifier, err = core.GenerateIdentifier(); err != nil {
		return err
	}
	defer secure.Zero(identifier)

	pass, err := reader.ReadWithConfirm("New passphrase: ", "Confirm passphrase: ")
	if err != nil {
		if errors.Is(err, passphrase.ErrMismatch) {
			return usageError("%v", err)
		}
		return err
	}
	err = core.WriteSealedConfig(path, identifier, pass)
	secure.Zero(pass)
	if err != nil {
		logger.Debug("seal failed", "error", err)
		return err
	}

	sum, err := core.FingerprintHex(path)
	if err != nil {
		return err
	}
	logger.Info("sealed config written", "path", path, "sha256", sum)
	return nil
}

func (a *app) runServer(logger *slog.Logger, reader *passphrase.Reader, path string, cfg *config.Config) error {
	serverOpts, err := serverOptions(cfg, logger)
	if err != nil {
		return usageError("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signals are handled before any key material exists. An erase that
	// lands before Load makes Load fail with ErrKeyErased.
	store := session.NewStore()
	stop := a.watchSignals(logger, func() {
		store.Erase()
		logger.Info("session key erased")
		cancel()
	}, func() { os.Remove(cfg.SocketPath) })
	defer stop()
	defer store.Close()

	identifier, err := a.unseal(logger, reader, path)
	if ctx.Err() != nil {
		secure.Zero(identifier)
		return nil
	}
	if err != nil {
		return err
	}
	if err := store.Load(identifier); err != nil {
		secure.Zero(identifier)
		if errors.Is(err, crypto.ErrKeyErased) {
			return nil
		}
		return err
	}
	logger.Debug("session key loaded", "locked", store.Locked())

	serverOpts = append(serverOpts, server.WithOnReady(func(string) {
		fmt.Fprintln(a.stdout, "READY")
	}))
	srv, err := server.New(cfg.SocketPath, core.NewTranscoder(store), serverOpts...)
	if err != nil {
		return err
	}

	if err := srv.Serve(ctx); err != nil {
		return err
	}
	if !store.Erased() {
		store.Erase()
		logger.Info("session key erased")
	}
	return nil
}

func serverOptions(cfg *config.Config, logger *slog.Logger) ([]server.Option, error) {
	frameSize, err := cfg.FrameSize()
	if err != nil {
		return nil, err
	}
	frameOpt, err := server.WithMaxFrameSize(frameSize)
	if err != nil {
		return nil, err
	}
	readTimeout, writeTimeout, err := cfg.Timeouts()
	if err != nil {
		return nil, err
	}
	return []server.Option{
		frameOpt,
		server.WithReadTimeout(readTimeout),
		server.WithWriteTimeout(writeTimeout),
		server.WithLogger(logger),
	}, nil
}

func (a *app) printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(a.stderr, `keybroker unseals a passphrase-protected identifier.

Usage:
  keybroker [flags] <sealed-config>           print the identifier as hex
  keybroker --server [flags] <sealed-config>  serve ENCRYPT/DECRYPT on a Unix socket
  keybroker --seal [--identifier HEX] <path>  write a new sealed config

The passphrase is read from $%s, the terminal, or the first line
of stdin. The server prints READY once the socket accepts connections and
stops on EXIT, SIGINT or SIGTERM.

Exit codes: 0 ok, 1 usage or other failure, 2 no passphrase,
3 unseal failed, 4 sealed config or socket unusable.

Flags:
`, passphrase.EnvVar)
	flagSet.PrintDefaults()
}
