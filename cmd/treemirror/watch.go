package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/treemirror/internal/config"
	"github.com/1broseidon/treemirror/internal/daemon"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: treemirror watch [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Mirror the server's window tree and log every change until interrupted.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, logger, ok := setup(*path)
	if !ok {
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	m, err := openMirror(ctx, cfg, logger, fatalHandler(logger, cancel))
	if err != nil {
		logger.Error("failed to open mirror", "error", err)
		return 1
	}
	m.observe(daemon.NewLogObserver(logger.With("component", "observer")))
	m.start(ctx, cfg)

	code := 0
	select {
	case <-ctx.Done():
	case err := <-m.connErr:
		if err != nil {
			code = 1
		}
	}
	cancel()
	m.shutdown()
	return code
}

// setup loads the configuration at path and builds the logger. Failures are
// reported on stderr.
func setup(path string) (*config.Config, *slog.Logger, bool) {
	res, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return nil, nil, false
	}
	logger, err := newLogger(res.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, false
	}
	return res.Config, logger, true
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// fatalHandler logs a client/server divergence and stops the command. The
// mirror cannot be trusted after one.
func fatalHandler(logger *slog.Logger, cancel context.CancelFunc) func(error) {
	return func(err error) {
		logger.Error("mirror diverged from server", "error", err)
		cancel()
	}
}
