package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1broseidon/treemirror/internal/authority"
	"github.com/1broseidon/treemirror/internal/ipc"
	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/runtimepath"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
	listen := fs.String("listen", "", "Unix socket to listen on (default: authority.listen, then the runtime socket)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: treemirror serve [--listen PATH] [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the reference window server. Clients connect over a websocket")
		fmt.Fprintln(os.Stderr, "on the unix socket and share one window tree.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	socketPath := *listen
	if socketPath == "" {
		socketPath = cfg.Authority.Listen
	}
	if socketPath == "" {
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			logger.Error("failed to resolve socket path", "error", err)
			return 1
		}
	}

	auth := authority.New(authority.Options{
		DisplayBounds: platform.Rect{Width: cfg.Authority.DisplayWidth, Height: cfg.Authority.DisplayHeight},
		RejectOps:     cfg.Authority.Ops(),
		Logger:        logger.With("component", "authority"),
	})
	handler := ipc.NewHandler(auth, ipc.HandlerOptions{
		TokenSecret: cfg.IPC.TokenSecret,
		Logger:      logger.With("component", "ipc"),
	})
	server := ipc.NewServer(socketPath, handler, logger)
	if err := server.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		return 1
	}
	logger.Info("window server started",
		"socket", socketPath,
		"display", fmt.Sprintf("%dx%d", cfg.Authority.DisplayWidth, cfg.Authority.DisplayHeight),
		"auth", cfg.IPC.TokenSecret != "")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down", "sessions", auth.Sessions())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	return 0
}
