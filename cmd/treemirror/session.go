package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/1broseidon/treemirror/internal/config"
	"github.com/1broseidon/treemirror/internal/daemon"
	"github.com/1broseidon/treemirror/internal/ipc"
	"github.com/1broseidon/treemirror/internal/propconv"
	"github.com/1broseidon/treemirror/internal/runtimepath"
	"github.com/1broseidon/treemirror/internal/wintree"
	"github.com/1broseidon/treemirror/internal/x11"
)

// mirror is a connected client with its runner and background loops.
type mirror struct {
	client   *wintree.Client
	runner   *daemon.Runner
	registry *propconv.Registry
	logger   *slog.Logger

	conn  daemon.Conn
	close func()

	wg      sync.WaitGroup
	connErr chan error
}

// dial connects to the server named by cfg.Transport and returns the
// connection with the client id it was assigned.
func dial(ctx context.Context, cfg *config.Config, logger *slog.Logger) (daemon.Conn, uint32, func(), error) {
	switch cfg.Transport {
	case config.TransportX11:
		conn, err := x11.NewConnection(cfg.X11.Display)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("failed to connect to display: %w", err)
		}
		t := x11.NewTransport(conn, x11.Options{
			Properties:    slices.Sorted(maps.Keys(cfg.Properties)),
			SnapshotDepth: cfg.X11.SnapshotDepth,
			Logger:        logger.With("component", "x11"),
		})
		return t, t.ClientID(), conn.Close, nil

	case config.TransportIPC, "":
		endpoint, err := runtimepath.Endpoint(cfg.IPC.Endpoint)
		if err != nil {
			return nil, 0, nil, err
		}
		conn, err := ipc.Dial(ctx, ipc.DialOptions{
			Endpoint:    endpoint,
			TokenSecret: cfg.IPC.TokenSecret,
			Timeout:     cfg.IPC.DialTimeout(),
			Logger:      logger.With("component", "ipc"),
		})
		if err != nil {
			return nil, 0, nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}
		logger.Debug("connected", "endpoint", endpoint, "session", conn.Session())
		return conn, conn.ClientID(), func() { _ = conn.Close() }, nil

	default:
		return nil, 0, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// openMirror connects and builds the client. Observers added before start
// see the initial embed. onFatal is called if the client and server diverge.
func openMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, onFatal func(error)) (*mirror, error) {
	registry, err := propconv.New(cfg.Properties)
	if err != nil {
		return nil, err
	}
	conn, clientID, closeFn, err := dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client := wintree.New(wintree.Options{
		ClientID:  clientID,
		Transport: conn,
		Converter: registry,
		Logger:    logger.With("component", "wintree"),
		OnFatal:   onFatal,
	})
	logger.Info("mirror connected", "transport", cfg.Transport, "client", clientID)

	return &mirror{
		client:   client,
		runner:   daemon.NewRunner(client, logger.With("component", "runner")),
		registry: registry,
		logger:   logger,
		conn:     conn,
		close:    closeFn,
		connErr:  make(chan error, 1),
	}, nil
}

// observe adds o. It must be called before start.
func (m *mirror) observe(o wintree.Observer) {
	m.client.AddObserver(o)
}

// start launches the runner, the event pump and the stale-change
// reconciler. The result of the event pump arrives on m.connErr.
func (m *mirror) start(ctx context.Context, cfg *config.Config) {
	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		_ = m.runner.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		synchronizer := daemon.NewStateSynchronizer(m.runner, m.conn, m.logger.With("component", "sync"))
		m.connErr <- synchronizer.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		daemon.NewReconciler(daemon.ReconcilerConfig{
			Interval:   cfg.Reconciler.Interval(),
			StaleAfter: cfg.Reconciler.StaleAfter(),
			Logger:     m.logger.With("component", "reconciler"),
		}, m.runner).Run(ctx)
	}()
}

// shutdown waits for the loops, then releases the connection. ctx must
// already be cancelled; transports close themselves on cancellation, so
// close only covers a connection whose Run never started.
func (m *mirror) shutdown() {
	m.wg.Wait()
	m.close()
}
