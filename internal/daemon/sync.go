package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Conn is a live server connection: it accepts requests and delivers server
// events until it fails or ctx is cancelled.
type Conn interface {
	platform.Transport
	Run(ctx context.Context, sink platform.EventSink) error
}

// StateSynchronizer feeds a connection's events into a Runner and tears the
// mirror down when the connection ends.
type StateSynchronizer struct {
	runner *Runner
	conn   Conn
	logger *slog.Logger
}

// NewStateSynchronizer creates a new state synchronizer.
func NewStateSynchronizer(runner *Runner, conn Conn, logger *slog.Logger) *StateSynchronizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StateSynchronizer{
		runner: runner,
		conn:   conn,
		logger: logger,
	}
}

// Run pumps events until the connection ends, then posts ConnectionLost so
// the client discards its mirror. It returns the connection's error, or nil
// when ctx was cancelled.
func (s *StateSynchronizer) Run(ctx context.Context) error {
	err := s.conn.Run(ctx, s.runner.Post)

	reason := "connection closed"
	switch {
	case ctx.Err() != nil:
		reason = "shutting down"
		err = nil
	case err != nil:
		reason = err.Error()
		s.logger.Warn("connection lost", "error", err)
	default:
		s.logger.Info("connection closed by server")
	}

	s.runner.Post(platform.ConnectionLost{Reason: reason})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
