package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/wintree"
)

// ErrStopped is returned by Do once the runner's loop has exited.
var ErrStopped = errors.New("runner stopped")

// Runner owns a wintree.Client and serializes every access to it onto one
// goroutine: server events posted by transports and API calls made through Do
// run to completion in arrival order.
type Runner struct {
	client *wintree.Client
	work   chan func()
	done   chan struct{}
	logger *slog.Logger
}

// NewRunner creates a runner for client. Call Run to start processing.
func NewRunner(client *wintree.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		client: client,
		work:   make(chan func(), 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes work until ctx is cancelled. It must be called exactly once.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	r.logger.Debug("runner started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("runner stopped")
			return nil
		case fn := <-r.work:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Post queues a server event for dispatch. It blocks while the queue is full
// and drops the event once the runner has stopped.
func (r *Runner) Post(ev platform.Event) {
	item := func() { r.client.Dispatch(ev) }
	select {
	case r.work <- item:
	case <-r.done:
		r.logger.Debug("dropping event after stop", "event", ev.EventName())
	}
}

// Sink returns Post as a platform.EventSink for transports.
func (r *Runner) Sink() platform.EventSink {
	return r.Post
}

// Do runs fn on the runner goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(c *wintree.Client) error) error {
	result := make(chan error, 1)
	item := func() { result <- fn(r.client) }

	select {
	case r.work <- item:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		// The item may have run just before the loop exited.
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}
