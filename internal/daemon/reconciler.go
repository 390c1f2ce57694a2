package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/treemirror/internal/wintree"
)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger

	// Now is used to age pending changes. Defaults to time.Now.
	Now func() time.Time
}

// Reconciler periodically audits the client's pending changes and warns
// about ones the server has not answered for a long time. It never cancels
// them: a change stays pending until it completes or the connection drops.
type Reconciler struct {
	interval   time.Duration
	staleAfter time.Duration
	runner     *Runner
	logger     *slog.Logger
	now        func() time.Time

	// warned holds ids already reported so each stale change is logged once.
	warned map[uint32]bool
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, runner *Runner) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Reconciler{
		interval:   interval,
		staleAfter: staleAfter,
		runner:     runner,
		logger:     logger,
		now:        now,
		warned:     make(map[uint32]bool),
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval, "stale_after", r.staleAfter)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-r.runner.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile performs a single audit pass and returns the newly stale changes.
func (r *Reconciler) reconcile(ctx context.Context) []wintree.Change {
	var pending []wintree.Change
	err := r.runner.Do(ctx, func(c *wintree.Client) error {
		pending = c.PendingChanges()
		return nil
	})
	if err != nil {
		r.logger.Debug("reconciler: skipped pass", "error", err)
		return nil
	}

	now := r.now()
	live := make(map[uint32]bool, len(pending))
	var stale []wintree.Change
	for _, ch := range pending {
		live[ch.ID] = true
		age := now.Sub(ch.Created)
		if age < r.staleAfter || r.warned[ch.ID] {
			continue
		}
		r.warned[ch.ID] = true
		stale = append(stale, ch)
		r.logger.Warn("reconciler: change still pending",
			"change_id", ch.ID,
			"kind", ch.Kind,
			"window", ch.Window,
			"key", ch.Key,
			"age", age.Round(time.Millisecond))
	}

	for id := range r.warned {
		if !live[id] {
			delete(r.warned, id)
		}
	}
	return stale
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) []wintree.Change {
	return r.reconcile(ctx)
}
