package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/wintree"
)

func TestReconcilerReportsStaleChangesOnce(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start

	client := wintree.New(wintree.Options{
		ClientID:  1,
		Transport: nopTransport{},
		Now:       func() time.Time { return now },
	})
	r := NewRunner(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-r.Done()
	}()
	go r.Run(ctx)

	rec := NewReconciler(ReconcilerConfig{
		StaleAfter: time.Minute,
		Now:        func() time.Time { return now },
	}, r)

	var first, second uint32
	err := r.Do(ctx, func(c *wintree.Client) error {
		w := c.NewWindow(nil)
		first = c.PendingChanges()[0].ID
		c.Complete(first, true)
		w.SetBounds(platform.Rect{Width: 1, Height: 1})
		second = c.PendingChanges()[0].ID
		return nil
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if stale := rec.ReconcileNow(ctx); len(stale) != 0 {
		t.Fatalf("expected nothing stale yet, got %+v", stale)
	}

	now = start.Add(2 * time.Minute)
	stale := rec.ReconcileNow(ctx)
	if len(stale) != 1 || stale[0].ID != second || stale[0].Kind != wintree.KindBounds {
		t.Fatalf("expected bounds change stale, got %+v", stale)
	}
	if again := rec.ReconcileNow(ctx); len(again) != 0 {
		t.Fatalf("stale change must be reported once, got %+v", again)
	}
}
