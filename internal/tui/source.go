package tui

import (
	"context"
	"fmt"

	"github.com/1broseidon/treemirror/internal/daemon"
	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/propconv"
	"github.com/1broseidon/treemirror/internal/wintree"
)

// Row is one window in depth-first order.
type Row struct {
	Depth   int
	ID      string
	Bounds  string
	Visible bool
	Drawn   bool
	Modal   bool
	Owned   bool
	Root    bool
	Opacity float32
	Cursor  string
	Props   []string
}

// Snapshot is a copy of the mirror taken on the runner goroutine.
type Snapshot struct {
	Rows    []Row
	Focused string
	Capture string
	Pending int
}

// Source supplies snapshots and applies the browser's actions.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	ToggleVisible(ctx context.Context, id string) error
	Focus(ctx context.Context, id string) error
}

// RunnerSource reads and edits the mirror owned by a daemon.Runner.
type RunnerSource struct {
	runner   *daemon.Runner
	registry *propconv.Registry
}

func NewRunnerSource(runner *daemon.Runner, registry *propconv.Registry) *RunnerSource {
	return &RunnerSource{runner: runner, registry: registry}
}

func (s *RunnerSource) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.runner.Do(ctx, func(c *wintree.Client) error {
		if w := c.Focused(); w != nil {
			snap.Focused = w.ID().String()
		}
		if w := c.Capture(); w != nil {
			snap.Capture = w.ID().String()
		}
		snap.Pending = len(c.PendingChanges())
		for _, root := range c.Roots() {
			snap.Rows = s.appendRows(snap.Rows, root, 0)
		}
		return nil
	})
	return snap, err
}

func (s *RunnerSource) appendRows(rows []Row, w *wintree.Window, depth int) []Row {
	row := Row{
		Depth:   depth,
		ID:      w.ID().String(),
		Bounds:  w.Bounds().String(),
		Visible: w.Visible(),
		Drawn:   w.IsDrawn(),
		Modal:   w.Modal(),
		Owned:   w.Owned(),
		Root:    w.IsRoot(),
		Opacity: w.Opacity(),
		Cursor:  w.Cursor().String(),
	}
	for _, name := range w.PropertyNames() {
		data, _ := w.Property(name)
		row.Props = append(row.Props, name+"="+s.registry.Format(name, data))
	}
	rows = append(rows, row)
	for _, child := range w.Children() {
		rows = s.appendRows(rows, child, depth+1)
	}
	return rows
}

func (s *RunnerSource) ToggleVisible(ctx context.Context, id string) error {
	return s.withWindow(ctx, id, func(_ *wintree.Client, w *wintree.Window) error {
		if !w.Owned() && !w.IsRoot() {
			return fmt.Errorf("window %s: %w", id, wintree.ErrNotPermitted)
		}
		w.SetVisible(!w.Visible())
		return nil
	})
}

func (s *RunnerSource) Focus(ctx context.Context, id string) error {
	return s.withWindow(ctx, id, func(c *wintree.Client, w *wintree.Window) error {
		return c.SetFocus(w)
	})
}

func (s *RunnerSource) withWindow(ctx context.Context, id string, fn func(c *wintree.Client, w *wintree.Window) error) error {
	wid, err := platform.ParseWindowID(id)
	if err != nil {
		return err
	}
	return s.runner.Do(ctx, func(c *wintree.Client) error {
		w := c.Window(wid)
		if w == nil {
			return fmt.Errorf("window %s: %w", id, wintree.ErrUnknownWindow)
		}
		return fn(c, w)
	})
}

// notifier pokes ch on every tree notification. Sends never block; one
// pending poke is enough to trigger a fresh snapshot.
type notifier struct {
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1)}
}

func (n *notifier) poke() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *notifier) OnWindowCreated(*wintree.Window)                                          { n.poke() }
func (n *notifier) OnWindowDestroyed(platform.WindowID)                                      { n.poke() }
func (n *notifier) OnPropertyChanged(*wintree.Window, wintree.Kind, string)                  { n.poke() }
func (n *notifier) OnHierarchyChanged(*wintree.Window, platform.WindowID, platform.WindowID) { n.poke() }
func (n *notifier) OnCaptureLost(platform.WindowID)                                          { n.poke() }
func (n *notifier) OnCaptureGained(platform.WindowID)                                        { n.poke() }
func (n *notifier) OnFocusLost(platform.WindowID)                                            { n.poke() }
func (n *notifier) OnFocusGained(platform.WindowID)                                          { n.poke() }
func (n *notifier) OnEmbed(*wintree.Window)                                                  { n.poke() }
func (n *notifier) OnUnembed(platform.WindowID)                                              { n.poke() }
func (n *notifier) OnChangeRejected(wintree.Change)                                          { n.poke() }
func (n *notifier) OnConnectionLost()                                                        { n.poke() }
