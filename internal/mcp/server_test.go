package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/1broseidon/treemirror/internal/daemon"
	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/propconv"
	"github.com/1broseidon/treemirror/internal/wintree"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []platform.Request
}

func (r *recordingTransport) Send(req platform.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req)
	return nil
}

func (r *recordingTransport) ops() []platform.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ops []platform.Op
	for _, req := range r.sent {
		ops = append(ops, req.Op)
	}
	return ops
}

func newTestServer(t *testing.T) (*Server, *daemon.Runner, *recordingTransport) {
	t.Helper()
	registry, err := propconv.New(map[string]string{"title": "string", "pinned": "bool"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	tr := &recordingTransport{}
	client := wintree.New(wintree.Options{ClientID: 7, Transport: tr, Converter: registry})
	runner := daemon.NewRunner(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-runner.Done()
	})
	return NewServer(runner, registry, nil), runner, tr
}

func newOwnedWindow(t *testing.T, r *daemon.Runner) platform.WindowID {
	t.Helper()
	var id platform.WindowID
	err := r.Do(context.Background(), func(c *wintree.Client) error {
		id = c.NewWindow(nil).ID()
		return nil
	})
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	return id
}

func TestSetBoundsIsOptimisticAndPending(t *testing.T) {
	s, r, tr := newTestServer(t)
	id := newOwnedWindow(t, r)
	ctx := context.Background()

	_, out, err := s.handleSetBounds(ctx, nil, SetBoundsInput{Window: id.String(), X: 5, Y: 6, Width: 100, Height: 50})
	if err != nil {
		t.Fatalf("set_bounds: %v", err)
	}
	if out.Window.Bounds != "5,6 100x50" {
		t.Fatalf("bounds = %q, want optimistic value", out.Window.Bounds)
	}
	if out.Pending != 2 {
		t.Fatalf("pending = %d, want 2 (create and bounds)", out.Pending)
	}

	_, pending, err := s.handlePendingChanges(ctx, nil, PendingChangesInput{})
	if err != nil {
		t.Fatalf("pending_changes: %v", err)
	}
	if len(pending.Changes) != 2 || pending.Changes[1].Kind != "BOUNDS" || pending.Changes[1].Window != id.String() {
		t.Fatalf("unexpected pending changes: %+v", pending.Changes)
	}

	ops := tr.ops()
	if len(ops) != 2 || ops[1] != platform.OpSetBounds {
		t.Fatalf("sent %v, want NEW_WINDOW then SET_BOUNDS", ops)
	}
}

func TestSetPropertyParsesConfiguredType(t *testing.T) {
	s, r, _ := newTestServer(t)
	id := newOwnedWindow(t, r)
	ctx := context.Background()

	title := "hello"
	_, out, err := s.handleSetProperty(ctx, nil, SetPropertyInput{Window: id.String(), Name: "title", Value: &title})
	if err != nil {
		t.Fatalf("set_property: %v", err)
	}
	if got := out.Window.Properties["title"]; got != `"hello"` {
		t.Fatalf("title = %s, want \"hello\"", got)
	}

	bad := "maybe"
	if _, _, err := s.handleSetProperty(ctx, nil, SetPropertyInput{Window: id.String(), Name: "pinned", Value: &bad}); err == nil {
		t.Fatalf("expected parse error for bool property")
	}

	_, out, err = s.handleSetProperty(ctx, nil, SetPropertyInput{Window: id.String(), Name: "title"})
	if err != nil {
		t.Fatalf("clear property: %v", err)
	}
	if _, ok := out.Window.Properties["title"]; ok {
		t.Fatalf("title still present after clearing")
	}
}

func TestChangesOnForeignWindowsAreRefused(t *testing.T) {
	s, r, _ := newTestServer(t)
	ctx := context.Background()

	root := platform.WindowID{Client: 1, Seq: 1}
	child := platform.WindowID{Client: 1, Seq: 2}
	r.Post(platform.Embedded{
		Root:        platform.WindowData{ID: root, Opacity: 1},
		Descendants: []platform.WindowData{{ID: child, Parent: root, Opacity: 1}},
		Drawn:       true,
	})

	_, _, err := s.handleSetVisible(ctx, nil, SetVisibleInput{Window: child.String(), Visible: true})
	if !errors.Is(err, wintree.ErrNotPermitted) {
		t.Fatalf("set_visible on foreign child: got %v, want ErrNotPermitted", err)
	}

	// Embedded roots are editable.
	if _, _, err := s.handleSetVisible(ctx, nil, SetVisibleInput{Window: root.String(), Visible: true}); err != nil {
		t.Fatalf("set_visible on root: %v", err)
	}

	_, list, err := s.handleListWindows(ctx, nil, ListWindowsInput{RootsOnly: true})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if len(list.Windows) != 1 || list.Windows[0].ID != root.String() || len(list.Windows[0].Children) != 1 {
		t.Fatalf("unexpected roots: %+v", list.Windows)
	}
}

func TestFocusWindow(t *testing.T) {
	s, r, _ := newTestServer(t)
	id := newOwnedWindow(t, r)
	ctx := context.Background()

	if _, _, err := s.handleFocusWindow(ctx, nil, FocusWindowInput{Window: id.String()}); err != nil {
		t.Fatalf("focus_window: %v", err)
	}
	_, list, err := s.handleListWindows(ctx, nil, ListWindowsInput{})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if list.Focused != id.String() {
		t.Fatalf("focused = %q, want %q", list.Focused, id)
	}

	if _, _, err := s.handleFocusWindow(ctx, nil, FocusWindowInput{}); err != nil {
		t.Fatalf("clear focus: %v", err)
	}
	_, list, _ = s.handleListWindows(ctx, nil, ListWindowsInput{})
	if list.Focused != "" {
		t.Fatalf("focus not cleared: %q", list.Focused)
	}
}

func TestDescribeUnknownWindow(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, _, err := s.handleDescribeWindow(context.Background(), nil, DescribeWindowInput{Window: "9:9"})
	if !errors.Is(err, wintree.ErrUnknownWindow) {
		t.Fatalf("got %v, want ErrUnknownWindow", err)
	}
	if _, _, err := s.handleDescribeWindow(context.Background(), nil, DescribeWindowInput{Window: "nope"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
