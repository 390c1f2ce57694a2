package wintree

import (
	"errors"
	"slices"
	"testing"

	"github.com/1broseidon/treemirror/internal/platform"
)

func ids(ws []*Window) []platform.WindowID {
	out := make([]platform.WindowID, len(ws))
	for i, w := range ws {
		out[i] = w.ID()
	}
	return out
}

type createObserver struct {
	BaseObserver
	onCreate func(w *Window)
}

func (o *createObserver) OnWindowCreated(w *Window) { o.onCreate(w) }

func TestHierarchyBatchWiresParentsInOrder(t *testing.T) {
	h := newHarness(t)
	rootID := platform.WindowID{Client: 99, Seq: 1}
	h.c.OnEmbed(platform.WindowData{ID: rootID, Visible: true}, nil, true)

	a := platform.WindowID{Client: 99, Seq: 2}
	b := platform.WindowID{Client: 99, Seq: 3}

	var created []platform.WindowID
	h.c.AddObserver(&createObserver{onCreate: func(w *Window) {
		if w.Parent() == nil {
			t.Errorf("window %s announced without a parent", w.ID())
		}
		created = append(created, w.ID())
	}})

	h.c.OnHierarchyChanged(a, platform.WindowID{}, rootID, []platform.WindowData{
		{ID: a, Parent: rootID, Visible: true},
		{ID: b, Parent: a, Visible: true},
	})

	root := h.c.Window(rootID)
	if got := ids(root.Children()); !slices.Equal(got, []platform.WindowID{a}) {
		t.Fatalf("root children = %v, want [%s]", got, a)
	}
	if got := ids(h.c.Window(a).Children()); !slices.Equal(got, []platform.WindowID{b}) {
		t.Fatalf("A children = %v, want [%s]", got, b)
	}
	if !slices.Equal(created, []platform.WindowID{a, b}) {
		t.Fatalf("created = %v", created)
	}
	if !h.c.Window(b).IsDrawn() {
		t.Fatalf("expected B drawn")
	}
}

func TestHierarchyReparentKnownWindow(t *testing.T) {
	h := newHarness(t)
	rootID := platform.WindowID{Client: 99, Seq: 1}
	p1 := platform.WindowID{Client: 99, Seq: 2}
	p2 := platform.WindowID{Client: 99, Seq: 3}
	x := platform.WindowID{Client: 99, Seq: 4}
	h.c.OnEmbed(platform.WindowData{ID: rootID}, []platform.WindowData{
		{ID: p1, Parent: rootID},
		{ID: p2, Parent: rootID},
		{ID: x, Parent: p1},
	}, false)

	h.c.OnHierarchyChanged(x, p1, p2, nil)
	if h.c.Window(x).Parent().ID() != p2 {
		t.Fatalf("expected x under p2")
	}
	if len(h.c.Window(p1).Children()) != 0 {
		t.Fatalf("expected p1 empty")
	}

	// Moving to a parent outside this client's view detaches.
	h.c.OnHierarchyChanged(x, p2, platform.WindowID{Client: 50, Seq: 1}, nil)
	if h.c.Window(x).Parent() != nil {
		t.Fatalf("expected x detached")
	}
}

func TestHierarchyBatchDoesNotReparentIntroducedWindow(t *testing.T) {
	h := newHarness(t)
	rootID := platform.WindowID{Client: 99, Seq: 1}
	other := platform.WindowID{Client: 99, Seq: 2}
	x := platform.WindowID{Client: 99, Seq: 3}
	h.c.OnEmbed(platform.WindowData{ID: rootID}, []platform.WindowData{{ID: other, Parent: rootID}}, false)

	h.c.OnHierarchyChanged(x, platform.WindowID{}, other, []platform.WindowData{{ID: x, Parent: rootID}})
	if h.c.Window(x).Parent().ID() != rootID {
		t.Fatalf("introduced window must keep its batch parent")
	}
}

func TestHierarchyBatchUnderDestroyedParentIgnored(t *testing.T) {
	h := newHarness(t)
	w := h.owned(t, nil)
	wid := w.ID()
	w.Destroy()

	child := platform.WindowID{Client: 99, Seq: 1}
	grandchild := platform.WindowID{Client: 99, Seq: 2}
	h.c.OnHierarchyChanged(child, platform.WindowID{}, wid, []platform.WindowData{
		{ID: child, Parent: wid},
		{ID: grandchild, Parent: child},
	})
	if h.c.Window(child) != nil || h.c.Window(grandchild) != nil {
		t.Fatalf("windows under a destroyed parent must be dropped")
	}
}

func TestHierarchyBatchWithUnknownParentIsFatal(t *testing.T) {
	h := newHarness(t)
	h.allowFatal = true
	x := platform.WindowID{Client: 99, Seq: 5}

	h.c.OnHierarchyChanged(x, platform.WindowID{}, platform.WindowID{}, []platform.WindowData{
		{ID: x, Parent: platform.WindowID{Client: 99, Seq: 4}},
	})
	var perr *ProtocolError
	if len(h.fatals) != 1 || !errors.As(h.fatals[0], &perr) || !errors.Is(perr, ErrUnknownWindow) {
		t.Fatalf("expected unknown window protocol error, got %v", h.fatals)
	}
}

func TestDeletionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	w := h.owned(t, nil)
	keep := h.owned(t, nil)
	rec := &recorder{}
	h.c.AddObserver(rec)

	h.c.OnWindowDeleted(w.ID())
	if h.c.Window(w.ID()) != nil {
		t.Fatalf("expected window removed")
	}
	before := len(h.c.Windows())

	h.c.OnWindowDeleted(w.ID())
	h.c.OnWindowDeleted(platform.WindowID{Client: 3, Seq: 3})

	if len(h.c.Windows()) != before || h.c.Window(keep.ID()) != keep {
		t.Fatalf("repeated deletion changed the registry")
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one destroy notification, got %v", rec.events)
	}
	if len(h.c.PendingChanges()) != 0 {
		t.Fatalf("server deletion must not send a delete request")
	}
}

func TestDestroyCascade(t *testing.T) {
	h := newHarness(t)
	p := h.c.NewTopLevelWindow(nil)
	h.c.OnTopLevelCreated(h.tr.last(t).ChangeID, platform.WindowData{ID: p.ID(), Visible: true, Opacity: 1}, true)

	var transients, children []*Window
	for range 2 {
		tc := h.owned(t, nil)
		if err := p.AddTransient(tc); err != nil {
			t.Fatalf("add transient: %v", err)
		}
		h.c.Complete(h.tr.last(t).ChangeID, true)
		transients = append(transients, tc)
	}
	for range 3 {
		c := h.owned(t, nil)
		if err := p.AddChild(c); err != nil {
			t.Fatalf("add child: %v", err)
		}
		h.c.Complete(h.tr.last(t).ChangeID, true)
		children = append(children, c)
	}
	grandchild := h.owned(t, nil)
	if err := children[0].AddChild(grandchild); err != nil {
		t.Fatalf("add grandchild: %v", err)
	}
	h.c.Complete(h.tr.last(t).ChangeID, true)

	if err := h.c.SetCapture(transients[1]); err != nil {
		t.Fatalf("set capture: %v", err)
	}
	h.c.Complete(h.tr.last(t).ChangeID, true)
	if err := h.c.SetFocus(grandchild); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	h.c.Complete(h.tr.last(t).ChangeID, true)
	children[1].SetBounds(platform.Rect{Width: 5, Height: 5})

	rec := &recorder{}
	h.c.AddObserver(rec)
	sent := len(h.tr.requests)
	p.Destroy()

	all := append([]*Window{p, grandchild}, transients...)
	all = append(all, children...)
	for _, w := range all {
		if h.c.Window(w.ID()) != nil {
			t.Fatalf("window %s survived destroy", w.ID())
		}
		n := 0
		for _, ev := range rec.events {
			if ev == "destroyed "+w.ID().String() {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("window %s destroyed %d times", w.ID(), n)
		}
	}
	if h.c.Capture() != nil || h.c.Focused() != nil {
		t.Fatalf("singletons must be cleared, capture=%v focus=%v", h.c.Capture(), h.c.Focused())
	}
	if !slices.Contains(rec.events, "capture-lost "+transients[1].ID().String()) ||
		!slices.Contains(rec.events, "focus-lost "+grandchild.ID().String()) {
		t.Fatalf("expected loss notifications, got %v", rec.events)
	}
	if len(h.c.Roots()) != 0 {
		t.Fatalf("expected roots emptied")
	}

	var deleted []platform.WindowID
	for _, req := range h.tr.requests[sent:] {
		if req.Op != platform.OpDeleteWindow {
			t.Fatalf("unexpected request during destroy: %+v", req)
		}
		deleted = append(deleted, req.Window)
	}
	want := []platform.WindowID{transients[0].ID(), transients[1].ID(), p.ID()}
	if !slices.Equal(deleted, want) {
		t.Fatalf("deleted %v, want %v", deleted, want)
	}
	for _, ch := range h.c.PendingChanges() {
		if ch.Kind != KindDeleteWindow {
			t.Fatalf("expected only delete changes pending, got %+v", ch)
		}
	}
}

func TestDestroyScrubsPendingSingletonReverts(t *testing.T) {
	h := newHarness(t)
	w1 := h.owned(t, nil)
	w2 := h.owned(t, nil)

	if err := h.c.SetFocus(w1); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	h.c.Complete(h.tr.last(t).ChangeID, true)
	if err := h.c.SetFocus(w2); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	id := h.tr.last(t).ChangeID

	w1.Destroy()
	h.c.Complete(id, false)
	if h.c.Focused() != nil {
		t.Fatalf("focus must not revert to a destroyed window")
	}
}

func TestTopLevelCreatedMergesServerState(t *testing.T) {
	h := newHarness(t)
	w := h.c.NewTopLevelWindow(map[string][]byte{"title": []byte("local")})
	create := h.tr.last(t)
	if create.Op != platform.OpNewTopLevelWindow || string(create.Properties["title"]) != "local" {
		t.Fatalf("unexpected create request %+v", create)
	}
	if !w.IsRoot() {
		t.Fatalf("top-level window must be a root")
	}

	local := platform.Rect{Width: 640, Height: 480}
	w.SetBounds(local)
	boundsID := h.tr.last(t).ChangeID

	serverBounds := platform.Rect{X: 10, Y: 10, Width: 800, Height: 600}
	h.c.OnTopLevelCreated(create.ChangeID, platform.WindowData{
		ID:         w.ID(),
		Bounds:     serverBounds,
		Visible:    true,
		Opacity:    1,
		Properties: map[string][]byte{"title": []byte("server"), "class": []byte("demo")},
	}, true)

	if w.Bounds() != local {
		t.Fatalf("pending bounds must be kept, got %v", w.Bounds())
	}
	if !w.Visible() || !w.IsDrawn() {
		t.Fatalf("expected server visibility applied and window drawn")
	}
	if v, _ := w.Property("title"); string(v) != "server" {
		t.Fatalf("expected server title, got %q", v)
	}
	if v, _ := w.Property("class"); string(v) != "demo" {
		t.Fatalf("expected server class, got %q", v)
	}

	h.c.Complete(boundsID, false)
	if w.Bounds() != serverBounds {
		t.Fatalf("expected revert to server bounds, got %v", w.Bounds())
	}
}

func TestTopLevelCreatedAfterDestroyIgnored(t *testing.T) {
	h := newHarness(t)
	w := h.c.NewTopLevelWindow(nil)
	create := h.tr.last(t)
	w.Destroy()

	del := h.tr.last(t)
	if del.Op != platform.OpDeleteWindow || del.Window != w.ID() {
		t.Fatalf("expected delete request, got %+v", del)
	}
	h.c.OnTopLevelCreated(create.ChangeID, platform.WindowData{ID: w.ID(), Visible: true}, true)
	if h.c.Window(w.ID()) != nil {
		t.Fatalf("late ack must not resurrect the window")
	}
	h.c.Complete(del.ChangeID, true)
}

func TestTransientStacking(t *testing.T) {
	h := newHarness(t)
	parent := h.owned(t, nil)
	var kids []*Window
	for range 3 {
		k := h.owned(t, nil)
		if err := parent.AddChild(k); err != nil {
			t.Fatalf("add child: %v", err)
		}
		kids = append(kids, k)
	}
	a, b, c := kids[0], kids[1], kids[2]

	if err := a.AddTransient(c); err != nil {
		t.Fatalf("add transient: %v", err)
	}
	want := []platform.WindowID{a.ID(), c.ID(), b.ID()}
	if got := ids(parent.Children()); !slices.Equal(got, want) {
		t.Fatalf("children = %v, want %v", got, want)
	}

	// Raising a keeps its transient directly above it.
	if err := a.Reorder(b, platform.StackAbove); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	want = []platform.WindowID{b.ID(), a.ID(), c.ID()}
	if got := ids(parent.Children()); !slices.Equal(got, want) {
		t.Fatalf("children after reorder = %v, want %v", got, want)
	}

	if err := c.AddTransient(a); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected cycle rejected, got %v", err)
	}
	if err := b.RemoveTransient(c); !errors.Is(err, ErrNotChild) {
		t.Fatalf("expected ErrNotChild, got %v", err)
	}
	if err := a.RemoveTransient(c); err != nil {
		t.Fatalf("remove transient: %v", err)
	}
	if c.TransientParent() != nil || len(a.TransientChildren()) != 0 {
		t.Fatalf("transient link not cleared")
	}
}

func TestStructuralEditValidation(t *testing.T) {
	h := newHarness(t)
	parent := h.owned(t, nil)
	child := h.owned(t, nil)
	next := h.c.NextChangeID()

	if err := child.AddChild(child); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected self-parenting rejected, got %v", err)
	}
	if err := parent.RemoveChild(child); !errors.Is(err, ErrNotChild) {
		t.Fatalf("expected ErrNotChild, got %v", err)
	}
	if err := parent.Reorder(child, platform.StackAbove); !errors.Is(err, ErrNotChild) {
		t.Fatalf("expected ErrNotChild for parentless reorder, got %v", err)
	}
	if h.c.NextChangeID() != next {
		t.Fatalf("rejected edits must not schedule changes")
	}

	if err := parent.AddChild(child); err != nil {
		t.Fatalf("add child: %v", err)
	}
	if err := child.AddChild(parent); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected cycle rejected, got %v", err)
	}

	rootID := platform.WindowID{Client: 99, Seq: 1}
	foreignID := platform.WindowID{Client: 99, Seq: 2}
	h.c.OnEmbed(platform.WindowData{ID: rootID}, []platform.WindowData{{ID: foreignID, Parent: rootID}}, true)
	if err := h.c.Window(foreignID).AddChild(parent); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("expected ErrNotPermitted, got %v", err)
	}
	if err := h.c.Window(rootID).AddChild(parent); err != nil {
		t.Fatalf("embed root should accept children: %v", err)
	}
}

func TestServerReorder(t *testing.T) {
	h := newHarness(t)
	rootID := platform.WindowID{Client: 99, Seq: 1}
	a := platform.WindowID{Client: 99, Seq: 2}
	b := platform.WindowID{Client: 99, Seq: 3}
	h.c.OnEmbed(platform.WindowData{ID: rootID}, []platform.WindowData{
		{ID: a, Parent: rootID},
		{ID: b, Parent: rootID},
	}, true)

	h.c.OnWindowReordered(b, a, platform.StackBelow)
	if got := ids(h.c.Window(rootID).Children()); !slices.Equal(got, []platform.WindowID{b, a}) {
		t.Fatalf("children = %v", got)
	}

	h.c.OnTransientAdded(b, a)
	if h.c.Window(a).TransientParent().ID() != b {
		t.Fatalf("expected transient parent b")
	}
	h.c.OnTransientRemoved(b, a)
	if h.c.Window(a).TransientParent() != nil {
		t.Fatalf("expected transient cleared")
	}
}

func TestUnembed(t *testing.T) {
	h := newHarness(t)
	rootID := platform.WindowID{Client: 99, Seq: 1}
	h.c.OnEmbed(platform.WindowData{ID: rootID}, []platform.WindowData{
		{ID: platform.WindowID{Client: 99, Seq: 2}, Parent: rootID},
	}, true)
	mine := h.owned(t, nil)
	if err := h.c.Window(rootID).AddChild(mine); err != nil {
		t.Fatalf("add child: %v", err)
	}
	sent := len(h.tr.requests)

	h.c.OnUnembed(rootID)
	if len(h.c.Windows()) != 0 {
		t.Fatalf("expected embedded subtree discarded, have %d windows", len(h.c.Windows()))
	}
	if len(h.tr.requests) != sent {
		t.Fatalf("unembed must not send requests")
	}
}

func TestTeardown(t *testing.T) {
	h := newHarness(t)
	w := h.c.NewTopLevelWindow(nil)
	w.SetVisible(true)
	var loopResult *bool
	if err := h.c.PerformMoveLoop(w, platform.MoveLoopMouse, platform.Point{}, func(ok bool) { loopResult = &ok }); err != nil {
		t.Fatalf("move loop: %v", err)
	}
	rec := &recorder{}
	h.c.AddObserver(rec)
	sent := len(h.tr.requests)

	h.c.Dispatch(platform.ConnectionLost{Reason: "eof"})

	if len(h.c.Windows()) != 0 || len(h.c.PendingChanges()) != 0 || len(h.c.Roots()) != 0 {
		t.Fatalf("expected empty client after teardown")
	}
	if loopResult == nil || *loopResult {
		t.Fatalf("expected move loop failed")
	}
	if len(h.tr.requests) != sent {
		t.Fatalf("teardown must not send requests")
	}
	if rec.events[len(rec.events)-1] != "connection-lost" {
		t.Fatalf("expected connection-lost last, got %v", rec.events)
	}
}
