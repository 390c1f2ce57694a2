package authority

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/1broseidon/treemirror/internal/platform"
)

type inbox struct {
	events []platform.Event
}

func (b *inbox) push(ev platform.Event) { b.events = append(b.events, ev) }

func (b *inbox) take() []platform.Event {
	out := b.events
	b.events = nil
	return out
}

func connect(a *Authority) (*Session, *inbox) {
	b := &inbox{}
	s := a.Connect(b.push)
	return s, b
}

func wid(s *Session, seq uint32) platform.WindowID {
	return platform.WindowID{Client: s.ClientID(), Seq: seq}
}

func TestConnectEmbedsDisplay(t *testing.T) {
	a := New(Options{DisplayBounds: platform.Rect{Width: 800, Height: 600}})
	s1, b1 := connect(a)
	s2, _ := connect(a)

	assert.Equal(t, s1.ClientID(), uint32(1))
	assert.Equal(t, s2.ClientID(), uint32(2))
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, a.Sessions(), 2)

	events := b1.take()
	assert.Equal(t, len(events), 1)
	emb, ok := events[0].(platform.Embedded)
	assert.Equal(t, ok, true)
	assert.Equal(t, emb.Root.ID, DisplayRoot)
	assert.Equal(t, emb.Root.Bounds, platform.Rect{Width: 800, Height: 600})
	assert.Equal(t, emb.Drawn, true)
	assert.Equal(t, len(emb.Descendants), 0)
}

func TestChangesFanOutToSessionsThatKnowTheWindow(t *testing.T) {
	a := New(Options{})
	s1, b1 := connect(a)
	_, b2 := connect(a)
	b1.take()
	b2.take()

	w := wid(s1, 1)
	s1.Handle(platform.Request{Op: platform.OpNewWindow, ChangeID: 1, Window: w})
	s1.Handle(platform.Request{Op: platform.OpSetBounds, ChangeID: 2, Window: w, Bounds: platform.Rect{Width: 10, Height: 10}})
	assert.Equal(t, len(b2.take()), 0)

	s1.Handle(platform.Request{Op: platform.OpAddChild, ChangeID: 3, Window: DisplayRoot, Target: w})
	got := b2.take()
	assert.Equal(t, len(got), 1)
	hc := got[0].(platform.HierarchyChanged)
	assert.Equal(t, hc.Window, w)
	assert.Equal(t, hc.NewParent, DisplayRoot)
	assert.Equal(t, len(hc.Windows), 1)
	assert.Equal(t, hc.Windows[0].Bounds, platform.Rect{Width: 10, Height: 10})

	s1.Handle(platform.Request{Op: platform.OpSetProperty, ChangeID: 4, Window: w, Name: "title", Value: []byte("hi")})
	got = b2.take()
	assert.Equal(t, got, []platform.Event{platform.PropertyChanged{Window: w, Name: "title", Value: []byte("hi"), Present: true}})

	assert.Equal(t, b1.take(), []platform.Event{
		platform.ChangeCompleted{ChangeID: 1, Success: true},
		platform.ChangeCompleted{ChangeID: 2, Success: true},
		platform.ChangeCompleted{ChangeID: 3, Success: true},
		platform.ChangeCompleted{ChangeID: 4, Success: true},
	})

	data, ok := a.Window(w)
	assert.Equal(t, ok, true)
	assert.Equal(t, data.Parent, DisplayRoot)
	assert.Equal(t, string(data.Properties["title"]), "hi")
	assert.Equal(t, len(a.Snapshot()), 2)
}

func TestRejectsForeignAndInvalidRequests(t *testing.T) {
	a := New(Options{})
	s1, b1 := connect(a)
	s2, b2 := connect(a)

	w := wid(s1, 1)
	s1.Handle(platform.Request{Op: platform.OpNewWindow, Window: w})
	b1.take()
	b2.take()

	tests := []struct {
		name string
		s    *Session
		b    *inbox
		req  platform.Request
	}{
		{"foreign bounds", s2, b2, platform.Request{Op: platform.OpSetBounds, Window: w}},
		{"foreign id range", s2, b2, platform.Request{Op: platform.OpNewWindow, Window: wid(s1, 7)}},
		{"duplicate id", s1, b1, platform.Request{Op: platform.OpNewWindow, Window: w}},
		{"unknown window", s1, b1, platform.Request{Op: platform.OpSetVisible, Window: wid(s1, 99)}},
		{"negative size", s1, b1, platform.Request{Op: platform.OpSetBounds, Window: w, Bounds: platform.Rect{Width: -1}}},
		{"opacity range", s1, b1, platform.Request{Op: platform.OpSetOpacity, Window: w, Opacity: 2}},
		{"empty property name", s1, b1, platform.Request{Op: platform.OpSetProperty, Window: w}},
		{"clear modal", s1, b1, platform.Request{Op: platform.OpSetModal, Window: w}},
		{"release without capture", s1, b1, platform.Request{Op: platform.OpReleaseCapture, Window: w}},
		{"foreign delete", s2, b2, platform.Request{Op: platform.OpDeleteWindow, Window: w}},
		{"self child", s1, b1, platform.Request{Op: platform.OpAddChild, Window: w, Target: w}},
		{"drag without operations", s1, b1, platform.Request{Op: platform.OpPerformDrag, Window: w}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.ChangeID = uint32(100 + i)
			tt.s.Handle(tt.req)
			got := tt.b.take()
			assert.Equal(t, len(got), 1)
			switch ev := got[0].(type) {
			case platform.ChangeCompleted:
				assert.Equal(t, ev.Success, false)
			case platform.DragDropDone:
				assert.Equal(t, ev.Success, false)
				assert.Equal(t, ev.Effect, platform.DragNone)
			default:
				t.Fatalf("unexpected reply %#v", ev)
			}
		})
	}
}

func TestRejectOpsPolicy(t *testing.T) {
	a := New(Options{RejectOps: []platform.Op{platform.OpSetVisible}})
	s, b := connect(a)
	b.take()

	w := wid(s, 1)
	s.Handle(platform.Request{Op: platform.OpNewWindow, ChangeID: 1, Window: w})
	s.Handle(platform.Request{Op: platform.OpSetVisible, ChangeID: 2, Window: w, Visible: true})
	assert.Equal(t, b.take(), []platform.Event{
		platform.ChangeCompleted{ChangeID: 1, Success: true},
		platform.ChangeCompleted{ChangeID: 2, Success: false},
	})
	data, _ := a.Window(w)
	assert.Equal(t, data.Visible, false)
}

func TestTopLevelAcknowledgedWithServerState(t *testing.T) {
	a := New(Options{})
	s, b := connect(a)
	b.take()

	w := wid(s, 1)
	s.Handle(platform.Request{
		Op:         platform.OpNewTopLevelWindow,
		ChangeID:   5,
		Window:     w,
		Properties: map[string][]byte{"role": []byte("main")},
	})
	got := b.take()
	assert.Equal(t, len(got), 1)
	ack := got[0].(platform.TopLevelCreated)
	assert.Equal(t, ack.ChangeID, uint32(5))
	assert.Equal(t, ack.Data.ID, w)
	assert.Equal(t, ack.Data.Bounds, defaultTopLevelBounds)
	assert.Equal(t, ack.Data.Opacity, float32(1))
	assert.Equal(t, string(ack.Data.Properties["role"]), "main")
	assert.Equal(t, ack.Drawn, true)
}

func TestCloseDeletesOwnedWindows(t *testing.T) {
	a := New(Options{})
	s1, b1 := connect(a)
	_, b2 := connect(a)

	parent, child, tc := wid(s1, 1), wid(s1, 2), wid(s1, 3)
	for _, id := range []platform.WindowID{parent, child, tc} {
		s1.Handle(platform.Request{Op: platform.OpNewWindow, Window: id})
	}
	s1.Handle(platform.Request{Op: platform.OpAddChild, Window: DisplayRoot, Target: parent})
	s1.Handle(platform.Request{Op: platform.OpAddChild, Window: parent, Target: child})
	s1.Handle(platform.Request{Op: platform.OpAddChild, Window: DisplayRoot, Target: tc})
	s1.Handle(platform.Request{Op: platform.OpAddTransient, Window: parent, Target: tc})
	b1.take()
	b2.take()

	s1.Close()
	s1.Close()

	assert.Equal(t, a.Sessions(), 1)
	assert.Equal(t, len(a.Snapshot()), 1)
	assert.Equal(t, b2.take(), []platform.Event{
		platform.WindowDeleted{Window: tc},
		platform.WindowDeleted{Window: child},
		platform.WindowDeleted{Window: parent},
	})

	// A closed session is inert.
	s1.Handle(platform.Request{Op: platform.OpNewWindow, ChangeID: 1, Window: wid(s1, 9)})
	assert.Equal(t, len(b1.take()), 0)
}

func TestAddChildRejectsCycles(t *testing.T) {
	a := New(Options{})
	s, b := connect(a)
	p, c := wid(s, 1), wid(s, 2)
	s.Handle(platform.Request{Op: platform.OpNewWindow, Window: p})
	s.Handle(platform.Request{Op: platform.OpNewWindow, Window: c})
	s.Handle(platform.Request{Op: platform.OpAddChild, Window: p, Target: c})
	b.take()

	s.Handle(platform.Request{Op: platform.OpAddChild, ChangeID: 1, Window: c, Target: p})
	assert.Equal(t, b.take(), []platform.Event{platform.ChangeCompleted{ChangeID: 1, Success: false}})

	data, _ := a.Window(p)
	assert.Equal(t, data.Parent.IsZero(), true)
}

func TestReorderAndTransientsRestack(t *testing.T) {
	a := New(Options{})
	s1, _ := connect(a)
	_, b2 := connect(a)

	x, y, z := wid(s1, 1), wid(s1, 2), wid(s1, 3)
	for _, id := range []platform.WindowID{x, y, z} {
		s1.Handle(platform.Request{Op: platform.OpNewWindow, Window: id})
		s1.Handle(platform.Request{Op: platform.OpAddChild, Window: DisplayRoot, Target: id})
	}
	b2.take()

	s1.Handle(platform.Request{Op: platform.OpReorder, Window: x, Target: z, Direction: platform.StackAbove})
	assert.Equal(t, b2.take(), []platform.Event{platform.WindowReordered{Window: x, Relative: z, Direction: platform.StackAbove}})
	assert.Equal(t, a.windows[DisplayRoot].children, []platform.WindowID{y, z, x})

	s1.Handle(platform.Request{Op: platform.OpAddTransient, Window: y, Target: x})
	assert.Equal(t, b2.take(), []platform.Event{platform.TransientAdded{Parent: y, Child: x}})
	assert.Equal(t, a.windows[DisplayRoot].children, []platform.WindowID{y, x, z})
}

func TestCaptureAndFocusBroadcast(t *testing.T) {
	a := New(Options{})
	s1, b1 := connect(a)
	_, b2 := connect(a)
	w := wid(s1, 1)
	s1.Handle(platform.Request{Op: platform.OpNewWindow, Window: w})
	b1.take()
	b2.take()

	s1.Handle(platform.Request{Op: platform.OpSetCapture, ChangeID: 1, Window: w})
	s1.Handle(platform.Request{Op: platform.OpReleaseCapture, ChangeID: 2, Window: w})
	s1.Handle(platform.Request{Op: platform.OpSetFocus, ChangeID: 3, Window: w})
	s1.Handle(platform.Request{Op: platform.OpSetFocus, ChangeID: 4})

	assert.Equal(t, b2.take(), []platform.Event{
		platform.CaptureChanged{New: w},
		platform.CaptureChanged{Old: w},
		platform.FocusChanged{Window: w},
		platform.FocusChanged{},
	})
	assert.Equal(t, len(b1.take()), 4)
}

func TestLoopsCompleteImmediately(t *testing.T) {
	a := New(Options{})
	s, b := connect(a)
	w := wid(s, 1)
	s.Handle(platform.Request{Op: platform.OpNewWindow, Window: w})
	b.take()

	s.Handle(platform.Request{Op: platform.OpPerformDrag, ChangeID: 1, Window: w, DragOperations: platform.DragCopy | platform.DragLink})
	s.Handle(platform.Request{Op: platform.OpPerformMoveLoop, ChangeID: 2, Window: w})
	s.Handle(platform.Request{Op: platform.OpCancelMoveLoop, Window: w})
	assert.Equal(t, b.take(), []platform.Event{
		platform.DragDropDone{ChangeID: 1, Success: true, Effect: platform.DragCopy},
		platform.MoveLoopCompleted{ChangeID: 2, Success: true},
	})
}
