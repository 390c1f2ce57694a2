package x11

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/treemirror/internal/platform"
)

var errDisconnected = errors.New("X server closed the connection")

// Run embeds the current top-level windows, starts the request worker and
// translates X events into sink until ctx is cancelled or the connection
// closes. Cancelling ctx closes the X connection.
func (t *Transport) Run(ctx context.Context, sink platform.EventSink) error {
	defer t.stop()

	err := xproto.ChangeWindowAttributesChecked(t.x, t.conn.Root, xproto.CwEventMask,
		[]uint32{xproto.EventMaskSubstructureNotify}).Check()
	if err != nil {
		return fmt.Errorf("failed to select root events: %w", err)
	}
	if err := t.snapshot(sink); err != nil {
		return err
	}

	workerDone := make(chan struct{})
	go t.work(sink, workerDone)
	defer func() {
		t.stop()
		<-workerDone
	}()

	// The worker must be idle before the connection closes: xgb panics on
	// requests issued after Close.
	stop := context.AfterFunc(ctx, func() {
		t.stop()
		<-workerDone
		t.conn.Close()
	})
	defer stop()

	for {
		ev, xerr := t.x.WaitForEvent()
		if ev == nil && xerr == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errDisconnected
		}
		if xerr != nil {
			t.logger.Debug("X error", "error", xerr)
			continue
		}
		t.translate(ev, sink)
	}
}

// snapshot embeds every mirrorable child of the root with its descendants.
func (t *Transport) snapshot(sink platform.EventSink) error {
	tree, err := xproto.QueryTree(t.x, t.conn.Root).Reply()
	if err != nil {
		return fmt.Errorf("failed to query root children: %w", err)
	}
	for _, xid := range tree.Children {
		if t.skipTopLevel(xid) {
			continue
		}
		t.track(xid, t.conn.Root, 0)
		root, err := t.describe(xid, t.conn.Root)
		if err != nil {
			t.untrack(xid)
			continue
		}
		sink(platform.Embedded{Root: root, Descendants: t.descendants(xid, 0), Drawn: true})
	}
	return nil
}

func (t *Transport) skipTopLevel(xid xproto.Window) bool {
	t.mu.Lock()
	internal := t.ids.internal(xid)
	t.mu.Unlock()
	if internal {
		return true
	}
	types, err := ewmh.WmWindowTypeGet(t.conn.XUtil, xid)
	return err == nil && !mirrorable(types)
}

// descendants tracks and describes the subtree below xid, parent first, down
// to the configured depth.
func (t *Transport) descendants(xid xproto.Window, depth int) []platform.WindowData {
	if depth >= t.depth {
		return nil
	}
	tree, err := xproto.QueryTree(t.x, xid).Reply()
	if err != nil {
		return nil
	}
	var out []platform.WindowData
	for _, child := range tree.Children {
		t.track(child, xid, depth+1)
		data, err := t.describe(child, xid)
		if err != nil {
			t.untrack(child)
			continue
		}
		out = append(out, data)
		out = append(out, t.descendants(child, depth+1)...)
	}
	return out
}

// describe reads the mirrored state of xid.
func (t *Transport) describe(xid, parent xproto.Window) (platform.WindowData, error) {
	xu := t.conn.XUtil
	geom, err := xproto.GetGeometry(t.x, xproto.Drawable(xid)).Reply()
	if err != nil {
		return platform.WindowData{}, err
	}
	attrs, err := xproto.GetWindowAttributes(t.x, xid).Reply()
	if err != nil {
		return platform.WindowData{}, err
	}

	data := platform.WindowData{
		ID:      t.id(xid),
		Parent:  t.id(parent),
		Bounds:  rectFromGeometry(geom.X, geom.Y, geom.Width, geom.Height),
		Visible: attrs.MapState != xproto.MapStateUnmapped,
		Opacity: 1,
		Cursor:  platform.CursorPointer,
	}
	if opacity, err := ewmh.WmWindowOpacityGet(xu, xid); err == nil {
		data.Opacity = float32(opacity)
	}
	if tp, err := icccm.WmTransientForGet(xu, xid); err == nil && tp != 0 {
		t.mu.Lock()
		t.transients[xid] = tp
		t.mu.Unlock()
		data.TransientParent = t.id(tp)
	}
	for name := range t.props {
		value, ok, err := t.readProperty(xid, name)
		if err != nil || !ok {
			continue
		}
		if data.Properties == nil {
			data.Properties = make(map[string][]byte)
		}
		data.Properties[name] = value
	}
	return data, nil
}

func (t *Transport) translate(ev any, sink platform.EventSink) {
	switch e := ev.(type) {
	case xproto.CreateNotifyEvent:
		t.onCreate(e, sink)
	case xproto.ReparentNotifyEvent:
		t.onReparent(e, sink)
	case xproto.DestroyNotifyEvent:
		t.onDestroy(e.Window, sink)
	case xproto.ConfigureNotifyEvent:
		t.onConfigure(e, sink)
	case xproto.MapNotifyEvent:
		if _, ok := t.depthOf(e.Window); ok {
			sink(platform.VisibilityChanged{Window: t.id(e.Window), Visible: true})
		}
	case xproto.UnmapNotifyEvent:
		if _, ok := t.depthOf(e.Window); ok {
			sink(platform.VisibilityChanged{Window: t.id(e.Window), Visible: false})
		}
	case xproto.PropertyNotifyEvent:
		t.onProperty(e, sink)
	case xproto.FocusInEvent:
		if e.Mode != xproto.NotifyModeNormal {
			return
		}
		switch e.Detail {
		case xproto.NotifyDetailAncestor, xproto.NotifyDetailInferior, xproto.NotifyDetailNonlinear:
			if _, ok := t.depthOf(e.Event); ok {
				sink(platform.FocusChanged{Window: t.id(e.Event)})
			}
		}
	case xproto.ButtonReleaseEvent:
		if d := t.takeDrag(); d != nil {
			xproto.UngrabPointer(t.x, xproto.TimeCurrentTime)
			sink(platform.DragDropDone{ChangeID: d.changeID, Success: true, Effect: d.allowed.Preferred()})
		}
	}
}

func (t *Transport) onCreate(e xproto.CreateNotifyEvent, sink platform.EventSink) {
	depth, ok := t.depthOf(e.Parent)
	if !ok {
		return
	}
	t.mu.Lock()
	skip := t.ids.owned(e.Window) || t.ids.internal(e.Window)
	t.mu.Unlock()
	if skip {
		return
	}

	t.track(e.Window, e.Parent, depth+1)
	data, err := t.describe(e.Window, e.Parent)
	if err != nil {
		// Gone already; its DestroyNotify follows.
		t.untrack(e.Window)
		return
	}
	if e.Parent == t.conn.Root {
		sink(platform.Embedded{Root: data, Drawn: true})
		return
	}
	sink(platform.HierarchyChanged{Window: data.ID, NewParent: data.Parent, Windows: []platform.WindowData{data}})
}

func (t *Transport) onReparent(e xproto.ReparentNotifyEvent, sink platform.EventSink) {
	depth, into := t.depthOf(e.Parent)
	if e.Event != e.Parent && into {
		// Reported again through the new parent.
		return
	}

	oldParent, tracked := t.parentOf(e.Window)
	t.mu.Lock()
	owned := t.ids.owned(e.Window)
	t.mu.Unlock()
	id := t.id(e.Window)

	if !into {
		if tracked {
			sink(platform.HierarchyChanged{Window: id, OldParent: t.id(oldParent)})
			t.untrack(e.Window)
		}
		return
	}

	t.track(e.Window, e.Parent, depth+1)
	if e.Parent == t.conn.Root {
		if tracked {
			sink(platform.HierarchyChanged{Window: id, OldParent: t.id(oldParent)})
		}
		if owned {
			return
		}
		data, err := t.describe(e.Window, e.Parent)
		if err != nil {
			return
		}
		sink(platform.Embedded{Root: data, Descendants: t.descendants(e.Window, 0), Drawn: true})
		return
	}

	data, err := t.describe(e.Window, e.Parent)
	if err != nil {
		return
	}
	batch := append([]platform.WindowData{data}, t.descendants(e.Window, depth+1)...)
	sink(platform.HierarchyChanged{Window: id, OldParent: t.id(oldParent), NewParent: data.Parent, Windows: batch})
}

func (t *Transport) onDestroy(xid xproto.Window, sink platform.EventSink) {
	if _, ok := t.depthOf(xid); !ok {
		return
	}
	sink(platform.WindowDeleted{Window: t.id(xid)})

	t.mu.Lock()
	var lost *pendingDrag
	if t.drag != nil && t.drag.window == xid {
		lost, t.drag = t.drag, nil
	}
	t.mu.Unlock()
	t.untrack(xid)

	if lost != nil {
		sink(platform.DragDropDone{ChangeID: lost.changeID, Success: false, Effect: platform.DragNone})
	}
}

func (t *Transport) onConfigure(e xproto.ConfigureNotifyEvent, sink platform.EventSink) {
	if _, ok := t.depthOf(e.Window); !ok {
		return
	}
	id := t.id(e.Window)
	sink(platform.BoundsChanged{Window: id, Bounds: rectFromGeometry(e.X, e.Y, e.Width, e.Height)})

	// Stacking among top-level windows belongs to the window manager.
	parent, _ := t.parentOf(e.Window)
	if parent == t.conn.Root || e.AboveSibling == 0 {
		return
	}
	if _, ok := t.depthOf(e.AboveSibling); ok {
		sink(platform.WindowReordered{Window: id, Relative: t.id(e.AboveSibling), Direction: platform.StackAbove})
	}
}

func (t *Transport) onProperty(e xproto.PropertyNotifyEvent, sink platform.EventSink) {
	if _, ok := t.depthOf(e.Window); !ok {
		return
	}
	xu := t.conn.XUtil
	name, err := xprop.AtomName(xu, e.Atom)
	if err != nil {
		return
	}
	id := t.id(e.Window)

	switch name {
	case "_NET_WM_WINDOW_OPACITY":
		opacity := 1.0
		if v, err := ewmh.WmWindowOpacityGet(xu, e.Window); err == nil {
			opacity = v
		}
		sink(platform.OpacityChanged{Window: id, Opacity: float32(opacity)})
	case "_NET_WM_STATE":
		states, _ := ewmh.WmStateGet(xu, e.Window)
		sink(platform.ModalChanged{Window: id, Modal: slices.Contains(states, "_NET_WM_STATE_MODAL")})
	case "WM_TRANSIENT_FOR":
		var parent xproto.Window
		if e.State != xproto.PropertyDelete {
			parent, _ = icccm.WmTransientForGet(xu, e.Window)
		}
		t.mu.Lock()
		old := t.transients[e.Window]
		if parent == 0 {
			delete(t.transients, e.Window)
		} else {
			t.transients[e.Window] = parent
		}
		t.mu.Unlock()
		if old == parent {
			return
		}
		if old != 0 {
			sink(platform.TransientRemoved{Parent: t.id(old), Child: id})
		}
		if parent != 0 {
			sink(platform.TransientAdded{Parent: t.id(parent), Child: id})
		}
	default:
		if !t.props[name] {
			return
		}
		if e.State == xproto.PropertyDelete {
			sink(platform.PropertyChanged{Window: id, Name: name})
			return
		}
		value, ok, err := t.readProperty(e.Window, name)
		if err != nil {
			return
		}
		sink(platform.PropertyChanged{Window: id, Name: name, Value: value, Present: ok})
	}
}
