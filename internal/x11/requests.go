package x11

import (
	"fmt"
	"maps"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xcursor"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/treemirror/internal/platform"
)

// prepare turns req into a job. Window ids are resolved now so that a window
// created by an earlier request in the same batch is already bound.
func (t *Transport) prepare(req platform.Request) (job, error) {
	if !req.Op.Valid() {
		return nil, fmt.Errorf("unsupported op %q", req.Op)
	}

	switch req.Op {
	case platform.OpNewWindow, platform.OpNewTopLevelWindow:
		return t.prepareCreate(req)
	case platform.OpPerformDrag:
		return t.prepareDrag(req), nil
	case platform.OpCancelDrag:
		return t.cancelDrag, nil
	case platform.OpPerformMoveLoop:
		win := t.xid(req.Window)
		return func(emit platform.EventSink) {
			err := t.conn.startMove(win, req.Location.X, req.Location.Y)
			t.logResult(req, err)
			emit(platform.MoveLoopCompleted{ChangeID: req.ChangeID, Success: err == nil})
		}, nil
	case platform.OpCancelMoveLoop:
		win := t.xid(req.Window)
		return func(platform.EventSink) {
			t.logResult(req, t.conn.cancelMove(win))
		}, nil
	}

	run := t.operation(req)
	return func(emit platform.EventSink) {
		err := run()
		t.logResult(req, err)
		if req.ChangeID != 0 {
			emit(platform.ChangeCompleted{ChangeID: req.ChangeID, Success: err == nil})
		}
	}, nil
}

// operation returns the X calls for a request that completes with
// ChangeCompleted.
func (t *Transport) operation(req platform.Request) func() error {
	xu := t.conn.XUtil
	win := t.xid(req.Window)
	target := t.xid(req.Target)

	switch req.Op {
	case platform.OpSetBounds:
		return func() error {
			mask, values := boundsValues(req.Bounds)
			return xproto.ConfigureWindowChecked(t.x, win, mask, values).Check()
		}
	case platform.OpSetVisible:
		return func() error {
			if req.Visible {
				return xproto.MapWindowChecked(t.x, win).Check()
			}
			return xproto.UnmapWindowChecked(t.x, win).Check()
		}
	case platform.OpSetOpacity:
		return func() error {
			return ewmh.WmWindowOpacitySet(xu, win, float64(req.Opacity))
		}
	case platform.OpSetCursor:
		return func() error {
			cursor, err := t.cursor(req.Cursor)
			if err != nil {
				return err
			}
			return xproto.ChangeWindowAttributesChecked(t.x, win, xproto.CwCursor, []uint32{uint32(cursor)}).Check()
		}
	case platform.OpSetProperty:
		return func() error {
			return t.writeProperty(win, req.Name, req.Value, req.Delete)
		}
	case platform.OpSetModal:
		return func() error {
			action := ewmh.StateRemove
			if req.Modal {
				action = ewmh.StateAdd
			}
			return ewmh.WmStateReq(xu, win, action, "_NET_WM_STATE_MODAL")
		}
	case platform.OpSetCapture:
		return func() error {
			return t.grab(win)
		}
	case platform.OpReleaseCapture:
		return func() error {
			return xproto.UngrabPointerChecked(t.x, xproto.TimeCurrentTime).Check()
		}
	case platform.OpSetFocus:
		return func() error {
			return t.focus(win)
		}
	case platform.OpAddChild:
		return func() error {
			return xproto.ReparentWindowChecked(t.x, target, win, 0, 0).Check()
		}
	case platform.OpRemoveChild:
		return func() error {
			return xproto.ReparentWindowChecked(t.x, target, t.conn.Root, 0, 0).Check()
		}
	case platform.OpReorder:
		return func() error {
			mask, values := stackValues(target, req.Direction)
			return xproto.ConfigureWindowChecked(t.x, win, mask, values).Check()
		}
	case platform.OpAddTransient:
		return func() error {
			return icccm.WmTransientForSet(xu, target, win)
		}
	case platform.OpRemoveTransient:
		return func() error {
			atom, err := xprop.Atm(xu, "WM_TRANSIENT_FOR")
			if err != nil {
				return err
			}
			return xproto.DeletePropertyChecked(t.x, target, atom).Check()
		}
	case platform.OpDeleteWindow:
		return func() error {
			return xproto.DestroyWindowChecked(t.x, win).Check()
		}
	}
	return func() error {
		return fmt.Errorf("unsupported op %q", req.Op)
	}
}

func (t *Transport) prepareCreate(req platform.Request) (job, error) {
	xid, err := xproto.NewWindowId(t.x)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}
	t.mu.Lock()
	t.ids.bind(req.Window, xid)
	t.mu.Unlock()

	props := maps.Clone(req.Properties)
	return func(emit platform.EventSink) {
		err := t.create(xid, props)
		t.logResult(req, err)
		if err != nil || req.Op != platform.OpNewTopLevelWindow {
			emit(platform.ChangeCompleted{ChangeID: req.ChangeID, Success: err == nil})
			return
		}
		emit(platform.TopLevelCreated{
			ChangeID: req.ChangeID,
			Data: platform.WindowData{
				ID:         req.Window,
				Bounds:     platform.Rect{Width: 1, Height: 1},
				Opacity:    1,
				Cursor:     platform.CursorPointer,
				Properties: props,
			},
			Drawn: true,
		})
	}, nil
}

// create makes an unmapped 1x1 window under the root. It is reparented when
// the mirror attaches it.
func (t *Transport) create(xid xproto.Window, props map[string][]byte) error {
	err := xproto.CreateWindowChecked(t.x, t.screen.RootDepth, xid, t.conn.Root,
		0, 0, 1, 1, 0, xproto.WindowClassInputOutput, t.screen.RootVisual, 0, nil).Check()
	if err != nil {
		t.untrack(xid)
		return err
	}
	t.track(xid, t.conn.Root, 0)
	for name, value := range props {
		if err := t.writeProperty(xid, name, value, false); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) writeProperty(win xproto.Window, name string, value []byte, remove bool) error {
	atom, err := xprop.Atm(t.conn.XUtil, name)
	if err != nil {
		return err
	}
	if remove {
		return xproto.DeletePropertyChecked(t.x, win, atom).Check()
	}
	return xproto.ChangePropertyChecked(t.x, xproto.PropModeReplace, win, atom,
		xproto.AtomString, 8, uint32(len(value)), value).Check()
}

// readProperty returns the raw bytes of a property. ok is false when the
// property is not set.
func (t *Transport) readProperty(win xproto.Window, name string) (value []byte, ok bool, err error) {
	atom, err := xprop.Atm(t.conn.XUtil, name)
	if err != nil {
		return nil, false, err
	}
	reply, err := xproto.GetProperty(t.x, false, win, atom, xproto.GetPropertyTypeAny, 0, maxPropertyLength).Reply()
	if err != nil {
		return nil, false, err
	}
	if reply.Format == 0 && reply.Type == 0 {
		return nil, false, nil
	}
	return reply.Value, true, nil
}

// focus gives input focus to win. Top-level windows are activated through
// the window manager; None clears focus.
func (t *Transport) focus(win xproto.Window) error {
	if win == 0 {
		return xproto.SetInputFocusChecked(t.x, xproto.InputFocusNone, 0, xproto.TimeCurrentTime).Check()
	}
	if parent, ok := t.parentOf(win); !ok || parent == t.conn.Root {
		if err := t.conn.activate(win); err == nil {
			return nil
		}
	}
	return xproto.SetInputFocusChecked(t.x, xproto.InputFocusParent, win, xproto.TimeCurrentTime).Check()
}

func (t *Transport) grab(win xproto.Window) error {
	mask := uint16(xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease|xproto.EventMaskPointerMotion)
	reply, err := xproto.GrabPointer(t.x, false, win, mask,
		xproto.GrabModeAsync, xproto.GrabModeAsync, 0, 0, xproto.TimeCurrentTime).Reply()
	if err != nil {
		return err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("pointer grab refused with status %d", reply.Status)
	}
	return nil
}

func (t *Transport) cursor(c platform.Cursor) (xproto.Cursor, error) {
	if cur, ok := t.cursors[c]; ok {
		return cur, nil
	}
	glyph, ok := cursorGlyph(c)
	if !ok {
		return 0, fmt.Errorf("unknown cursor %d", c)
	}
	cur, err := xcursor.CreateCursor(t.conn.XUtil, glyph)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s cursor: %w", c, err)
	}
	t.cursors[c] = cur
	return cur, nil
}

// prepareDrag grabs the pointer for win. The drag completes on the next
// button release.
func (t *Transport) prepareDrag(req platform.Request) job {
	win := t.xid(req.Window)
	return func(emit platform.EventSink) {
		t.mu.Lock()
		busy := t.drag != nil
		if !busy {
			t.drag = &pendingDrag{changeID: req.ChangeID, window: win, allowed: req.DragOperations}
		}
		t.mu.Unlock()

		err := fmt.Errorf("drag already in progress")
		if !busy {
			err = t.grab(win)
		}
		t.logResult(req, err)
		if err == nil {
			return
		}
		if !busy {
			t.mu.Lock()
			t.drag = nil
			t.mu.Unlock()
		}
		emit(platform.DragDropDone{ChangeID: req.ChangeID, Success: false, Effect: platform.DragNone})
	}
}

func (t *Transport) cancelDrag(emit platform.EventSink) {
	d := t.takeDrag()
	if d == nil {
		return
	}
	xproto.UngrabPointer(t.x, xproto.TimeCurrentTime)
	emit(platform.DragDropDone{ChangeID: d.changeID, Success: false, Effect: platform.DragNone})
}

func (t *Transport) takeDrag() *pendingDrag {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.drag
	t.drag = nil
	return d
}

func (t *Transport) logResult(req platform.Request, err error) {
	if err != nil {
		t.logger.Info("request failed", "op", req.Op, "change_id", req.ChangeID, "window", req.Window, "error", err)
		return
	}
	t.logger.Debug("request applied", "op", req.Op, "change_id", req.ChangeID, "window", req.Window)
}
