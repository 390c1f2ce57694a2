package wintree

import (
	"maps"

	"github.com/1broseidon/treemirror/internal/platform"
)

// DragDone receives the outcome of a drag: whether it was dropped on an
// accepting target and the effect the target chose.
type DragDone func(success bool, effect platform.DragOperation)

// MoveLoopDone receives the outcome of a window move loop.
type MoveLoopDone func(success bool)

type loopState struct {
	changeID uint32
	window   platform.WindowID
	done     DragDone
}

// DragInProgress reports whether a drag is outstanding.
func (c *Client) DragInProgress() bool {
	return c.drag != nil
}

// MoveLoopInProgress reports whether a move loop is outstanding.
func (c *Client) MoveLoopInProgress() bool {
	return c.moveLoop != nil
}

// PerformDrag starts a drag from w carrying payload. Only one drag may be
// outstanding; a second call fails with ErrLoopActive before anything is sent.
func (c *Client) PerformDrag(w *Window, payload map[string][]byte, allowed platform.DragOperation, at platform.Point, done DragDone) error {
	if c.drag != nil {
		return ErrLoopActive
	}
	if w == nil || c.windows[w.id] != w {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	changeID := c.schedule(KindDragLoop, w.id, "", Value{})
	c.drag = &loopState{changeID: changeID, window: w.id, done: done}
	c.send(platform.Request{
		Op:             platform.OpPerformDrag,
		ChangeID:       changeID,
		Window:         w.id,
		Properties:     maps.Clone(payload),
		DragOperations: allowed,
		Location:       at,
	})
	return nil
}

// CancelDrag asks the server to abort the outstanding drag. The drag still
// completes through OnDragDropDone.
func (c *Client) CancelDrag() {
	if c.drag == nil {
		return
	}
	c.send(platform.Request{Op: platform.OpCancelDrag, Window: c.drag.window})
}

// OnDragDropDone resolves the outstanding drag.
func (c *Client) OnDragDropDone(changeID uint32, success bool, effect platform.DragOperation) {
	ch := c.ledger.Take(changeID)
	if ch == nil || ch.Kind != KindDragLoop {
		c.logger.Debug("drag completion for unknown change", "change_id", changeID)
		return
	}
	c.finishLoop(ch, success, effect)
}

// PerformMoveLoop starts an interactive move of w. Only one move loop may be
// outstanding; a second call fails with ErrLoopActive before anything is sent.
func (c *Client) PerformMoveLoop(w *Window, source platform.MoveLoopSource, at platform.Point, done MoveLoopDone) error {
	if c.moveLoop != nil {
		return ErrLoopActive
	}
	if w == nil || c.windows[w.id] != w {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	changeID := c.schedule(KindMoveLoop, w.id, "", Value{})
	c.moveLoop = &loopState{
		changeID: changeID,
		window:   w.id,
		done: func(success bool, _ platform.DragOperation) {
			if done != nil {
				done(success)
			}
		},
	}
	c.send(platform.Request{
		Op:       platform.OpPerformMoveLoop,
		ChangeID: changeID,
		Window:   w.id,
		Source:   source,
		Location: at,
	})
	return nil
}

// CancelMoveLoop asks the server to abort the outstanding move loop.
func (c *Client) CancelMoveLoop() {
	if c.moveLoop == nil {
		return
	}
	c.send(platform.Request{Op: platform.OpCancelMoveLoop, Window: c.moveLoop.window})
}

// OnMoveLoopCompleted resolves the outstanding move loop.
func (c *Client) OnMoveLoopCompleted(changeID uint32, success bool) {
	ch := c.ledger.Take(changeID)
	if ch == nil || ch.Kind != KindMoveLoop {
		c.logger.Debug("move loop completion for unknown change", "change_id", changeID)
		return
	}
	c.finishLoop(ch, success, platform.DragNone)
}

// finishLoop clears the slot correlated with ch before running its callback,
// so the callback may start a new loop.
func (c *Client) finishLoop(ch *Change, success bool, effect platform.DragOperation) {
	slot := &c.drag
	if ch.Kind == KindMoveLoop {
		slot = &c.moveLoop
	}
	st := *slot
	if st == nil || st.changeID != ch.ID {
		return
	}
	*slot = nil
	if !success {
		effect = platform.DragNone
	}
	c.logger.Debug("loop finished", "kind", ch.Kind, "change_id", ch.ID, "success", success, "effect", effect)
	if st.done != nil {
		st.done(success, effect)
	}
}

// failLoopsFor fails any loop driven by window.
func (c *Client) failLoopsFor(window platform.WindowID) {
	for _, slot := range []**loopState{&c.drag, &c.moveLoop} {
		if st := *slot; st != nil && st.window == window {
			*slot = nil
			if st.done != nil {
				st.done(false, platform.DragNone)
			}
		}
	}
}

func (c *Client) failLoops() {
	for _, slot := range []**loopState{&c.drag, &c.moveLoop} {
		if st := *slot; st != nil {
			*slot = nil
			if st.done != nil {
				st.done(false, platform.DragNone)
			}
		}
	}
}
