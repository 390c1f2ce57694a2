package wintree

import (
	"github.com/1broseidon/treemirror/internal/platform"
)

// fold writes a server-pushed value into the revert slot of the oldest
// pending change for (kind, window, key). It reports whether such a change
// exists; when it does the live value must be left alone.
func (c *Client) fold(kind Kind, window platform.WindowID, key string, v Value) bool {
	ch := c.ledger.OldestMatching(kind, window, key)
	if ch == nil {
		return false
	}
	ch.Revert = v
	c.logger.Debug("folded server update into pending change",
		"change_id", ch.ID,
		"kind", kind,
		"window", window,
		"key", key)
	return true
}

// Complete resolves a pending change with the server's verdict.
//
// A rejected change hands its revert value to the next pending change of the
// same kind, or restores it on the live state when nothing else is queued.
// Unknown ids are ignored: the change may have been dropped when its window
// was destroyed.
func (c *Client) Complete(changeID uint32, success bool) {
	ch := c.ledger.Take(changeID)
	if ch == nil {
		c.logger.Debug("completion for unknown change", "change_id", changeID, "success", success)
		return
	}

	switch ch.Kind {
	case KindDragLoop, KindMoveLoop:
		c.finishLoop(ch, success, platform.DragNone)
		return
	}

	if !success {
		if ch.Kind.MustNotFail() {
			c.fatal(&ProtocolError{Op: ch.Kind.String(), Window: ch.Window, ChangeID: ch.ID, Err: ErrRejected})
			return
		}
		c.logger.Info("change rejected",
			"change_id", ch.ID,
			"kind", ch.Kind,
			"window", ch.Window,
			"key", ch.Key)
		rejected := *ch
		c.observers.each(func(o Observer) { o.OnChangeRejected(rejected) })
	}

	if !ch.Kind.Revertible() {
		return
	}

	if next := c.ledger.OldestMatching(ch.Kind, ch.Window, ch.Key); next != nil {
		if !success {
			next.Revert = ch.Revert
		}
		return
	}
	if !success {
		c.revert(ch)
	}
}

// revert restores a rejected change's value on the live state.
func (c *Client) revert(ch *Change) {
	switch ch.Kind {
	case KindCapture:
		c.setCaptureLocal(c.resolveHolder(ch.Revert.Window))
		return
	case KindFocus:
		c.setFocusLocal(c.resolveHolder(ch.Revert.Window))
		return
	}
	w := c.windows[ch.Window]
	if w == nil {
		return
	}
	if w.value(ch.Kind, ch.Key).equal(ch.Kind, ch.Revert) {
		return
	}
	w.apply(ch.Kind, ch.Key, ch.Revert)
	c.notifyPropertyChanged(w, ch.Kind, ch.Key)
}

// applyServerValue ingests an authoritative value for a window property.
// Pending local changes absorb it; otherwise it replaces the cached value.
func (c *Client) applyServerValue(kind Kind, id platform.WindowID, key string, v Value) {
	w := c.windows[id]
	if w == nil {
		c.logger.Debug("ignoring update for unknown window", "window", id, "kind", kind)
		return
	}
	if c.fold(kind, id, key, v) {
		return
	}
	if w.value(kind, key).equal(kind, v) {
		return
	}
	w.apply(kind, key, v)
	c.notifyPropertyChanged(w, kind, key)
}

// resolveHolder maps a capture or focus holder to zero when the window is no
// longer known.
func (c *Client) resolveHolder(id platform.WindowID) platform.WindowID {
	if id.IsZero() {
		return id
	}
	if _, ok := c.windows[id]; !ok {
		return platform.WindowID{}
	}
	return id
}
