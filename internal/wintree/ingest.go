package wintree

import (
	"maps"
	"slices"

	"github.com/1broseidon/treemirror/internal/platform"
)

func (c *Client) OnBoundsChanged(id platform.WindowID, bounds platform.Rect) {
	c.applyServerValue(KindBounds, id, "", Value{Bounds: bounds})
}

func (c *Client) OnVisibilityChanged(id platform.WindowID, visible bool) {
	c.applyServerValue(KindVisible, id, "", Value{Visible: visible})
}

func (c *Client) OnOpacityChanged(id platform.WindowID, opacity float32) {
	c.applyServerValue(KindOpacity, id, "", Value{Opacity: opacity})
}

func (c *Client) OnCursorChanged(id platform.WindowID, cursor platform.Cursor) {
	c.applyServerValue(KindCursor, id, "", Value{Cursor: cursor})
}

// OnPropertyChanged ingests a named property. A nil data means the property
// was removed.
func (c *Client) OnPropertyChanged(id platform.WindowID, name string, data []byte) {
	c.applyServerValue(KindProperty, id, name, PropertyValue(data))
}

func (c *Client) OnModalChanged(id platform.WindowID, modal bool) {
	c.applyServerValue(KindModal, id, "", Value{Modal: modal})
}

// OnCaptureChanged ingests a capture move decided by the server. Holders the
// client does not know are treated as no holder.
func (c *Client) OnCaptureChanged(newHolder, oldHolder platform.WindowID) {
	newHolder = c.resolveHolder(newHolder)
	if c.fold(KindCapture, platform.WindowID{}, "", Value{Window: newHolder}) {
		return
	}
	if c.capture != oldHolder && !oldHolder.IsZero() {
		c.logger.Debug("capture change does not match local holder",
			"local", c.capture,
			"old", oldHolder,
			"new", newHolder)
	}
	c.setCaptureLocal(newHolder)
}

// OnFocusChanged ingests a focus move decided by the server.
func (c *Client) OnFocusChanged(id platform.WindowID) {
	id = c.resolveHolder(id)
	if c.fold(KindFocus, platform.WindowID{}, "", Value{Window: id}) {
		return
	}
	c.setFocusLocal(id)
}

// OnTopLevelCreated acknowledges a NewTopLevelWindow request and merges the
// server's initial state into the window. Values the client has changed since
// the request are folded into those changes instead.
func (c *Client) OnTopLevelCreated(changeID uint32, data platform.WindowData, drawn bool) {
	ch := c.ledger.Get(changeID)
	if ch == nil || ch.Kind != KindNewTopLevelWindow {
		// Destroyed before the ack; DELETE_WINDOW is already on its way.
		c.logger.Debug("top-level ack for unknown change", "change_id", changeID, "window", data.ID)
		return
	}
	c.ledger.Take(changeID)

	w := c.windows[ch.Window]
	if w == nil {
		return
	}
	if data.ID != ch.Window {
		c.fatal(&ProtocolError{Op: "NEW_TOP_LEVEL_WINDOW", Window: data.ID, ChangeID: changeID, Err: ErrUnknownWindow})
		return
	}

	c.applyServerValue(KindBounds, w.id, "", Value{Bounds: data.Bounds})
	c.applyServerValue(KindVisible, w.id, "", Value{Visible: data.Visible})
	c.applyServerValue(KindOpacity, w.id, "", Value{Opacity: data.Opacity})
	c.applyServerValue(KindCursor, w.id, "", Value{Cursor: data.Cursor})
	for _, name := range sortedKeys(data.Properties) {
		c.applyServerValue(KindProperty, w.id, name, PropertyValue(nonNil(data.Properties[name])))
	}
	w.parentDrawn = drawn
}

// OnDrawnStateChanged records whether the display above a top-level window is
// drawn.
func (c *Client) OnDrawnStateChanged(id platform.WindowID, drawn bool) {
	w := c.windows[id]
	if w == nil {
		return
	}
	w.parentDrawn = drawn
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func sortedKeys(m map[string][]byte) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}
