package wintree

import (
	"github.com/1broseidon/treemirror/internal/platform"
)

// Capture returns the window holding pointer capture, or nil.
func (c *Client) Capture() *Window {
	return c.windows[c.capture]
}

// Focused returns the focused window, or nil.
func (c *Client) Focused() *Window {
	return c.windows[c.focused]
}

// SetCapture routes all pointer input to w. The previous holder loses capture
// immediately.
func (c *Client) SetCapture(w *Window) error {
	if w == nil || c.windows[w.id] != w {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	if c.capture == w.id {
		return nil
	}
	changeID := c.schedule(KindCapture, platform.WindowID{}, "", Value{Window: c.capture})
	c.setCaptureLocal(w.id)
	c.send(platform.Request{Op: platform.OpSetCapture, ChangeID: changeID, Window: w.id})
	return nil
}

// ReleaseCapture releases capture if w holds it.
func (c *Client) ReleaseCapture(w *Window) error {
	if w == nil || c.windows[w.id] != w {
		return ErrUnknownWindow
	}
	if c.capture != w.id {
		return nil
	}
	changeID := c.schedule(KindCapture, platform.WindowID{}, "", Value{Window: w.id})
	c.setCaptureLocal(platform.WindowID{})
	c.send(platform.Request{Op: platform.OpReleaseCapture, ChangeID: changeID, Window: w.id})
	return nil
}

// SetFocus focuses w. A nil w clears focus.
func (c *Client) SetFocus(w *Window) error {
	var id platform.WindowID
	if w != nil {
		if c.windows[w.id] != w {
			return ErrUnknownWindow
		}
		id = w.id
	}
	if c.focused == id {
		return nil
	}
	changeID := c.schedule(KindFocus, platform.WindowID{}, "", Value{Window: c.focused})
	c.setFocusLocal(id)
	c.send(platform.Request{Op: platform.OpSetFocus, ChangeID: changeID, Window: id})
	return nil
}

// setCaptureLocal moves capture without talking to the server. The old holder
// is notified before the new one.
func (c *Client) setCaptureLocal(id platform.WindowID) {
	old := c.capture
	if old == id {
		return
	}
	c.capture = id
	if !old.IsZero() {
		c.observers.each(func(o Observer) { o.OnCaptureLost(old) })
	}
	if !id.IsZero() {
		c.observers.each(func(o Observer) { o.OnCaptureGained(id) })
	}
}

func (c *Client) setFocusLocal(id platform.WindowID) {
	old := c.focused
	if old == id {
		return
	}
	c.focused = id
	if !old.IsZero() {
		c.observers.each(func(o Observer) { o.OnFocusLost(old) })
	}
	if !id.IsZero() {
		c.observers.each(func(o Observer) { o.OnFocusGained(id) })
	}
}
