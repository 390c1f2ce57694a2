package wintree

import (
	"maps"
	"slices"

	"github.com/1broseidon/treemirror/internal/platform"
)

// NewWindow creates an owned, parentless window. props seeds its properties.
func (c *Client) NewWindow(props map[string][]byte) *Window {
	return c.create(KindNewWindow, platform.OpNewWindow, props)
}

// NewTopLevelWindow creates an owned window that becomes one of the client's
// roots. The server acknowledges it with OnTopLevelCreated.
func (c *Client) NewTopLevelWindow(props map[string][]byte) *Window {
	return c.create(KindNewTopLevelWindow, platform.OpNewTopLevelWindow, props)
}

func (c *Client) create(kind Kind, op platform.Op, props map[string][]byte) *Window {
	w := newWindow(c, c.allocateID())
	for k, v := range props {
		w.properties[k] = nonNil(slices.Clone(v))
	}
	c.register(w)
	if kind == KindNewTopLevelWindow {
		c.addRoot(w.id)
	}
	changeID := c.schedule(kind, w.id, "", Value{})
	c.send(platform.Request{
		Op:         op,
		ChangeID:   changeID,
		Window:     w.id,
		Properties: maps.Clone(w.properties),
	})
	c.notifyCreated(w)
	return w
}

// OnWindowDeleted ingests a server-side deletion. Unknown ids are ignored.
func (c *Client) OnWindowDeleted(id platform.WindowID) {
	w := c.windows[id]
	if w == nil {
		return
	}
	c.destroy(w, false)
}

// OnEmbed registers a subtree another client handed to this one. root becomes
// one of this client's roots; descendants are given parent first.
func (c *Client) OnEmbed(root platform.WindowData, descendants []platform.WindowData, drawn bool) {
	w := c.windows[root.ID]
	var created []*Window
	if w == nil {
		if c.tombstoned(root.ID) {
			delete(c.tombstones, root.ID)
		}
		w = c.fromData(root)
		c.register(w)
		created = append(created, w)
	}
	c.addRoot(w.id)
	w.parentDrawn = drawn

	more, ok := c.materialize(descendants)
	if !ok {
		return
	}
	created = append(created, more...)
	for _, nw := range created {
		c.notifyCreated(nw)
	}
	c.observers.each(func(o Observer) { o.OnEmbed(w) })
}

// OnUnembed discards an embedded subtree without asking the server to delete
// anything.
func (c *Client) OnUnembed(id platform.WindowID) {
	w := c.windows[id]
	if w == nil {
		return
	}
	c.observers.each(func(o Observer) { o.OnUnembed(id) })
	c.destroy(w, false)
}

// destroy removes w and everything below it. requestDelete asks the server to
// delete owned windows; it is false when the server already knows.
func (c *Client) destroy(w *Window, requestDelete bool) {
	if w.destroying {
		return
	}
	w.destroying = true

	for _, id := range slices.Clone(w.transientChildren) {
		if tc := c.windows[id]; tc != nil {
			c.destroy(tc, requestDelete && tc.Owned())
		}
	}
	for _, id := range slices.Clone(w.children) {
		if child := c.windows[id]; child != nil {
			c.destroy(child, false)
		}
	}
	c.detach(w)
	if !w.transientParent.IsZero() {
		c.unlinkTransient(w)
	}

	if dropped := c.ledger.DropWindow(w.id); len(dropped) > 0 {
		c.logger.Debug("dropped pending changes for destroyed window", "window", w.id, "count", len(dropped))
	}
	c.failLoopsFor(w.id)

	if c.capture == w.id {
		c.setCaptureLocal(platform.WindowID{})
	}
	if c.focused == w.id {
		c.setFocusLocal(platform.WindowID{})
	}
	c.ledger.forEach(func(ch *Change) {
		if ch.Kind.Global() && ch.Revert.Window == w.id {
			ch.Revert.Window = platform.WindowID{}
		}
	})

	if requestDelete && w.Owned() {
		changeID := c.schedule(KindDeleteWindow, w.id, "", Value{})
		c.send(platform.Request{Op: platform.OpDeleteWindow, ChangeID: changeID, Window: w.id})
	}

	delete(c.windows, w.id)
	c.removeRoot(w.id)
	c.tombstones[w.id] = struct{}{}
	id := w.id
	c.observers.each(func(o Observer) { o.OnWindowDestroyed(id) })
}

// Teardown discards the whole mirror after the connection is lost. Nothing
// is sent to the server.
func (c *Client) Teardown() {
	for _, w := range c.Windows() {
		if c.windows[w.id] == w {
			c.destroy(w, false)
		}
	}
	c.ledger.Reset()
	c.failLoops()
	c.capture = platform.WindowID{}
	c.focused = platform.WindowID{}
	c.roots = nil
	clear(c.tombstones)
	c.observers.each(func(o Observer) { o.OnConnectionLost() })
}
