package wintree

import (
	"fmt"
	"slices"

	"github.com/1broseidon/treemirror/internal/platform"
)

// AddChild makes child the topmost child of w, detaching it from its current
// parent first.
func (w *Window) AddChild(child *Window) error {
	c := w.c
	if !w.registered() || child == nil || c.windows[child.id] != child {
		return ErrUnknownWindow
	}
	if !w.editable() || !child.editable() {
		return ErrNotPermitted
	}
	if child.Contains(w) {
		return fmt.Errorf("add %s to %s: %w", child.id, w.id, ErrInvalidHierarchy)
	}
	if child.parent == w.id {
		return nil
	}

	old := child.parent
	changeID := c.schedule(KindAddChild, w.id, "", Value{})
	c.detach(child)
	c.attach(w, child)
	c.send(platform.Request{Op: platform.OpAddChild, ChangeID: changeID, Window: w.id, Target: child.id})
	c.notifyHierarchyChanged(child, old, w.id)
	return nil
}

// RemoveChild detaches child from w.
func (w *Window) RemoveChild(child *Window) error {
	c := w.c
	if !w.registered() || child == nil || c.windows[child.id] != child {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	if child.parent != w.id {
		return ErrNotChild
	}

	changeID := c.schedule(KindRemoveChild, w.id, "", Value{})
	c.detach(child)
	c.send(platform.Request{Op: platform.OpRemoveChild, ChangeID: changeID, Window: w.id, Target: child.id})
	c.notifyHierarchyChanged(child, w.id, platform.WindowID{})
	return nil
}

// Reorder moves w directly above or below relative. Both must share a parent.
func (w *Window) Reorder(relative *Window, direction platform.StackDirection) error {
	c := w.c
	if !w.registered() || relative == nil || c.windows[relative.id] != relative {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	if w.parent.IsZero() || relative.parent != w.parent || relative == w {
		return ErrNotChild
	}

	parent := c.windows[w.parent]
	if !stackRelative(parent, w.id, relative.id, direction) {
		return nil
	}
	changeID := c.schedule(KindReorder, w.id, "", Value{})
	c.restack(parent)
	c.send(platform.Request{
		Op:        platform.OpReorder,
		ChangeID:  changeID,
		Window:    w.id,
		Target:    relative.id,
		Direction: direction,
	})
	c.notifyHierarchyChanged(w, parent.id, parent.id)
	return nil
}

// AddTransient makes child a transient of w: whenever both share a parent,
// child is stacked directly above w.
func (w *Window) AddTransient(child *Window) error {
	c := w.c
	if !w.registered() || child == nil || c.windows[child.id] != child {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	if child == w || !child.transientParent.IsZero() {
		return fmt.Errorf("add transient %s to %s: %w", child.id, w.id, ErrInvalidHierarchy)
	}
	for cur := w; cur != nil; cur = cur.TransientParent() {
		if cur == child {
			return fmt.Errorf("add transient %s to %s: %w", child.id, w.id, ErrInvalidHierarchy)
		}
	}

	changeID := c.schedule(KindAddTransient, w.id, "", Value{})
	c.linkTransient(w, child)
	c.send(platform.Request{Op: platform.OpAddTransient, ChangeID: changeID, Window: w.id, Target: child.id})
	return nil
}

// RemoveTransient clears the transient relationship between w and child.
func (w *Window) RemoveTransient(child *Window) error {
	c := w.c
	if !w.registered() || child == nil || c.windows[child.id] != child {
		return ErrUnknownWindow
	}
	if !w.editable() {
		return ErrNotPermitted
	}
	if child.transientParent != w.id {
		return ErrNotChild
	}

	changeID := c.schedule(KindRemoveTransient, w.id, "", Value{})
	c.unlinkTransient(child)
	c.send(platform.Request{Op: platform.OpRemoveTransient, ChangeID: changeID, Window: w.id, Target: child.id})
	return nil
}

// OnHierarchyChanged ingests a batch of newly visible windows followed by a
// reparent of id. The batch is materialized first, in order; the reparent is
// only applied when id was known before the batch arrived.
func (c *Client) OnHierarchyChanged(id, oldParent, newParent platform.WindowID, batch []platform.WindowData) {
	w, known := c.windows[id]

	created, ok := c.materialize(batch)
	if !ok {
		return
	}
	for _, nw := range created {
		c.notifyCreated(nw)
	}

	if !known {
		if len(created) == 0 {
			c.logger.Debug("hierarchy change for unknown window", "window", id)
		}
		return
	}

	current := w.parent
	np := c.windows[newParent]
	switch {
	case np != nil:
		if w.Contains(np) {
			c.fatal(&ProtocolError{Op: "hierarchy change", Window: id, Err: ErrInvalidHierarchy})
			return
		}
		if current == np.id {
			return
		}
		c.detach(w)
		c.attach(np, w)
	case !current.IsZero():
		// Moved out of this client's view, or to the top level.
		c.detach(w)
	default:
		return
	}
	c.notifyHierarchyChanged(w, current, w.parent)
}

// materialize registers every unknown entry of batch, wiring parents in batch
// order. Entries below a window this client already destroyed are dropped.
func (c *Client) materialize(batch []platform.WindowData) ([]*Window, bool) {
	var created []*Window
	for _, d := range batch {
		if _, exists := c.windows[d.ID]; exists {
			continue
		}
		if c.tombstoned(d.ID) {
			continue
		}
		var parent *Window
		if !d.Parent.IsZero() {
			if c.tombstoned(d.Parent) {
				c.tombstones[d.ID] = struct{}{}
				continue
			}
			parent = c.windows[d.Parent]
			if parent == nil {
				c.fatal(&ProtocolError{Op: "hierarchy change", Window: d.ID, Err: fmt.Errorf("parent %s: %w", d.Parent, ErrUnknownWindow)})
				return created, false
			}
		}

		w := c.fromData(d)
		c.register(w)
		if parent != nil {
			c.attach(parent, w)
		}
		if tp := c.windows[d.TransientParent]; tp != nil && !d.TransientParent.IsZero() {
			c.linkTransient(tp, w)
		}
		created = append(created, w)
	}
	return created, true
}

func (c *Client) fromData(d platform.WindowData) *Window {
	w := newWindow(c, d.ID)
	w.bounds = d.Bounds
	w.visible = d.Visible
	w.opacity = d.Opacity
	w.cursor = d.Cursor
	for k, v := range d.Properties {
		w.properties[k] = nonNil(slices.Clone(v))
	}
	return w
}

// OnWindowReordered ingests a restack decided by the server.
func (c *Client) OnWindowReordered(id, relative platform.WindowID, direction platform.StackDirection) {
	w, rel := c.windows[id], c.windows[relative]
	if w == nil || rel == nil {
		c.logger.Debug("reorder for unknown window", "window", id, "relative", relative)
		return
	}
	if w.parent.IsZero() || w.parent != rel.parent {
		c.fatal(&ProtocolError{Op: "reorder", Window: id, Err: ErrNotChild})
		return
	}
	parent := c.windows[w.parent]
	if stackRelative(parent, id, relative, direction) {
		c.restack(parent)
		c.notifyHierarchyChanged(w, parent.id, parent.id)
	}
}

func (c *Client) OnTransientAdded(parentID, childID platform.WindowID) {
	parent, child := c.windows[parentID], c.windows[childID]
	if parent == nil || child == nil {
		c.logger.Debug("transient add for unknown window", "parent", parentID, "child", childID)
		return
	}
	if child.transientParent == parentID {
		return
	}
	if !child.transientParent.IsZero() {
		c.unlinkTransient(child)
	}
	c.linkTransient(parent, child)
}

func (c *Client) OnTransientRemoved(parentID, childID platform.WindowID) {
	child := c.windows[childID]
	if child == nil || child.transientParent != parentID {
		return
	}
	c.unlinkTransient(child)
}

// attach appends child to parent's children and restores transient stacking.
func (c *Client) attach(parent, child *Window) {
	child.parent = parent.id
	parent.children = append(parent.children, child.id)
	c.restack(parent)
}

func (c *Client) detach(child *Window) {
	if child.parent.IsZero() {
		return
	}
	if parent := c.windows[child.parent]; parent != nil {
		parent.children = removeID(parent.children, child.id)
	}
	child.parent = platform.WindowID{}
}

func (c *Client) linkTransient(parent, child *Window) {
	child.transientParent = parent.id
	parent.transientChildren = append(parent.transientChildren, child.id)
	if p := c.windows[child.parent]; p != nil && child.parent == parent.parent {
		c.restack(p)
	}
}

func (c *Client) unlinkTransient(child *Window) {
	if tp := c.windows[child.transientParent]; tp != nil {
		tp.transientChildren = removeID(tp.transientChildren, child.id)
	}
	child.transientParent = platform.WindowID{}
}

// restack keeps transient children directly above their transient parent
// among parent's children.
func (c *Client) restack(parent *Window) {
	if parent == nil || len(parent.children) < 2 {
		return
	}
	parent.children = platform.StackTransients(parent.children,
		func(id platform.WindowID) platform.WindowID {
			if w := c.windows[id]; w != nil {
				return w.transientParent
			}
			return platform.WindowID{}
		},
		func(id platform.WindowID) []platform.WindowID {
			if w := c.windows[id]; w != nil {
				return w.transientChildren
			}
			return nil
		})
}

// stackRelative moves id directly above or below relative within parent's
// children. It reports whether the order changed.
func stackRelative(parent *Window, id, relative platform.WindowID, direction platform.StackDirection) bool {
	children, changed := platform.StackRelative(parent.children, id, relative, direction)
	parent.children = children
	return changed
}

func removeID(ids []platform.WindowID, id platform.WindowID) []platform.WindowID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
