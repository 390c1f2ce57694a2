package authority

import (
	"slices"

	"github.com/1broseidon/treemirror/internal/platform"
)

var defaultTopLevelBounds = platform.Rect{Width: 640, Height: 480}

// Handle applies one request from the session and replies with its outcome.
// Accepted changes are forwarded to the other sessions before the reply.
func (s *Session) Handle(req platform.Request) {
	a := s.a
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.closed {
		return
	}

	err := a.apply(s, req)
	if err != nil {
		a.logger.Info("request rejected",
			"client_id", s.clientID,
			"change_id", req.ChangeID,
			"reason", err)
	} else {
		a.logger.Debug("request applied",
			"client_id", s.clientID,
			"op", req.Op,
			"change_id", req.ChangeID,
			"window", req.Window)
	}
	if req.ChangeID == 0 {
		return
	}

	ok := err == nil
	switch req.Op {
	case platform.OpNewTopLevelWindow:
		if ok {
			s.send(platform.TopLevelCreated{ChangeID: req.ChangeID, Data: a.windows[req.Window].data(), Drawn: true})
			return
		}
	case platform.OpPerformDrag:
		effect := platform.DragNone
		if ok {
			effect = req.DragOperations.Preferred()
		}
		s.send(platform.DragDropDone{ChangeID: req.ChangeID, Success: ok, Effect: effect})
		return
	case platform.OpPerformMoveLoop:
		s.send(platform.MoveLoopCompleted{ChangeID: req.ChangeID, Success: ok})
		return
	}
	s.send(platform.ChangeCompleted{ChangeID: req.ChangeID, Success: ok})
}

func (a *Authority) apply(s *Session, req platform.Request) error {
	reject := func(reason string) error {
		return &rejectError{op: req.Op, window: req.Window, reason: reason}
	}
	if a.reject[req.Op] {
		return reject("refused by policy")
	}

	switch req.Op {
	case platform.OpNewWindow, platform.OpNewTopLevelWindow:
		if req.Window.Client != s.clientID || req.Window.Seq == 0 {
			return reject("id outside the client's range")
		}
		if _, exists := a.windows[req.Window]; exists {
			return reject("id in use")
		}
		n := &node{
			id:      req.Window,
			opacity: 1,
			cursor:  platform.CursorPointer,
			props:   make(map[string][]byte),
		}
		if req.Op == platform.OpNewTopLevelWindow {
			n.bounds = defaultTopLevelBounds
		}
		for k, v := range req.Properties {
			n.props[k] = nonNil(slices.Clone(v))
		}
		a.windows[n.id] = n
		s.known[n.id] = true
		return nil
	case platform.OpCancelDrag, platform.OpCancelMoveLoop:
		// Loops complete as soon as they start; nothing is ever in flight.
		return nil
	case platform.OpSetFocus:
		if req.Window.IsZero() {
			a.setFocus(s, req.Window)
			return nil
		}
	}

	n, ok := a.windows[req.Window]
	if !ok {
		return reject("unknown window")
	}
	editable := req.Window.Client == s.clientID || req.Window == DisplayRoot

	switch req.Op {
	case platform.OpSetBounds:
		if !editable {
			return reject("not permitted")
		}
		if req.Bounds.Width < 0 || req.Bounds.Height < 0 {
			return reject("negative size")
		}
		n.bounds = req.Bounds
		a.broadcastKnown(s, n.id, platform.BoundsChanged{Window: n.id, Bounds: n.bounds})
	case platform.OpSetVisible:
		if !editable {
			return reject("not permitted")
		}
		n.visible = req.Visible
		a.broadcastKnown(s, n.id, platform.VisibilityChanged{Window: n.id, Visible: n.visible})
	case platform.OpSetOpacity:
		if !editable {
			return reject("not permitted")
		}
		if req.Opacity < 0 || req.Opacity > 1 {
			return reject("opacity out of range")
		}
		n.opacity = req.Opacity
		a.broadcastKnown(s, n.id, platform.OpacityChanged{Window: n.id, Opacity: n.opacity})
	case platform.OpSetCursor:
		if !editable {
			return reject("not permitted")
		}
		n.cursor = req.Cursor
		a.broadcastKnown(s, n.id, platform.CursorChanged{Window: n.id, Cursor: n.cursor})
	case platform.OpSetProperty:
		if !editable {
			return reject("not permitted")
		}
		if req.Name == "" {
			return reject("empty property name")
		}
		ev := platform.PropertyChanged{Window: n.id, Name: req.Name}
		if req.Delete {
			delete(n.props, req.Name)
		} else {
			n.props[req.Name] = nonNil(slices.Clone(req.Value))
			ev.Value = n.props[req.Name]
			ev.Present = true
		}
		a.broadcastKnown(s, n.id, ev)
	case platform.OpSetModal:
		if !editable {
			return reject("not permitted")
		}
		if !req.Modal {
			return reject("modality cannot be cleared")
		}
		n.modal = true
		a.broadcastKnown(s, n.id, platform.ModalChanged{Window: n.id, Modal: true})

	case platform.OpSetCapture:
		if !editable {
			return reject("not permitted")
		}
		old := a.capture
		a.capture = n.id
		a.broadcast(s, func(*Session) platform.Event {
			return platform.CaptureChanged{New: n.id, Old: old}
		})
	case platform.OpReleaseCapture:
		if a.capture != n.id {
			return reject("window does not hold capture")
		}
		a.capture = platform.WindowID{}
		a.broadcast(s, func(*Session) platform.Event {
			return platform.CaptureChanged{Old: n.id}
		})
	case platform.OpSetFocus:
		a.setFocus(s, n.id)

	case platform.OpAddChild:
		return a.addChild(s, n, req, editable)
	case platform.OpRemoveChild:
		if !editable {
			return reject("not permitted")
		}
		child, ok := a.windows[req.Target]
		if !ok || child.parent != n.id {
			return reject("target is not a child")
		}
		n.children = removeID(n.children, child.id)
		child.parent = platform.WindowID{}
		a.broadcastKnown(s, child.id, platform.HierarchyChanged{Window: child.id, OldParent: n.id})
	case platform.OpReorder:
		if !editable {
			return reject("not permitted")
		}
		rel, ok := a.windows[req.Target]
		if !ok || n.parent.IsZero() || rel.parent != n.parent || rel == n {
			return reject("target is not a sibling")
		}
		parent := a.windows[n.parent]
		children, changed := platform.StackRelative(parent.children, n.id, rel.id, req.Direction)
		if changed {
			parent.children = children
			a.restack(parent)
		}
		ev := platform.WindowReordered{Window: n.id, Relative: rel.id, Direction: req.Direction}
		a.broadcast(s, func(o *Session) platform.Event {
			if !o.known[n.id] || !o.known[rel.id] {
				return nil
			}
			return ev
		})
	case platform.OpAddTransient:
		if !editable {
			return reject("not permitted")
		}
		child, ok := a.windows[req.Target]
		if !ok || child == n || !child.transientParent.IsZero() {
			return reject("invalid transient child")
		}
		for cur := n; cur != nil; cur = a.windows[cur.transientParent] {
			if cur == child {
				return reject("transient cycle")
			}
		}
		child.transientParent = n.id
		n.transientChildren = append(n.transientChildren, child.id)
		if child.parent == n.parent {
			a.restack(a.windows[child.parent])
		}
		a.broadcastPair(s, n.id, child.id, platform.TransientAdded{Parent: n.id, Child: child.id})
	case platform.OpRemoveTransient:
		if !editable {
			return reject("not permitted")
		}
		child, ok := a.windows[req.Target]
		if !ok || child.transientParent != n.id {
			return reject("target is not a transient child")
		}
		child.transientParent = platform.WindowID{}
		n.transientChildren = removeID(n.transientChildren, child.id)
		a.broadcastPair(s, n.id, child.id, platform.TransientRemoved{Parent: n.id, Child: child.id})
	case platform.OpDeleteWindow:
		if n.id.Client != s.clientID {
			return reject("not owner")
		}
		a.deleteWindow(s, n.id)
		delete(s.known, n.id)

	case platform.OpPerformDrag:
		if !editable {
			return reject("not permitted")
		}
		if req.DragOperations == platform.DragNone {
			return reject("no drag operations allowed")
		}
	case platform.OpPerformMoveLoop:
		if !editable {
			return reject("not permitted")
		}
	default:
		return reject("unsupported operation")
	}
	return nil
}

func (a *Authority) addChild(s *Session, parent *node, req platform.Request, editable bool) error {
	reject := func(reason string) error {
		return &rejectError{op: req.Op, window: req.Window, reason: reason}
	}
	child, ok := a.windows[req.Target]
	if !ok {
		return reject("unknown child")
	}
	if !editable || (child.id.Client != s.clientID && child.id != DisplayRoot) {
		return reject("not permitted")
	}
	if a.contains(child.id, parent.id) {
		return reject("would create a cycle")
	}
	if child.parent == parent.id {
		return nil
	}

	old := child.parent
	if p, ok := a.windows[old]; ok {
		p.children = removeID(p.children, child.id)
	}
	child.parent = parent.id
	parent.children = append(parent.children, child.id)
	a.restack(parent)

	a.broadcast(s, func(o *Session) platform.Event {
		switch {
		case o.known[parent.id]:
			batch := a.subtree(child.id)
			for _, d := range batch {
				o.known[d.ID] = true
			}
			return platform.HierarchyChanged{Window: child.id, OldParent: old, NewParent: parent.id, Windows: batch}
		case o.known[child.id]:
			// Moved somewhere this session cannot see.
			return platform.HierarchyChanged{Window: child.id, OldParent: old, NewParent: parent.id}
		}
		return nil
	})
	return nil
}

func (a *Authority) setFocus(s *Session, id platform.WindowID) {
	a.focus = id
	a.broadcast(s, func(*Session) platform.Event {
		return platform.FocusChanged{Window: id}
	})
}

func (a *Authority) broadcastPair(origin *Session, x, y platform.WindowID, ev platform.Event) {
	a.broadcast(origin, func(s *Session) platform.Event {
		if !s.known[x] || !s.known[y] {
			return nil
		}
		return ev
	})
}

func (a *Authority) restack(parent *node) {
	if parent == nil || len(parent.children) < 2 {
		return
	}
	parent.children = platform.StackTransients(parent.children,
		func(id platform.WindowID) platform.WindowID {
			if n, ok := a.windows[id]; ok {
				return n.transientParent
			}
			return platform.WindowID{}
		},
		func(id platform.WindowID) []platform.WindowID {
			if n, ok := a.windows[id]; ok {
				return n.transientChildren
			}
			return nil
		})
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
