// Package authority is an in-memory window server. It owns the canonical
// window tree, validates requests from connected sessions and fans accepted
// changes out to every other session that can see the affected windows.
package authority

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/1broseidon/treemirror/internal/platform"
)

// DisplayRoot is the id of the server's display window. Every session
// receives it as an embed root when it connects.
var DisplayRoot = platform.WindowID{Client: 0, Seq: 1}

// Options configures an Authority.
type Options struct {
	// DisplayBounds is the size of the display root.
	DisplayBounds platform.Rect

	// RejectOps lists operations that are always refused. Used to exercise
	// client rollback paths.
	RejectOps []platform.Op

	Logger *slog.Logger
}

// Authority is the single source of truth for the window tree. It is safe
// for concurrent use.
type Authority struct {
	mu       sync.Mutex
	windows  map[platform.WindowID]*node
	sessions map[uint32]*Session
	next     uint32
	reject   map[platform.Op]bool
	capture  platform.WindowID
	focus    platform.WindowID
	logger   *slog.Logger
}

type node struct {
	id                platform.WindowID
	parent            platform.WindowID
	children          []platform.WindowID
	transientParent   platform.WindowID
	transientChildren []platform.WindowID

	bounds  platform.Rect
	visible bool
	opacity float32
	cursor  platform.Cursor
	modal   bool
	props   map[string][]byte
}

func (n *node) data() platform.WindowData {
	props := make(map[string][]byte, len(n.props))
	for k, v := range n.props {
		props[k] = slices.Clone(v)
	}
	return platform.WindowData{
		ID:              n.id,
		Parent:          n.parent,
		TransientParent: n.transientParent,
		Bounds:          n.bounds,
		Visible:         n.visible,
		Opacity:         n.opacity,
		Cursor:          n.cursor,
		Properties:      props,
	}
}

// New creates an authority holding only the display root.
func New(opts Options) *Authority {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bounds := opts.DisplayBounds
	if bounds.Empty() {
		bounds = platform.Rect{Width: 1920, Height: 1080}
	}
	a := &Authority{
		windows:  make(map[platform.WindowID]*node),
		sessions: make(map[uint32]*Session),
		next:     1,
		reject:   make(map[platform.Op]bool),
		logger:   logger,
	}
	for _, op := range opts.RejectOps {
		a.reject[op] = true
	}
	a.windows[DisplayRoot] = &node{
		id:      DisplayRoot,
		bounds:  bounds,
		visible: true,
		opacity: 1,
		props:   make(map[string][]byte),
	}
	return a
}

// Session is one connected client.
type Session struct {
	a        *Authority
	clientID uint32
	id       ulid.ULID
	send     func(platform.Event)

	// known holds every window this session has been told about.
	known  map[platform.WindowID]bool
	closed bool
}

// Connect registers a new session. send receives every event for the
// session, starting with an Embedded snapshot of the display. It is called
// with the authority's lock held and must not block or call back into the
// authority.
func (a *Authority) Connect(send func(platform.Event)) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &Session{
		a:        a,
		clientID: a.next,
		id:       ulid.Make(),
		send:     send,
		known:    make(map[platform.WindowID]bool),
	}
	a.next++
	a.sessions[s.clientID] = s

	tree := a.subtree(DisplayRoot)
	for _, d := range tree {
		s.known[d.ID] = true
	}
	root := tree[0]
	root.Parent = platform.WindowID{}
	s.send(platform.Embedded{Root: root, Descendants: tree[1:], Drawn: true})

	a.logger.Info("session connected", "client_id", s.clientID, "session", s.id, "windows", len(tree))
	return s
}

// ClientID returns the id the session's windows are allocated under.
func (s *Session) ClientID() uint32 {
	return s.clientID
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id.String()
}

// Close deletes every window the session owns and forgets the session.
func (s *Session) Close() {
	a := s.a
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(a.sessions, s.clientID)

	var owned []platform.WindowID
	for id := range a.windows {
		if id.Client == s.clientID {
			owned = append(owned, id)
		}
	}
	slices.SortFunc(owned, func(x, y platform.WindowID) int { return cmp.Compare(x.Seq, y.Seq) })
	for _, id := range owned {
		if _, ok := a.windows[id]; ok {
			a.deleteWindow(nil, id)
		}
	}
	a.logger.Info("session closed", "client_id", s.clientID, "session", s.id, "deleted", len(owned))
}

// Snapshot returns every window reachable from the display root, parent
// first.
func (a *Authority) Snapshot() []platform.WindowData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subtree(DisplayRoot)
}

// Window returns the server's copy of a window.
func (a *Authority) Window(id platform.WindowID) (platform.WindowData, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.windows[id]
	if !ok {
		return platform.WindowData{}, false
	}
	return n.data(), true
}

// Sessions returns the number of connected sessions.
func (a *Authority) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// subtree returns id and its descendants in parent-first order.
func (a *Authority) subtree(id platform.WindowID) []platform.WindowData {
	n, ok := a.windows[id]
	if !ok {
		return nil
	}
	out := []platform.WindowData{n.data()}
	for _, child := range n.children {
		out = append(out, a.subtree(child)...)
	}
	return out
}

func (a *Authority) contains(ancestor, id platform.WindowID) bool {
	for cur := id; !cur.IsZero(); {
		if cur == ancestor {
			return true
		}
		n, ok := a.windows[cur]
		if !ok {
			return false
		}
		cur = n.parent
	}
	return false
}

// broadcast sends the event built by fn to every session except origin. fn
// may return nil to skip a session.
func (a *Authority) broadcast(origin *Session, fn func(s *Session) platform.Event) {
	for _, id := range slices.Sorted(maps.Keys(a.sessions)) {
		s := a.sessions[id]
		if s == origin {
			continue
		}
		if ev := fn(s); ev != nil {
			s.send(ev)
		}
	}
}

// broadcastKnown sends ev to every other session that knows window.
func (a *Authority) broadcastKnown(origin *Session, window platform.WindowID, ev platform.Event) {
	a.broadcast(origin, func(s *Session) platform.Event {
		if !s.known[window] {
			return nil
		}
		return ev
	})
}

// deleteWindow removes id with its transient children and descendants,
// telling every session that knows a removed window. origin may be nil.
func (a *Authority) deleteWindow(origin *Session, id platform.WindowID) {
	n, ok := a.windows[id]
	if !ok {
		return
	}
	for _, tc := range slices.Clone(n.transientChildren) {
		a.deleteWindow(origin, tc)
	}
	for _, child := range slices.Clone(n.children) {
		a.deleteWindow(origin, child)
	}
	if p, ok := a.windows[n.parent]; ok {
		p.children = removeID(p.children, id)
	}
	if tp, ok := a.windows[n.transientParent]; ok {
		tp.transientChildren = removeID(tp.transientChildren, id)
	}
	delete(a.windows, id)
	if a.capture == id {
		a.capture = platform.WindowID{}
	}
	if a.focus == id {
		a.focus = platform.WindowID{}
	}

	a.broadcastKnown(origin, id, platform.WindowDeleted{Window: id})
	for _, s := range a.sessions {
		delete(s.known, id)
	}
}

func removeID(ids []platform.WindowID, id platform.WindowID) []platform.WindowID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}

// rejectError describes why a request was refused. It is logged, never sent:
// the protocol only carries success or failure.
type rejectError struct {
	op     platform.Op
	window platform.WindowID
	reason string
}

func (e *rejectError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.op, e.window, e.reason)
}
