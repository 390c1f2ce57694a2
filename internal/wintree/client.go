package wintree

import (
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/1broseidon/treemirror/internal/platform"
)

// PropertyConverter translates typed property values to the byte blobs the
// server stores, and back.
type PropertyConverter interface {
	Encode(name string, v any) ([]byte, error)
	Decode(name string, data []byte) (any, error)
}

// Options configures a Client.
type Options struct {
	// ClientID is the id the server assigned to this connection. It forms
	// the first half of every window id the client allocates.
	ClientID  uint32
	Transport platform.Transport
	Converter PropertyConverter
	Logger    *slog.Logger

	// OnFatal is called with a *ProtocolError when the client and server
	// have diverged. The default panics.
	OnFatal func(error)

	// Now stamps new changes. Defaults to time.Now.
	Now func() time.Time
}

// Client mirrors the part of the server's window tree visible to one
// connection. It is not safe for concurrent use: every call, including event
// ingestion, must happen on a single goroutine (see daemon.Runner).
type Client struct {
	id        uint32
	transport platform.Transport
	converter PropertyConverter
	logger    *slog.Logger
	onFatal   func(error)
	now       func() time.Time

	windows    map[platform.WindowID]*Window
	roots      []platform.WindowID
	tombstones map[platform.WindowID]struct{}
	nextSeq    uint32

	ledger *Ledger

	capture platform.WindowID
	focused platform.WindowID

	drag     *loopState
	moveLoop *loopState

	observers observerList
}

// New creates a client for a freshly established connection.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	onFatal := opts.OnFatal
	if onFatal == nil {
		onFatal = func(err error) { panic(err) }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		id:         opts.ClientID,
		transport:  opts.Transport,
		converter:  opts.Converter,
		logger:     logger.With("client_id", opts.ClientID),
		onFatal:    onFatal,
		now:        now,
		windows:    make(map[platform.WindowID]*Window),
		tombstones: make(map[platform.WindowID]struct{}),
		ledger:     NewLedger(),
	}
}

// ID returns the server-assigned client id.
func (c *Client) ID() uint32 {
	return c.id
}

// AddObserver registers o. Observers must be comparable (typically pointers).
func (c *Client) AddObserver(o Observer) {
	c.observers.add(o)
}

func (c *Client) RemoveObserver(o Observer) {
	c.observers.remove(o)
}

// Window returns the window with id, or nil.
func (c *Client) Window(id platform.WindowID) *Window {
	return c.windows[id]
}

// Windows returns every known window ordered by id.
func (c *Client) Windows() []*Window {
	out := make([]*Window, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessID(out[i].id, out[j].id)
	})
	return out
}

// Roots returns the client's roots in the order they were added.
func (c *Client) Roots() []*Window {
	return c.resolve(c.roots)
}

// PendingChanges returns the unresolved changes ordered by id.
func (c *Client) PendingChanges() []Change {
	return c.ledger.Snapshot()
}

// NextChangeID returns the id the next scheduled change will receive.
func (c *Client) NextChangeID() uint32 {
	return c.ledger.NextID()
}

func (c *Client) resolve(ids []platform.WindowID) []*Window {
	out := make([]*Window, 0, len(ids))
	for _, id := range ids {
		if w := c.windows[id]; w != nil {
			out = append(out, w)
		}
	}
	return out
}

func (c *Client) allocateID() platform.WindowID {
	c.nextSeq++
	return platform.WindowID{Client: c.id, Seq: c.nextSeq}
}

func (c *Client) register(w *Window) {
	c.windows[w.id] = w
	if w.id.Client == c.id && w.id.Seq > c.nextSeq {
		c.nextSeq = w.id.Seq
	}
}

func (c *Client) addRoot(id platform.WindowID) {
	if !slices.Contains(c.roots, id) {
		c.roots = append(c.roots, id)
	}
}

func (c *Client) removeRoot(id platform.WindowID) {
	if i := slices.Index(c.roots, id); i >= 0 {
		c.roots = slices.Delete(c.roots, i, i+1)
	}
}

func (c *Client) tombstoned(id platform.WindowID) bool {
	_, ok := c.tombstones[id]
	return ok
}

// schedule records a change and returns its id. A window-scoped change must
// target a registered window.
func (c *Client) schedule(kind Kind, window platform.WindowID, key string, revert Value) uint32 {
	if !window.IsZero() {
		if _, ok := c.windows[window]; !ok {
			c.fatal(&ProtocolError{Op: "schedule " + kind.String(), Window: window, Err: ErrUnknownWindow})
			return 0
		}
	}
	id := c.ledger.Schedule(&Change{
		Kind:    kind,
		Window:  window,
		Key:     key,
		Revert:  revert,
		Created: c.now(),
	})
	c.logger.Debug("change scheduled", "change_id", id, "kind", kind, "window", window, "key", key)
	return id
}

// send hands req to the transport. A failed send leaves the change pending;
// the connection teardown that follows a broken transport discards it.
func (c *Client) send(req platform.Request) {
	if c.transport == nil {
		return
	}
	if err := c.transport.Send(req); err != nil {
		c.logger.Warn("failed to send request",
			"op", req.Op,
			"change_id", req.ChangeID,
			"window", req.Window,
			"error", err)
	}
}

func (c *Client) fatal(err error) {
	c.logger.Error("protocol invariant violated", "error", err)
	c.onFatal(err)
}

func (c *Client) notifyPropertyChanged(w *Window, kind Kind, key string) {
	c.observers.each(func(o Observer) { o.OnPropertyChanged(w, kind, key) })
}

func (c *Client) notifyHierarchyChanged(w *Window, oldParent, newParent platform.WindowID) {
	c.observers.each(func(o Observer) { o.OnHierarchyChanged(w, oldParent, newParent) })
}

func (c *Client) notifyCreated(w *Window) {
	c.observers.each(func(o Observer) { o.OnWindowCreated(w) })
}

// Dispatch routes a server event to its ingestion method.
func (c *Client) Dispatch(ev platform.Event) {
	switch ev := ev.(type) {
	case platform.ChangeCompleted:
		c.Complete(ev.ChangeID, ev.Success)
	case platform.HierarchyChanged:
		c.OnHierarchyChanged(ev.Window, ev.OldParent, ev.NewParent, ev.Windows)
	case platform.WindowDeleted:
		c.OnWindowDeleted(ev.Window)
	case platform.BoundsChanged:
		c.OnBoundsChanged(ev.Window, ev.Bounds)
	case platform.VisibilityChanged:
		c.OnVisibilityChanged(ev.Window, ev.Visible)
	case platform.OpacityChanged:
		c.OnOpacityChanged(ev.Window, ev.Opacity)
	case platform.CursorChanged:
		c.OnCursorChanged(ev.Window, ev.Cursor)
	case platform.PropertyChanged:
		var data []byte
		if ev.Present {
			data = ev.Value
			if data == nil {
				data = []byte{}
			}
		}
		c.OnPropertyChanged(ev.Window, ev.Name, data)
	case platform.ModalChanged:
		c.OnModalChanged(ev.Window, ev.Modal)
	case platform.CaptureChanged:
		c.OnCaptureChanged(ev.New, ev.Old)
	case platform.FocusChanged:
		c.OnFocusChanged(ev.Window)
	case platform.TopLevelCreated:
		c.OnTopLevelCreated(ev.ChangeID, ev.Data, ev.Drawn)
	case platform.DrawnStateChanged:
		c.OnDrawnStateChanged(ev.Window, ev.Drawn)
	case platform.WindowReordered:
		c.OnWindowReordered(ev.Window, ev.Relative, ev.Direction)
	case platform.TransientAdded:
		c.OnTransientAdded(ev.Parent, ev.Child)
	case platform.TransientRemoved:
		c.OnTransientRemoved(ev.Parent, ev.Child)
	case platform.Embedded:
		c.OnEmbed(ev.Root, ev.Descendants, ev.Drawn)
	case platform.Unembedded:
		c.OnUnembed(ev.Root)
	case platform.DragDropDone:
		c.OnDragDropDone(ev.ChangeID, ev.Success, ev.Effect)
	case platform.MoveLoopCompleted:
		c.OnMoveLoopCompleted(ev.ChangeID, ev.Success)
	case platform.ConnectionLost:
		c.logger.Info("connection lost", "reason", ev.Reason)
		c.Teardown()
	default:
		c.logger.Warn("ignoring unknown event", "event", ev.EventName())
	}
}

func lessID(a, b platform.WindowID) bool {
	if a.Client != b.Client {
		return a.Client < b.Client
	}
	return a.Seq < b.Seq
}
