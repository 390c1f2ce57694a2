package x11

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/treemirror/internal/platform"
)

// ErrClosed is returned by Send once Run has returned.
var ErrClosed = errors.New("x11 transport closed")

// jobQueue bounds the requests waiting for the completion worker.
const jobQueue = 1024

// Options configures a Transport.
type Options struct {
	// Properties lists the property names mirrored from X windows. Each
	// name is used verbatim as the X atom name.
	Properties []string

	// SnapshotDepth is how many levels below each top-level window are
	// mirrored. Zero mirrors top-level windows only.
	SnapshotDepth int

	Logger *slog.Logger
}

// job performs one request and reports its outcome through emit.
type job func(emit platform.EventSink)

type pendingDrag struct {
	changeID uint32
	window   xproto.Window
	allowed  platform.DragOperation
}

// Transport mirrors the windows of a real X server. Requests run in order on
// a single worker goroutine so completions are reported in request order;
// X events are translated on the goroutine calling Run.
type Transport struct {
	conn   *Connection
	x      *xgb.Conn
	screen *xproto.ScreenInfo
	props  map[string]bool
	depth  int
	logger *slog.Logger

	jobs     chan job
	stopped  chan struct{}
	stopOnce sync.Once

	// cursors is only touched by the worker.
	cursors map[platform.Cursor]xproto.Cursor

	mu         sync.Mutex
	ids        *idMap
	tracked    map[xproto.Window]int
	parents    map[xproto.Window]xproto.Window
	transients map[xproto.Window]xproto.Window
	drag       *pendingDrag
}

// NewTransport creates a transport over conn. Call Run to start it.
func NewTransport(conn *Connection, opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	x := conn.XUtil.Conn()
	setup := xproto.Setup(x)

	props := make(map[string]bool, len(opts.Properties))
	for _, name := range opts.Properties {
		props[name] = true
	}

	return &Transport{
		conn:       conn,
		x:          x,
		screen:     conn.XUtil.Screen(),
		props:      props,
		depth:      max(opts.SnapshotDepth, 0),
		logger:     logger,
		jobs:       make(chan job, jobQueue),
		stopped:    make(chan struct{}),
		cursors:    make(map[platform.Cursor]xproto.Cursor),
		ids:        newIDMap(conn.Root, setup.ResourceIdBase, setup.ResourceIdMask),
		tracked:    make(map[xproto.Window]int),
		parents:    make(map[xproto.Window]xproto.Window),
		transients: make(map[xproto.Window]xproto.Window),
	}
}

// ClientID returns the X resource id base of this connection. Windows created
// through the mirror carry it as their Client.
func (t *Transport) ClientID() uint32 {
	return t.ids.base
}

// Send queues req for the worker. It never waits for the X server.
func (t *Transport) Send(req platform.Request) error {
	j, err := t.prepare(req)
	if err != nil {
		return err
	}
	select {
	case t.jobs <- j:
		return nil
	case <-t.stopped:
		return ErrClosed
	}
}

func (t *Transport) stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

func (t *Transport) work(sink platform.EventSink, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case j := <-t.jobs:
			j(sink)
		case <-t.stopped:
			return
		}
	}
}

// id maps xid to its mirror id.
func (t *Transport) id(xid xproto.Window) platform.WindowID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ids.fromXID(xid)
}

func (t *Transport) xid(id platform.WindowID) xproto.Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ids.toXID(id)
}

// depthOf returns the mirror depth of xid: -1 for the root, 0 for top-level
// windows. ok is false for windows the mirror does not follow.
func (t *Transport) depthOf(xid xproto.Window) (int, bool) {
	if xid == t.conn.Root {
		return -1, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.tracked[xid]
	return d, ok
}

// track records xid under parent and selects the events the mirror needs
// from it.
func (t *Transport) track(xid, parent xproto.Window, depth int) {
	t.mu.Lock()
	t.tracked[xid] = depth
	t.parents[xid] = parent
	owned := t.ids.owned(xid)
	t.mu.Unlock()

	mask := uint32(xproto.EventMaskPropertyChange | xproto.EventMaskFocusChange)
	if owned || depth < t.depth {
		mask |= xproto.EventMaskSubstructureNotify
	}
	xproto.ChangeWindowAttributes(t.x, xid, xproto.CwEventMask, []uint32{mask})
}

func (t *Transport) untrack(xid xproto.Window) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, xid)
	delete(t.parents, xid)
	delete(t.transients, xid)
	t.ids.unbind(xid)
}

func (t *Transport) parentOf(xid xproto.Window) (xproto.Window, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parents[xid]
	return p, ok
}
