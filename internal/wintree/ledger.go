package wintree

import (
	"sort"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Ledger tracks every change that has been sent but not yet resolved, keyed
// by change id.
type Ledger struct {
	pending map[uint32]*Change
	nextID  uint32
}

// NewLedger returns an empty ledger whose first change id is 1.
func NewLedger() *Ledger {
	return &Ledger{
		pending: make(map[uint32]*Change),
		nextID:  1,
	}
}

// NextID returns the id the next scheduled change will receive.
func (l *Ledger) NextID() uint32 {
	return l.nextID
}

// Schedule assigns ch a fresh id, records it as pending and returns the id.
// After a wrap, ids still pending are skipped.
func (l *Ledger) Schedule(ch *Change) uint32 {
	for {
		id := l.advance()
		if _, taken := l.pending[id]; !taken {
			ch.ID = id
			break
		}
	}
	l.pending[ch.ID] = ch
	return ch.ID
}

// advance returns nextID and moves past it, skipping 0.
func (l *Ledger) advance() uint32 {
	id := l.nextID
	l.nextID++
	if l.nextID == 0 {
		l.nextID = 1
	}
	return id
}

// Get returns the pending change with id, or nil.
func (l *Ledger) Get(id uint32) *Change {
	return l.pending[id]
}

// Take removes and returns the pending change with id, or nil.
func (l *Ledger) Take(id uint32) *Change {
	ch, ok := l.pending[id]
	if !ok {
		return nil
	}
	delete(l.pending, id)
	return ch
}

// OldestMatching returns the earliest pending change for (kind, window) and,
// for KindProperty, key. Only this change is ever updated by server pushes.
func (l *Ledger) OldestMatching(kind Kind, window platform.WindowID, key string) *Change {
	var oldest *Change
	for _, ch := range l.pending {
		if !ch.matches(kind, window, key) {
			continue
		}
		if oldest == nil || ch.ID < oldest.ID {
			oldest = ch
		}
	}
	return oldest
}

// DropWindow removes every pending change that targets window without
// resolving it, and returns the dropped changes ordered by id.
func (l *Ledger) DropWindow(window platform.WindowID) []*Change {
	var dropped []*Change
	for id, ch := range l.pending {
		if ch.Window == window {
			dropped = append(dropped, ch)
			delete(l.pending, id)
		}
	}
	sort.Slice(dropped, func(i, j int) bool {
		return dropped[i].ID < dropped[j].ID
	})
	return dropped
}

func (l *Ledger) forEach(fn func(*Change)) {
	for _, ch := range l.pending {
		fn(ch)
	}
}

// Len returns the number of pending changes.
func (l *Ledger) Len() int {
	return len(l.pending)
}

// Snapshot returns copies of the pending changes ordered by id.
func (l *Ledger) Snapshot() []Change {
	out := make([]Change, 0, len(l.pending))
	for _, ch := range l.pending {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Reset discards every pending change. Ids keep increasing.
func (l *Ledger) Reset() {
	l.pending = make(map[uint32]*Change)
}
