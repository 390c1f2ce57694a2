package wintree

import (
	"testing"

	"github.com/1broseidon/treemirror/internal/platform"
)

func TestLedger_ScheduleAssignsIncreasingIDs(t *testing.T) {
	l := NewLedger()
	w := platform.WindowID{Client: 1, Seq: 1}

	first := l.Schedule(&Change{Kind: KindBounds, Window: w})
	second := l.Schedule(&Change{Kind: KindBounds, Window: w})
	if first != 1 || second != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first, second)
	}
	if l.NextID() != 3 {
		t.Fatalf("expected next id 3, got %d", l.NextID())
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 pending, got %d", l.Len())
	}
}

func TestLedger_ScheduleSkipsZeroOnWrap(t *testing.T) {
	l := NewLedger()
	l.nextID = ^uint32(0)

	last := l.Schedule(&Change{Kind: KindVisible})
	if last != ^uint32(0) {
		t.Fatalf("expected max id, got %d", last)
	}
	if got := l.Schedule(&Change{Kind: KindVisible}); got != 1 {
		t.Fatalf("expected wrap to 1, got %d", got)
	}
}

func TestLedger_ScheduleSkipsPendingIDsAfterWrap(t *testing.T) {
	l := NewLedger()
	first := &Change{Kind: KindVisible}
	second := &Change{Kind: KindBounds}
	l.Schedule(first)
	l.Schedule(second)
	l.nextID = ^uint32(0)

	if got := l.Schedule(&Change{Kind: KindOpacity}); got != ^uint32(0) {
		t.Fatalf("expected max id, got %d", got)
	}
	if got := l.Schedule(&Change{Kind: KindCursor}); got != 3 {
		t.Fatalf("expected pending ids 1 and 2 skipped, got %d", got)
	}
	if l.Get(1) != first || l.Get(2) != second {
		t.Fatalf("pending changes must not be overwritten")
	}
	if l.Len() != 4 {
		t.Fatalf("expected 4 pending, got %d", l.Len())
	}
}

func TestLedger_OldestMatching(t *testing.T) {
	l := NewLedger()
	a := platform.WindowID{Client: 1, Seq: 1}
	b := platform.WindowID{Client: 1, Seq: 2}

	l.Schedule(&Change{Kind: KindOpacity, Window: b})
	titleA := l.Schedule(&Change{Kind: KindProperty, Window: a, Key: "title"})
	boundsA1 := l.Schedule(&Change{Kind: KindBounds, Window: a})
	l.Schedule(&Change{Kind: KindBounds, Window: a})
	l.Schedule(&Change{Kind: KindProperty, Window: a, Key: "icon"})

	if got := l.OldestMatching(KindBounds, a, ""); got == nil || got.ID != boundsA1 {
		t.Fatalf("expected oldest bounds change %d, got %+v", boundsA1, got)
	}
	if got := l.OldestMatching(KindProperty, a, "title"); got == nil || got.ID != titleA {
		t.Fatalf("expected title change %d, got %+v", titleA, got)
	}
	if got := l.OldestMatching(KindProperty, a, "name"); got != nil {
		t.Fatalf("expected no match for other key, got %+v", got)
	}
	if got := l.OldestMatching(KindOpacity, a, ""); got != nil {
		t.Fatalf("expected no match for other window, got %+v", got)
	}

	l.Take(boundsA1)
	if got := l.OldestMatching(KindBounds, a, ""); got == nil || got.ID != boundsA1+1 {
		t.Fatalf("expected next bounds change after take, got %+v", got)
	}
}

func TestLedger_DropWindow(t *testing.T) {
	l := NewLedger()
	a := platform.WindowID{Client: 1, Seq: 1}
	b := platform.WindowID{Client: 1, Seq: 2}

	l.Schedule(&Change{Kind: KindBounds, Window: a})
	l.Schedule(&Change{Kind: KindBounds, Window: b})
	l.Schedule(&Change{Kind: KindVisible, Window: a})
	l.Schedule(&Change{Kind: KindFocus})

	dropped := l.DropWindow(a)
	if len(dropped) != 2 || dropped[0].ID != 1 || dropped[1].ID != 3 {
		t.Fatalf("unexpected dropped changes: %+v", dropped)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", l.Len())
	}
	if l.Get(1) != nil {
		t.Fatalf("dropped change still pending")
	}

	snap := l.Snapshot()
	if len(snap) != 2 || snap[0].ID != 2 || snap[1].ID != 4 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger after reset")
	}
	if l.NextID() != 5 {
		t.Fatalf("reset must not reuse ids, next id %d", l.NextID())
	}
}
