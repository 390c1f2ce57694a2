package platform

import "testing"

func TestParseWindowID_RoundTrip(t *testing.T) {
	id := WindowID{Client: 7, Seq: 42}
	got, err := ParseWindowID(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Fatalf("expected %v, got %v", id, got)
	}
}

func TestParseWindowID_Invalid(t *testing.T) {
	for _, in := range []string{"", "7", "a:1", "1:b", "1:2:3"} {
		if _, err := ParseWindowID(in); err == nil {
			t.Errorf("ParseWindowID(%q) expected error", in)
		}
	}
}

func TestDragOperation_Preferred(t *testing.T) {
	tests := []struct {
		in   DragOperation
		want DragOperation
	}{
		{DragNone, DragNone},
		{DragCopy, DragCopy},
		{DragCopy | DragLink, DragCopy},
		{DragCopy | DragMove, DragMove},
		{DragLink, DragLink},
	}
	for _, tt := range tests {
		if got := tt.in.Preferred(); got != tt.want {
			t.Errorf("%v.Preferred() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCursor(t *testing.T) {
	c, err := ParseCursor(CursorHand.String())
	if err != nil || c != CursorHand {
		t.Fatalf("expected hand, got %v (%v)", c, err)
	}
	if _, err := ParseCursor("bogus"); err == nil {
		t.Fatalf("expected error for unknown cursor")
	}
}

func TestOpValid(t *testing.T) {
	if !OpReorder.Valid() || !OpCancelMoveLoop.Valid() {
		t.Fatal("known ops must be valid")
	}
	if Op("set_bounds").Valid() || Op("").Valid() {
		t.Fatal("unknown ops must be invalid")
	}
}
