package x11

import (
	"slices"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/treemirror/internal/platform"
)

func TestCursorGlyphCoversEveryCursor(t *testing.T) {
	for c := platform.CursorPointer; c <= platform.CursorNone; c++ {
		if _, ok := cursorGlyph(c); !ok {
			t.Fatalf("no glyph for cursor %s", c)
		}
	}
	if _, ok := cursorGlyph(platform.Cursor(99)); ok {
		t.Fatalf("glyph found for unknown cursor")
	}
	if g, _ := cursorGlyph(platform.CursorPointer); g != 68 {
		t.Fatalf("pointer glyph = %d, want left_ptr (68)", g)
	}
}

func TestBoundsValues(t *testing.T) {
	tests := []struct {
		name string
		rect platform.Rect
		want []uint32
	}{
		{
			name: "positive origin",
			rect: platform.Rect{X: 10, Y: 20, Width: 300, Height: 200},
			want: []uint32{10, 20, 300, 200},
		},
		{
			name: "negative origin is two's complement",
			rect: platform.Rect{X: -1, Y: -5, Width: 1, Height: 1},
			want: []uint32{0xffffffff, 0xfffffffb, 1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, values := boundsValues(tt.rect)
			wantMask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
			if mask != wantMask {
				t.Fatalf("mask = %#x, want %#x", mask, wantMask)
			}
			if !slices.Equal(values, tt.want) {
				t.Fatalf("values = %v, want %v", values, tt.want)
			}
		})
	}
}

func TestStackValues(t *testing.T) {
	sibling := xproto.Window(0x400007)

	mask, values := stackValues(sibling, platform.StackAbove)
	if mask != xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode {
		t.Fatalf("mask = %#x", mask)
	}
	if !slices.Equal(values, []uint32{uint32(sibling), xproto.StackModeAbove}) {
		t.Fatalf("above values = %v", values)
	}

	_, values = stackValues(sibling, platform.StackBelow)
	if values[1] != xproto.StackModeBelow {
		t.Fatalf("below mode = %d, want %d", values[1], xproto.StackModeBelow)
	}
}

func TestMirrorable(t *testing.T) {
	tests := []struct {
		types []string
		want  bool
	}{
		{nil, true},
		{[]string{"_NET_WM_WINDOW_TYPE_NORMAL"}, true},
		{[]string{"_NET_WM_WINDOW_TYPE_DIALOG"}, true},
		{[]string{"_NET_WM_WINDOW_TYPE_DOCK"}, false},
		{[]string{"_NET_WM_WINDOW_TYPE_DESKTOP"}, false},
		{[]string{"_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DOCK"}, true},
	}
	for _, tt := range tests {
		if got := mirrorable(tt.types); got != tt.want {
			t.Fatalf("mirrorable(%v) = %v, want %v", tt.types, got, tt.want)
		}
	}
}
