package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xcursor"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Directions of _NET_WM_MOVERESIZE used by move loops.
const (
	moveresizeMove   = 8
	moveresizeCancel = 11
)

// sourceIndication marks client messages as coming from a pager or direct
// user action.
const sourceIndication = 2

const maxPropertyLength = 1 << 20

var cursorGlyphs = map[platform.Cursor]uint16{
	platform.CursorPointer:  xcursor.LeftPtr,
	platform.CursorHand:     xcursor.Hand2,
	platform.CursorIBeam:    xcursor.XTerm,
	platform.CursorWait:     xcursor.Watch,
	platform.CursorMove:     xcursor.Fleur,
	platform.CursorCross:    xcursor.Crosshair,
	platform.CursorResizeEW: xcursor.SBHDoubleArrow,
	platform.CursorResizeNS: xcursor.SBVDoubleArrow,
	platform.CursorHelp:     xcursor.QuestionArrow,
	platform.CursorNone:     xcursor.XCursor,
}

// cursorGlyph returns the core cursor font glyph for c.
func cursorGlyph(c platform.Cursor) (uint16, bool) {
	g, ok := cursorGlyphs[c]
	return g, ok
}

// boundsValues builds a ConfigureWindow mask and value list for r. Negative
// coordinates travel as two's complement.
func boundsValues(r platform.Rect) (uint16, []uint32) {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY |
		xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	return mask, []uint32{
		uint32(int32(r.X)),
		uint32(int32(r.Y)),
		uint32(r.Width),
		uint32(r.Height),
	}
}

// stackValues builds a ConfigureWindow mask and value list placing a window
// directly above or below sibling.
func stackValues(sibling xproto.Window, dir platform.StackDirection) (uint16, []uint32) {
	mode := uint32(xproto.StackModeAbove)
	if dir == platform.StackBelow {
		mode = xproto.StackModeBelow
	}
	return uint16(xproto.ConfigWindowSibling | xproto.ConfigWindowStackMode),
		[]uint32{uint32(sibling), mode}
}

func rectFromGeometry(x, y int16, w, h uint16) platform.Rect {
	return platform.Rect{X: int(x), Y: int(y), Width: int(w), Height: int(h)}
}

// mirrorable reports whether a top-level window of the given EWMH types
// belongs in the mirror. Desktop backgrounds, docks, splash screens and
// notifications are left out.
func mirrorable(types []string) bool {
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return true
}
