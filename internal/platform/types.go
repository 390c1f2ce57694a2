package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// WindowID identifies a window across every client attached to a server.
// Client is the id of the client that created the window and Seq is that
// client's private counter, so ids never collide without a central allocator.
type WindowID struct {
	Client uint32 `json:"client"`
	Seq    uint32 `json:"seq"`
}

// IsZero reports whether id names no window.
func (id WindowID) IsZero() bool {
	return id.Client == 0 && id.Seq == 0
}

func (id WindowID) String() string {
	return fmt.Sprintf("%d:%d", id.Client, id.Seq)
}

// ParseWindowID parses the "client:seq" form produced by String.
func ParseWindowID(s string) (WindowID, error) {
	client, seq, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return WindowID{}, fmt.Errorf("invalid window id %q: expected client:seq", s)
	}
	c, err := strconv.ParseUint(client, 10, 32)
	if err != nil {
		return WindowID{}, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	n, err := strconv.ParseUint(seq, 10, 32)
	if err != nil {
		return WindowID{}, fmt.Errorf("invalid window id %q: %w", s, err)
	}
	return WindowID{Client: uint32(c), Seq: uint32(n)}, nil
}

// Rect describes a rectangular region in parent coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// Point is a location in screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cursor is one of the predefined pointer shapes a window can request.
type Cursor int

const (
	CursorPointer Cursor = iota
	CursorHand
	CursorIBeam
	CursorWait
	CursorMove
	CursorCross
	CursorResizeEW
	CursorResizeNS
	CursorHelp
	CursorNone
)

var cursorNames = []string{
	CursorPointer:  "pointer",
	CursorHand:     "hand",
	CursorIBeam:    "ibeam",
	CursorWait:     "wait",
	CursorMove:     "move",
	CursorCross:    "cross",
	CursorResizeEW: "resize-ew",
	CursorResizeNS: "resize-ns",
	CursorHelp:     "help",
	CursorNone:     "none",
}

func (c Cursor) String() string {
	if c < 0 || int(c) >= len(cursorNames) {
		return "unknown"
	}
	return cursorNames[c]
}

// ParseCursor maps a cursor name back to its value.
func ParseCursor(s string) (Cursor, error) {
	for i, name := range cursorNames {
		if name == s {
			return Cursor(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cursor %q", s)
}

// StackDirection places a window relative to a sibling.
type StackDirection int

const (
	StackAbove StackDirection = iota
	StackBelow
)

func (d StackDirection) String() string {
	if d == StackBelow {
		return "below"
	}
	return "above"
}

// DragOperation is a bit set of drag-and-drop effects.
type DragOperation uint32

const (
	DragNone DragOperation = 0
	DragCopy DragOperation = 1 << 0
	DragLink DragOperation = 1 << 1
	DragMove DragOperation = 1 << 2
)

// Preferred picks the single effect a target would choose from the allowed set.
func (o DragOperation) Preferred() DragOperation {
	switch {
	case o&DragMove != 0:
		return DragMove
	case o&DragCopy != 0:
		return DragCopy
	case o&DragLink != 0:
		return DragLink
	default:
		return DragNone
	}
}

func (o DragOperation) String() string {
	if o == DragNone {
		return "none"
	}
	var parts []string
	if o&DragCopy != 0 {
		parts = append(parts, "copy")
	}
	if o&DragLink != 0 {
		parts = append(parts, "link")
	}
	if o&DragMove != 0 {
		parts = append(parts, "move")
	}
	return strings.Join(parts, "|")
}

// MoveLoopSource says which input device drives a window move loop.
type MoveLoopSource int

const (
	MoveLoopMouse MoveLoopSource = iota
	MoveLoopTouch
)
