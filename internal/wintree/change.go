package wintree

import (
	"bytes"
	"time"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Kind tags the mutation a Change tracks.
type Kind int

const (
	KindBounds Kind = iota
	KindVisible
	KindOpacity
	KindCursor
	KindProperty
	KindCapture
	KindFocus
	KindModal
	KindAddChild
	KindRemoveChild
	KindReorder
	KindAddTransient
	KindRemoveTransient
	KindNewWindow
	KindNewTopLevelWindow
	KindDeleteWindow
	KindDragLoop
	KindMoveLoop
)

var kindNames = [...]string{
	KindBounds:            "BOUNDS",
	KindVisible:           "VISIBLE",
	KindOpacity:           "OPACITY",
	KindCursor:            "CURSOR",
	KindProperty:          "PROPERTY",
	KindCapture:           "CAPTURE",
	KindFocus:             "FOCUS",
	KindModal:             "MODAL",
	KindAddChild:          "ADD_CHILD",
	KindRemoveChild:       "REMOVE_CHILD",
	KindReorder:           "REORDER",
	KindAddTransient:      "ADD_TRANSIENT",
	KindRemoveTransient:   "REMOVE_TRANSIENT",
	KindNewWindow:         "NEW_WINDOW",
	KindNewTopLevelWindow: "NEW_TOP_LEVEL_WINDOW",
	KindDeleteWindow:      "DELETE_WINDOW",
	KindDragLoop:          "DRAG_LOOP",
	KindMoveLoop:          "MOVE_LOOP",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// MustNotFail reports whether a server rejection of this kind means the
// client and server trees have diverged.
func (k Kind) MustNotFail() bool {
	switch k {
	case KindAddChild, KindRemoveChild, KindReorder, KindAddTransient,
		KindRemoveTransient, KindNewWindow, KindNewTopLevelWindow, KindDeleteWindow:
		return true
	}
	return false
}

// Revertible reports whether the kind carries a value that is restored when
// the change is rejected.
func (k Kind) Revertible() bool {
	switch k {
	case KindBounds, KindVisible, KindOpacity, KindCursor, KindProperty,
		KindCapture, KindFocus, KindModal:
		return true
	}
	return false
}

// Global reports whether the kind is scoped to the whole client rather than
// a single window.
func (k Kind) Global() bool {
	return k == KindCapture || k == KindFocus
}

// Value holds a property value. Which field is meaningful depends on the Kind
// it is paired with.
type Value struct {
	Bounds  platform.Rect
	Visible bool
	Opacity float32
	Cursor  platform.Cursor
	Modal   bool

	// Data and Present carry KindProperty; Present is false for an unset
	// property.
	Data    []byte
	Present bool

	// Window carries KindCapture and KindFocus; zero means no holder.
	Window platform.WindowID
}

// PropertyValue builds a KindProperty value. A nil data means unset.
func PropertyValue(data []byte) Value {
	if data == nil {
		return Value{}
	}
	return Value{Data: bytes.Clone(data), Present: true}
}

func (v Value) equal(kind Kind, o Value) bool {
	switch kind {
	case KindBounds:
		return v.Bounds == o.Bounds
	case KindVisible:
		return v.Visible == o.Visible
	case KindOpacity:
		return v.Opacity == o.Opacity
	case KindCursor:
		return v.Cursor == o.Cursor
	case KindModal:
		return v.Modal == o.Modal
	case KindProperty:
		return v.Present == o.Present && bytes.Equal(v.Data, o.Data)
	case KindCapture, KindFocus:
		return v.Window == o.Window
	}
	return false
}

// Change is one optimistically applied mutation awaiting the server's verdict.
type Change struct {
	ID      uint32
	Kind    Kind
	Window  platform.WindowID
	Key     string
	Revert  Value
	Created time.Time
}

func (c *Change) matches(kind Kind, window platform.WindowID, key string) bool {
	if c.Kind != kind || c.Window != window {
		return false
	}
	return kind != KindProperty || c.Key == key
}
