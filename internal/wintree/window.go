package wintree

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Window is the client's cached copy of one server window. Relationships are
// stored as ids and resolved through the owning Client.
type Window struct {
	c  *Client
	id platform.WindowID

	bounds     platform.Rect
	visible    bool
	opacity    float32
	cursor     platform.Cursor
	modal      bool
	properties map[string][]byte

	parent            platform.WindowID
	children          []platform.WindowID
	transientParent   platform.WindowID
	transientChildren []platform.WindowID

	// parentDrawn is supplied by the server for windows at the top of this
	// client's view; it says whether everything above them is drawn.
	parentDrawn bool
	destroying  bool
}

func newWindow(c *Client, id platform.WindowID) *Window {
	return &Window{
		c:          c,
		id:         id,
		opacity:    1,
		cursor:     platform.CursorPointer,
		properties: make(map[string][]byte),
	}
}

func (w *Window) ID() platform.WindowID   { return w.id }
func (w *Window) Bounds() platform.Rect   { return w.bounds }
func (w *Window) Visible() bool           { return w.visible }
func (w *Window) Opacity() float32        { return w.opacity }
func (w *Window) Cursor() platform.Cursor { return w.cursor }
func (w *Window) Modal() bool             { return w.modal }

func (w *Window) String() string {
	return fmt.Sprintf("window(%s)", w.id)
}

// Property returns a copy of the named property and whether it is set.
func (w *Window) Property(name string) ([]byte, bool) {
	v, ok := w.properties[name]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Properties returns a copy of every set property.
func (w *Window) Properties() map[string][]byte {
	out := make(map[string][]byte, len(w.properties))
	for k, v := range w.properties {
		out[k] = bytes.Clone(v)
	}
	return out
}

// PropertyNames returns the set property names in sorted order.
func (w *Window) PropertyNames() []string {
	names := slices.Collect(maps.Keys(w.properties))
	sort.Strings(names)
	return names
}

// Owned reports whether this client created the window.
func (w *Window) Owned() bool {
	return w.id.Client == w.c.id
}

// IsRoot reports whether the window is one of the client's roots.
func (w *Window) IsRoot() bool {
	return slices.Contains(w.c.roots, w.id)
}

// Parent returns the parent window, or nil for a top-level window.
func (w *Window) Parent() *Window {
	return w.c.windows[w.parent]
}

// Children returns the children ordered back to front.
func (w *Window) Children() []*Window {
	return w.c.resolve(w.children)
}

// TransientParent returns the window this one stays above, or nil.
func (w *Window) TransientParent() *Window {
	return w.c.windows[w.transientParent]
}

// TransientChildren returns the windows kept above this one.
func (w *Window) TransientChildren() []*Window {
	return w.c.resolve(w.transientChildren)
}

// Contains reports whether other is w or one of its descendants.
func (w *Window) Contains(other *Window) bool {
	for cur := other; cur != nil; cur = cur.Parent() {
		if cur == w {
			return true
		}
	}
	return false
}

// IsDrawn reports whether the window and every ancestor are visible and the
// server says the top of the chain is attached to a drawn display.
func (w *Window) IsDrawn() bool {
	cur := w
	for {
		if !cur.visible {
			return false
		}
		parent := cur.Parent()
		if parent == nil {
			return cur.parentDrawn
		}
		cur = parent
	}
}

// registered reports whether w is still the client's copy of its id. Handles
// outlive Destroy and server deletes.
func (w *Window) registered() bool {
	return w.c.windows[w.id] == w
}

// editable reports whether this client may issue changes for the window.
func (w *Window) editable() bool {
	return w.Owned() || w.IsRoot()
}

// SetBounds moves or resizes the window.
func (w *Window) SetBounds(r platform.Rect) {
	w.mutate(KindBounds, "", Value{Bounds: r}, platform.Request{Op: platform.OpSetBounds, Bounds: r})
}

// SetVisible shows or hides the window.
func (w *Window) SetVisible(visible bool) {
	w.mutate(KindVisible, "", Value{Visible: visible}, platform.Request{Op: platform.OpSetVisible, Visible: visible})
}

// SetOpacity sets the opacity, clamped to [0, 1]. NaN is ignored.
func (w *Window) SetOpacity(opacity float32) {
	if math.IsNaN(float64(opacity)) {
		return
	}
	opacity = max(0, min(1, opacity))
	w.mutate(KindOpacity, "", Value{Opacity: opacity}, platform.Request{Op: platform.OpSetOpacity, Opacity: opacity})
}

// SetCursor selects one of the predefined cursors.
func (w *Window) SetCursor(cursor platform.Cursor) {
	w.mutate(KindCursor, "", Value{Cursor: cursor}, platform.Request{Op: platform.OpSetCursor, Cursor: cursor})
}

// SetModal marks the window modal. Windows cannot be made non-modal again.
func (w *Window) SetModal() {
	w.mutate(KindModal, "", Value{Modal: true}, platform.Request{Op: platform.OpSetModal, Modal: true})
}

// SetProperty sets a named property. A nil value clears it.
func (w *Window) SetProperty(name string, value []byte) {
	req := platform.Request{Op: platform.OpSetProperty, Name: name, Value: bytes.Clone(value), Delete: value == nil}
	w.mutate(KindProperty, name, PropertyValue(value), req)
}

// SetTypedProperty encodes v through the client's PropertyConverter and
// stores the result with SetProperty. A nil v clears the property.
func (w *Window) SetTypedProperty(name string, v any) error {
	if v == nil {
		w.SetProperty(name, nil)
		return nil
	}
	if w.c.converter == nil {
		return ErrNoConverter
	}
	data, err := w.c.converter.Encode(name, v)
	if err != nil {
		return fmt.Errorf("encode property %q: %w", name, err)
	}
	w.SetProperty(name, data)
	return nil
}

// TypedProperty decodes the named property through the client's
// PropertyConverter.
func (w *Window) TypedProperty(name string) (any, bool, error) {
	data, ok := w.properties[name]
	if !ok {
		return nil, false, nil
	}
	if w.c.converter == nil {
		return nil, true, ErrNoConverter
	}
	v, err := w.c.converter.Decode(name, data)
	if err != nil {
		return nil, true, fmt.Errorf("decode property %q: %w", name, err)
	}
	return v, true, nil
}

// mutate applies next optimistically and records the previous value as the
// change's revert target.
func (w *Window) mutate(kind Kind, key string, next Value, req platform.Request) {
	if !w.registered() {
		w.c.logger.Debug("ignoring change on destroyed window", "window", w.id, "kind", kind)
		return
	}
	cur := w.value(kind, key)
	if cur.equal(kind, next) {
		return
	}
	if !w.editable() {
		w.c.logger.Debug("ignoring change on foreign window", "window", w.id, "kind", kind)
		return
	}
	req.Window = w.id
	req.ChangeID = w.c.schedule(kind, w.id, key, cur)
	w.apply(kind, key, next)
	w.c.send(req)
	w.c.notifyPropertyChanged(w, kind, key)
}

func (w *Window) value(kind Kind, key string) Value {
	switch kind {
	case KindBounds:
		return Value{Bounds: w.bounds}
	case KindVisible:
		return Value{Visible: w.visible}
	case KindOpacity:
		return Value{Opacity: w.opacity}
	case KindCursor:
		return Value{Cursor: w.cursor}
	case KindModal:
		return Value{Modal: w.modal}
	case KindProperty:
		data, ok := w.properties[key]
		if !ok {
			return Value{}
		}
		return Value{Data: bytes.Clone(data), Present: true}
	}
	panic(fmt.Sprintf("wintree: %s is not a window property", kind))
}

func (w *Window) apply(kind Kind, key string, v Value) {
	switch kind {
	case KindBounds:
		w.bounds = v.Bounds
	case KindVisible:
		w.visible = v.Visible
	case KindOpacity:
		w.opacity = v.Opacity
	case KindCursor:
		w.cursor = v.Cursor
	case KindModal:
		w.modal = v.Modal
	case KindProperty:
		if v.Present {
			w.properties[key] = bytes.Clone(v.Data)
		} else {
			delete(w.properties, key)
		}
	default:
		panic(fmt.Sprintf("wintree: %s is not a window property", kind))
	}
}

// Destroy destroys the window and everything below it. Owned windows are
// deleted on the server as well.
func (w *Window) Destroy() {
	w.c.destroy(w, true)
}
