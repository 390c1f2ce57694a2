package platform

// Op names the operation a Request asks the server to perform.
type Op string

const (
	OpSetBounds         Op = "SET_BOUNDS"
	OpSetVisible        Op = "SET_VISIBLE"
	OpSetOpacity        Op = "SET_OPACITY"
	OpSetCursor         Op = "SET_CURSOR"
	OpSetProperty       Op = "SET_PROPERTY"
	OpSetModal          Op = "SET_MODAL"
	OpSetCapture        Op = "SET_CAPTURE"
	OpReleaseCapture    Op = "RELEASE_CAPTURE"
	OpSetFocus          Op = "SET_FOCUS"
	OpAddChild          Op = "ADD_CHILD"
	OpRemoveChild       Op = "REMOVE_CHILD"
	OpReorder           Op = "REORDER"
	OpAddTransient      Op = "ADD_TRANSIENT"
	OpRemoveTransient   Op = "REMOVE_TRANSIENT"
	OpNewWindow         Op = "NEW_WINDOW"
	OpNewTopLevelWindow Op = "NEW_TOP_LEVEL_WINDOW"
	OpDeleteWindow      Op = "DELETE_WINDOW"
	OpPerformDrag       Op = "PERFORM_DRAG"
	OpCancelDrag        Op = "CANCEL_DRAG"
	OpPerformMoveLoop   Op = "PERFORM_MOVE_LOOP"
	OpCancelMoveLoop    Op = "CANCEL_MOVE_LOOP"
)

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	switch op {
	case OpSetBounds, OpSetVisible, OpSetOpacity, OpSetCursor, OpSetProperty,
		OpSetModal, OpSetCapture, OpReleaseCapture, OpSetFocus, OpAddChild,
		OpRemoveChild, OpReorder, OpAddTransient, OpRemoveTransient,
		OpNewWindow, OpNewTopLevelWindow, OpDeleteWindow, OpPerformDrag,
		OpCancelDrag, OpPerformMoveLoop, OpCancelMoveLoop:
		return true
	}
	return false
}

// Request is a single client-to-server call. Only the fields relevant to Op
// are set. ChangeID correlates the request with its completion; it is zero
// for requests whose outcome the client does not track.
type Request struct {
	Op       Op       `json:"op"`
	ChangeID uint32   `json:"change_id,omitempty"`
	Window   WindowID `json:"window"`

	// Target is the second window of a binary operation: the child for
	// ADD_CHILD/REMOVE_CHILD/ADD_TRANSIENT/REMOVE_TRANSIENT and the
	// sibling for REORDER.
	Target    WindowID       `json:"target"`
	Direction StackDirection `json:"direction,omitempty"`

	Bounds  Rect    `json:"bounds"`
	Visible bool    `json:"visible,omitempty"`
	Opacity float32 `json:"opacity,omitempty"`
	Cursor  Cursor  `json:"cursor,omitempty"`
	Modal   bool    `json:"modal,omitempty"`

	// Name and Value carry SET_PROPERTY. Delete distinguishes clearing a
	// property from setting it to an empty value.
	Name   string `json:"name,omitempty"`
	Value  []byte `json:"value,omitempty"`
	Delete bool   `json:"delete,omitempty"`

	// Properties seeds NEW_WINDOW and NEW_TOP_LEVEL_WINDOW, and carries the
	// drag payload for PERFORM_DRAG.
	Properties map[string][]byte `json:"properties,omitempty"`

	DragOperations DragOperation  `json:"drag_operations,omitempty"`
	Source         MoveLoopSource `json:"source,omitempty"`
	Location       Point          `json:"location"`
}
