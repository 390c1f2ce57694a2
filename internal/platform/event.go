package platform

// WindowData is the server's description of a window it introduces to a
// client, either in a hierarchy batch, an embed, or a top-level ack.
type WindowData struct {
	ID              WindowID          `json:"id"`
	Parent          WindowID          `json:"parent"`
	TransientParent WindowID          `json:"transient_parent"`
	Bounds          Rect              `json:"bounds"`
	Visible         bool              `json:"visible"`
	Opacity         float32           `json:"opacity"`
	Cursor          Cursor            `json:"cursor"`
	Properties      map[string][]byte `json:"properties,omitempty"`
}

// Event is a server-to-client notification. The set of implementations is
// closed; EventName returns the wire tag used by transports.
type Event interface {
	EventName() string
}

// ChangeCompleted reports the server's verdict on a tracked request.
type ChangeCompleted struct {
	ChangeID uint32 `json:"change_id"`
	Success  bool   `json:"success"`
}

// HierarchyChanged introduces Windows (parent-first order) and then moves
// Window from OldParent to NewParent.
type HierarchyChanged struct {
	Window    WindowID     `json:"window"`
	OldParent WindowID     `json:"old_parent"`
	NewParent WindowID     `json:"new_parent"`
	Windows   []WindowData `json:"windows,omitempty"`
}

type WindowDeleted struct {
	Window WindowID `json:"window"`
}

type BoundsChanged struct {
	Window WindowID `json:"window"`
	Bounds Rect     `json:"bounds"`
}

type VisibilityChanged struct {
	Window  WindowID `json:"window"`
	Visible bool     `json:"visible"`
}

type OpacityChanged struct {
	Window  WindowID `json:"window"`
	Opacity float32  `json:"opacity"`
}

type CursorChanged struct {
	Window WindowID `json:"window"`
	Cursor Cursor   `json:"cursor"`
}

// PropertyChanged carries a named property. Present is false when the
// property was removed.
type PropertyChanged struct {
	Window  WindowID `json:"window"`
	Name    string   `json:"name"`
	Value   []byte   `json:"value,omitempty"`
	Present bool     `json:"present"`
}

type ModalChanged struct {
	Window WindowID `json:"window"`
	Modal  bool     `json:"modal"`
}

// CaptureChanged moves pointer capture. A zero New means nobody holds it.
type CaptureChanged struct {
	New WindowID `json:"new"`
	Old WindowID `json:"old"`
}

// FocusChanged moves focus. A zero Window means nothing is focused.
type FocusChanged struct {
	Window WindowID `json:"window"`
}

// TopLevelCreated acknowledges NEW_TOP_LEVEL_WINDOW with the state the server
// actually created the window in.
type TopLevelCreated struct {
	ChangeID uint32     `json:"change_id"`
	Data     WindowData `json:"data"`
	Drawn    bool       `json:"drawn"`
}

// DrawnStateChanged tells a root whether its ancestors on the server are drawn.
type DrawnStateChanged struct {
	Window WindowID `json:"window"`
	Drawn  bool     `json:"drawn"`
}

type WindowReordered struct {
	Window    WindowID       `json:"window"`
	Relative  WindowID       `json:"relative"`
	Direction StackDirection `json:"direction"`
}

type TransientAdded struct {
	Parent WindowID `json:"parent"`
	Child  WindowID `json:"child"`
}

type TransientRemoved struct {
	Parent WindowID `json:"parent"`
	Child  WindowID `json:"child"`
}

// Embedded hands the client a new root and its existing subtree.
type Embedded struct {
	Root        WindowData   `json:"root"`
	Descendants []WindowData `json:"descendants,omitempty"`
	Drawn       bool         `json:"drawn"`
}

type Unembedded struct {
	Root WindowID `json:"root"`
}

type DragDropDone struct {
	ChangeID uint32        `json:"change_id"`
	Success  bool          `json:"success"`
	Effect   DragOperation `json:"effect"`
}

type MoveLoopCompleted struct {
	ChangeID uint32 `json:"change_id"`
	Success  bool   `json:"success"`
}

// ConnectionLost is emitted by a transport when its link to the server ends.
type ConnectionLost struct {
	Reason string `json:"reason,omitempty"`
}

func (ChangeCompleted) EventName() string   { return "change_completed" }
func (HierarchyChanged) EventName() string  { return "hierarchy_changed" }
func (WindowDeleted) EventName() string     { return "window_deleted" }
func (BoundsChanged) EventName() string     { return "bounds_changed" }
func (VisibilityChanged) EventName() string { return "visibility_changed" }
func (OpacityChanged) EventName() string    { return "opacity_changed" }
func (CursorChanged) EventName() string     { return "cursor_changed" }
func (PropertyChanged) EventName() string   { return "property_changed" }
func (ModalChanged) EventName() string      { return "modal_changed" }
func (CaptureChanged) EventName() string    { return "capture_changed" }
func (FocusChanged) EventName() string      { return "focus_changed" }
func (TopLevelCreated) EventName() string   { return "top_level_created" }
func (DrawnStateChanged) EventName() string { return "drawn_state_changed" }
func (WindowReordered) EventName() string   { return "window_reordered" }
func (TransientAdded) EventName() string    { return "transient_added" }
func (TransientRemoved) EventName() string  { return "transient_removed" }
func (Embedded) EventName() string          { return "embedded" }
func (Unembedded) EventName() string        { return "unembedded" }
func (DragDropDone) EventName() string      { return "drag_drop_done" }
func (MoveLoopCompleted) EventName() string { return "move_loop_completed" }
func (ConnectionLost) EventName() string    { return "connection_lost" }
