package mcp

// WindowInfo describes one mirrored window.
type WindowInfo struct {
	ID              string            `json:"id"`
	Parent          string            `json:"parent,omitempty"`
	TransientParent string            `json:"transient_parent,omitempty"`
	Root            bool              `json:"root"`
	Owned           bool              `json:"owned"`
	Bounds          string            `json:"bounds"`
	Visible         bool              `json:"visible"`
	Drawn           bool              `json:"drawn"`
	Opacity         float32           `json:"opacity"`
	Cursor          string            `json:"cursor"`
	Modal           bool              `json:"modal"`
	Children        []string          `json:"children,omitempty"`
	Properties      map[string]string `json:"properties,omitempty"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	RootsOnly bool `json:"roots_only,omitempty" jsonschema:"When true, list only root windows"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	ClientID uint32       `json:"client_id"`
	Focused  string       `json:"focused,omitempty"`
	Capture  string       `json:"capture,omitempty"`
	Windows  []WindowInfo `json:"windows"`
}

// DescribeWindowInput is the input for the describe_window tool.
type DescribeWindowInput struct {
	Window string `json:"window" jsonschema:"required,Window id in client:seq form"`
}

// PendingChangesInput is the input for the pending_changes tool.
type PendingChangesInput struct{}

// ChangeInfo describes one change awaiting its server verdict.
type ChangeInfo struct {
	ID         uint32 `json:"id"`
	Kind       string `json:"kind"`
	Window     string `json:"window,omitempty"`
	Key        string `json:"key,omitempty"`
	AgeSeconds int    `json:"age_seconds"`
}

// PendingChangesOutput is the output for the pending_changes tool.
type PendingChangesOutput struct {
	Changes []ChangeInfo `json:"changes"`
}

// SetBoundsInput is the input for the set_bounds tool.
type SetBoundsInput struct {
	Window string `json:"window" jsonschema:"required,Window id in client:seq form"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width" jsonschema:"required,Width in pixels"`
	Height int    `json:"height" jsonschema:"required,Height in pixels"`
}

// SetVisibleInput is the input for the set_visible tool.
type SetVisibleInput struct {
	Window  string `json:"window" jsonschema:"required,Window id in client:seq form"`
	Visible bool   `json:"visible"`
}

// SetPropertyInput is the input for the set_property tool.
type SetPropertyInput struct {
	Window string  `json:"window" jsonschema:"required,Window id in client:seq form"`
	Name   string  `json:"name" jsonschema:"required,Property name"`
	Value  *string `json:"value,omitempty" jsonschema:"Value parsed according to the property's configured type. Omit to clear the property."`
}

// FocusWindowInput is the input for the focus_window tool.
type FocusWindowInput struct {
	Window string `json:"window,omitempty" jsonschema:"Window id in client:seq form. Empty clears focus."`
}

// ChangeOutput reports the optimistic state after a change was sent. The
// server may still reject it, in which case the mirror reverts.
type ChangeOutput struct {
	Window  WindowInfo `json:"window"`
	Pending int        `json:"pending"`
}
