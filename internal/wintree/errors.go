package wintree

import (
	"errors"
	"fmt"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Local misuse errors, returned synchronously to the caller.
var (
	// ErrUnknownWindow indicates a window that is not registered with the client.
	ErrUnknownWindow = errors.New("unknown window")

	// ErrNotPermitted indicates a structural edit on a window this client
	// neither owns nor holds as a root.
	ErrNotPermitted = errors.New("window not owned by this client")

	// ErrNotChild indicates a window that is not a child (or transient child)
	// of the window the operation was issued on.
	ErrNotChild = errors.New("window is not a child")

	// ErrInvalidHierarchy indicates an edit that would create a cycle.
	ErrInvalidHierarchy = errors.New("invalid hierarchy")

	// ErrLoopActive indicates a drag or move loop of the same kind is already
	// outstanding.
	ErrLoopActive = errors.New("operation already in progress")

	// ErrNoConverter indicates a typed property call on a client that was
	// created without a PropertyConverter.
	ErrNoConverter = errors.New("no property converter configured")
)

// ErrRejected marks a change the server refused.
var ErrRejected = errors.New("change rejected by server")

// ProtocolError describes a divergence between client and server that the
// protocol cannot reconcile. It is always passed to the client's fatal handler.
type ProtocolError struct {
	Op       string
	Window   platform.WindowID
	ChangeID uint32
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := "protocol violation: " + e.Op
	if !e.Window.IsZero() {
		msg += fmt.Sprintf(" window=%s", e.Window)
	}
	if e.ChangeID != 0 {
		msg += fmt.Sprintf(" change=%d", e.ChangeID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
