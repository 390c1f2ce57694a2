package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/wintree"
)

func (s *Server) handleListWindows(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	var out ListWindowsOutput
	err := s.runner.Do(ctx, func(c *wintree.Client) error {
		out.ClientID = c.ID()
		if w := c.Focused(); w != nil {
			out.Focused = w.ID().String()
		}
		if w := c.Capture(); w != nil {
			out.Capture = w.ID().String()
		}
		windows := c.Windows()
		if args.RootsOnly {
			windows = c.Roots()
		}
		out.Windows = make([]WindowInfo, 0, len(windows))
		for _, w := range windows {
			out.Windows = append(out.Windows, s.describe(w))
		}
		return nil
	})
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}
	s.logger.Debug("list_windows", "count", len(out.Windows))
	return nil, out, nil
}

func (s *Server) handleDescribeWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args DescribeWindowInput) (*mcpsdk.CallToolResult, WindowInfo, error) {
	id, err := platform.ParseWindowID(args.Window)
	if err != nil {
		return nil, WindowInfo{}, err
	}
	var out WindowInfo
	err = s.runner.Do(ctx, func(c *wintree.Client) error {
		w := c.Window(id)
		if w == nil {
			return fmt.Errorf("window %s: %w", id, wintree.ErrUnknownWindow)
		}
		out = s.describe(w)
		return nil
	})
	if err != nil {
		return nil, WindowInfo{}, err
	}
	return nil, out, nil
}

func (s *Server) handlePendingChanges(ctx context.Context, _ *mcpsdk.CallToolRequest, _ PendingChangesInput) (*mcpsdk.CallToolResult, PendingChangesOutput, error) {
	out := PendingChangesOutput{Changes: []ChangeInfo{}}
	now := time.Now()
	err := s.runner.Do(ctx, func(c *wintree.Client) error {
		for _, ch := range c.PendingChanges() {
			info := ChangeInfo{
				ID:         ch.ID,
				Kind:       ch.Kind.String(),
				Key:        ch.Key,
				AgeSeconds: int(now.Sub(ch.Created).Seconds()),
			}
			if !ch.Window.IsZero() {
				info.Window = ch.Window.String()
			}
			out.Changes = append(out.Changes, info)
		}
		return nil
	})
	if err != nil {
		return nil, PendingChangesOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) handleSetBounds(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetBoundsInput) (*mcpsdk.CallToolResult, ChangeOutput, error) {
	r := platform.Rect{X: args.X, Y: args.Y, Width: args.Width, Height: args.Height}
	if r.Width < 0 || r.Height < 0 {
		return nil, ChangeOutput{}, fmt.Errorf("bounds %s: width and height must not be negative", r)
	}
	return s.change(ctx, "set_bounds", args.Window, true, func(_ *wintree.Client, w *wintree.Window) error {
		w.SetBounds(r)
		return nil
	})
}

func (s *Server) handleSetVisible(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetVisibleInput) (*mcpsdk.CallToolResult, ChangeOutput, error) {
	return s.change(ctx, "set_visible", args.Window, true, func(_ *wintree.Client, w *wintree.Window) error {
		w.SetVisible(args.Visible)
		return nil
	})
}

func (s *Server) handleSetProperty(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetPropertyInput) (*mcpsdk.CallToolResult, ChangeOutput, error) {
	if args.Name == "" {
		return nil, ChangeOutput{}, fmt.Errorf("property name must not be empty")
	}
	var data []byte
	if args.Value != nil {
		var err error
		data, err = s.registry.Parse(args.Name, *args.Value)
		if err != nil {
			return nil, ChangeOutput{}, err
		}
	}
	return s.change(ctx, "set_property", args.Window, true, func(_ *wintree.Client, w *wintree.Window) error {
		w.SetProperty(args.Name, data)
		return nil
	})
}

func (s *Server) handleFocusWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, args FocusWindowInput) (*mcpsdk.CallToolResult, ChangeOutput, error) {
	if args.Window == "" {
		var out ChangeOutput
		err := s.runner.Do(ctx, func(c *wintree.Client) error {
			if err := c.SetFocus(nil); err != nil {
				return err
			}
			out.Pending = len(c.PendingChanges())
			return nil
		})
		if err != nil {
			return nil, ChangeOutput{}, err
		}
		return nil, out, nil
	}
	return s.change(ctx, "focus_window", args.Window, false, func(c *wintree.Client, w *wintree.Window) error {
		return c.SetFocus(w)
	})
}

// change runs fn against the named window on the runner and reports the
// resulting optimistic state. editable restricts fn to windows this client
// may change.
func (s *Server) change(ctx context.Context, tool, window string, editable bool, fn func(c *wintree.Client, w *wintree.Window) error) (*mcpsdk.CallToolResult, ChangeOutput, error) {
	id, err := platform.ParseWindowID(window)
	if err != nil {
		return nil, ChangeOutput{}, err
	}
	var out ChangeOutput
	err = s.runner.Do(ctx, func(c *wintree.Client) error {
		w := c.Window(id)
		if w == nil {
			return fmt.Errorf("window %s: %w", id, wintree.ErrUnknownWindow)
		}
		if editable && !w.Owned() && !w.IsRoot() {
			return fmt.Errorf("window %s: %w", id, wintree.ErrNotPermitted)
		}
		if err := fn(c, w); err != nil {
			return err
		}
		out.Window = s.describe(w)
		out.Pending = len(c.PendingChanges())
		return nil
	})
	if err != nil {
		s.logger.Info("tool failed", "tool", tool, "window", window, "error", err)
		return nil, ChangeOutput{}, err
	}
	s.logger.Debug("tool applied", "tool", tool, "window", window, "pending", out.Pending)
	return nil, out, nil
}

// describe snapshots w. It must run on the runner goroutine.
func (s *Server) describe(w *wintree.Window) WindowInfo {
	info := WindowInfo{
		ID:      w.ID().String(),
		Root:    w.IsRoot(),
		Owned:   w.Owned(),
		Bounds:  w.Bounds().String(),
		Visible: w.Visible(),
		Drawn:   w.IsDrawn(),
		Opacity: w.Opacity(),
		Cursor:  w.Cursor().String(),
		Modal:   w.Modal(),
	}
	if p := w.Parent(); p != nil {
		info.Parent = p.ID().String()
	}
	if tp := w.TransientParent(); tp != nil {
		info.TransientParent = tp.ID().String()
	}
	for _, child := range w.Children() {
		info.Children = append(info.Children, child.ID().String())
	}
	for _, name := range w.PropertyNames() {
		if info.Properties == nil {
			info.Properties = make(map[string]string)
		}
		data, _ := w.Property(name)
		info.Properties[name] = s.registry.Format(name, data)
	}
	return info
}
