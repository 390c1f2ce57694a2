package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/treemirror/internal/daemon"
	"github.com/1broseidon/treemirror/internal/propconv"
)

const (
	ServerName    = "treemirror"
	ServerVersion = "0.1.0"
)

// Server exposes a live mirror as MCP tools. Every handler runs on the
// daemon runner, so tools observe the same state as event ingestion.
type Server struct {
	mcpServer *mcpsdk.Server
	runner    *daemon.Runner
	registry  *propconv.Registry
	logger    *slog.Logger
}

// NewServer creates an inspector over runner. registry formats and parses
// property values.
func NewServer(runner *daemon.Runner, registry *propconv.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		runner:   runner,
		registry: registry,
		logger:   logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List every window in the mirrored tree with its current optimistic state, plus the focused window and the pointer capture holder.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "describe_window",
		Description: "Describe one window: bounds, visibility, opacity, cursor, modality, parent, children and decoded properties.",
	}, s.handleDescribeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pending_changes",
		Description: "List changes sent to the server that have not completed yet, oldest first.",
	}, s.handlePendingChanges)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_bounds",
		Description: "Move and resize a window. The change is applied to the mirror immediately and reverted if the server rejects it.",
	}, s.handleSetBounds)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_visible",
		Description: "Show or hide a window. Applied optimistically; reverted on rejection.",
	}, s.handleSetVisible)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_property",
		Description: "Set or clear a named window property. The value is parsed according to the property's configured type (string, bool, int64, float64, bytes).",
	}, s.handleSetProperty)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_window",
		Description: "Give input focus to a window, or clear focus when window is empty.",
	}, s.handleFocusWindow)
}
