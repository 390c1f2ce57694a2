package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/1broseidon/treemirror/internal/mcp"
)

func printMCPUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: treemirror mcp <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve    Start the MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'treemirror mcp <command> --help' for command-specific options.")
}

func runMCP(args []string) int {
	if len(args) == 0 {
		printMCPUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "serve":
		return runMCPServe(args[1:])
	case "help", "-h", "--help":
		printMCPUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown mcp command: %s\n\n", args[0])
		printMCPUsage(os.Stderr)
		return 2
	}
}

func runMCPServe(args []string) int {
	if isHelp(args) {
		fmt.Fprintln(os.Stdout, "Usage: treemirror mcp serve [--path PATH]")
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintln(os.Stdout, "Connect to the window server and expose the mirrored tree as MCP tools")
		fmt.Fprintln(os.Stdout, "on stdio. Designed to be invoked by MCP clients.")
		return 0
	}
	fs := flag.NewFlagSet("mcp serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, logger, ok := setup(*path)
	if !ok {
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	m, err := openMirror(ctx, cfg, logger, fatalHandler(logger, cancel))
	if err != nil {
		logger.Error("failed to open mirror", "error", err)
		return 1
	}
	m.start(ctx, cfg)
	go func() {
		// The inspector is useless once the connection is gone.
		if err := <-m.connErr; err != nil {
			logger.Error("connection lost", "error", err)
		}
		cancel()
	}()

	server := mcp.NewServer(m.runner, m.registry, logger.With("component", "mcp"))
	code := 0
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("MCP server error", "error", err)
		code = 1
	}
	cancel()
	m.shutdown()
	return code
}
