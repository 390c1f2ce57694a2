package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/1broseidon/treemirror/internal/tui"
)

func runBrowse(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: treemirror browse [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive view of the mirrored tree. Updates live as the server")
		fmt.Fprintln(os.Stderr, "reports changes.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  j/k, ↑/↓  Select window")
		fmt.Fprintln(os.Stderr, "  v         Toggle visibility (owned windows and roots)")
		fmt.Fprintln(os.Stderr, "  f         Focus the selected window")
		fmt.Fprintln(os.Stderr, "  r         Refresh")
		fmt.Fprintln(os.Stderr, "  q         Quit")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
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
	defer func() {
		cancel()
		m.shutdown()
	}()

	if err := tui.Run(ctx, m.runner, m.registry); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
