package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/1broseidon/treemirror/internal/propconv"
	"github.com/1broseidon/treemirror/internal/wintree"
)

// treeNode is a copy of one window taken on the runner goroutine.
type treeNode struct {
	ID       string
	Bounds   string
	Visible  bool
	Modal    bool
	Owned    bool
	Props    []string
	Children []treeNode
}

type treeGlyphs struct {
	branch, last, pipe, space string
}

var (
	unicodeGlyphs = treeGlyphs{branch: "├── ", last: "└── ", pipe: "│   ", space: "    "}
	asciiGlyphs   = treeGlyphs{branch: "|-- ", last: "`-- ", pipe: "|   ", space: "    "}
)

// embedWaiter signals every embed so tree can wait for the initial snapshot
// to settle.
type embedWaiter struct {
	wintree.BaseObserver
	ch chan struct{}
}

func (e *embedWaiter) OnEmbed(*wintree.Window) {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

func runTree(args []string) int {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/treemirror/config.yaml)")
	timeout := fs.Duration("timeout", 5*time.Second, "How long to wait for the server's first embed")
	settle := fs.Duration("settle", 200*time.Millisecond, "Quiet period after the last embed before printing")
	ascii := fs.Bool("ascii", false, "Draw the tree with ASCII characters")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: treemirror tree [--path PATH] [--timeout D] [--settle D] [--ascii]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Connect, wait for the initial embed, print the mirrored tree and exit.")
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
	waiter := &embedWaiter{ch: make(chan struct{}, 1)}
	m.observe(waiter)
	m.start(ctx, cfg)
	defer func() {
		cancel()
		m.shutdown()
	}()

	select {
	case <-waiter.ch:
	case err := <-m.connErr:
		logger.Error("connection ended before the first embed", "error", err)
		return 1
	case <-time.After(*timeout):
		logger.Error("timed out waiting for embed", "timeout", *timeout)
		return 1
	case <-ctx.Done():
		return 1
	}
	for quiet := false; !quiet; {
		select {
		case <-waiter.ch:
		case <-time.After(*settle):
			quiet = true
		case <-ctx.Done():
			return 1
		}
	}

	var roots []treeNode
	err = m.runner.Do(ctx, func(c *wintree.Client) error {
		for _, w := range c.Roots() {
			roots = append(roots, snapshotNode(w, m.registry))
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to read tree", "error", err)
		return 1
	}

	glyphs, width := asciiGlyphs, 0
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if !*ascii {
			glyphs = unicodeGlyphs
		}
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	}
	writeTree(os.Stdout, roots, glyphs, width)
	return 0
}

func snapshotNode(w *wintree.Window, registry *propconv.Registry) treeNode {
	n := treeNode{
		ID:      w.ID().String(),
		Bounds:  w.Bounds().String(),
		Visible: w.Visible(),
		Modal:   w.Modal(),
		Owned:   w.Owned(),
	}
	for _, name := range w.PropertyNames() {
		data, _ := w.Property(name)
		n.Props = append(n.Props, name+"="+registry.Format(name, data))
	}
	for _, child := range w.Children() {
		n.Children = append(n.Children, snapshotNode(child, registry))
	}
	return n
}

// writeTree prints roots with their descendants. Lines longer than width
// are truncated; zero disables truncation.
func writeTree(w io.Writer, roots []treeNode, g treeGlyphs, width int) {
	var walk func(n treeNode, prefix, branch, next string)
	walk = func(n treeNode, prefix, branch, next string) {
		fmt.Fprintln(w, truncate(prefix+branch+n.label(), width))
		for i, child := range n.Children {
			if i == len(n.Children)-1 {
				walk(child, prefix+next, g.last, g.space)
			} else {
				walk(child, prefix+next, g.branch, g.pipe)
			}
		}
	}
	for _, root := range roots {
		walk(root, "", "", "")
	}
}

func (n treeNode) label() string {
	var b strings.Builder
	b.WriteString(n.ID)
	b.WriteString(" [")
	b.WriteString(n.Bounds)
	b.WriteString("]")
	if !n.Visible {
		b.WriteString(" hidden")
	}
	if n.Modal {
		b.WriteString(" modal")
	}
	if n.Owned {
		b.WriteString(" owned")
	}
	for _, p := range n.Props {
		b.WriteString(" ")
		b.WriteString(p)
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
