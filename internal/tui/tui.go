package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/treemirror/internal/daemon"
	"github.com/1broseidon/treemirror/internal/propconv"
	"github.com/1broseidon/treemirror/internal/wintree"
)

// Run browses the mirror owned by runner until the user quits or ctx is
// cancelled. The runner must already be running.
func Run(ctx context.Context, runner *daemon.Runner, registry *propconv.Registry) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("browse requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	n := newNotifier()
	if err := runner.Do(ctx, func(c *wintree.Client) error {
		c.AddObserver(n)
		return nil
	}); err != nil {
		return err
	}
	defer func() {
		_ = runner.Do(context.WithoutCancel(ctx), func(c *wintree.Client) error {
			c.RemoveObserver(n)
			return nil
		})
	}()

	m := newModel(ctx, NewRunnerSource(runner, registry), n.ch)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
