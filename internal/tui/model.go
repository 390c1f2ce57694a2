package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// windowItem implements list.Item for the tree sidebar.
type windowItem struct {
	row     Row
	focused bool
}

func (i windowItem) Title() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", i.row.Depth))
	if i.focused {
		b.WriteString("* ")
	} else {
		b.WriteString("  ")
	}
	b.WriteString(i.row.ID)
	if !i.row.Visible {
		b.WriteString(" (hidden)")
	}
	return b.String()
}

func (i windowItem) Description() string { return i.row.Bounds }
func (i windowItem) FilterValue() string { return i.row.ID }

// snapshotMsg carries a fresh snapshot or the error taking it.
type snapshotMsg struct {
	snap Snapshot
	err  error
}

// changedMsg is sent when the mirror notified a change.
type changedMsg struct{}

// actionMsg reports the outcome of a key action.
type actionMsg struct {
	text string
	err  error
}

// clearStatusMsg clears the status message after a delay.
type clearStatusMsg struct{}

// model is the bubbletea model for the mirror browser.
type model struct {
	ctx     context.Context
	source  Source
	changes <-chan struct{}

	list      list.Model
	snap      Snapshot
	connected bool

	statusText   string
	statusFailed bool

	width  int
	height int
	ready  bool
}

func newModel(ctx context.Context, source Source, changes <-chan struct{}) model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return model{
		ctx:       ctx,
		source:    source,
		changes:   changes,
		list:      l,
		connected: true,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.waitForChange())
}

func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.source.Snapshot(m.ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()
		m.ready = true
		return m, nil

	case changedMsg:
		return m, tea.Batch(m.refresh(), m.waitForChange())

	case snapshotMsg:
		if msg.err != nil {
			m.connected = false
			m.statusText = msg.err.Error()
			m.statusFailed = true
			return m, nil
		}
		m.snap = msg.snap
		m.rebuildItems()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.statusText = fmt.Sprintf("error: %v", msg.err)
			m.statusFailed = true
		} else {
			m.statusText = msg.text
			m.statusFailed = false
		}
		return m, tea.Batch(m.refresh(), clearStatusAfter(3*time.Second))

	case clearStatusMsg:
		m.statusText = ""
		m.statusFailed = false
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		case "v":
			return m, m.act("toggled visibility of", m.source.ToggleVisible)
		case "f":
			return m, m.act("focused", m.source.Focus)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// act runs fn against the selected window off the UI goroutine.
func (m model) act(verb string, fn func(ctx context.Context, id string) error) tea.Cmd {
	row, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		if err := fn(m.ctx, row.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: verb + " " + row.ID}
	}
}

func (m model) selected() (Row, bool) {
	item, ok := m.list.SelectedItem().(windowItem)
	if !ok {
		return Row{}, false
	}
	return item.row, true
}

// rebuildItems replaces the list contents and keeps the selection on the
// same window when it still exists.
func (m *model) rebuildItems() {
	prev, hadPrev := m.selected()
	items := make([]list.Item, 0, len(m.snap.Rows))
	selectIdx := 0
	for i, row := range m.snap.Rows {
		items = append(items, windowItem{row: row, focused: row.ID == m.snap.Focused})
		if hadPrev && row.ID == prev.ID {
			selectIdx = i
		}
	}
	m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(selectIdx)
	}
}

func (m *model) updateListSize() {
	h := m.height - 2 // status and help bars
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.sidebarWidth(), h)
}

func (m model) sidebarWidth() int {
	sw := m.width * 40 / 100
	if sw < 24 {
		sw = 24
	}
	if sw > 48 {
		sw = 48
	}
	return sw
}

// View implements tea.Model.
func (m model) View() string {
	if !m.ready || m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.snap, m.connected, m.width)
	helpBar := renderHelpBar(m.statusText, m.statusFailed, m.width)

	contentHeight := m.height - lipgloss.Height(statusBar) - lipgloss.Height(helpBar)
	if contentHeight < 1 {
		contentHeight = 1
	}

	sidebarWidth := m.sidebarWidth()
	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(contentHeight).
		Render(m.list.View())

	detailWidth := m.width - sidebarWidth - 3
	if detailWidth < 10 {
		detailWidth = 10
	}
	detail := ""
	if row, ok := m.selected(); ok {
		detail = renderDetail(row, detailWidth)
	}

	sep := separatorStyle.Render(strings.TrimSuffix(strings.Repeat("│\n", contentHeight), "\n"))
	columns := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " "+sep, detail)

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, columns, helpBar)
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float32) string { return strconv.FormatFloat(float64(f), 'g', 3, 32) }

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
