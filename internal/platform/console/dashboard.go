// Package console provides the operator dashboard: a live table of
// running rooms, rendered with Bubble Tea locally or over SSH.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

// Dashboard layout constants
const (
	minWidthForSidebar = 90 // Minimum width to show the summary sidebar
	sidebarWidth       = 24
	fetchTimeout       = 3 * time.Second
)

// filters cycled with tab; "" shows every room type.
var filters = []string{"", multiplayer.RoomTypeMatchmaking, multiplayer.RoomTypeGame}

// KeyMap defines the key bindings for the dashboard.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Refresh    key.Binding
	NextFilter key.Binding
	PrevFilter key.Binding
	Quit       key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextFilter, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextFilter, k.PrevFilter},
		{k.Refresh, k.Quit},
	}
}

// DefaultKeyMap returns default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		NextFilter: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next filter"),
		),
		PrevFilter: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("S-tab", "prev filter"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// roomsMsg carries the result of one fetch.
type roomsMsg struct {
	rooms []multiplayer.RoomStats
	err   error
	at    time.Time
}

// refreshMsg triggers the next periodic fetch.
type refreshMsg time.Time

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	source   RoomSource
	interval time.Duration
	title    string

	rooms   []multiplayer.RoomStats
	lastErr error
	updated time.Time
	filter  int

	table       table.Model
	help        help.Model
	keys        KeyMap
	width       int
	height      int
	showSidebar bool
	quitting    bool
}

// NewModel creates a dashboard polling source every interval.
func NewModel(source RoomSource, interval time.Duration, title string, width, height int) Model {
	if interval <= 0 {
		interval = time.Second
	}
	h := help.New()
	h.ShowAll = false

	m := Model{
		source:      source,
		interval:    interval,
		title:       title,
		keys:        DefaultKeyMap(),
		help:        h,
		width:       width,
		height:      height,
		showSidebar: width >= minWidthForSidebar,
	}
	m.table = m.createTable()
	return m
}

// createTable creates a new table sized to the current window.
func (m *Model) createTable() table.Model {
	columns := []table.Column{
		{Title: "Room", Width: 10},
		{Title: "Type", Width: 12},
		{Title: "Status", Width: 9},
		{Title: "Clients", Width: 7},
		{Title: "Queue", Width: 6},
		{Title: "Tick", Width: 8},
		{Title: "Age", Width: 8},
	}

	// Give spare width to the room id column
	tableWidth := m.width - 4 // Margins
	if m.showSidebar {
		tableWidth -= sidebarWidth + 3 // Sidebar + border + gap
	}
	used := 0
	for _, c := range columns {
		used += c.Width + 2
	}
	if spare := tableWidth - used; spare > 0 {
		columns[0].Width += min(spare, 26)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(m.height-8, 3)), // Leave room for header, help, and margins
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// visible returns the rooms matching the current filter.
func (m Model) visible() []multiplayer.RoomStats {
	kind := filters[m.filter]
	if kind == "" {
		return m.rooms
	}
	out := make([]multiplayer.RoomStats, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Type == kind {
			out = append(out, r)
		}
	}
	return out
}

// updateTableRows refreshes table rows from the current rooms.
func (m *Model) updateTableRows() {
	now := m.updated
	if now.IsZero() {
		now = time.Now()
	}
	rooms := m.visible()
	rows := make([]table.Row, len(rooms))
	for i, r := range rooms {
		queue := "-"
		if r.Type == multiplayer.RoomTypeMatchmaking {
			queue = fmt.Sprintf("%d", r.Queue)
		}
		rows[i] = table.Row{
			string(r.ID),
			r.Type,
			r.Status,
			fmt.Sprintf("%d", r.Clients),
			queue,
			fmt.Sprintf("%d", r.Tick),
			formatAge(now.Sub(r.CreatedAt)),
		}
	}
	m.table.SetRows(rows)
}

func (m Model) fetch() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		rooms, err := source.Rooms(ctx)
		return roomsMsg{rooms: rooms, err: err, at: time.Now()}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Init starts the first fetch and the refresh timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.scheduleRefresh())
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case roomsMsg:
		m.updated = msg.at
		m.lastErr = msg.err
		if msg.err == nil {
			m.rooms = msg.rooms
		}
		m.updateTableRows()
		return m, nil

	case refreshMsg:
		return m, tea.Batch(m.fetch(), m.scheduleRefresh())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()

		case key.Matches(msg, m.keys.NextFilter):
			m.filter = (m.filter + 1) % len(filters)
			m.updateTableRows()
			m.table.GotoTop()
			return m, nil

		case key.Matches(msg, m.keys.PrevFilter):
			m.filter--
			if m.filter < 0 {
				m.filter = len(filters) - 1
			}
			m.updateTableRows()
			m.table.GotoTop()
			return m, nil

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.showSidebar = m.width >= minWidthForSidebar
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		MarginBottom(1)

	title := strings.ToUpper(m.title)
	if kind := filters[m.filter]; kind != "" {
		title = fmt.Sprintf("%s - %s", title, kind)
	}
	b.WriteString(titleStyle.Render(centerText(title, m.width)))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	tableRendered := tableStyle.Render(m.renderTableContent())

	if m.showSidebar {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), "  ", tableRendered))
	} else {
		b.WriteString(m.renderSummaryLine())
		b.WriteString("\n")
		b.WriteString(tableRendered)
	}

	b.WriteString("\n")
	if m.lastErr != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
		b.WriteString(errStyle.Render("fetch failed: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

type summary struct {
	rooms, games, playing, players, queued int
}

func (m Model) summarize() summary {
	var s summary
	for _, r := range m.rooms {
		s.rooms++
		s.players += r.Clients
		if r.Type == multiplayer.RoomTypeGame {
			s.games++
			if r.Status == string(multiplayer.MatchPlaying) {
				s.playing++
			}
		}
		s.queued += r.Queue
	}
	return s
}

// renderSidebar renders totals across all rooms.
func (m Model) renderSidebar() string {
	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(sidebarWidth).
		Padding(0, 1)

	s := m.summarize()
	var sb strings.Builder
	sb.WriteString("Summary\n")
	sb.WriteString(strings.Repeat("-", sidebarWidth-4))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Rooms     %d\n", s.rooms)
	fmt.Fprintf(&sb, "Games     %d\n", s.games)
	fmt.Fprintf(&sb, "Playing   %d\n", s.playing)
	fmt.Fprintf(&sb, "Players   %d\n", s.players)
	fmt.Fprintf(&sb, "Queued    %d\n", s.queued)
	if !m.updated.IsZero() {
		fmt.Fprintf(&sb, "\nUpdated %s", m.updated.Format("15:04:05"))
	}
	return sidebarStyle.Render(sb.String())
}

func (m Model) renderSummaryLine() string {
	s := m.summarize()
	line := fmt.Sprintf("rooms %d | games %d | playing %d | players %d | queued %d",
		s.rooms, s.games, s.playing, s.players, s.queued)
	return centerText(line, m.width)
}

// renderTableContent renders the table or empty message.
func (m Model) renderTableContent() string {
	if len(m.visible()) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(2, 4)
		return emptyStyle.Render("No rooms running.")
	}
	return m.table.View()
}

// Run runs the dashboard in the current terminal until the user quits.
func Run(source RoomSource, interval time.Duration, title string, width, height int) error {
	p := tea.NewProgram(
		NewModel(source, interval, title, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}

func centerText(s string, width int) string {
	w := lipgloss.Width(s)
	if width <= w {
		return s
	}
	return strings.Repeat(" ", (width-w)/2) + s
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
