package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	MetaViewMode
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model represents the Bubble Tea model for the preview TUI
type Model struct {
	entries       []Entry
	cursor        int
	viewMode      ViewMode
	title         string
	width         int
	height        int
	selectedIndex int // Index of the entry currently being viewed
	now           func() time.Time
}

// NewModel creates a new preview model
func NewModel(entries []Entry, title string) Model {
	return Model{
		entries:       entries,
		viewMode:      ListViewMode,
		title:         title,
		selectedIndex: -1,
		now:           time.Now,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case ListViewMode:
			return m.updateListView(msg)
		case DetailViewMode, MetaViewMode:
			return m.updateDetailView(msg)
		}
	}

	return m, nil
}

func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}

	case "enter":
		m.selectedIndex = m.cursor
		m.viewMode = DetailViewMode

	case "m":
		m.selectedIndex = m.cursor
		m.viewMode = MetaViewMode
	}

	return m, nil
}

func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewMode = ListViewMode

	case "m":
		if m.viewMode == DetailViewMode {
			m.viewMode = MetaViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case ListViewMode:
		return m.renderListView()
	case DetailViewMode:
		return m.renderDetailView()
	case MetaViewMode:
		return m.renderMetaView()
	}
	return ""
}

// visibleRange keeps the cursor in the middle of the screen when the list does not fit
func (m Model) visibleRange() (int, int) {
	start, end := 0, len(m.entries)
	if m.height <= 0 {
		return start, end
	}

	maxVisible := m.height - 6 // header, footer and padding
	if maxVisible <= 0 || maxVisible >= len(m.entries) {
		return start, end
	}

	start = max(m.cursor-maxVisible/2, 0)
	end = start + maxVisible
	if end > len(m.entries) {
		end = len(m.entries)
		start = max(end-maxVisible, 0)
	}
	return start, end
}

func (m Model) renderListView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d posts)", m.title, len(m.entries))))
	b.WriteString("\n\n")

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		line := FormatCompactListItem(i, m.entries[i])
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ or j/k: navigate • enter: view post • m: meta • q: quit"))

	return b.String()
}

func (m Model) selected() (Entry, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[m.selectedIndex], true
}

func (m Model) renderDetailView() string {
	entry, ok := m.selected()
	if !ok {
		return "No post selected"
	}

	var b strings.Builder
	b.WriteString(FormatDetailedItem(entry, m.now()))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • m: toggle meta • q: quit"))

	return b.String()
}

func (m Model) renderMetaView() string {
	entry, ok := m.selected()
	if !ok {
		return "No post selected"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Meta for post %d", entry.ID)))
	b.WriteString("\n\n")
	b.WriteString(FormatMeta(entry))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • m: toggle post • q: quit"))

	return b.String()
}

// Run starts the Bubble Tea program
func Run(entries []Entry, title string) error {
	if len(entries) == 0 {
		fmt.Println("No posts to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(entries, title), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
