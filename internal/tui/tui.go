package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type SnapshotProvider interface {
	GetSnapshot() Snapshot
}

type viewMode int

const (
	viewModeList viewMode = iota
	viewModeDetail
)

type Model struct {
	provider        SnapshotProvider
	snapshot        Snapshot
	refreshInterval time.Duration
	mode            viewMode
	selected        int // -1 = none, otherwise index in snapshot.Courses
}

type tickMsg time.Time

func NewModel(provider SnapshotProvider, refreshInterval time.Duration) Model {
	m := Model{
		provider:        provider,
		snapshot:        provider.GetSnapshot(),
		refreshInterval: refreshInterval,
		mode:            viewModeList,
		selected:        -1,
	}
	m.clampSelection()
	return m
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case viewModeList:
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "r":
				// Manual refresh
				m.snapshot = m.provider.GetSnapshot()
				m.clampSelection()
				return m, nil
			case "up", "k":
				if m.selected > 0 {
					m.selected--
				}
			case "down", "j":
				if m.selected < len(m.snapshot.Courses)-1 {
					m.selected++
				}
			case "1", "2", "3", "4", "5", "6", "7", "8", "9":
				// Quick select by number
				idx := int(msg.String()[0] - '1')
				if idx < len(m.snapshot.Courses) {
					m.selected = idx
				}
			case "enter", " ":
				if m.selected >= 0 && m.selected < len(m.snapshot.Courses) {
					m.mode = viewModeDetail
				}
			}

		case viewModeDetail:
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "esc", "backspace":
				m.mode = viewModeList
			}
		}

	case tickMsg:
		m.snapshot = m.provider.GetSnapshot()
		m.clampSelection()
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

// clampSelection auto-selects the first course and drops a selection whose
// course disappeared.
func (m *Model) clampSelection() {
	if m.selected == -1 && len(m.snapshot.Courses) > 0 {
		m.selected = 0
	}
	if m.selected >= len(m.snapshot.Courses) {
		m.selected = len(m.snapshot.Courses) - 1
	}
	if m.selected < 0 {
		m.selected = -1
		m.mode = viewModeList
	}
}

func (m Model) View() string {
	if m.mode == viewModeDetail && m.selected >= 0 && m.selected < len(m.snapshot.Courses) {
		return renderDetailView(m.snapshot.Courses[m.selected], m.snapshot.Timestamp)
	}
	return renderListView(m.snapshot, m.selected)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
