package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	snap Snapshot
}

func (p *staticProvider) GetSnapshot() Snapshot { return p.snap }

func sampleSnapshot() Snapshot {
	now := time.Date(2026, 1, 12, 10, 30, 0, 0, time.UTC)
	return Snapshot{
		Timestamp:     now,
		PollerCount:   3,
		LastReconcile: now.Add(-5 * time.Second),
		Courses: []CourseState{
			{ID: "1", Name: "CSC 190", HasReading: true, Capacity: 30, Actual: 28, Remaining: 2, LastCheck: now.Add(-90 * time.Second)},
			{ID: "2", Name: "MAT 211", HasReading: true, Capacity: 25, Actual: 27, Remaining: -2, LastCheck: now},
			{ID: "3", Name: "A very long course name that overflows", LastError: "HTTP 503"},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestCourseState_Label(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state CourseState
		want  string
	}{
		{"no reading yet", CourseState{}, "waiting"},
		{"first fetch failed", CourseState{LastError: "boom"}, "error"},
		{"negative remaining", CourseState{HasReading: true, Remaining: -1}, "override"},
		{"zero remaining", CourseState{HasReading: true}, "full"},
		{"seats left", CourseState{HasReading: true, Remaining: 4}, "open"},
		{"stale error keeps reading", CourseState{HasReading: true, Remaining: 4, LastError: "boom"}, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.state.Label())
		})
	}
}

func TestModel_Navigation(t *testing.T) {
	t.Parallel()

	m := NewModel(&staticProvider{snap: sampleSnapshot()}, time.Second)
	assert.Equal(t, 0, m.selected)

	m = press(t, m, "down", "j", "j")
	assert.Equal(t, 2, m.selected, "selection stops at the last course")

	m = press(t, m, "up", "k", "k")
	assert.Equal(t, 0, m.selected)

	m = press(t, m, "2", "enter")
	assert.Equal(t, viewModeDetail, m.mode)
	assert.Contains(t, m.View(), "MAT 211")
	assert.Contains(t, m.View(), "There are no available seats and 2 people have overrides.")

	m = press(t, m, "esc")
	assert.Equal(t, viewModeList, m.mode)
}

func TestModel_QuitCommand(t *testing.T) {
	t.Parallel()

	m := NewModel(&staticProvider{snap: sampleSnapshot()}, time.Second)
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_TickClampsSelection(t *testing.T) {
	t.Parallel()

	p := &staticProvider{snap: sampleSnapshot()}
	m := NewModel(p, time.Second)
	m = press(t, m, "3", "enter")
	require.Equal(t, viewModeDetail, m.mode)

	p.snap = Snapshot{Timestamp: time.Now()}
	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.Equal(t, -1, m.selected)
	assert.Equal(t, viewModeList, m.mode)
	assert.Contains(t, m.View(), "no courses being watched")
}

func TestRenderListView(t *testing.T) {
	t.Parallel()

	out := renderListView(sampleSnapshot(), 0)

	assert.Contains(t, out, "3 courses │ 1 open │ 3 pollers")
	assert.Contains(t, out, "CSC 190")
	assert.Contains(t, out, "checked 1m 30s ago")
	assert.Contains(t, out, "A very long course nam...")
	assert.Contains(t, out, "reconciled: 10:29:55")
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0s", formatDuration(-time.Second))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))
}
