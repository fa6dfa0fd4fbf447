package downloader

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type tickMsg time.Time

type statusMsg string

type progressMsg struct {
	received int64
	total    int64
}

var downloadTitleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6366F1")).
	Bold(true)

// progressModel renders one bar for the whole batch; workers feed it
// through program.Send so the UI never blocks a transfer.
type progressModel struct {
	title    string
	bar      progress.Model
	total    int64
	received int64
	status   string
	done     bool
	mu       sync.Mutex
}

func newProgressModel(title string, total int64) *progressModel {
	return &progressModel{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient()),
		total: total,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *progressModel) Init() tea.Cmd {
	return tickCmd()
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.mu.Lock()
			m.done = true
			m.mu.Unlock()
			return m, tea.Quit
		}
	case tickMsg:
		m.mu.Lock()
		done := m.done
		var cmd tea.Cmd
		if m.total > 0 {
			cmd = m.bar.SetPercent(float64(m.received) / float64(m.total))
		}
		m.mu.Unlock()
		if done {
			return m, tea.Quit
		}
		return m, tea.Batch(cmd, tickCmd())
	case statusMsg:
		m.mu.Lock()
		m.status = string(msg)
		m.mu.Unlock()
		return m, nil
	case progressMsg:
		m.mu.Lock()
		m.received = msg.received
		if msg.total > 0 {
			m.total = msg.total
		}
		var cmd tea.Cmd
		if m.total > 0 {
			cmd = m.bar.SetPercent(float64(m.received) / float64(m.total))
		}
		m.mu.Unlock()
		return m, cmd
	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		m.bar = updated.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.status
	if status == "" && m.total > 0 {
		status = fmt.Sprintf("%.1f of %.1f MB", mb(m.received), mb(m.total))
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n\nCtrl+C cancels\n",
		downloadTitleStyle.Render(m.title),
		m.bar.View(),
		status)
}

func mb(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
