package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
	"github.com/lvcoi/ytdlp-picker/internal/reconcile"
)

var (
	selectorTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#0B0B0B")).
				Background(lipgloss.Color("#7FDBFF")).
				Bold(true).
				Padding(0, 1)

	selectorHelpStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#A6ADC8")).
				Faint(true)

	selectorSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#0B0B0B")).
				Background(lipgloss.Color("#00F5D4")).
				Bold(true)

	selectorRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#EAEAEA"))
)

const digitBufferTimeout = 1500 * time.Millisecond

// errSelectionCancelled is returned when the operator leaves the selector.
var errSelectionCancelled = CategorizedError{Category: CategoryInput, Err: errors.New("format selection cancelled")}

type formatSelectorModel struct {
	viewport      viewport.Model
	title         string
	rows          []string
	selected      int
	chosen        bool
	ready         bool
	quitting      bool
	digitBuffer   string
	lastDigitTime time.Time
	now           func() time.Time
}

type quitMsg struct{}

type digitBufferExpireMsg struct {
	expireTime time.Time
}

func newFormatSelectorModel(title string, rows []string) *formatSelectorModel {
	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true
	vp.Style = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7FDBFF"))

	m := &formatSelectorModel{
		viewport: vp,
		title:    title,
		rows:     rows,
		now:      time.Now,
	}
	m.updateContent()
	return m
}

func (m *formatSelectorModel) content() string {
	var b strings.Builder
	width := len(strconv.Itoa(len(m.rows)))
	for i, row := range m.rows {
		line := fmt.Sprintf("%*d. %s", width, i+1, row)
		if i == m.selected {
			line = selectorSelectedStyle.Render(line)
		} else {
			line = selectorRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *formatSelectorModel) Init() tea.Cmd {
	return nil
}

func scheduleDigitBufferExpiry(expireTime time.Time) tea.Cmd {
	return tea.Tick(digitBufferTimeout, func(time.Time) tea.Msg {
		return digitBufferExpireMsg{expireTime: expireTime}
	})
}

func quitAfterDelay() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return quitMsg{}
	})
}

func (m *formatSelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if m.quitting {
		if _, ok := msg.(quitMsg); ok {
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = msg.Height - 6
		m.viewport, cmd = m.viewport.Update(msg)
		m.ready = true
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case digitBufferExpireMsg:
		if !m.lastDigitTime.IsZero() && msg.expireTime.Equal(m.lastDigitTime) {
			m.digitBuffer = ""
		}
		return m, nil
	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *formatSelectorModel) handleKey(key string) (tea.Model, tea.Cmd) {
	last := len(m.rows) - 1
	switch key {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, quitAfterDelay()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		} else {
			m.selected = last
		}
	case "down", "j":
		if m.selected < last {
			m.selected++
		} else {
			m.selected = 0
		}
	case "pgup":
		m.selected = max(m.selected-10, 0)
	case "pgdown":
		m.selected = min(m.selected+10, last)
	case "home", "g":
		m.selected = 0
	case "end", "G":
		m.selected = last
	case "enter":
		if m.selected >= 0 && m.selected <= last {
			m.chosen = true
			m.quitting = true
			return m, quitAfterDelay()
		}
	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return m.typeDigit(key)
	default:
		return m, nil
	}
	m.digitBuffer = ""
	m.updateContent()
	return m, nil
}

// typeDigit jumps to the row whose 1-based number matches what was typed
// so far; the buffer expires after a short pause.
func (m *formatSelectorModel) typeDigit(digit string) (tea.Model, tea.Cmd) {
	now := m.now()
	if !m.lastDigitTime.IsZero() && now.Sub(m.lastDigitTime) > digitBufferTimeout {
		m.digitBuffer = ""
	}
	m.digitBuffer += digit
	m.lastDigitTime = now

	n, err := strconv.Atoi(m.digitBuffer)
	if err != nil || n < 1 || n > len(m.rows) {
		m.digitBuffer = ""
		return m, nil
	}
	m.selected = n - 1
	m.updateContent()
	// No longer number can start with this prefix: commit the buffer.
	if n*10 > len(m.rows) {
		m.digitBuffer = ""
		return m, nil
	}
	return m, scheduleDigitBufferExpiry(now)
}

func (m *formatSelectorModel) updateContent() {
	m.viewport.SetContent(m.content())
	if m.selected < m.viewport.YOffset {
		m.viewport.YOffset = m.selected
	} else if bottom := m.viewport.YOffset + m.viewport.Height - 2; m.selected >= bottom {
		m.viewport.YOffset = m.selected - m.viewport.Height + 3
	}
}

func (m *formatSelectorModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(selectorTitleStyle.Render(m.title))
	b.WriteString(" ")
	switch {
	case m.quitting && m.chosen:
		b.WriteString(selectorHelpStyle.Render(fmt.Sprintf("Selected: %d ✓", m.selected+1)))
	case m.quitting:
		b.WriteString(selectorHelpStyle.Render("Cancelled"))
	case m.digitBuffer != "":
		b.WriteString(selectorHelpStyle.Render(fmt.Sprintf("Typing: %s_", m.digitBuffer)))
	default:
		b.WriteString(selectorHelpStyle.Render("↑/↓ select · Enter confirm · q cancel"))
	}
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if !m.quitting {
		b.WriteString(selectorHelpStyle.Render("Type a number to jump to it, Home/End for first/last"))
	}
	return b.String()
}

// Selection returns the chosen 0-based row or -1.
func (m *formatSelectorModel) Selection() int {
	if m.chosen {
		return m.selected
	}
	return -1
}

// TUIChooser picks formats in a full-screen list.
type TUIChooser struct{}

// ChooseFormat implements the single-video choice.
func (TUIChooser) ChooseFormat(ctx context.Context, title string, candidates []formats.Candidate) (int, error) {
	return runSelector(ctx, "Formats: "+title, candidateRows(candidates))
}

// Choose implements reconcile.Chooser.
func (TUIChooser) Choose(ctx context.Context, round reconcile.Round) (int, error) {
	return runSelector(ctx, roundTitle(round), roundRows(round))
}

func runSelector(ctx context.Context, title string, rows []string) (int, error) {
	if len(rows) == 0 {
		return 0, wrapCategory(CategoryUnsupported, errors.New("nothing to choose from"))
	}
	model := newFormatSelectorModel(title, rows)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	result, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, wrapCategory(CategoryInput, err)
	}
	if m, ok := result.(*formatSelectorModel); ok && m.Selection() >= 0 {
		return m.Selection(), nil
	}
	return 0, errSelectionCancelled
}
