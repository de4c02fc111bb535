// ABOUTME: Bubbletea model for the player status TUI
// ABOUTME: Shows session and sync state and turns key presses into actions
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Connection
	serverURL string
	channel   bool

	// Session
	state  string
	songID string

	// Sync
	sector        int
	delta         int
	iterations    int64
	catchUps      int64
	advanceErrors int64

	// Output
	volume int
	muted  bool

	lastError string
	snapshot  string

	controls *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sendViewport()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CDG Player"))
	b.WriteString("\n\n")

	channel := "disconnected"
	if m.channel {
		channel = "connected"
	}
	m.field(&b, "Server: ", m.serverURL)
	m.field(&b, "Channel: ", channel)
	b.WriteString("\n")

	song := m.songID
	if song == "" {
		song = "-"
	}
	m.field(&b, "State: ", m.state)
	m.field(&b, "Song: ", song)
	m.field(&b, "Sector: ", fmt.Sprintf("%d (last delta %d)", m.sector, m.delta))
	m.field(&b, "Polls: ", fmt.Sprintf("%d  catch-ups: %d  advance errors: %d",
		m.iterations, m.catchUps, m.advanceErrors))

	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}
	m.field(&b, "Volume: ", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon))

	if m.snapshot != "" {
		m.field(&b, "Snapshot: ", m.snapshot)
	}
	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + truncate(m.lastError, 70)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("n:Next  x:Stop  s:Snapshot  ↑/↓:Volume  m:Mute  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.send(ActionQuit)
		return m, tea.Quit
	case "n":
		m.send(ActionNext)
	case "x":
		m.send(ActionStop)
	case "s":
		m.send(ActionSnapshot)
	case "up":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.sendVolume()
		}
	case "down":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.sendVolume()
		}
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	}

	return m, nil
}

func (m Model) send(action Action) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Actions <- action:
	default:
	}
}

func (m Model) sendVolume() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Volume <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m Model) sendViewport() {
	if m.controls == nil || m.width <= 0 || m.height <= 0 {
		return
	}
	select {
	case m.controls.Viewport <- ViewportChangeMsg{Width: m.width * CellWidth, Height: m.height * CellHeight}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.ServerURL != "" {
		m.serverURL = msg.ServerURL
	}
	if msg.Channel != nil {
		m.channel = *msg.Channel
	}
	if msg.State != "" {
		m.state = msg.State
		m.songID = msg.SongID
	}
	if msg.Iterations != 0 {
		m.sector = msg.Sector
		m.delta = msg.Delta
		m.iterations = msg.Iterations
		m.catchUps = msg.CatchUps
		m.advanceErrors = msg.AdvanceErrors
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Error != nil {
		m.lastError = *msg.Error
	}
	if msg.Snapshot != "" {
		m.snapshot = msg.Snapshot
	}
}

// StatusMsg updates TUI state. Zero fields are left unchanged.
type StatusMsg struct {
	ServerURL     string
	Channel       *bool
	State         string
	SongID        string
	Sector        int
	Delta         int
	Iterations    int64
	CatchUps      int64
	AdvanceErrors int64
	Volume        *int
	Muted         *bool
	Error         *string // empty string clears
	Snapshot      string
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
