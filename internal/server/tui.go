// ABOUTME: Server TUI for displaying the song queue and connected players
// ABOUTME: Real-time server status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Queued songs shown before the list is cut short
const maxQueueRows = 10

// ServerTUI manages the server TUI
type ServerTUI struct {
	mu       sync.Mutex
	program  *tea.Program
	stopped  bool
	updates  chan ServerStatus
	quitChan chan struct{}
}

// ServerStatus holds server state for the TUI
type ServerStatus struct {
	Name        string
	Port        int
	ChannelPort int
	Queue       []string
	Players     []PlayerInfo
}

// PlayerInfo describes a connected player
type PlayerInfo struct {
	ID        string
	Addr      string
	Connected time.Time
}

type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Karaoke Server"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(m.status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Ports: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("http %d, channel %d", m.status.Port, m.status.ChannelPort)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Queue (%d)", len(m.status.Queue))))
	b.WriteString("\n\n")
	if len(m.status.Queue) == 0 {
		b.WriteString(valueStyle.Render("  Queue is empty"))
		b.WriteString("\n")
	}
	for i, id := range m.status.Queue {
		if i == maxQueueRows {
			b.WriteString(valueStyle.Render(fmt.Sprintf("  ... %d more", len(m.status.Queue)-maxQueueRows)))
			b.WriteString("\n")
			break
		}
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, id))
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Connected Players (%d)", len(m.status.Players))))
	b.WriteString("\n\n")
	if len(m.status.Players) == 0 {
		b.WriteString(valueStyle.Render("  No players connected"))
		b.WriteString("\n")
	}
	for _, p := range m.status.Players {
		b.WriteString(fmt.Sprintf("  • %s", p.Addr))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s)", time.Since(p.Connected).Round(time.Second))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(initial ServerStatus) error {
	m := tuiModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	program := tea.NewProgram(m, tea.WithAltScreen())

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.program = program
	t.mu.Unlock()

	go func() {
		for status := range t.updates {
			program.Send(statusMsg(status))
		}
	}()

	_, err := program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true

	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when the user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
