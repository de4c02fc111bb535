// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and the channels carrying user actions
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a user request from the TUI
type Action int

const (
	ActionNext Action = iota
	ActionStop
	ActionSnapshot
	ActionQuit
)

// VolumeChangeMsg carries a volume or mute change
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// Terminal cell size in surface pixels
const (
	CellWidth  = 8
	CellHeight = 16
)

// ViewportChangeMsg carries the terminal size converted to surface pixels
type ViewportChangeMsg struct {
	Width  int
	Height int
}

// Controls holds channels for user actions
type Controls struct {
	Actions  chan Action
	Volume   chan VolumeChangeMsg
	Viewport chan ViewportChangeMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions:  make(chan Action, 10),
		Volume:   make(chan VolumeChangeMsg, 10),
		Viewport: make(chan ViewportChangeMsg, 10),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		state:    "idle",
		controls: controls,
	}
}

// Run creates the TUI program
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
