// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the streamer UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Command is a user request from the TUI
type Command int

const (
	CommandStopAudio Command = iota + 1
	CommandReplay
)

// QuitMsg signals that the user quit the TUI
type QuitMsg struct{}

// Control holds channels carrying user input to the streamer
type Control struct {
	Commands chan Command
	Quit     chan QuitMsg
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 10),
		Quit:     make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(control *Control) Model {
	return Model{
		control: control,
	}
}

// Run creates the TUI program
func Run(control *Control) *tea.Program {
	return tea.NewProgram(NewModel(control), tea.WithAltScreen())
}
