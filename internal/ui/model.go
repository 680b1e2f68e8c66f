// ABOUTME: Bubbletea model for the streamer TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected       bool
	headUnit        string
	protocolVersion int
	hmiLevel        string

	// Audio stream
	audioState  string
	audioFormat string
	source      string

	// Video stream
	videoState  string
	videoParams string
	videoPaused bool

	// Stats
	audioFrames  int64
	audioBytes   int64
	audioDropped int64
	videoFrames  int64
	videoDropped int64

	// Debug
	showDebug bool

	control *Control

	// Dimensions
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
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreams()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection and HMI status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", truncate(m.headUnit, 32))
	}

	hmiIcon := "✗"
	switch m.hmiLevel {
	case "FULL":
		hmiIcon = "✓"
	case "LIMITED", "BACKGROUND":
		hmiIcon = "⚠"
	}

	return fmt.Sprintf(`┌─ Head Unit Streamer ─────────────────────────────────┐
│ Status: %-45s │
│ HMI:    %s %-42s │
├──────────────────────────────────────────────────────┤
`, connStatus, hmiIcon, orDash(m.hmiLevel))
}

// renderStreams renders audio and video session state
func (m Model) renderStreams() string {
	s := fmt.Sprintf("│ Audio:  %-45s │\n", orDash(m.audioState))
	if m.audioFormat != "" {
		s += fmt.Sprintf("│   Format: %-43s │\n", m.audioFormat)
	}
	if m.source != "" {
		s += fmt.Sprintf("│   Source: %-43s │\n", truncate(m.source, 43))
	}

	video := orDash(m.videoState)
	if m.videoPaused {
		video += " (paused)"
	}
	s += fmt.Sprintf("│ Video:  %-45s │\n", video)
	if m.videoParams != "" {
		s += fmt.Sprintf("│   Params: %-43s │\n", truncate(m.videoParams, 43))
	}
	return s
}

// renderStats renders streaming statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Audio TX: %-8d frames %-10s Dropped: %-6d │
│ Video TX: %-8d frames %-10s Dropped: %-6d │
│                                                      │
`, m.audioFrames, formatBytes(m.audioBytes), m.audioDropped, m.videoFrames, "", m.videoDropped)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ s:Stop audio  r:Replay  d:Debug  q:Quit             │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Protocol version: %-33d │
│   Audio bytes: %-38d │
`, m.protocolVersion, m.audioBytes)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "s":
		m.send(CommandStopAudio)
	case "r":
		m.send(CommandReplay)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) send(cmd Command) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Commands <- cmd:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.HeadUnit != "" {
		m.headUnit = msg.HeadUnit
		m.protocolVersion = msg.ProtocolVersion
	}
	if msg.HMILevel != "" {
		m.hmiLevel = msg.HMILevel
	}
	if msg.AudioState != "" {
		m.audioState = msg.AudioState
	}
	if msg.AudioFormat != "" {
		m.audioFormat = msg.AudioFormat
	}
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.VideoState != "" {
		m.videoState = msg.VideoState
		m.videoPaused = msg.VideoPaused
	}
	if msg.VideoParams != "" {
		m.videoParams = msg.VideoParams
	}
	if msg.AudioFrames != 0 || msg.AudioDropped != 0 {
		m.audioFrames = msg.AudioFrames
		m.audioBytes = msg.AudioBytes
		m.audioDropped = msg.AudioDropped
	}
	if msg.VideoFrames != 0 || msg.VideoDropped != 0 {
		m.videoFrames = msg.VideoFrames
		m.videoDropped = msg.VideoDropped
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected       *bool
	HeadUnit        string
	ProtocolVersion int
	HMILevel        string
	AudioState      string
	AudioFormat     string
	Source          string
	VideoState      string
	VideoPaused     bool
	VideoParams     string
	AudioFrames     int64
	AudioBytes      int64
	AudioDropped    int64
	VideoFrames     int64
	VideoDropped    int64
}

// Utility functions
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
