// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering helpers
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Control is optional for testing

	if model.connected {
		t.Error("expected connected to be false initially")
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
	if model.View() != "Loading..." {
		t.Errorf("expected loading view before the first resize")
	}
}

func TestStatusMsgConnection(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{Connected: &connected, HeadUnit: "Dash", ProtocolVersion: 5, HMILevel: "LIMITED"})

	if !model.connected || model.headUnit != "Dash" || model.protocolVersion != 5 {
		t.Errorf("unexpected connection state: %+v", model)
	}
	if model.hmiLevel != "LIMITED" {
		t.Errorf("expected LIMITED, got %s", model.hmiLevel)
	}

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})
	if model.connected {
		t.Error("expected connected to be false after disconnect")
	}
	if model.headUnit != "Dash" {
		t.Error("head unit name should survive an update without one")
	}
}

func TestStatusMsgStreams(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		AudioState:  "STARTED",
		AudioFormat: "16000Hz/1ch/s16",
		Source:      "song.mp3",
		VideoState:  "STARTED",
		VideoPaused: true,
		VideoParams: "800x480 RAW/H264",
	})

	if model.audioState != "STARTED" || model.audioFormat != "16000Hz/1ch/s16" || model.source != "song.mp3" {
		t.Errorf("unexpected audio state: %+v", model)
	}
	if model.videoState != "STARTED" || !model.videoPaused {
		t.Errorf("unexpected video state: %+v", model)
	}

	model.applyStatus(StatusMsg{VideoState: "STARTED"})
	if model.videoPaused {
		t.Error("expected video to resume")
	}
}

func TestStatusMsgStats(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{AudioFrames: 100, AudioBytes: 204800, AudioDropped: 2})
	model.applyStatus(StatusMsg{VideoFrames: 30, VideoDropped: 4})

	if model.audioFrames != 100 || model.audioBytes != 204800 || model.audioDropped != 2 {
		t.Errorf("unexpected audio stats: %d %d %d", model.audioFrames, model.audioBytes, model.audioDropped)
	}
	if model.videoFrames != 30 || model.videoDropped != 4 {
		t.Errorf("unexpected video stats: %d %d", model.videoFrames, model.videoDropped)
	}

	// a message without stats leaves them alone
	model.applyStatus(StatusMsg{HMILevel: "FULL"})
	if model.audioFrames != 100 || model.videoFrames != 30 {
		t.Error("stats were reset by an unrelated update")
	}
}

func TestKeyCommands(t *testing.T) {
	control := NewControl()
	model := NewModel(control)

	tests := []struct {
		key      string
		expected Command
	}{
		{"s", CommandStopAudio},
		{"r", CommandReplay},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)})
			select {
			case cmd := <-control.Commands:
				if cmd != tt.expected {
					t.Errorf("expected command %d, got %d", tt.expected, cmd)
				}
			default:
				t.Fatal("expected a command")
			}
		})
	}
}

func TestQuitKey(t *testing.T) {
	control := NewControl()
	model := NewModel(control)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	select {
	case <-control.Quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	if !updated.(Model).showDebug {
		t.Error("expected debug to be shown")
	}
}

func TestViewRendersState(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = updated.(Model)

	connected := true
	model.applyStatus(StatusMsg{Connected: &connected, HeadUnit: "Dash", HMILevel: "FULL", AudioState: "READY"})

	view := model.View()
	for _, want := range []string{"Connected to Dash", "FULL", "READY"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 10, "this is..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.length); got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q", tt.input, tt.length, got, tt.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{512, "512B"},
		{2048, "2.0KB"},
		{3 << 20, "3.0MB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.input); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
