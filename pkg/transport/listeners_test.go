// ABOUTME: Tests for the shared listener registry
// ABOUTME: Tests duplicate detection, removal and delivery
package transport

import (
	"errors"
	"testing"
)

type recorder struct {
	started, ended int
	levels         []HMILevel
}

func (r *recorder) OnServiceStarted(MediaType, bool) { r.started++ }
func (r *recorder) OnServiceEnded(MediaType) { r.ended++ }
func (r *recorder) OnServiceError(MediaType, string) {}
func (r *recorder) OnNotification(n Notification) { r.levels = append(r.levels, n.HMILevel) }

func TestListenersAddRemove(t *testing.T) {
	s := NewListeners()
	r := &recorder{}

	if err := s.AddService(Audio, r); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := s.AddService(Audio, r); !errors.Is(err, ErrListenerExists) {
		t.Errorf("expected ErrListenerExists, got %v", err)
	}
	if err := s.AddNotification(HMIStatus, r); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("expected 2 listeners, got %d", s.Count())
	}

	if err := s.RemoveService(Video, r); !errors.Is(err, ErrListenerNotFound) {
		t.Errorf("expected ErrListenerNotFound, got %v", err)
	}
	if err := s.RemoveService(Audio, r); err != nil {
		t.Errorf("remove failed: %v", err)
	}
	if err := s.RemoveNotification(HMIStatus, r); err != nil {
		t.Errorf("remove failed: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("expected 0 listeners, got %d", s.Count())
	}
}

func TestListenersDelivery(t *testing.T) {
	s := NewListeners()
	audio, video := &recorder{}, &recorder{}
	s.AddService(Audio, audio)
	s.AddService(Video, video)
	s.AddNotification(HMIStatus, video)

	s.ServiceStarted(Audio, false)
	s.ServiceEnded(Video)
	s.Notify(Notification{Kind: HMIStatus, HMILevel: HMIFull})
	s.Notify(Notification{Kind: TouchEvent})

	if audio.started != 1 || video.started != 0 {
		t.Errorf("unexpected start counts: audio=%d video=%d", audio.started, video.started)
	}
	if video.ended != 1 {
		t.Errorf("expected video end, got %d", video.ended)
	}
	if len(video.levels) != 1 || video.levels[0] != HMIFull {
		t.Errorf("unexpected notifications: %v", video.levels)
	}
}

func TestParseHMILevel(t *testing.T) {
	tests := []struct {
		input    string
		expected HMILevel
		wantErr  bool
	}{
		{"FULL", HMIFull, false},
		{"background", HMIBackground, false},
		{"LIMITED", HMILimited, false},
		{"NONE", HMINone, false},
		{"MAXIMUM", HMINone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHMILevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
