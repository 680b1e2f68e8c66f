// ABOUTME: Tests for playback scheduler
// ABOUTME: Tests presentation-time ordering, late drops and underrun recovery
package headunit

import (
	"testing"
	"time"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

func TestScheduleOrdersByTimestamp(t *testing.T) {
	s := NewScheduler(0, nil)
	defer s.Stop()

	s.Schedule(audio.Buffer{Timestamp: 0})
	s.Schedule(audio.Buffer{Timestamp: 40000})
	s.Schedule(audio.Buffer{Timestamp: 20000})

	ready := s.due(time.Now().Add(time.Second))
	if len(ready) != 0 {
		// everything is over a second late by then
		t.Fatalf("expected late buffers to be dropped, got %d ready", len(ready))
	}

	s.Reset()
	s.Schedule(audio.Buffer{Timestamp: 100000})
	s.Schedule(audio.Buffer{Timestamp: 140000})
	s.Schedule(audio.Buffer{Timestamp: 120000})

	ready = s.due(time.Now().Add(20 * time.Millisecond))
	if len(ready) != 3 {
		t.Fatalf("expected 3 buffers ready, got %d", len(ready))
	}
	for i, want := range []int64{100000, 120000, 140000} {
		if ready[i].Timestamp != want {
			t.Errorf("buffer %d: expected timestamp %d, got %d", i, want, ready[i].Timestamp)
		}
	}
}

func TestScheduleHoldsEarlyBuffers(t *testing.T) {
	s := NewScheduler(500*time.Millisecond, nil)
	defer s.Stop()

	s.Schedule(audio.Buffer{Timestamp: 0})
	if ready := s.due(time.Now()); len(ready) != 0 {
		t.Fatalf("expected buffer to wait for playout delay, got %d ready", len(ready))
	}
	if got := s.Stats().Received; got != 1 {
		t.Errorf("expected 1 received, got %d", got)
	}
}

func TestLateBufferDropped(t *testing.T) {
	s := NewScheduler(0, nil)
	defer s.Stop()

	// anchor at 1s, then a buffer a full second earlier in stream time
	s.Schedule(audio.Buffer{Timestamp: 1000000})
	s.Schedule(audio.Buffer{Timestamp: 0})

	ready := s.due(time.Now())
	if len(ready) != 1 || ready[0].Timestamp != 1000000 {
		t.Fatalf("expected only the anchor buffer, got %+v", ready)
	}

	stats := s.Stats()
	if stats.Dropped != 1 || stats.Played != 1 {
		t.Errorf("expected 1 played and 1 dropped, got %+v", stats)
	}
}

func TestScheduleReanchorsAfterUnderrun(t *testing.T) {
	s := NewScheduler(100*time.Millisecond, nil)
	defer s.Stop()

	s.Schedule(audio.Buffer{Timestamp: 0})
	if ready := s.due(time.Now().Add(100 * time.Millisecond)); len(ready) != 1 {
		t.Fatalf("expected the first buffer to play, got %d", len(ready))
	}

	// the sender went quiet for ten seconds
	s.mu.Lock()
	s.anchorTime = s.anchorTime.Add(-10 * time.Second)
	s.mu.Unlock()

	s.Schedule(audio.Buffer{Timestamp: 20000})
	if ready := s.due(time.Now()); len(ready) != 0 {
		t.Fatalf("expected re-anchored buffer to wait for playout delay, got %d", len(ready))
	}
	if ready := s.due(time.Now().Add(100 * time.Millisecond)); len(ready) != 1 {
		t.Fatalf("expected re-anchored buffer to play, got %d", len(ready))
	}
	if stats := s.Stats(); stats.Dropped != 0 {
		t.Errorf("expected no drops, got %+v", stats)
	}
}

func TestSchedulerRunDelivers(t *testing.T) {
	s := NewScheduler(0, nil)
	go s.Run()
	defer s.Stop()

	s.Schedule(audio.Buffer{Timestamp: 0, Samples: []int16{1, 2, 3}})

	select {
	case buf := <-s.Output():
		if len(buf.Samples) != 3 {
			t.Errorf("expected 3 samples, got %d", len(buf.Samples))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled buffer")
	}
}
