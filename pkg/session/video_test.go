// ABOUTME: Tests for the video streaming session
// ABOUTME: Covers the HMI-driven start, pause handling, frame forwarding and dispose
package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/headunit-go/internal/transporttest"
	"github.com/Resonate-Protocol/headunit-go/pkg/stream"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

func videoTransport(version int) *transporttest.Transport {
	fake := transporttest.New(version)
	fake.SetVideoCapability(transport.VideoCapability{
		Width:      800,
		Height:     480,
		MaxBitrate: 2048,
		Formats:    []transport.VideoFormat{{Protocol: "RAW", Codec: "H264"}},
	})
	return fake
}

// startVideo runs start -> HMI FULL -> READY
func startVideo(t *testing.T, fake *transporttest.Transport, config VideoConfig) *VideoManager {
	t.Helper()
	config.Transport = fake
	m := NewVideoManager(config)

	cb, done := recorder()
	m.Start(false, cb)
	if fake.ListenerCount() != 3 {
		t.Fatalf("expected service, HMI and touch listeners, got %d", fake.ListenerCount())
	}
	if fake.StartCalls(transport.Video) != 0 {
		t.Fatalf("service requested before HMI FULL")
	}

	fake.SetHMILevel(transport.HMIFull)
	if r := wait(t, done); !r.success {
		t.Fatalf("start failed: %v", r.err)
	}
	return m
}

func TestVideoLifecycle(t *testing.T) {
	fake := videoTransport(5)
	var pauses []bool
	m := startVideo(t, fake, VideoConfig{OnPause: func(p bool) { pauses = append(pauses, p) }})

	if m.CurrentState() != stream.Ready {
		t.Fatalf("expected READY, got %v", m.CurrentState())
	}
	params, ok := m.Params()
	if !ok || params.Width != 800 || params.BitrateKbps != 2048 || params.Format.Codec != "H264" {
		t.Errorf("unexpected params: %v", params)
	}

	if err := m.StartEncoder(); err != nil {
		t.Fatalf("start encoder failed: %v", err)
	}
	if m.CurrentState() != stream.Started || m.IsPaused() {
		t.Fatalf("expected STARTED and unpaused")
	}

	fake.SetHMILevel(transport.HMIBackground)
	if !m.IsPaused() || !m.IsVideoConnected() {
		t.Errorf("BACKGROUND should pause but stay connected")
	}
	if m.CurrentState() != stream.Started {
		t.Errorf("pause changed state to %v", m.CurrentState())
	}

	fake.SetHMILevel(transport.HMIFull)
	if m.IsPaused() {
		t.Errorf("FULL should resume")
	}
	if m.CurrentState() != stream.Started {
		t.Errorf("resume changed state to %v", m.CurrentState())
	}
	if fake.StartCalls(transport.Video) != 1 {
		t.Errorf("expected one service request, got %d", fake.StartCalls(transport.Video))
	}

	if err := m.ReleaseEncoder(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if m.CurrentState() != stream.Stopped {
		t.Errorf("expected STOPPED, got %v", m.CurrentState())
	}

	if err := m.Dispose(); err != nil {
		t.Errorf("dispose failed: %v", err)
	}
	if m.IsVideoConnected() {
		t.Errorf("expected disconnected after dispose")
	}
	if fake.ListenerCount() != 0 {
		t.Errorf("expected no listeners, got %d", fake.ListenerCount())
	}

	if len(pauses) != 2 || !pauses[0] || pauses[1] {
		t.Errorf("expected pause then resume, got %v", pauses)
	}
}

func TestVideoDisposeDuringActiveStream(t *testing.T) {
	fake := videoTransport(5)
	m := startVideo(t, fake, VideoConfig{})
	if err := m.StartEncoder(); err != nil {
		t.Fatalf("start encoder failed: %v", err)
	}

	if err := m.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}
	if m.CurrentState() != stream.Stopped {
		t.Errorf("expected STOPPED, got %v", m.CurrentState())
	}
	if m.IsVideoConnected() {
		t.Errorf("expected video disconnected")
	}
	if fake.ListenerCount() != 0 {
		t.Errorf("expected all three listeners removed, got %d", fake.ListenerCount())
	}
	if fake.StopCalls(transport.Video) != 1 {
		t.Errorf("expected the service to be stopped once, got %d", fake.StopCalls(transport.Video))
	}
	if err := m.SendFrame([]byte{1}, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState after dispose, got %v", err)
	}
}

func TestVideoStartEncoderOutsideReady(t *testing.T) {
	fake := videoTransport(5)
	m := NewVideoManager(VideoConfig{Transport: fake})

	if err := m.StartEncoder(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState before start, got %v", err)
	}
	if err := m.ReleaseEncoder(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState releasing before start, got %v", err)
	}

	m = startVideo(t, fake, VideoConfig{})
	m.StartEncoder()
	if err := m.StartEncoder(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState when already STARTED, got %v", err)
	}
}

func TestVideoStartFailures(t *testing.T) {
	tests := []struct {
		name    string
		fake    func() *transporttest.Transport
		formats []transport.VideoFormat
	}{
		{"protocol version too old", func() *transporttest.Transport { return videoTransport(4) }, nil},
		{"no capability", func() *transporttest.Transport { return transporttest.New(5) }, nil},
		{"no common format", func() *transporttest.Transport { return videoTransport(5) },
			[]transport.VideoFormat{{Protocol: "RTP", Codec: "H265"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := tt.fake()
			m := NewVideoManager(VideoConfig{Transport: fake, Formats: tt.formats})

			cb, done := recorder()
			m.Start(false, cb)
			r := wait(t, done)
			if r.success || !errors.Is(r.err, ErrCapabilityUnavailable) {
				t.Errorf("expected ErrCapabilityUnavailable, got %v", r.err)
			}
			if fake.ListenerCount() != 0 {
				t.Errorf("failed start left %d listeners", fake.ListenerCount())
			}
		})
	}
}

func TestVideoSendFrame(t *testing.T) {
	fake := videoTransport(5)
	m := startVideo(t, fake, VideoConfig{})

	if err := m.SendFrame([]byte{0}, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState while READY, got %v", err)
	}
	m.StartEncoder()

	frames := []struct {
		level transport.HMILevel
		pts   int64
	}{
		{transport.HMIFull, 0},
		{transport.HMIFull, 33333},
		{transport.HMILimited, 66666},
		{transport.HMIBackground, 99999},
		{transport.HMIFull, 133332},
	}
	for _, f := range frames {
		fake.SetHMILevel(f.level)
		if err := m.SendFrame([]byte{0, 0, 0, 1}, f.pts); err != nil {
			t.Fatalf("send at %d failed: %v", f.pts, err)
		}
	}

	got := fake.Sink(transport.Video).Frames()
	if len(got) != 3 {
		t.Fatalf("expected 3 frames forwarded, got %d", len(got))
	}
	if got[2].PresentationTimeUs != 133332 {
		t.Errorf("expected last frame at 133332, got %d", got[2].PresentationTimeUs)
	}
	if s := m.Stats(); s.FramesSent != 3 || s.FramesDropped != 2 || s.BytesSent != 12 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestVideoTouchForwarded(t *testing.T) {
	fake := videoTransport(5)
	var touches []transport.Touch
	startVideo(t, fake, VideoConfig{OnTouch: func(touch transport.Touch) { touches = append(touches, touch) }})

	fake.Touch(transport.Touch{Type: "BEGIN", X: 10, Y: 20})
	fake.Touch(transport.Touch{Type: "END", X: 10, Y: 20})

	if len(touches) != 2 || touches[0].Type != "BEGIN" || touches[1].Y != 20 {
		t.Errorf("unexpected touches: %+v", touches)
	}
}

func TestVideoServiceEndedWhilePaused(t *testing.T) {
	fake := videoTransport(5)
	m := startVideo(t, fake, VideoConfig{})
	m.StartEncoder()
	fake.SetHMILevel(transport.HMIBackground)

	fake.End(transport.Video)

	if m.CurrentState() != stream.Stopped {
		t.Errorf("expected STOPPED, got %v", m.CurrentState())
	}
	if m.IsPaused() || m.IsVideoConnected() {
		t.Errorf("stopped stream must be neither paused nor connected")
	}
}

func TestVideoConcurrentReleaseAndBackground(t *testing.T) {
	for i := 0; i < 50; i++ {
		fake := videoTransport(5)
		m := startVideo(t, fake, VideoConfig{})
		if err := m.StartEncoder(); err != nil {
			t.Fatalf("start encoder failed: %v", err)
		}

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(3)
		go func() {
			defer wg.Done()
			<-start
			fake.SetHMILevel(transport.HMIBackground)
		}()
		go func() {
			defer wg.Done()
			<-start
			if err := m.ReleaseEncoder(); err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("release failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			fake.End(transport.Video)
		}()
		close(start)
		wg.Wait()

		if m.CurrentState() != stream.Stopped {
			t.Fatalf("round %d: expected STOPPED, got %v", i, m.CurrentState())
		}
		if m.IsPaused() || m.IsVideoConnected() {
			t.Fatalf("round %d: stopped stream must be neither paused nor connected", i)
		}
		if err := m.Dispose(); err != nil {
			t.Fatalf("round %d: dispose failed: %v", i, err)
		}
	}
}

func TestVideoListenerSymmetry(t *testing.T) {
	for _, hmi := range []bool{false, true} {
		fake := videoTransport(5)
		before := fake.ListenerCount()
		m := NewVideoManager(VideoConfig{Transport: fake})
		m.Start(false, nil)
		if hmi {
			fake.SetHMILevel(transport.HMIFull)
		}

		if err := m.Dispose(); err != nil {
			t.Errorf("dispose failed: %v", err)
		}
		m.Dispose()
		if got := fake.ListenerCount(); got != before {
			t.Errorf("hmi=%v: expected %d listeners after dispose, got %d", hmi, before, got)
		}
	}
}
