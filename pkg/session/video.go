// ABOUTME: Video streaming session
// ABOUTME: Starts on full focus, forwards encoded frames and pauses in the background
package session

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/Resonate-Protocol/headunit-go/pkg/stream"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

// MinVideoProtocolVersion is the lowest protocol version carrying video
const MinVideoProtocolVersion = 5

// VideoConfig configures a VideoManager
type VideoConfig struct {
	Transport transport.Transport

	// Formats in preference order (default: DefaultVideoFormats)
	Formats []transport.VideoFormat

	// FrameRate requested from the encoder (default: DefaultFrameRate)
	FrameRate int

	// OnTouch receives touch events from the head unit screen
	OnTouch func(touch transport.Touch)

	// OnPause is called when frame submission is suspended or resumed
	OnPause func(paused bool)
}

// VideoManager streams encoded video frames to a head unit.
//
// The service is requested once the head unit gives the app full focus.
// While STARTED, losing full focus pauses the stream: frames passed to
// SendFrame are dropped but the service stays open.
type VideoManager struct {
	config VideoConfig
	c      *core[VideoParams]
	hmi    *notificationListener
	touch  *notificationListener

	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
	bytesSent     atomic.Uint64
}

// NewVideoManager creates a video session in state NONE
func NewVideoManager(config VideoConfig) *VideoManager {
	m := &VideoManager{config: config}
	m.c = newCore[VideoParams]("video", transport.Video, config.Transport, true)
	m.hmi = &notificationListener{fn: m.handleHMI}
	m.touch = &notificationListener{fn: m.handleTouch}
	return m
}

// Start negotiates video parameters and registers the service, HMI and touch
// listeners. The service itself starts on the first HMI FULL notification;
// onComplete reports the outcome.
func (m *VideoManager) Start(encrypted bool, onComplete Completion) {
	if err := m.c.prepare(encrypted, onComplete); err != nil {
		complete(onComplete, false, err)
		return
	}

	capability, err := m.c.negotiate(MinVideoProtocolVersion)
	if err != nil {
		m.c.abort(err)
		return
	}
	params, err := NegotiateVideoParams(capability.Video, m.config.Formats, m.config.FrameRate)
	if err != nil {
		m.c.abort(err)
		return
	}

	err = m.c.attach(params, func(reg *registration) error {
		if err := reg.addNotification(transport.HMIStatus, m.hmi); err != nil {
			return err
		}
		return reg.addNotification(transport.TouchEvent, m.touch)
	})
	if err != nil {
		m.c.abort(err)
		return
	}

	if m.c.machine.Focused() {
		m.c.request()
	}
}

func (m *VideoManager) handleHMI(n transport.Notification) {
	full := n.HMILevel == transport.HMIFull
	if m.c.machine.SetFocus(full) {
		paused := m.c.machine.IsPaused()
		log.Printf("Video stream paused=%v (HMI %v)", paused, n.HMILevel)
		if m.config.OnPause != nil {
			m.config.OnPause(paused)
		}
	}
	if full {
		m.c.request()
	}
}

func (m *VideoManager) handleTouch(n transport.Notification) {
	if n.Touch == nil || m.config.OnTouch == nil {
		return
	}
	m.config.OnTouch(*n.Touch)
}

// StartEncoder moves READY to STARTED. The stream starts paused unless the
// app currently has full focus.
func (m *VideoManager) StartEncoder() error {
	if err := m.c.machine.Begin(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	params, _ := m.c.machine.Capability()
	log.Printf("Video encoder started: %v", params)
	return nil
}

// ReleaseEncoder stops the stream and ends the video service
func (m *VideoManager) ReleaseEncoder() error {
	if s := m.c.machine.State(); s != stream.Ready && s != stream.Started {
		return fmt.Errorf("%w: video stream is %v", ErrInvalidState, s)
	}
	return m.c.stop(nil)
}

// SendFrame forwards one encoded frame. Frames sent while paused are dropped.
func (m *VideoManager) SendFrame(data []byte, presentationTimeUs int64) error {
	if s := m.c.machine.State(); s != stream.Started {
		return fmt.Errorf("%w: video stream is %v", ErrInvalidState, s)
	}
	if m.c.machine.IsPaused() {
		m.framesDropped.Add(1)
		return nil
	}

	sink := m.c.currentSink()
	if sink == nil {
		m.framesDropped.Add(1)
		return fmt.Errorf("%w: no video sink", ErrInvalidState)
	}
	if err := sink.SendFrame(data, presentationTimeUs); err != nil {
		m.framesDropped.Add(1)
		return err
	}
	m.framesSent.Add(1)
	m.bytesSent.Add(uint64(len(data)))
	return nil
}

// Dispose removes the service, HMI and touch listeners and forces STOPPED.
// It is safe to call at any time, including more than once.
func (m *VideoManager) Dispose() error {
	return m.c.dispose()
}

func (m *VideoManager) CurrentState() stream.State {
	return m.c.machine.State()
}

func (m *VideoManager) IsVideoConnected() bool {
	return m.c.machine.IsConnected()
}

func (m *VideoManager) IsPaused() bool {
	return m.c.machine.IsPaused()
}

// Params returns the negotiated parameters once READY
func (m *VideoManager) Params() (VideoParams, bool) {
	return m.c.machine.Capability()
}

func (m *VideoManager) Stats() Stats {
	return Stats{
		FramesSent:    m.framesSent.Load(),
		FramesDropped: m.framesDropped.Load(),
		BytesSent:     m.bytesSent.Load(),
	}
}
