// ABOUTME: Audio streaming session
// ABOUTME: Decodes pushed resources to the negotiated PCM format and streams them
package session

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/headunit-go/pkg/stream"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

const (
	// MinAudioProtocolVersion is the lowest protocol version carrying PCM audio
	MinAudioProtocolVersion = 1

	// DefaultAudioLead is how far ahead of real time decoded audio is sent
	DefaultAudioLead = 500 * time.Millisecond
)

// AudioConfig configures an AudioManager
type AudioConfig struct {
	Transport transport.Transport

	// Registry selects decode engines (default: decode.DefaultRegistry)
	Registry *decode.Registry

	// EngineLevel is passed to every decoder (default: decode.PCMEncodingLevel)
	EngineLevel int

	// Lead bounds how far a frame's presentation time may run ahead of the
	// stream clock when it is sent (default: DefaultAudioLead). The decoder
	// waits rather than run ahead. Negative disables pacing.
	Lead time.Duration
}

type audioPush struct {
	res        decode.Resource
	onComplete Completion
}

// AudioManager streams decoded audio to a head unit.
// Pushed resources are decoded one at a time, in order, with presentation
// timestamps continuing from one resource to the next.
type AudioManager struct {
	config AudioConfig
	c      *core[audio.Format]
	hmi    *notificationListener
	level  atomic.Int32

	mu      sync.Mutex
	queue   []audioPush
	active  *decode.Decoder
	nextPTS int64
	closed  bool

	// stream clock, anchored at the first delivered frame
	clockSet  bool
	clockWall time.Time
	clockPTS  int64
	halt      chan struct{}
	haltOnce  sync.Once

	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
	bytesSent     atomic.Uint64
}

// NewAudioManager creates an audio session in state NONE
func NewAudioManager(config AudioConfig) *AudioManager {
	if config.Registry == nil {
		config.Registry = decode.DefaultRegistry()
	}
	if config.Lead == 0 {
		config.Lead = DefaultAudioLead
	}

	m := &AudioManager{config: config, halt: make(chan struct{})}
	m.c = newCore[audio.Format]("audio", transport.Audio, config.Transport, false)
	m.c.onStopped = m.stopDecoding
	m.hmi = &notificationListener{fn: m.handleHMI}
	return m
}

// Start negotiates the PCM capability and starts the audio service.
// onComplete reports the outcome; failures leave no listener registered.
func (m *AudioManager) Start(encrypted bool, onComplete Completion) {
	if err := m.c.prepare(encrypted, onComplete); err != nil {
		complete(onComplete, false, err)
		return
	}

	capability, err := m.c.negotiate(MinAudioProtocolVersion)
	if err != nil {
		m.c.abort(err)
		return
	}
	format, err := AudioFormatFor(capability.Audio)
	if err != nil {
		m.c.abort(err)
		return
	}

	err = m.c.attach(format, func(reg *registration) error {
		return reg.addNotification(transport.HMIStatus, m.hmi)
	})
	if err != nil {
		m.c.abort(err)
		return
	}
	m.c.request()
}

// AudioFormatFor derives the stream format from a PCM capability.
// Head-unit PCM carries no channel count and is always mono; decoded
// multichannel sources are downmixed by the resampler.
func AudioFormatFor(capability *transport.AudioCapability) (audio.Format, error) {
	if capability == nil {
		return audio.Format{}, fmt.Errorf("%w: no audio capability", ErrCapabilityUnavailable)
	}
	if t := strings.ToUpper(capability.AudioType); t != "" && t != "PCM" {
		return audio.Format{}, fmt.Errorf("%w: audio type %s", ErrCapabilityUnavailable, capability.AudioType)
	}
	st, err := audio.SampleTypeForBits(capability.BitsPerSample)
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	format := audio.Format{Channels: 1, SampleRate: capability.SamplingRate, SampleType: st}
	if err := format.Validate(); err != nil {
		return audio.Format{}, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	return format, nil
}

// PushResource queues res for decoding. It fails with ErrNotReady unless the
// stream is READY or STARTED; decode failures are reported to onComplete.
func (m *AudioManager) PushResource(res decode.Resource, onComplete Completion) error {
	err := m.c.machine.Guard(func(s stream.State) error {
		if s != stream.Ready && s != stream.Started {
			return fmt.Errorf("%w: audio stream is %v", ErrNotReady, s)
		}
		m.mu.Lock()
		m.queue = append(m.queue, audioPush{res: res, onComplete: onComplete})
		m.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	m.pump()
	return nil
}

// PushBuffer queues raw little-endian PCM in the given format
func (m *AudioManager) PushBuffer(data []byte, format audio.Format, onComplete Completion) error {
	return m.PushResource(decode.PCMResource{Label: "buffer", Data: data, Format: format}, onComplete)
}

// pump starts the next queued decode when none is running
func (m *AudioManager) pump() {
	target, ok := m.c.machine.Capability()
	if !ok {
		return
	}

	m.mu.Lock()
	if m.closed || m.active != nil || len(m.queue) == 0 {
		m.mu.Unlock()
		return
	}
	job := m.queue[0]
	m.queue = m.queue[1:]
	dec := decode.NewDecoder(decode.Config{
		Registry:    m.config.Registry,
		EngineLevel: m.config.EngineLevel,
		PTSOffsetUs: m.nextPTS,
	})
	m.active = dec
	m.mu.Unlock()

	enc, err := encode.NewPCM(target)
	if err != nil {
		m.finished(dec, job, false, err)
		return
	}

	if m.c.machine.State() == stream.Ready {
		if err := m.c.machine.Begin(); err != nil {
			log.Printf("Audio stream begin: %v", err)
		}
	}

	dec.Start(job.res, target,
		func(block audio.Block) { m.deliver(enc, block) },
		func(success bool, err error) { m.finished(dec, job, success, err) })
}

// pace holds the decode goroutine until block is within the lead of the
// stream clock. It reports false if the stream stops while waiting.
func (m *AudioManager) pace(block audio.Block) bool {
	if m.config.Lead < 0 {
		return true
	}

	now := time.Now()
	m.mu.Lock()
	ahead := time.Duration(block.PresentationTimeUs-m.clockPTS) * time.Microsecond
	due := m.clockWall.Add(ahead - m.config.Lead)
	// an idle gap between pushes restarts the clock at this block
	if !m.clockSet || now.Sub(due) > m.config.Lead {
		m.clockSet = true
		m.clockWall = now
		m.clockPTS = block.PresentationTimeUs
		due = now.Add(-m.config.Lead)
	}
	m.mu.Unlock()

	wait := time.Until(due)
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.halt:
		return false
	}
}

// deliver runs on the decode goroutine
func (m *AudioManager) deliver(enc encode.Encoder, block audio.Block) {
	if !m.pace(block) {
		return
	}

	m.mu.Lock()
	m.nextPTS = block.PresentationTimeUs + block.DurationUs()
	m.mu.Unlock()

	sink := m.c.currentSink()
	if sink == nil || !m.c.machine.IsConnected() {
		m.framesDropped.Add(1)
		return
	}

	data, err := enc.Encode(block)
	if err != nil {
		log.Printf("Audio encode failed: %v", err)
		m.framesDropped.Add(1)
		return
	}
	if err := sink.SendFrame(data, block.PresentationTimeUs); err != nil {
		log.Printf("Audio frame send failed: %v", err)
		m.framesDropped.Add(1)
		return
	}
	m.framesSent.Add(1)
	m.bytesSent.Add(uint64(len(data)))
}

func (m *AudioManager) finished(dec *decode.Decoder, job audioPush, success bool, err error) {
	m.mu.Lock()
	if m.active == dec {
		m.active = nil
	}
	m.mu.Unlock()

	complete(job.onComplete, success, err)
	m.pump()
}

// stopDecoding halts the active decode and fails everything still queued
func (m *AudioManager) stopDecoding() {
	m.mu.Lock()
	m.closed = true
	active := m.active
	queued := m.queue
	m.queue = nil
	m.mu.Unlock()

	m.haltOnce.Do(func() { close(m.halt) })
	if active != nil {
		active.Stop()
	}
	for _, job := range queued {
		complete(job.onComplete, false, decode.ErrStopped)
	}
}

func (m *AudioManager) handleHMI(n transport.Notification) {
	if prev := transport.HMILevel(m.level.Swap(int32(n.HMILevel))); prev != n.HMILevel {
		log.Printf("Audio session HMI level: %v", n.HMILevel)
	}
}

// Stop ends decoding and the audio service. onComplete runs once the head
// unit acknowledges the end.
func (m *AudioManager) Stop(onComplete Completion) error {
	return m.c.stop(onComplete)
}

// Dispose removes every listener and forces STOPPED. It is safe to call at
// any time, including more than once.
func (m *AudioManager) Dispose() error {
	return m.c.dispose()
}

func (m *AudioManager) CurrentState() stream.State {
	return m.c.machine.State()
}

func (m *AudioManager) IsConnected() bool {
	return m.c.machine.IsConnected()
}

// IsPaused is always false; audio has no pause sub-state
func (m *AudioManager) IsPaused() bool {
	return m.c.machine.IsPaused()
}

// Format returns the negotiated output format once READY
func (m *AudioManager) Format() (audio.Format, bool) {
	return m.c.machine.Capability()
}

func (m *AudioManager) HMILevel() transport.HMILevel {
	return transport.HMILevel(m.level.Load())
}

func (m *AudioManager) Stats() Stats {
	return Stats{
		FramesSent:    m.framesSent.Load(),
		FramesDropped: m.framesDropped.Load(),
		BytesSent:     m.bytesSent.Load(),
	}
}
