// ABOUTME: In-memory transport double for session tests
// ABOUTME: Records listeners, acknowledges services and captures sink frames
// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"errors"
	"sync"

	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

// ErrNotConnected is returned by service calls while disconnected
var ErrNotConnected = errors.New("transport not connected")

// Frame is one frame captured by a Sink
type Frame struct {
	Media              transport.MediaType
	Data               []byte
	PresentationTimeUs int64
}

// Sink captures frames sent to it
type Sink struct {
	media transport.MediaType

	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (s *Sink) SendFrame(data []byte, presentationTimeUs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink closed")
	}
	s.frames = append(s.frames, Frame{
		Media:              s.media,
		Data:               append([]byte(nil), data...),
		PresentationTimeUs: presentationTimeUs,
	})
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Frames returns a snapshot of captured frames
func (s *Sink) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// Closed reports whether Close was called
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Transport is an in-memory transport. By default services are acknowledged
// synchronously from StartService and StopService.
type Transport struct {
	listeners *transport.Listeners

	mu           sync.Mutex
	connected    bool
	version      int
	capabilities map[transport.MediaType]*transport.Capability
	manualAck    bool
	rejections   map[transport.MediaType]string
	failAddAt    int
	addErr       error
	adds         int
	removeErr    error
	sinkErr      error
	startCalls   map[transport.MediaType]int
	stopCalls    map[transport.MediaType]int
	sinks        map[transport.MediaType]*Sink
}

// New creates a connected transport speaking protocol version
func New(version int) *Transport {
	return &Transport{
		listeners:    transport.NewListeners(),
		connected:    true,
		version:      version,
		capabilities: make(map[transport.MediaType]*transport.Capability),
		rejections:   make(map[transport.MediaType]string),
		startCalls:   make(map[transport.MediaType]int),
		stopCalls:    make(map[transport.MediaType]int),
		sinks:        make(map[transport.MediaType]*Sink),
	}
}

// SetAudioCapability sets the PCM capability
func (f *Transport) SetAudioCapability(rate, bits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capabilities[transport.Audio] = &transport.Capability{
		Audio: &transport.AudioCapability{SamplingRate: rate, BitsPerSample: bits, AudioType: "PCM"},
	}
}

// SetVideoCapability sets the video capability
func (f *Transport) SetVideoCapability(v transport.VideoCapability) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capabilities[transport.Video] = &transport.Capability{Video: &v}
}

func (f *Transport) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

// SetManualAck stops automatic acknowledgements; use Ack and End instead
func (f *Transport) SetManualAck(manual bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manualAck = manual
}

// Reject makes the next start of media fail with reason
func (f *Transport) Reject(media transport.MediaType, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejections[media] = reason
}

// FailAddAt makes the n-th listener add (1-based) fail with err
func (f *Transport) FailAddAt(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAddAt = n
	f.addErr = err
}

// FailNextRemove makes the next removal fail with err without removing
func (f *Transport) FailNextRemove(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErr = err
}

// FailSink makes OpenStreamSink fail with err
func (f *Transport) FailSink(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinkErr = err
}

// ListenerCount returns the number of registered listeners
func (f *Transport) ListenerCount() int {
	return f.listeners.Count()
}

func (f *Transport) StartCalls(media transport.MediaType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls[media]
}

func (f *Transport) StopCalls(media transport.MediaType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls[media]
}

// Sink returns the last sink opened for media
func (f *Transport) Sink(media transport.MediaType) *Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinks[media]
}

// Ack acknowledges a service start, or delivers a pending rejection
func (f *Transport) Ack(media transport.MediaType, encrypted bool) {
	f.mu.Lock()
	reason, rejected := f.rejections[media]
	delete(f.rejections, media)
	f.mu.Unlock()

	if rejected {
		f.listeners.ServiceError(media, reason)
		return
	}
	f.listeners.ServiceStarted(media, encrypted)
}

// End delivers a service end
func (f *Transport) End(media transport.MediaType) {
	f.listeners.ServiceEnded(media)
}

// SetHMILevel delivers an HMI status notification
func (f *Transport) SetHMILevel(level transport.HMILevel) {
	f.listeners.Notify(transport.Notification{Kind: transport.HMIStatus, HMILevel: level})
}

// Touch delivers a touch notification
func (f *Transport) Touch(touch transport.Touch) {
	f.listeners.Notify(transport.Notification{Kind: transport.TouchEvent, Touch: &touch})
}

func (f *Transport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Transport) ProtocolVersion() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *Transport) Capability(media transport.MediaType) *transport.Capability {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capabilities[media]
}

func (f *Transport) addAllowed() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if f.failAddAt > 0 && f.adds == f.failAddAt {
		return f.addErr
	}
	return nil
}

func (f *Transport) removeAllowed() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.removeErr
	f.removeErr = nil
	return err
}

func (f *Transport) AddServiceListener(media transport.MediaType, l transport.ServiceListener) error {
	if err := f.addAllowed(); err != nil {
		return err
	}
	return f.listeners.AddService(media, l)
}

func (f *Transport) RemoveServiceListener(media transport.MediaType, l transport.ServiceListener) error {
	if err := f.removeAllowed(); err != nil {
		return err
	}
	return f.listeners.RemoveService(media, l)
}

func (f *Transport) AddNotificationListener(kind transport.NotificationKind, l transport.NotificationListener) error {
	if err := f.addAllowed(); err != nil {
		return err
	}
	return f.listeners.AddNotification(kind, l)
}

func (f *Transport) RemoveNotificationListener(kind transport.NotificationKind, l transport.NotificationListener) error {
	if err := f.removeAllowed(); err != nil {
		return err
	}
	return f.listeners.RemoveNotification(kind, l)
}

func (f *Transport) StartService(media transport.MediaType, encrypted bool) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return ErrNotConnected
	}
	f.startCalls[media]++
	manual := f.manualAck
	f.mu.Unlock()

	if !manual {
		f.Ack(media, encrypted)
	}
	return nil
}

func (f *Transport) StopService(media transport.MediaType) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return ErrNotConnected
	}
	f.stopCalls[media]++
	manual := f.manualAck
	f.mu.Unlock()

	if !manual {
		f.End(media)
	}
	return nil
}

func (f *Transport) OpenStreamSink(media transport.MediaType) (transport.FrameSink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sinkErr != nil {
		return nil, f.sinkErr
	}
	s := &Sink{media: media}
	f.sinks[media] = s
	return s, nil
}

var _ transport.Transport = (*Transport)(nil)
