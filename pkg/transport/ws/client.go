// ABOUTME: Websocket transport to a head unit
// ABOUTME: Handles connection, handshake, service messages and frame sending
// Package ws implements transport.Transport over a websocket connection to a
// head unit speaking pkg/protocol.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/headunit-go/pkg/protocol"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

const (
	DefaultPath            = "/headunit"
	DefaultProtocolVersion = 5
	defaultSinkQueue       = 256
	handshakeTimeout       = 5 * time.Second
)

var (
	// ErrNotConnected is returned when sending without a connection
	ErrNotConnected = errors.New("not connected")

	// ErrQueueFull is returned when a frame is dropped because the send queue is full
	ErrQueueFull = errors.New("frame queue full")

	// ErrSinkClosed is returned when sending on a closed sink
	ErrSinkClosed = errors.New("sink closed")
)

// Config holds transport configuration
type Config struct {
	ServerAddr string // host:port
	Path       string
	AppID      string
	Name       string
	Version    int // highest protocol version offered
	DeviceInfo protocol.DeviceInfo

	// SinkQueue is the number of frames buffered before frames are dropped
	SinkQueue int
}

// Transport is a websocket connection to a head unit.
//
// Listener callbacks run on a single dispatch goroutine in the order events
// arrive. A late HMI listener receives the current level first.
type Transport struct {
	config    Config
	listeners *transport.Listeners

	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex

	hello     protocol.HeadUnitHello
	hmi       transport.HMILevel
	connected bool
	services  map[transport.MediaType]bool

	events     chan func()
	dispatched chan struct{}
	frames     chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates an unconnected transport
func New(config Config) *Transport {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.Version == 0 {
		config.Version = DefaultProtocolVersion
	}
	if config.SinkQueue <= 0 {
		config.SinkQueue = defaultSinkQueue
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		config:     config,
		listeners:  transport.NewListeners(),
		services:   make(map[transport.MediaType]bool),
		events:     make(chan func(), 64),
		dispatched: make(chan struct{}),
		frames:     make(chan []byte, config.SinkQueue),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Connect establishes the websocket connection and performs the handshake
func (t *Transport) Connect() error {
	u := url.URL{Scheme: "ws", Host: t.config.ServerAddr, Path: t.config.Path}
	log.Printf("Connecting to head unit at %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	if err := t.handshake(); err != nil {
		t.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go t.dispatch()
	go t.writeFrames()
	go t.readMessages()
	return nil
}

func (t *Transport) handshake() error {
	hello := protocol.AppHello{
		AppID:      t.config.AppID,
		Name:       t.config.Name,
		Version:    t.config.Version,
		DeviceInfo: &t.config.DeviceInfo,
	}
	msg := protocol.Message{Type: protocol.TypeAppHello, Payload: hello}
	helloJSON, _ := json.MarshalIndent(msg, "", "  ")
	log.Printf("Sending app/hello:\n%s", string(helloJSON))

	if err := t.sendJSON(msg); err != nil {
		return fmt.Errorf("failed to send app/hello: %w", err)
	}

	t.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read headunit/hello: %w", err)
	}
	t.conn.SetReadDeadline(time.Time{})

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return err
	}
	if env.Type != protocol.TypeHeadUnitHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeHeadUnitHello, env.Type)
	}

	var reply protocol.HeadUnitHello
	if err := env.Decode(&reply); err != nil {
		return err
	}
	level, err := transport.ParseHMILevel(reply.HMILevel)
	if err != nil {
		level = transport.HMINone
	}

	t.mu.Lock()
	t.hello = reply
	t.hmi = level
	t.mu.Unlock()

	log.Printf("Handshake complete with %s (protocol %d, HMI %v)", reply.Name, reply.ProtocolVersion, level)
	return nil
}

func (t *Transport) sendJSON(msg protocol.Message) error {
	t.mu.RLock()
	conn, connected := t.conn, t.connected
	t.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// post queues a listener callback on the dispatch goroutine
func (t *Transport) post(fn func()) {
	select {
	case t.events <- fn:
	case <-t.ctx.Done():
	}
}

func (t *Transport) dispatch() {
	defer close(t.dispatched)
	for {
		select {
		case fn := <-t.events:
			fn()
		case <-t.ctx.Done():
			for {
				select {
				case fn := <-t.events:
					fn()
				default:
					return
				}
			}
		}
	}
}

func (t *Transport) writeFrames() {
	for {
		select {
		case frame := <-t.frames:
			t.mu.RLock()
			conn := t.conn
			t.mu.RUnlock()

			t.writeMu.Lock()
			err := conn.WriteMessage(websocket.BinaryMessage, frame)
			t.writeMu.Unlock()
			if err != nil {
				log.Printf("Frame write error: %v", err)
				t.Close()
				return
			}
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) readMessages() {
	defer t.lost()

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			log.Printf("Read error: %v", err)
			return
		}

		if messageType == websocket.TextMessage {
			t.handleJSONMessage(data)
		} else {
			log.Printf("Ignoring websocket message type %d from head unit", messageType)
		}
	}
}

func (t *Transport) handleJSONMessage(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Printf("Failed to parse message: %v", err)
		return
	}

	switch env.Type {
	case protocol.TypeServiceStarted:
		var msg protocol.ServiceStarted
		media, ok := t.decodeMedia(env, &msg, func() string { return msg.Media })
		if !ok {
			return
		}
		t.mu.Lock()
		t.services[media] = true
		t.mu.Unlock()
		t.post(func() { t.listeners.ServiceStarted(media, msg.Encrypted) })

	case protocol.TypeServiceNack:
		var msg protocol.ServiceNack
		media, ok := t.decodeMedia(env, &msg, func() string { return msg.Media })
		if !ok {
			return
		}
		t.post(func() { t.listeners.ServiceError(media, msg.Reason) })

	case protocol.TypeServiceEnded:
		var msg protocol.ServiceEnded
		media, ok := t.decodeMedia(env, &msg, func() string { return msg.Media })
		if !ok {
			return
		}
		t.mu.Lock()
		delete(t.services, media)
		t.mu.Unlock()
		t.post(func() { t.listeners.ServiceEnded(media) })

	case protocol.TypeHMIStatus:
		var msg protocol.HMIStatus
		if err := env.Decode(&msg); err != nil {
			log.Printf("Failed to parse hmi/status: %v", err)
			return
		}
		level, err := transport.ParseHMILevel(msg.Level)
		if err != nil {
			log.Printf("Ignoring hmi/status: %v", err)
			return
		}
		t.mu.Lock()
		t.hmi = level
		t.mu.Unlock()
		n := transport.Notification{Kind: transport.HMIStatus, HMILevel: level}
		t.post(func() { t.listeners.Notify(n) })

	case protocol.TypeTouchEvent:
		var touch protocol.TouchEvent
		if err := env.Decode(&touch); err != nil {
			log.Printf("Failed to parse touch/event: %v", err)
			return
		}
		n := transport.Notification{Kind: transport.TouchEvent, Touch: &touch}
		t.post(func() { t.listeners.Notify(n) })

	default:
		log.Printf("Unknown message type: %s", env.Type)
	}
}

func (t *Transport) decodeMedia(env protocol.Envelope, v interface{}, media func() string) (transport.MediaType, bool) {
	if err := env.Decode(v); err != nil {
		log.Printf("Failed to parse %s: %v", env.Type, err)
		return 0, false
	}
	m, err := transport.ParseMediaType(media())
	if err != nil {
		log.Printf("Ignoring %s: %v", env.Type, err)
		return 0, false
	}
	return m, true
}

// lost ends every started service after the connection drops. It runs once
// the dispatch goroutine has drained, so the ends arrive after every earlier event.
func (t *Transport) lost() {
	t.Close()
	<-t.dispatched

	t.mu.Lock()
	var ended []transport.MediaType
	for media := range t.services {
		ended = append(ended, media)
	}
	t.services = make(map[transport.MediaType]bool)
	t.mu.Unlock()

	for _, media := range ended {
		log.Printf("%v service lost with the connection", media)
		t.listeners.ServiceEnded(media)
	}
}

func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *Transport) ProtocolVersion() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hello.ProtocolVersion
}

// HeadUnit returns the head unit's hello
func (t *Transport) HeadUnit() protocol.HeadUnitHello {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hello
}

func (t *Transport) Capability(media transport.MediaType) *transport.Capability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case media == transport.Audio && t.hello.Audio != nil:
		a := *t.hello.Audio
		return &transport.Capability{Audio: &a}
	case media == transport.Video && t.hello.Video != nil:
		v := *t.hello.Video
		return &transport.Capability{Video: &v}
	}
	return nil
}

func (t *Transport) AddServiceListener(media transport.MediaType, l transport.ServiceListener) error {
	return t.listeners.AddService(media, l)
}

func (t *Transport) RemoveServiceListener(media transport.MediaType, l transport.ServiceListener) error {
	return t.listeners.RemoveService(media, l)
}

func (t *Transport) AddNotificationListener(kind transport.NotificationKind, l transport.NotificationListener) error {
	if err := t.listeners.AddNotification(kind, l); err != nil {
		return err
	}
	if kind == transport.HMIStatus {
		t.mu.RLock()
		level := t.hmi
		t.mu.RUnlock()
		if level != transport.HMINone {
			t.post(func() { l.OnNotification(transport.Notification{Kind: transport.HMIStatus, HMILevel: level}) })
		}
	}
	return nil
}

func (t *Transport) RemoveNotificationListener(kind transport.NotificationKind, l transport.NotificationListener) error {
	return t.listeners.RemoveNotification(kind, l)
}

func (t *Transport) StartService(media transport.MediaType, encrypted bool) error {
	return t.sendJSON(protocol.Message{
		Type:    protocol.TypeServiceStart,
		Payload: protocol.ServiceStart{Media: media.String(), Encrypted: encrypted},
	})
}

func (t *Transport) StopService(media transport.MediaType) error {
	return t.sendJSON(protocol.Message{
		Type:    protocol.TypeServiceStop,
		Payload: protocol.ServiceStop{Media: media.String()},
	})
}

func (t *Transport) OpenStreamSink(media transport.MediaType) (transport.FrameSink, error) {
	if !t.IsConnected() {
		return nil, ErrNotConnected
	}
	return &sink{t: t, media: media}, nil
}

// SendGoodbye sends app/goodbye before disconnecting
func (t *Transport) SendGoodbye(reason string) error {
	return t.sendJSON(protocol.Message{
		Type:    protocol.TypeAppGoodbye,
		Payload: protocol.AppGoodbye{Reason: reason},
	})
}

// Close closes the connection
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		t.connected = false
		t.cancel()
		t.conn.Close()
		log.Printf("Connection closed")
	}
}

// sink queues frames for the writer goroutine without blocking
type sink struct {
	t      *Transport
	media  transport.MediaType
	closed atomic.Bool
}

func (s *sink) SendFrame(data []byte, presentationTimeUs int64) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if !s.t.IsConnected() {
		return ErrNotConnected
	}
	select {
	case s.t.frames <- protocol.EncodeFrame(s.media, presentationTimeUs, data):
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *sink) Close() error {
	s.closed.Store(true)
	return nil
}

var _ transport.Transport = (*Transport)(nil)
