// ABOUTME: Head unit simulator server
// ABOUTME: Accepts app connections, acks services, plays audio and drives HMI
package headunit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/headunit-go/internal/discovery"
	"github.com/Resonate-Protocol/headunit-go/internal/metrics"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
	"github.com/Resonate-Protocol/headunit-go/pkg/protocol"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

const (
	helloTimeout  = 10 * time.Second
	writeDeadline = 10 * time.Second
)

var errAppClosed = errors.New("app connection closed")

// Server is a simulated head unit
type Server struct {
	config     Config
	headUnitID string
	metrics    *metrics.Metrics
	format     audio.Format

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux
	addr       string
	ready      chan struct{}

	// App management
	apps   map[string]*app
	appsMu sync.RWMutex

	hmiMu sync.RWMutex
	hmi   transport.HMILevel

	// Audio playback
	scheduler  *Scheduler
	audioMu    sync.Mutex
	audioOwner *app
	recorder   *recorder

	audioFrames atomic.Int64
	videoFrames atomic.Int64

	// mDNS discovery
	mdnsManager *discovery.Manager

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// app is a connected app (internal)
type app struct {
	ID      string
	Name    string
	Conn    *websocket.Conn
	Version int

	sendChan chan interface{}
	done     chan struct{}

	mu       sync.Mutex
	closed   bool
	services map[transport.MediaType]bool
}

// AppInfo describes a connected app
type AppInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Services []string `json:"services"`
}

// Status is a snapshot of the simulator
type Status struct {
	HeadUnitID  string         `json:"headunit_id"`
	Name        string         `json:"name"`
	HMILevel    string         `json:"hmi_level"`
	Apps        []AppInfo      `json:"apps"`
	AudioFrames int64          `json:"audio_frames"`
	VideoFrames int64          `json:"video_frames"`
	Playback    SchedulerStats `json:"playback"`
}

// NewServer creates a head unit simulator
func NewServer(config Config) (*Server, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:     config,
		headUnitID: uuid.New().String(),
		metrics:    config.Metrics,
		mux:        http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Apps connect from the local network
				return true
			},
		},
		ready:     make(chan struct{}),
		apps:      make(map[string]*app),
		hmi:       config.InitialHMI,
		scheduler: NewScheduler(config.PlayoutDelay, config.Metrics),
		stopChan:  make(chan struct{}),
	}
	if config.Audio != nil {
		s.format, _ = audioFormat(config.Audio)
	}
	s.metrics.SetHMILevel(int(config.InitialHMI))

	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	s.mux.HandleFunc("/hmi", s.handleHMIRequest)
	s.mux.HandleFunc("/touch", s.handleTouchRequest)
	s.mux.HandleFunc("/status", s.handleStatusRequest)
	s.mux.Handle("/metrics", s.metrics.Handler())

	return s, nil
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	log.Printf("Head unit starting: %s (ID: %s, protocol %d)", s.config.Name, s.headUnitID, s.config.ProtocolVersion)
	if s.config.Audio != nil {
		log.Printf("Audio capability: %v", s.format)
	}
	if v := s.config.Video; v != nil {
		log.Printf("Video capability: %dx%d @ %dfps, %d kbps", v.Width, v.Height, v.FrameRate, v.MaxBitrate)
	}

	port := s.config.Port
	if port < 0 {
		port = 0
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.addr = listener.Addr().String()
	close(s.ready)

	// Start mDNS advertisement if enabled
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        listener.Addr().(*net.TCPAddr).Port,
			Path:        s.config.Path,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run()
	}()
	go func() {
		defer s.wg.Done()
		s.play()
	}()

	log.Printf("WebSocket server listening on %s%s", s.addr, s.config.Path)
	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for stop signal or server error
	select {
	case <-s.stopChan:
		log.Printf("Head unit shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		s.Stop()
		s.shutdown()
		return err
	}

	s.shutdown()
	log.Printf("Head unit stopped cleanly")
	return nil
}

func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections outlive Shutdown
	s.appsMu.RLock()
	for _, a := range s.apps {
		a.Conn.Close()
	}
	s.appsMu.RUnlock()

	s.scheduler.Stop()
	s.wg.Wait()

	s.audioMu.Lock()
	s.closeRecorderLocked()
	s.audioMu.Unlock()

	if err := s.config.Output.Close(); err != nil {
		log.Printf("Error closing audio output: %v", err)
	}
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Ready is closed once the server is listening
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, or "" before Ready is closed
func (s *Server) Addr() string {
	select {
	case <-s.ready:
		return s.addr
	default:
		return ""
	}
}

// HeadUnitID returns the generated head unit ID
func (s *Server) HeadUnitID() string {
	return s.headUnitID
}

// Metrics returns the metrics the server records to
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// HMILevel returns the current HMI level
func (s *Server) HMILevel() transport.HMILevel {
	s.hmiMu.RLock()
	defer s.hmiMu.RUnlock()
	return s.hmi
}

// SetHMILevel changes the HMI level and notifies every app
func (s *Server) SetHMILevel(level transport.HMILevel) {
	s.hmiMu.Lock()
	changed := s.hmi != level
	s.hmi = level
	s.hmiMu.Unlock()

	s.metrics.SetHMILevel(int(level))
	if changed {
		log.Printf("HMI level -> %v", level)
	}
	s.broadcast(protocol.TypeHMIStatus, protocol.HMIStatus{Level: level.String()})
}

// Touch sends a touch event to every app
func (s *Server) Touch(touch transport.Touch) {
	if touch.TimestampMs == 0 {
		touch.TimestampMs = time.Now().UnixMilli()
	}
	s.broadcast(protocol.TypeTouchEvent, touch)
}

func (s *Server) broadcast(msgType string, payload interface{}) {
	s.appsMu.RLock()
	defer s.appsMu.RUnlock()

	for _, a := range s.apps {
		if err := a.send(protocol.Message{Type: msgType, Payload: payload}); err != nil {
			log.Printf("Failed to send %s to %s: %v", msgType, a.Name, err)
		}
	}
}

// Apps returns information about all connected apps
func (s *Server) Apps() []AppInfo {
	s.appsMu.RLock()
	defer s.appsMu.RUnlock()

	apps := make([]AppInfo, 0, len(s.apps))
	for _, a := range s.apps {
		a.mu.Lock()
		info := AppInfo{ID: a.ID, Name: a.Name, Version: a.Version, Services: []string{}}
		for media := range a.services {
			info.Services = append(info.Services, media.String())
		}
		a.mu.Unlock()
		apps = append(apps, info)
	}
	return apps
}

// Status returns a snapshot of the simulator
func (s *Server) Status() Status {
	return Status{
		HeadUnitID:  s.headUnitID,
		Name:        s.config.Name,
		HMILevel:    s.HMILevel().String(),
		Apps:        s.Apps(),
		AudioFrames: s.audioFrames.Load(),
		VideoFrames: s.videoFrames.Load(),
		Playback:    s.scheduler.Stats(),
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection manages an app connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	// Wait for app/hello
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Printf("Error parsing hello: %v", err)
		return
	}
	if env.Type != protocol.TypeAppHello {
		log.Printf("Expected %s, got %s", protocol.TypeAppHello, env.Type)
		return
	}

	var hello protocol.AppHello
	if err := env.Decode(&hello); err != nil {
		log.Printf("Error decoding app hello: %v", err)
		return
	}
	if hello.AppID == "" || hello.Version < 1 {
		log.Printf("App hello missing required fields")
		return
	}

	a := &app{
		ID:       hello.AppID,
		Name:     hello.Name,
		Conn:     conn,
		Version:  min(hello.Version, s.config.ProtocolVersion),
		sendChan: make(chan interface{}, 100),
		done:     make(chan struct{}),
		services: make(map[transport.MediaType]bool),
	}
	log.Printf("App hello: %s (ID: %s, protocol %d, negotiated %d)", hello.Name, hello.AppID, hello.Version, a.Version)

	// Check for duplicate and register
	s.appsMu.Lock()
	if _, exists := s.apps[a.ID]; exists {
		s.appsMu.Unlock()
		log.Printf("App ID %s already connected, rejecting duplicate", a.ID)
		return
	}
	s.apps[a.ID] = a
	s.appsMu.Unlock()
	s.metrics.Connections.Inc()

	defer func() {
		s.removeApp(a)
		s.metrics.Connections.Dec()
		log.Printf("App disconnected: %s", a.Name)
	}()

	reply := protocol.HeadUnitHello{
		HeadUnitID:      s.headUnitID,
		Name:            s.config.Name,
		ProtocolVersion: a.Version,
		Audio:           s.config.Audio,
		Video:           s.config.Video,
		HMILevel:        s.HMILevel().String(),
	}
	if err := a.send(protocol.Message{Type: protocol.TypeHeadUnitHello, Payload: reply}); err != nil {
		log.Printf("Error sending head unit hello: %v", err)
		return
	}

	// Start writer goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.appWriter(a)
	}()

	if len(s.config.HMIScript) > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runHMIScript(a)
		}()
	}

	// Read messages from app
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			s.handleFrame(a, data)
			continue
		}
		if !s.handleAppMessage(a, data) {
			return
		}
	}
}

// appWriter sends queued messages to the app
func (s *Server) appWriter(a *app) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-a.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			a.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := a.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := a.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// runHMIScript applies each step at its offset from the connection time
func (s *Server) runHMIScript(a *app) {
	start := time.Now()
	for _, step := range s.config.HMIScript {
		timer := time.NewTimer(time.Until(start.Add(step.After)))
		select {
		case <-timer.C:
			s.SetHMILevel(step.Level)
		case <-a.done:
			timer.Stop()
			return
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// handleAppMessage processes a text message; false ends the connection
func (s *Server) handleAppMessage(a *app, data []byte) bool {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Printf("Failed to parse message from %s: %v", a.Name, err)
		return true
	}

	switch env.Type {
	case protocol.TypeServiceStart:
		var msg protocol.ServiceStart
		if err := env.Decode(&msg); err != nil {
			log.Printf("Failed to parse service/start: %v", err)
			return true
		}
		s.handleServiceStart(a, msg)

	case protocol.TypeServiceStop:
		var msg protocol.ServiceStop
		if err := env.Decode(&msg); err != nil {
			log.Printf("Failed to parse service/stop: %v", err)
			return true
		}
		media, err := transport.ParseMediaType(msg.Media)
		if err != nil {
			log.Printf("Ignoring service/stop: %v", err)
			return true
		}
		s.endService(a, media, "stopped")

	case protocol.TypeAppGoodbye:
		var msg protocol.AppGoodbye
		env.Decode(&msg)
		log.Printf("App %s said goodbye: %s", a.Name, msg.Reason)
		return false

	default:
		log.Printf("Unknown message type from %s: %s", a.Name, env.Type)
	}
	return true
}

func (s *Server) handleServiceStart(a *app, msg protocol.ServiceStart) {
	media, err := transport.ParseMediaType(msg.Media)
	if err != nil {
		a.send(protocol.Message{
			Type:    protocol.TypeServiceNack,
			Payload: protocol.ServiceNack{Media: msg.Media, Reason: err.Error()},
		})
		return
	}

	if reason := s.refuse(a, media); reason != "" {
		log.Printf("Refusing %v service for %s: %s", media, a.Name, reason)
		s.metrics.RecordServiceStart(media.String(), false)
		a.send(protocol.Message{
			Type:    protocol.TypeServiceNack,
			Payload: protocol.ServiceNack{Media: media.String(), Reason: reason},
		})
		return
	}

	a.mu.Lock()
	already := a.services[media]
	a.services[media] = true
	a.mu.Unlock()

	if !already {
		log.Printf("%v service started for %s", media, a.Name)
		s.metrics.RecordServiceStart(media.String(), true)
		if media == transport.Audio {
			s.scheduler.Reset()
			s.openRecording()
		}
	}

	a.send(protocol.Message{
		Type:    protocol.TypeServiceStarted,
		Payload: protocol.ServiceStarted{Media: media.String(), Encrypted: false},
	})
}

// refuse returns the reason a service cannot start, or ""
func (s *Server) refuse(a *app, media transport.MediaType) string {
	switch media {
	case transport.Audio:
		if s.config.Audio == nil {
			return "no audio capability"
		}
		s.audioMu.Lock()
		defer s.audioMu.Unlock()
		if s.audioOwner != nil && s.audioOwner != a {
			return "audio in use by " + s.audioOwner.Name
		}
		s.audioOwner = a
	case transport.Video:
		if s.config.Video == nil {
			return "no video capability"
		}
		if a.Version < MinVideoVersion {
			return fmt.Sprintf("video requires protocol %d", MinVideoVersion)
		}
	}
	return ""
}

// endService closes a service and reports service/ended. An empty reason
// skips the message for connections that are going away.
func (s *Server) endService(a *app, media transport.MediaType, reason string) {
	a.mu.Lock()
	active := a.services[media]
	delete(a.services, media)
	a.mu.Unlock()

	if active {
		log.Printf("%v service ended for %s", media, a.Name)
		s.metrics.RecordServiceEnd(media.String())
		if media == transport.Audio {
			s.audioMu.Lock()
			if s.audioOwner == a {
				s.audioOwner = nil
			}
			s.closeRecorderLocked()
			s.audioMu.Unlock()
		}
	}

	if reason != "" {
		a.send(protocol.Message{
			Type:    protocol.TypeServiceEnded,
			Payload: protocol.ServiceEnded{Media: media.String(), Reason: reason},
		})
	}
}

func (s *Server) handleFrame(a *app, data []byte) {
	frame, err := protocol.ParseFrame(data)
	if err != nil {
		s.metrics.FrameErrors.Inc()
		log.Printf("Bad frame from %s: %v", a.Name, err)
		return
	}

	a.mu.Lock()
	active := a.services[frame.Media]
	a.mu.Unlock()
	if !active {
		s.metrics.FrameErrors.Inc()
		log.Printf("Frame for inactive %v service from %s", frame.Media, a.Name)
		return
	}

	s.metrics.RecordFrame(frame.Media.String(), len(frame.Data))
	switch frame.Media {
	case transport.Audio:
		s.audioFrames.Add(1)
		if err := s.playAudio(frame); err != nil {
			s.metrics.FrameErrors.Inc()
			log.Printf("Bad audio frame from %s: %v", a.Name, err)
		}
	case transport.Video:
		s.videoFrames.Add(1)
	}
}

func (s *Server) playAudio(frame protocol.Frame) error {
	buf, err := audio.Wrap(frame.Data, s.format.SampleType, frame.PresentationTimeUs)
	if err != nil {
		return err
	}

	samples := make([]int16, buf.Limit())
	for i := range samples {
		v, err := buf.Get(i)
		if err != nil {
			return err
		}
		samples[i] = audio.ToInt16(v)
	}

	s.audioMu.Lock()
	if s.recorder != nil {
		if err := s.recorder.write(samples); err != nil {
			log.Printf("Recording failed: %v", err)
			s.closeRecorderLocked()
		}
	}
	s.audioMu.Unlock()

	s.scheduler.Schedule(audio.Buffer{
		Timestamp: frame.PresentationTimeUs,
		Samples:   samples,
		Format:    audio.Format{Channels: 1, SampleRate: s.format.SampleRate, SampleType: audio.Signed16},
	})
	return nil
}

// play writes scheduled audio to the output
func (s *Server) play() {
	var opened audio.Format
	for {
		select {
		case buf := <-s.scheduler.Output():
			if buf.Format != opened {
				if err := s.config.Output.Open(buf.Format.SampleRate, buf.Format.Channels); err != nil {
					log.Printf("Failed to open audio output: %v", err)
					continue
				}
				opened = buf.Format
			}
			if err := s.config.Output.Write(buf.Samples); err != nil {
				log.Printf("Audio output error: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

func (s *Server) openRecording() {
	if s.config.RecordPath == "" {
		return
	}

	s.audioMu.Lock()
	defer s.audioMu.Unlock()

	s.closeRecorderLocked()
	rec, err := openRecorder(s.config.RecordPath, s.format.SampleRate, 1)
	if err != nil {
		log.Printf("Not recording audio: %v", err)
		return
	}
	s.recorder = rec
	log.Printf("Recording audio to %s", s.config.RecordPath)
}

func (s *Server) closeRecorderLocked() {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.close(); err != nil {
		log.Printf("Error closing recording: %v", err)
	}
	s.recorder = nil
}

// removeApp unregisters an app and ends its services
func (s *Server) removeApp(a *app) {
	s.appsMu.Lock()
	delete(s.apps, a.ID)
	s.appsMu.Unlock()

	close(a.done)

	a.mu.Lock()
	var active []transport.MediaType
	for media := range a.services {
		active = append(active, media)
	}
	a.mu.Unlock()
	for _, media := range active {
		s.endService(a, media, "")
	}

	// Release an audio claim from a start that was never acked
	s.audioMu.Lock()
	if s.audioOwner == a {
		s.audioOwner = nil
	}
	s.audioMu.Unlock()

	a.mu.Lock()
	a.closed = true
	close(a.sendChan)
	a.mu.Unlock()
}

func (a *app) send(msg protocol.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errAppClosed
	}
	select {
	case a.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("send queue full for %s", a.Name)
	}
}

func (s *Server) handleHMIRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	level, err := transport.ParseHMILevel(r.URL.Query().Get("level"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.SetHMILevel(level)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTouchRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	x, errX := strconv.Atoi(query.Get("x"))
	y, errY := strconv.Atoi(query.Get("y"))
	if errX != nil || errY != nil {
		http.Error(w, "x and y are required", http.StatusBadRequest)
		return
	}
	touchType := query.Get("type")
	if touchType == "" {
		touchType = "BEGIN"
	}

	s.Touch(transport.Touch{Type: touchType, X: x, Y: y})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		log.Printf("Failed to write status: %v", err)
	}
}
