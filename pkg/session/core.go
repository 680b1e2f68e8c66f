// ABOUTME: Lifecycle shared by the audio and video session managers
// ABOUTME: Start negotiation, service acknowledgements, stop and dispose
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/headunit-go/pkg/stream"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

// Stats counts frames handed to the transport
type Stats struct {
	FramesSent    uint64
	FramesDropped uint64
	BytesSent     uint64
}

// core drives one media service. C is the negotiated capability snapshot.
//
// Lock order: core.mu may be held while calling the machine, never the other
// way round. Service start and stop requests are made without holding core.mu
// because transports may acknowledge them synchronously.
type core[C any] struct {
	name      string
	media     transport.MediaType
	transport transport.Transport
	machine   *stream.Machine[C]
	service   *serviceListener

	// onStopped releases media-specific resources. It may run more than once.
	onStopped func()

	mu        sync.Mutex
	reg       *registration
	starting  bool
	requested bool
	encrypted bool
	snapshot  C
	onStart   Completion
	onStop    []Completion
	sink      transport.FrameSink
	disposed  bool
}

func newCore[C any](name string, media transport.MediaType, t transport.Transport, pausable bool) *core[C] {
	c := &core[C]{
		name:      name,
		media:     media,
		transport: t,
		onStopped: func() {},
	}
	c.machine = stream.New[C](stream.Config{
		Name:     name,
		Pausable: pausable,
		OnChange: func(from, to stream.State) {
			log.Printf("%s stream: %v -> %v", name, from, to)
		},
	})
	c.service = &serviceListener{
		started: c.handleStarted,
		ended:   c.handleEnded,
		failed:  c.handleError,
	}
	return c
}

// prepare records a pending start
func (c *core[C]) prepare(encrypted bool, onComplete Completion) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}
	if c.starting || c.machine.State() != stream.None {
		return fmt.Errorf("%w: %s session already started", ErrInvalidState, c.name)
	}
	c.starting = true
	c.encrypted = encrypted
	c.onStart = onComplete
	return nil
}

// negotiate checks the transport can carry the service and returns its capability
func (c *core[C]) negotiate(minVersion int) (*transport.Capability, error) {
	if !c.transport.IsConnected() {
		return nil, fmt.Errorf("%w: transport not connected", ErrCapabilityUnavailable)
	}
	if v := c.transport.ProtocolVersion(); v < minVersion {
		return nil, fmt.Errorf("%w: protocol version %d, %v needs %d", ErrCapabilityUnavailable, v, c.media, minVersion)
	}
	capability := c.transport.Capability(c.media)
	if capability == nil {
		return nil, fmt.Errorf("%w: no %v capability", ErrCapabilityUnavailable, c.media)
	}
	return capability, nil
}

// attach registers the service listener plus whatever extra registers.
// On failure nothing stays registered.
func (c *core[C]) attach(snapshot C, extra func(reg *registration) error) error {
	reg := newRegistration(c.transport)
	err := reg.addService(c.media, c.service)
	if err == nil {
		err = extra(reg)
	}
	if err != nil {
		if rerr := reg.removeAll(); rerr != nil {
			log.Printf("%s rollback: %v", c.name, rerr)
		}
		return err
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		if rerr := reg.removeAll(); rerr != nil {
			log.Printf("%s rollback: %v", c.name, rerr)
		}
		return ErrDisposed
	}
	c.reg = reg
	c.snapshot = snapshot
	c.mu.Unlock()
	return nil
}

// request asks the transport to start the service, at most once per start
func (c *core[C]) request() {
	c.mu.Lock()
	if !c.starting || c.requested || c.disposed || c.reg == nil {
		c.mu.Unlock()
		return
	}
	c.requested = true
	encrypted := c.encrypted
	c.mu.Unlock()

	log.Printf("Requesting %v service (encrypted=%v)", c.media, encrypted)
	if err := c.transport.StartService(c.media, encrypted); err != nil {
		c.abort(fmt.Errorf("%w: %v", ErrServiceRejected, err))
	}
}

// abort fails a pending start and removes its listeners
func (c *core[C]) abort(err error) {
	c.mu.Lock()
	cb := c.onStart
	reg := c.reg
	c.onStart = nil
	c.reg = nil
	c.starting = false
	c.requested = false
	c.mu.Unlock()

	if reg != nil {
		if rerr := reg.removeAll(); rerr != nil {
			log.Printf("%s rollback: %v", c.name, rerr)
		}
	}
	log.Printf("%s start failed: %v", c.name, err)
	complete(cb, false, err)
}

func (c *core[C]) handleStarted(media transport.MediaType, encrypted bool) {
	c.mu.Lock()
	if !c.starting || c.disposed {
		c.mu.Unlock()
		log.Printf("Ignoring unsolicited %v service start", media)
		return
	}

	sink, err := c.transport.OpenStreamSink(c.media)
	if err != nil {
		c.mu.Unlock()
		c.abort(fmt.Errorf("%w: open sink: %v", ErrServiceRejected, err))
		if serr := c.transport.StopService(c.media); serr != nil {
			log.Printf("%s stop after sink failure: %v", c.name, serr)
		}
		return
	}

	cb := c.onStart
	c.onStart = nil
	c.starting = false
	c.requested = false
	c.sink = sink
	err = c.machine.Ready(c.snapshot)
	c.mu.Unlock()

	if err != nil {
		sink.Close()
		complete(cb, false, fmt.Errorf("%w: %v", ErrInvalidState, err))
		return
	}
	log.Printf("%v service started (encrypted=%v)", media, encrypted)
	complete(cb, true, nil)
}

func (c *core[C]) handleEnded(media transport.MediaType) {
	c.mu.Lock()
	pending := c.starting
	c.mu.Unlock()

	if pending {
		c.abort(fmt.Errorf("%w: %v service ended during start", ErrServiceRejected, media))
		return
	}
	if c.machine.State() == stream.None {
		return
	}
	if c.machine.End() {
		log.Printf("%v service ended", media)
	}
	c.teardown(true, nil)
}

func (c *core[C]) handleError(media transport.MediaType, reason string) {
	c.mu.Lock()
	pending := c.starting
	c.mu.Unlock()

	err := fmt.Errorf("%w: %s", ErrServiceRejected, reason)
	if pending {
		c.abort(err)
		return
	}
	if c.machine.State() == stream.None {
		return
	}
	log.Printf("%v service error: %s", media, reason)
	c.machine.End()
	c.teardown(false, err)
}

// teardown releases the stream and completes pending stops
func (c *core[C]) teardown(success bool, err error) {
	c.mu.Lock()
	sink := c.sink
	stops := c.onStop
	c.sink = nil
	c.onStop = nil
	c.mu.Unlock()

	c.onStopped()
	if sink != nil {
		if cerr := sink.Close(); cerr != nil {
			log.Printf("%s sink close: %v", c.name, cerr)
		}
	}
	for _, cb := range stops {
		complete(cb, success, err)
	}
}

// stop moves the stream to STOPPED and asks the transport to end the service.
// onComplete runs once the service end is acknowledged.
func (c *core[C]) stop(onComplete Completion) error {
	switch c.machine.State() {
	case stream.None:
		return fmt.Errorf("%w: %s session not started", ErrInvalidState, c.name)
	case stream.Stopped:
		complete(onComplete, true, nil)
		return nil
	}

	c.mu.Lock()
	c.onStop = append(c.onStop, onComplete)
	c.mu.Unlock()

	if err := c.machine.Stop(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	c.onStopped()

	if err := c.transport.StopService(c.media); err != nil {
		c.teardown(false, err)
	}
	return nil
}

// dispose removes every listener and forces STOPPED. Safe to call repeatedly.
func (c *core[C]) dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	reg := c.reg
	cb := c.onStart
	requested := c.requested
	c.reg = nil
	c.onStart = nil
	c.starting = false
	c.mu.Unlock()

	active := c.machine.IsConnected()
	c.machine.End()

	var errs []error
	if active || requested {
		if err := c.transport.StopService(c.media); err != nil {
			errs = append(errs, fmt.Errorf("stop %v service: %w", c.media, err))
		}
	}
	if reg != nil {
		if err := reg.removeAll(); err != nil {
			errs = append(errs, err)
		}
	}
	c.teardown(false, ErrDisposed)
	complete(cb, false, ErrDisposed)

	err := errors.Join(errs...)
	if err != nil {
		log.Printf("%s dispose: %v", c.name, err)
	}
	return err
}

func (c *core[C]) currentSink() transport.FrameSink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink
}

func (c *core[C]) listenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg == nil {
		return 0
	}
	return c.reg.count()
}
