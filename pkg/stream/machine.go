// ABOUTME: Stream lifecycle state machine shared by audio and video sessions
// ABOUTME: NONE -> READY -> STARTED -> STOPPED with an optional pause sub-state
// Package stream holds the lifecycle state machine used by the session
// managers. A Machine captures the capability snapshot taken when the service
// becomes ready and, when pausable, tracks whether the head unit currently
// gives the app full focus.
package stream

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned for a transition the current state does not allow
var ErrInvalidTransition = errors.New("invalid stream state transition")

// State is a stream lifecycle state
type State int

const (
	None State = iota
	Ready
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case None:
		return "NONE"
	case Ready:
		return "READY"
	case Started:
		return "STARTED"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ChangeFunc observes state changes. It runs with the machine locked and must
// not call back into the machine.
type ChangeFunc func(from, to State)

// Config configures a Machine
type Config struct {
	Name     string
	Pausable bool
	OnChange ChangeFunc
}

// Machine is a stream lifecycle with a capability snapshot of type C
type Machine[C any] struct {
	mu         sync.Mutex
	name       string
	pausable   bool
	onChange   ChangeFunc
	state      State
	focused    bool
	paused     bool
	capability C
	hasCap     bool
}

// New creates a machine in state None
func New[C any](config Config) *Machine[C] {
	return &Machine[C]{
		name:     config.Name,
		pausable: config.Pausable,
		onChange: config.OnChange,
	}
}

func (m *Machine[C]) setLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	if to != Started {
		m.paused = false
	}
	if m.onChange != nil {
		m.onChange(from, to)
	}
}

func (m *Machine[C]) invalid(op string) error {
	return fmt.Errorf("%w: %s %s in state %v", ErrInvalidTransition, m.name, op, m.state)
}

// Ready records the capability snapshot and moves None to Ready
func (m *Machine[C]) Ready(capability C) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != None {
		return m.invalid("ready")
	}
	m.capability = capability
	m.hasCap = true
	m.setLocked(Ready)
	return nil
}

// Begin moves Ready to Started. A pausable stream starts paused unless the
// head unit has already granted full focus.
func (m *Machine[C]) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Ready {
		return m.invalid("begin")
	}
	m.setLocked(Started)
	m.paused = m.pausable && !m.focused
	return nil
}

// SetFocus records whether the app has full focus and reports whether the
// paused flag changed.
func (m *Machine[C]) SetFocus(full bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.focused = full
	if m.state != Started || !m.pausable {
		return false
	}
	paused := !full
	if paused == m.paused {
		return false
	}
	m.paused = paused
	return true
}

// Stop moves Ready or Started to Stopped. Stopping a stopped stream is a no-op.
func (m *Machine[C]) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Ready, Started:
		m.setLocked(Stopped)
		return nil
	case Stopped:
		return nil
	default:
		return m.invalid("stop")
	}
}

// End forces the machine to Stopped from any state, reporting whether it changed
func (m *Machine[C]) End() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Stopped {
		return false
	}
	m.setLocked(Stopped)
	return true
}

// State returns the current state
func (m *Machine[C]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected is true while Ready or Started
func (m *Machine[C]) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Ready || m.state == Started
}

// IsPaused is only ever true while Started
func (m *Machine[C]) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Started && m.paused
}

// Focused reports the last focus recorded by SetFocus
func (m *Machine[C]) Focused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// Capability returns the snapshot recorded by Ready
func (m *Machine[C]) Capability() (C, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capability, m.hasCap
}

// Guard runs fn with the current state while holding the machine lock, so
// callers can make a decision that cannot race a transition. fn must not call
// back into the machine.
func (m *Machine[C]) Guard(fn func(State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}
