// ABOUTME: Listener set shared by transport implementations
// ABOUTME: Tracks service and notification listeners with exact add/remove accounting
package transport

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrListenerExists is returned when a listener is added twice
	ErrListenerExists = errors.New("listener already registered")

	// ErrListenerNotFound is returned when removing an unknown listener
	ErrListenerNotFound = errors.New("listener not registered")
)

// Listeners is a concurrency-safe listener registry
type Listeners struct {
	mu            sync.RWMutex
	services      map[MediaType][]ServiceListener
	notifications map[NotificationKind][]NotificationListener
}

// NewListeners creates an empty registry
func NewListeners() *Listeners {
	return &Listeners{
		services:      make(map[MediaType][]ServiceListener),
		notifications: make(map[NotificationKind][]NotificationListener),
	}
}

func (s *Listeners) AddService(media MediaType, l ServiceListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.services[media] {
		if existing == l {
			return fmt.Errorf("%w: %v service", ErrListenerExists, media)
		}
	}
	s.services[media] = append(s.services[media], l)
	return nil
}

func (s *Listeners) RemoveService(media MediaType, l ServiceListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.services[media]
	for i, existing := range list {
		if existing == l {
			s.services[media] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %v service", ErrListenerNotFound, media)
}

func (s *Listeners) AddNotification(kind NotificationKind, l NotificationListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.notifications[kind] {
		if existing == l {
			return fmt.Errorf("%w: %v", ErrListenerExists, kind)
		}
	}
	s.notifications[kind] = append(s.notifications[kind], l)
	return nil
}

func (s *Listeners) RemoveNotification(kind NotificationKind, l NotificationListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifications[kind]
	for i, existing := range list {
		if existing == l {
			s.notifications[kind] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrListenerNotFound, kind)
}

// Services returns a snapshot of the service listeners for media
func (s *Listeners) Services(media MediaType) []ServiceListener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ServiceListener(nil), s.services[media]...)
}

// Notifications returns a snapshot of the listeners for kind
func (s *Listeners) Notifications(kind NotificationKind) []NotificationListener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]NotificationListener(nil), s.notifications[kind]...)
}

// Count returns the total number of registered listeners
func (s *Listeners) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.services {
		n += len(l)
	}
	for _, l := range s.notifications {
		n += len(l)
	}
	return n
}

// Notify delivers n to every listener of its kind
func (s *Listeners) Notify(n Notification) {
	for _, l := range s.Notifications(n.Kind) {
		l.OnNotification(n)
	}
}

// ServiceStarted delivers a start acknowledgement
func (s *Listeners) ServiceStarted(media MediaType, encrypted bool) {
	for _, l := range s.Services(media) {
		l.OnServiceStarted(media, encrypted)
	}
}

// ServiceEnded delivers a service end
func (s *Listeners) ServiceEnded(media MediaType) {
	for _, l := range s.Services(media) {
		l.OnServiceEnded(media)
	}
}

// ServiceError delivers a service failure
func (s *Listeners) ServiceError(media MediaType, reason string) {
	for _, l := range s.Services(media) {
		l.OnServiceError(media, reason)
	}
}
