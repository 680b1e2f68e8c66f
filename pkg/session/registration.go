// ABOUTME: Listener bookkeeping for a session
// ABOUTME: Records every listener added so all of them can be removed again
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

type serviceListener struct {
	started func(media transport.MediaType, encrypted bool)
	ended   func(media transport.MediaType)
	failed  func(media transport.MediaType, reason string)
}

func (l *serviceListener) OnServiceStarted(media transport.MediaType, encrypted bool) {
	l.started(media, encrypted)
}

func (l *serviceListener) OnServiceEnded(media transport.MediaType) {
	l.ended(media)
}

func (l *serviceListener) OnServiceError(media transport.MediaType, reason string) {
	l.failed(media, reason)
}

type notificationListener struct {
	fn func(n transport.Notification)
}

func (l *notificationListener) OnNotification(n transport.Notification) {
	l.fn(n)
}

type serviceEntry struct {
	media    transport.MediaType
	listener transport.ServiceListener
}

type notificationEntry struct {
	kind     transport.NotificationKind
	listener transport.NotificationListener
}

// registration tracks the listeners one session added to a transport
type registration struct {
	t transport.Transport

	mu            sync.Mutex
	services      []serviceEntry
	notifications []notificationEntry
}

func newRegistration(t transport.Transport) *registration {
	return &registration{t: t}
}

func (r *registration) addService(media transport.MediaType, l transport.ServiceListener) error {
	if err := r.t.AddServiceListener(media, l); err != nil {
		return fmt.Errorf("add %v service listener: %w", media, err)
	}
	r.mu.Lock()
	r.services = append(r.services, serviceEntry{media, l})
	r.mu.Unlock()
	return nil
}

func (r *registration) addNotification(kind transport.NotificationKind, l transport.NotificationListener) error {
	if err := r.t.AddNotificationListener(kind, l); err != nil {
		return fmt.Errorf("add %v listener: %w", kind, err)
	}
	r.mu.Lock()
	r.notifications = append(r.notifications, notificationEntry{kind, l})
	r.mu.Unlock()
	return nil
}

func (r *registration) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.services) + len(r.notifications)
}

// removeAll attempts every removal, even after a failure, and forgets all entries
func (r *registration) removeAll() error {
	r.mu.Lock()
	services, notifications := r.services, r.notifications
	r.services, r.notifications = nil, nil
	r.mu.Unlock()

	var errs []error
	for i := len(notifications) - 1; i >= 0; i-- {
		e := notifications[i]
		if err := r.t.RemoveNotificationListener(e.kind, e.listener); err != nil {
			errs = append(errs, fmt.Errorf("remove %v listener: %w", e.kind, err))
		}
	}
	for i := len(services) - 1; i >= 0; i-- {
		e := services[i]
		if err := r.t.RemoveServiceListener(e.media, e.listener); err != nil {
			errs = append(errs, fmt.Errorf("remove %v service listener: %w", e.media, err))
		}
	}
	return errors.Join(errs...)
}
