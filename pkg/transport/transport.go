// ABOUTME: Transport and listener interfaces
// ABOUTME: The narrow surface session managers use to reach a head unit
package transport

// ServiceListener receives service lifecycle acknowledgements
type ServiceListener interface {
	OnServiceStarted(media MediaType, encrypted bool)
	OnServiceEnded(media MediaType)
	OnServiceError(media MediaType, reason string)
}

// NotificationListener receives HMI and touch notifications
type NotificationListener interface {
	OnNotification(n Notification)
}

// FrameSink carries media frames for one started service
type FrameSink interface {
	SendFrame(data []byte, presentationTimeUs int64) error
	Close() error
}

// Transport is the connection to a head unit.
//
// StartService and StopService return immediately; the outcome arrives on the
// service listeners registered for that media type. Listener callbacks are
// delivered sequentially per registration.
type Transport interface {
	IsConnected() bool
	ProtocolVersion() int
	Capability(media MediaType) *Capability

	AddServiceListener(media MediaType, l ServiceListener) error
	RemoveServiceListener(media MediaType, l ServiceListener) error
	AddNotificationListener(kind NotificationKind, l NotificationListener) error
	RemoveNotificationListener(kind NotificationKind, l NotificationListener) error

	StartService(media MediaType, encrypted bool) error
	StopService(media MediaType) error
	OpenStreamSink(media MediaType) (FrameSink, error)
}
