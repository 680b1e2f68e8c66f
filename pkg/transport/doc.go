// ABOUTME: Transport collaborator interfaces consumed by the session managers
// ABOUTME: Media services, capabilities, HMI and touch notifications, frame sinks
// Package transport describes the connection to a head unit as seen by the
// streaming session managers: capability queries, service start/stop with
// asynchronous acknowledgements, HMI-level and touch notifications, and frame
// sinks for media data.
//
// Implementations live elsewhere (see transport/ws); this package only holds
// the interfaces, value types and a listener set implementations can share.
package transport
