// Package transport defines how per-frame control values leave the engine.
// Implementations must be safe for concurrent use and must never block the
// analysis hot path: a slow or absent consumer drops frames instead.
package transport

// Transport is a generic sink for per-frame control data or events.
type Transport interface {
	Send(data any) error
	Close() error
}
