package transport

import (
	"context"
	"net"
)

// Exchanger performs one request/reply exchange with a device.
// Implemented by Client.
type Exchanger interface {
	// Exchange writes msg to address and, if expectResponse is set, returns
	// the single reply line.
	Exchange(ctx context.Context, address string, msg []byte, expectResponse bool) ([]byte, error)
}

// LineServer represents a device-side API server.
// Implemented by Server.
type LineServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop stops the server.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// Compile-time interface satisfaction checks.
var (
	_ Exchanger  = (*Client)(nil)
	_ LineServer = (*Server)(nil)
	_ Handler    = HandlerFunc(nil)
)
