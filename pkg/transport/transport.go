// Package transport defines the reliable byte-duplex capability the host
// protocol client is built on. Concrete transports (pkg/transport/tcp,
// BLE GATT/L2CAP elsewhere) are collaborators; the client and PDU layers
// never depend on a concrete one.
package transport

import (
	"context"
	"time"
)

// Transport is a reliable, ordered, bidirectional byte stream to an
// adapter. Implementations need not be safe for concurrent Send and
// Receive from multiple goroutines beyond what net.Conn itself permits.
type Transport interface {
	// Connect establishes the underlying connection. Calling Connect on
	// an already-connected transport is a no-op.
	Connect(ctx context.Context) error
	// Disconnect tears the connection down. Safe to call more than once.
	Disconnect() error
	// IsConnected reports whether the transport believes it is usable.
	IsConnected() bool
	// Send writes data in full or returns an error; it never blocks
	// waiting for a reply.
	Send(data []byte) (int, error)
	// Receive blocks for at most deadline's remaining duration, returning
	// whatever bytes became available. A zero-length, nil-error result
	// means the deadline elapsed with nothing to read.
	Receive(deadline time.Time) ([]byte, error)
	// LastError returns the most recent transport-level failure, or nil.
	LastError() error
}
