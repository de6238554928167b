package transport

import (
	"net"

	"github.com/openhydrogen/hydrogen/wire/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// AcceptHandler is called by a server transport for every connection that
// completed the handshake. sharedBuffers is the negotiated capability: true
// only if the client asked for shared-buffer delivery and the transport can
// provide it. The handler owns the connection from this point on.
type AcceptHandler func(conn net.Conn, sharedBuffers bool)

// IStreamServerTransport is the interface for the consumer-facing listener.
// It accepts connections, negotiates the delivery mode and hands the
// connection over to the registered handler.
type IStreamServerTransport interface {
	// RegisterHandler registers the handler invoked for accepted connections.
	// Must be called before Listen
	RegisterHandler(handler AcceptHandler)

	// Listen starts accepting connections. Blocks until Close is called or
	// the listener fails
	Listen(config common.ServerConfig) error

	// Close stops the listener. Connections already handed to the handler
	// are not touched
	Close() error
}
