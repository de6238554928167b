package base

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/openhydrogen/hydrogen/wire/common"
	"github.com/openhydrogen/hydrogen/wire/transport"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// SharedBuffersSupported reports whether this transport can deliver
	// shared buffer handles that are meaningful on the consumer's side
	SharedBuffersSupported() bool

	// UpgradeConnection applies transport-specific socket tuning to an
	// accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core accept loop shared by all transports
type serverTransport struct {
	connector IServerConnector
	handler   transport.AcceptHandler
	config    common.ServerConfig
	listener  net.Listener
	closed    atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport for the given connector
func NewBaseServerTransport(connector IServerConnector) transport.IStreamServerTransport {
	return &serverTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IStreamServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.AcceptHandler) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener = listener

	Logger.Infof("Starting %s listener on %s (shared buffers: %t)",
		t.connector.GetName(), listener.Addr(), t.connector.SharedBuffersSupported())

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection tunes the socket, runs the handshake and hands the
// connection to the registered handler
func (t *serverTransport) handleConnection(conn net.Conn) {
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Errorf("Failed to upgrade connection: %v", err)
		_ = conn.Close()
		return
	}

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	wantShared, err := readHandshake(conn, timeout)
	if err != nil {
		Logger.Errorf("Handshake failed: %v", err)
		_ = conn.Close()
		return
	}

	// downgrade to inline delivery when the transport can't carry handles
	shared := wantShared && t.connector.SharedBuffersSupported()

	if err := writeHandshakeReply(conn, shared, timeout); err != nil {
		Logger.Errorf("Handshake reply failed: %v", err)
		_ = conn.Close()
		return
	}

	t.handler(conn, shared)
}
