package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket tuning structs
// --------------------------------------------------------------------------

// SocketConf holds settings applicable to any stream socket.
type SocketConf struct {
	// WriteBufferSize is the socket write buffer size in bytes (0 = OS default)
	WriteBufferSize int
	// ReadBufferSize is the socket read buffer size in bytes (0 = OS default)
	ReadBufferSize int
}

// TCPConf holds TCP-specific settings.
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm when true
	TCPNoDelay bool
	// TCPKeepAliveSec is the keep-alive interval in seconds (0 = disabled)
	TCPKeepAliveSec int
	// TCPLingerSec is the linger time in seconds (negative = OS default)
	TCPLingerSec int
}

// TransportConf groups the listener endpoints and socket settings.
type TransportConf struct {
	// TCPEndpoint is the tcp listen address (empty = tcp disabled)
	TCPEndpoint string
	// UnixEndpoint is the unix socket path (empty = unix disabled)
	UnixEndpoint string

	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the hydrogen server.
type ServerConfig struct {
	// Listener endpoints and socket tuning
	Transport TransportConf

	// DriverFeed is where property-update documents are read from:
	// "-" for stdin, otherwise a path to a fifo/file
	DriverFeed string

	// Allocator selects the shared-buffer backend: "memfd" or "heap"
	Allocator string

	// QueueDepth is the number of messages buffered per consumer before
	// the slowest-consumer back-pressure kicks in
	QueueDepth int

	// TimeoutSecond is the per-write socket deadline in seconds
	TimeoutSecond int64

	// MetricsEndpoint serves Prometheus metrics when non-empty
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Listeners")
	if c.Transport.TCPEndpoint != "" {
		addField("TCP Endpoint", c.Transport.TCPEndpoint)
	}
	if c.Transport.UnixEndpoint != "" {
		addField("Unix Endpoint", c.Transport.UnixEndpoint)
	}
	addField("Write Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Socket Tuning")
	addField("Write Buffer", strconv.Itoa(c.Transport.WriteBufferSize))
	addField("Read Buffer", strconv.Itoa(c.Transport.ReadBufferSize))
	addField("TCP NoDelay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))

	addSection("Serialization")
	addField("Shared Buffers", c.Allocator)
	addField("Queue Depth", strconv.Itoa(c.QueueDepth))

	addSection("Driver")
	addField("Feed", c.DriverFeed)

	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
