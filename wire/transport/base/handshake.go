package base

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// The handshake is one newline-terminated line in each direction, exchanged
// before any frames:
//
//	client -> server:  "hydrogen/1 inline\n"  or  "hydrogen/1 shm\n"
//	server -> client:  "ok inline\n"          or  "ok shm\n"
//
// The server may downgrade a shm request to inline; the reply states the
// mode that is actually in effect.

const (
	protocolVersion  = "hydrogen/1"
	modeInline       = "inline"
	modeShared       = "shm"
	maxHandshakeLine = 64
)

// readLine reads a newline-terminated line byte-by-byte so no bytes past
// the handshake are consumed from the stream.
func readLine(conn net.Conn, timeout time.Duration) (string, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", err
		}
		defer conn.SetReadDeadline(time.Time{})
	}

	var sb strings.Builder
	buf := make([]byte, 1)
	for sb.Len() < maxHandshakeLine {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return "", err
		}
		if buf[0] == '\n' {
			return sb.String(), nil
		}
		sb.WriteByte(buf[0])
	}
	return "", fmt.Errorf("handshake line exceeds %d bytes", maxHandshakeLine)
}

// readHandshake reads and validates the client greeting and returns whether
// shared-buffer delivery was requested.
func readHandshake(conn net.Conn, timeout time.Duration) (bool, error) {
	line, err := readLine(conn, timeout)
	if err != nil {
		return false, err
	}

	version, mode, ok := strings.Cut(line, " ")
	if !ok || version != protocolVersion {
		return false, fmt.Errorf("unexpected greeting %q", line)
	}

	switch mode {
	case modeInline:
		return false, nil
	case modeShared:
		return true, nil
	default:
		return false, fmt.Errorf("unknown delivery mode %q", mode)
	}
}

// writeHandshakeReply confirms the negotiated delivery mode to the client.
func writeHandshakeReply(conn net.Conn, shared bool, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer conn.SetWriteDeadline(time.Time{})
	}

	mode := modeInline
	if shared {
		mode = modeShared
	}
	_, err := fmt.Fprintf(conn, "ok %s\n", mode)
	return err
}

// --------------------------------------------------------------------------
// Client Side
// --------------------------------------------------------------------------

// ClientHandshake sends the greeting for the requested delivery mode and
// returns the mode the server granted.
func ClientHandshake(conn net.Conn, wantShared bool, timeout time.Duration) (bool, error) {
	mode := modeInline
	if wantShared {
		mode = modeShared
	}

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return false, err
		}
	}
	if _, err := fmt.Fprintf(conn, "%s %s\n", protocolVersion, mode); err != nil {
		return false, err
	}
	if timeout > 0 {
		defer conn.SetWriteDeadline(time.Time{})
	}

	line, err := readLine(conn, timeout)
	if err != nil {
		return false, err
	}

	status, granted, ok := strings.Cut(line, " ")
	if !ok || status != "ok" {
		return false, fmt.Errorf("handshake rejected: %q", line)
	}

	switch granted {
	case modeInline:
		return false, nil
	case modeShared:
		return true, nil
	default:
		return false, fmt.Errorf("unknown delivery mode %q", granted)
	}
}
