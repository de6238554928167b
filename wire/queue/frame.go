package queue

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/openhydrogen/hydrogen/lib/shm"
)

// --------------------------------------------------------------------------
// Frame Codec
// --------------------------------------------------------------------------

// Frame types carried on the wire. Every frame is a 1 byte type, a 4 byte
// big endian payload length and the payload itself.
const (
	// FrameChunk carries one slice of the serialized byte stream
	FrameChunk byte = 0x01
	// FrameAttach announces a shared buffer (8 byte id + 8 byte size) that
	// must be attached before the following chunk bytes are interpreted
	FrameAttach byte = 0x02
	// FrameEnd marks the end of one complete message
	FrameEnd byte = 0x03
)

const frameHeaderSize = 5

// WriteFrame writes a frame to the connection with the format:
// - 1 byte:  frame type
// - 4 bytes: payload length (uint32, big endian)
// - N bytes: payload
func WriteFrame(conn net.Conn, typ byte, payload []byte) error {
	header := make([]byte, frameHeaderSize)
	header[0] = typ
	binary.BigEndian.PutUint32(header[1:frameHeaderSize], uint32(len(payload)))

	b := net.Buffers{header, payload}
	_, err := b.WriteTo(conn)
	return err
}

// ReadFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, it will allocate a new temporary buffer for the payload
func ReadFrame(conn io.Reader, buf []byte) (byte, []byte, error) {
	// Check if buffer is large enough for header
	if buf == nil || len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, nil, err
	}

	// Parse header
	typ := buf[0]
	payloadLength := binary.BigEndian.Uint32(buf[1:frameHeaderSize])

	// If no payload, return empty slice
	if payloadLength == 0 {
		return typ, []byte{}, nil
	}

	// Check if buffer is large enough for payload
	if len(buf) < int(payloadLength) {
		buf = make([]byte, payloadLength)
	}

	// Read payload
	if _, err := io.ReadFull(conn, buf[:payloadLength]); err != nil {
		return 0, nil, err
	}

	return typ, buf[:payloadLength], nil
}

// EncodeAttach encodes a shared buffer handle as an attach frame payload.
func EncodeAttach(h shm.Handle) []byte {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint64(payload[:8], h.ID())
	binary.BigEndian.PutUint64(payload[8:16], uint64(h.Size()))
	return payload
}

// DecodeAttach parses an attach frame payload back into a handle.
func DecodeAttach(payload []byte) (shm.Handle, error) {
	if len(payload) != 16 {
		return shm.Handle{}, fmt.Errorf("invalid attach payload length %d", len(payload))
	}
	id := binary.BigEndian.Uint64(payload[:8])
	size := binary.BigEndian.Uint64(payload[8:16])
	return shm.NewHandle(id, int(size)), nil
}
