package serialize

import (
	"github.com/openhydrogen/hydrogen/lib/shm"
)

// --------------------------------------------------------------------------
// MsgChunk
// --------------------------------------------------------------------------

// MsgChunk is one already-produced, immutable slice of a serialized
// message's byte stream, plus the shared-buffer handles a consumer must have
// attached at the point this slice begins.
type MsgChunk struct {
	data   []byte
	attach []shm.Handle
}

// Bytes returns the chunk content. The slice must not be modified.
func (c MsgChunk) Bytes() []byte { return c.data }

// Len returns the chunk length in bytes.
func (c MsgChunk) Len() int { return len(c.data) }

// Attach returns the handles to attach at this chunk's first byte.
func (c MsgChunk) Attach() []shm.Handle { return c.attach }

// --------------------------------------------------------------------------
// ChunkCursor
// --------------------------------------------------------------------------

// ChunkCursor is one consumer's independent read position in a serialized
// message. Cursors are owned by their reader: advancing one never mutates
// the underlying stream, and separate cursors over the same stream observe
// the identical byte sequence.
//
// The zero value is a cursor at the start of the stream.
type ChunkCursor struct {
	chunk  int
	offset int
	eos    bool
}

// EndOfStream reports whether the cursor has consumed the complete stream.
func (c *ChunkCursor) EndOfStream() bool { return c.eos }

// Position returns the chunk index and byte offset, for logging and tests.
func (c *ChunkCursor) Position() (chunk, offset int) { return c.chunk, c.offset }
