package serialize

import (
	"github.com/openhydrogen/hydrogen/lib/shm"
)

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// Status is the generation state of a serialized message.
type Status int32

const (
	// StatusPending - no generation has been requested yet.
	StatusPending Status = iota
	// StatusRunning - the production routine is appending chunks.
	StatusRunning
	// StatusCanceling - no remaining consumer needs further output; the
	// production routine stops at the next chunk boundary.
	StatusCanceling
	// StatusTerminated - the chunk list is complete and immutable. This is
	// the terminal state, entered on success, error and cancellation alike.
	StatusTerminated
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCanceling:
		return "canceling"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Consumer Interface
// --------------------------------------------------------------------------

// IConsumer is the queue abstraction on the far side of the engine: one per
// connected client. The engine only ever uses this narrow view; the actual
// socket handling lives in wire/queue.
type IConsumer interface {
	// AcceptsSharedBuffers reports whether this consumer can receive
	// out-of-band buffer handles instead of inlined payload bytes.
	AcceptsSharedBuffers() bool

	// NotifyProgressed is invoked whenever new content, a requirement
	// change or termination is observable on the serialized message. It is
	// always called without engine locks held, so the consumer may call
	// back into the message from within the notification.
	NotifyProgressed(msg ISerializedMessage)

	// CurrentQueueDepth returns the number of messages queued behind this
	// consumer. Generation routines use it to bound how far they run ahead
	// of slow consumers.
	CurrentQueueDepth() int

	// BlockProducer asks the queue layer to park the producing driver until
	// this consumer has caught up. Invoked when a shared-buffer conversion
	// cannot proceed safely (attached blobs without a usable size).
	BlockProducer()
}

// --------------------------------------------------------------------------
// Serialized Message Interface
// --------------------------------------------------------------------------

// ISerializedMessage is one serialization strategy of one message: an
// append-only chunk stream produced at most once, readable concurrently by
// any number of cursors.
type ISerializedMessage interface {
	// Status returns the current generation state.
	Status() Status

	// Err returns the terminal error recorded during generation, or nil.
	Err() error

	// RequestContent reports whether the cursor can be read right now
	// (content is available or the stream is finished). If generation has
	// not started yet it is kicked off; the caller is then woken through
	// NotifyProgressed. Never blocks.
	RequestContent(cur *ChunkCursor) (bool, error)

	// ReadAt returns the byte slice at the cursor plus the shared-buffer
	// handles to attach at its first byte. Returns io.EOF once the cursor
	// has consumed the final chunk of a terminated stream. Calling ReadAt
	// beyond produced content while generation is still in flight is a
	// caller error (ErrNotReady).
	ReadAt(cur *ChunkCursor) (data []byte, attach []shm.Handle, err error)

	// Advance moves the cursor forward by n bytes, rolling into following
	// chunks, and marks end-of-stream when the cursor passes the final
	// chunk of a terminated stream.
	Advance(cur *ChunkCursor, n int)

	// AddAwaiter registers a consumer's interest in this stream.
	AddAwaiter(c IConsumer)

	// Release deregisters a consumer. When the last awaiter releases, the
	// owning message reclaims the instance (canceling generation first if
	// one is in flight).
	Release(c IConsumer)

	// CollectRequirements merges this instance's requirement descriptor
	// into agg, if anything is still needed to satisfy its awaiters.
	CollectRequirements(agg *Requirements)

	// UpdateRequirements replaces the requirement descriptor. Identical
	// descriptors are a no-op; a change notifies all awaiters.
	UpdateRequirements(req Requirements)
}
