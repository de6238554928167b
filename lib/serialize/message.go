package serialize

import (
	"bytes"
	"sync"

	"github.com/openhydrogen/hydrogen/lib/document"
	"github.com/openhydrogen/hydrogen/lib/shm"
)

// --------------------------------------------------------------------------
// Message
// --------------------------------------------------------------------------

// Message is the logical unit of serialization: one parsed property-update
// document plus the shared-buffer handles its attached blob elements
// reference, in document order.
//
// A message lazily builds at most one serializer per strategy and memoizes
// it for its lifetime, so concurrent consumers needing the same wire
// representation share a single generation. A serializer is reclaimed (and
// its owned buffers released) once its awaiter set empties and no generation
// is active.
type Message struct {
	mu      sync.Mutex
	doc     document.IDocument
	handles []shm.Handle
	alloc   shm.IAllocator

	hasInlineBlobs   bool
	hasAttachedBlobs bool
	attachedUnsized  bool

	inline *inlineSerialized
	shared *sharedSerialized
}

// NewMessage creates a message over a parsed document. handles must contain
// exactly one shared-buffer handle per attached blob element, in document
// order; the handles stay owned by the caller (the driver side) and are only
// borrowed during serialization.
func NewMessage(doc document.IDocument, handles []shm.Handle, alloc shm.IAllocator) (*Message, error) {
	m := &Message{
		doc:     doc,
		handles: handles,
		alloc:   alloc,
	}

	attached := 0
	for _, el := range doc.BlobElements() {
		if el.IsAttached() {
			attached++
			m.hasAttachedBlobs = true
			if _, ok := el.DeclaredSize(); !ok {
				m.attachedUnsized = true
			}
			continue
		}
		if len(bytes.TrimSpace(el.Body())) > 0 {
			m.hasInlineBlobs = true
		}
	}
	if attached != len(handles) {
		return nil, ErrHandleMismatch
	}

	return m, nil
}

// Doc returns the message's document.
func (m *Message) Doc() document.IDocument { return m.doc }

// HasBlobs reports whether the message carries any blob payload.
func (m *Message) HasBlobs() bool { return m.hasInlineBlobs || m.hasAttachedBlobs }

// --------------------------------------------------------------------------
// Strategy Selection
// --------------------------------------------------------------------------

// SerializeFor returns the serialization matching the consumer's capability
// and registers the consumer as an awaiter. A message without blobs, or a
// consumer that cannot accept shared buffers, gets the inline (self
// contained) strategy; otherwise the shared-buffer-preserving one. Repeated
// calls for the same capability return the same instance.
func (m *Message) SerializeFor(c IConsumer) ISerializedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sm ISerializedMessage
	if m.HasBlobs() && c.AcceptsSharedBuffers() {
		if m.attachedUnsized {
			// an attached blob without a usable size cannot be passed
			// through safely; park the producer until the conflict clears
			Logger.Warningf("message %q has attached blobs without size, blocking producer", m.doc.Name())
			c.BlockProducer()
		}
		sm = m.buildSharedLocked()
	} else {
		sm = m.buildInlineLocked()
	}

	sm.AddAwaiter(c)
	return sm
}

// BuildInlineSerializer returns the memoized inline serializer, creating it
// on first call. No awaiter is registered.
func (m *Message) BuildInlineSerializer() ISerializedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildInlineLocked()
}

// BuildSharedBufferSerializer returns the memoized shared-buffer serializer,
// creating it on first call. No awaiter is registered.
func (m *Message) BuildSharedBufferSerializer() ISerializedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildSharedLocked()
}

func (m *Message) buildInlineLocked() *inlineSerialized {
	if m.inline == nil {
		m.inline = newInlineSerialized(m)
	}
	return m.inline
}

func (m *Message) buildSharedLocked() *sharedSerialized {
	if m.shared == nil {
		m.shared = newSharedSerialized(m)
	}
	return m.shared
}

// --------------------------------------------------------------------------
// Reclaim
// --------------------------------------------------------------------------

// Requirements aggregates the requirement descriptors of every live
// serializer of this message.
func (m *Message) Requirements() Requirements {
	m.mu.Lock()
	inline, shared := m.inline, m.shared
	m.mu.Unlock()

	var agg Requirements
	if inline != nil {
		inline.CollectRequirements(&agg)
	}
	if shared != nil {
		shared.CollectRequirements(&agg)
	}
	return agg
}

// reclaim is invoked when a serializer's awaiter set may have emptied. A
// running generation is moved to Canceling (it stops at the next chunk
// boundary and finishes its in-flight allocation cleanly); a pending or
// terminated instance is dropped from the memo and its owned buffers are
// released.
//
// A canceling instance leaves the memo immediately: its stream ends short
// of the full document, so a consumer arriving later must get a fresh
// instance instead of reading the truncated one to a clean EOF.
//
// Lock order is always Message.mu before serializedBase.mu.
func (m *Message) reclaim(b *serializedBase) {
	m.mu.Lock()
	b.mu.Lock()

	if len(b.awaiters) > 0 {
		b.mu.Unlock()
		m.mu.Unlock()
		return
	}

	switch b.status {
	case StatusRunning:
		// no remaining consumer requires further output
		b.status = StatusCanceling
		b.req = Requirements{}
		b.mu.Unlock()
		m.dropMemoLocked(b)
		m.mu.Unlock()
		return
	case StatusCanceling:
		// generator is already winding down, it reclaims via markDone
		b.mu.Unlock()
		m.mu.Unlock()
		return
	}

	// Pending or Terminated: safe to destroy, nobody can still reference
	// the owned buffers
	if b.destroyed {
		b.mu.Unlock()
		m.mu.Unlock()
		return
	}
	b.destroyed = true
	allocs := b.ownAllocs
	b.ownAllocs = nil
	b.mu.Unlock()

	m.dropMemoLocked(b)
	m.mu.Unlock()

	for _, a := range allocs {
		m.alloc.Release(a.Handle())
	}
}

func (m *Message) dropMemoLocked(b *serializedBase) {
	if m.inline != nil && &m.inline.serializedBase == b {
		m.inline = nil
	}
	if m.shared != nil && &m.shared.serializedBase == b {
		m.shared = nil
	}
}
