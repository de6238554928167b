package serialize

import (
	"bytes"
	"fmt"

	"github.com/openhydrogen/hydrogen/lib/b64"
	"github.com/openhydrogen/hydrogen/lib/shm"
)

// --------------------------------------------------------------------------
// Shared Buffer Serializer
// --------------------------------------------------------------------------

// sharedSerialized converts every inline base64 blob of the source message
// into a newly allocated shared buffer, so capable consumers receive handles
// instead of payload bytes. Blobs that already travel out-of-band pass
// through unchanged. The result is a single chunk carrying the full handle
// set in document order.
type sharedSerialized struct {
	serializedBase
}

func newSharedSerialized(msg *Message) *sharedSerialized {
	s := &sharedSerialized{}
	var req Requirements
	req.NeedDocument()
	for _, h := range msg.handles {
		req.NeedHandle(h.ID())
	}
	s.init(msg, s, s, req)
	s.metricChunks = metricChunksShared
	s.metricBytes = metricBytesShared
	return s
}

func (s *sharedSerialized) strategyName() string { return "shm" }

// needsAsync - decoding inline blobs into fresh buffers is CPU-bound; a
// message whose blobs are all attached already is a trivial passthrough.
func (s *sharedSerialized) needsAsync() bool {
	return s.msg.hasInlineBlobs
}

// --------------------------------------------------------------------------
// Production Routine
// --------------------------------------------------------------------------

func (s *sharedSerialized) produce() {
	clone := s.msg.doc.Clone()

	var handles []shm.Handle
	attachedIdx := 0
	for _, el := range clone.BlobElements() {
		if s.canceled() {
			s.markDone()
			return
		}

		switch {
		case el.IsAttached():
			// already out-of-band, pass the handle through unchanged
			handles = append(handles, s.msg.handles[attachedIdx])
			attachedIdx++

		case len(bytes.TrimSpace(el.Body())) > 0:
			h, err := s.convertInline(el)
			if err != nil {
				s.fail(err)
				return
			}
			handles = append(handles, h)
		}
	}

	data, err := clone.Serialize()
	if err != nil {
		s.fail(err)
		return
	}

	s.pushChunk(MsgChunk{data: data, attach: handles})
	s.markDone()
}

// convertInline decodes one inline blob element into a newly allocated
// shared buffer (owned by this instance) and rewrites the element to the
// attached form.
func (s *sharedSerialized) convertInline(el blobElementRewriter) (shm.Handle, error) {
	declared, ok := el.DeclaredSize()
	if !ok {
		// defensive fallback, not a guess at intent: allocate the minimal
		// buffer and let the decode truncate against it
		declared = 1
		metricMissingSize.Inc()
		Logger.Warningf("inline blob %q declares no size, defaulting to 1", el.Name())
	}

	alloc, err := s.msg.alloc.Allocate(declared)
	if err != nil {
		return shm.Handle{}, fmt.Errorf("%w: %d bytes for blob %q: %v",
			ErrAllocationFailed, declared, el.Name(), err)
	}
	s.ownAlloc(alloc)

	written, total, err := b64.DecodeInto(alloc.Bytes(), el.Body())
	if err != nil {
		return shm.Handle{}, fmt.Errorf("failed to decode blob %q: %v", el.Name(), err)
	}
	if total != declared {
		// declared size wins: the buffer was allocated from it and the copy
		// was bounded by it (truncated at written bytes if undersized)
		metricSizeMismatch.Inc()
		Logger.Warningf("blob %q declares %d bytes but decodes to %d (stored %d)",
			el.Name(), declared, total, written)
	}

	el.SetAttached(true)
	el.SetDeclaredSize(declared)
	el.SetEncLen(-1)
	el.SetBody(nil)
	return alloc.Handle(), nil
}

// blobElementRewriter is the slice of document.IBlobElement convertInline
// needs; declared separately so the conversion is testable in isolation.
type blobElementRewriter interface {
	Name() string
	DeclaredSize() (int, bool)
	SetDeclaredSize(int)
	SetAttached(bool)
	SetEncLen(int)
	Body() []byte
	SetBody([]byte)
}
