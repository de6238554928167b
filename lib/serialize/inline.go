package serialize

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/openhydrogen/hydrogen/lib/b64"
	"github.com/openhydrogen/hydrogen/lib/document"
	"github.com/openhydrogen/hydrogen/lib/shm"
)

const (
	// encodeSliceSize is the number of source bytes base64-encoded per
	// chunk. Divisible by 3 so concatenated slices carry no mid-stream
	// padding. Bounds peak memory and lets the first slice reach consumers
	// before a large blob is fully encoded.
	encodeSliceSize = 48 * 1024

	// maxAwaiterDepth is the queue depth beyond which generation pauses to
	// let slow consumers drain.
	maxAwaiterDepth = 64
)

// --------------------------------------------------------------------------
// Inline Serializer
// --------------------------------------------------------------------------

// inlineSerialized converts every shared-buffer-attached blob of the source
// message into inline base64 content, streamed in bounded slices. The output
// is fully self-contained: no out-of-band references remain.
type inlineSerialized struct {
	serializedBase
}

func newInlineSerialized(msg *Message) *inlineSerialized {
	s := &inlineSerialized{}
	var req Requirements
	req.NeedDocument()
	for _, h := range msg.handles {
		req.NeedHandle(h.ID())
	}
	s.init(msg, s, s, req)
	s.metricChunks = metricChunksInline
	s.metricBytes = metricBytesInline
	return s
}

func (s *inlineSerialized) strategyName() string { return "inline" }

// needsAsync - base64-encoding attached buffers is CPU-bound; a message
// without attached blobs is a trivial passthrough.
func (s *inlineSerialized) needsAsync() bool {
	return len(s.msg.handles) > 0
}

// --------------------------------------------------------------------------
// Production Routine
// --------------------------------------------------------------------------

// blobSlot is what replaces one placeholder in the skeleton: either content
// that was already inline (emitted verbatim) or an attached source buffer
// (encoded in slices).
type blobSlot struct {
	inline   []byte
	handle   shm.Handle
	attached bool
}

func (s *inlineSerialized) produce() {
	src := s.msg.doc
	clone := src.Clone()
	srcEls := src.BlobElements()
	cloneEls := clone.BlobElements()

	// the marker stands in for blob bodies in the serialized skeleton. It
	// must survive XML text escaping, so it is plain letters/digits/dashes;
	// a random one per message makes content collisions vanishingly
	// unlikely, and the offset count check rejects one should it happen
	marker := []byte(uuid.NewString())

	// build the skeleton: every payload-bearing blob element's body becomes
	// the placeholder marker, attached elements are rewritten to the inline
	// form (size + enclen, no attached marker)
	var slots []blobSlot
	attachedIdx := 0
	for i, el := range cloneEls {
		switch {
		case el.IsAttached():
			h := s.msg.handles[attachedIdx]
			attachedIdx++
			el.SetAttached(false)
			el.SetDeclaredSize(h.Size())
			el.SetEncLen(b64.EncodedLen(h.Size()))
			el.SetBody(marker)
			slots = append(slots, blobSlot{handle: h, attached: true})
		case len(bytes.TrimSpace(srcEls[i].Body())) > 0:
			el.SetBody(marker)
			slots = append(slots, blobSlot{inline: srcEls[i].Body()})
		}
	}

	skeleton, err := clone.Serialize()
	if err != nil {
		s.fail(err)
		return
	}
	offsets, err := document.PlaceholderOffsets(skeleton, marker, len(slots))
	if err != nil {
		s.fail(err)
		return
	}

	// walk the skeleton, emitting spans between placeholders verbatim and
	// expanding each placeholder to its blob content
	prev := 0
	for i, off := range offsets {
		if off > prev {
			if !s.pushChunk(MsgChunk{data: skeleton[prev:off]}) {
				s.markDone()
				return
			}
		}
		prev = off + len(marker)

		slot := slots[i]
		if !slot.attached {
			if !s.pushChunk(MsgChunk{data: slot.inline}) {
				s.markDone()
				return
			}
			continue
		}

		ok, err := s.encodeAttached(slot.handle)
		if err != nil {
			s.fail(err)
			return
		}
		if !ok {
			s.markDone()
			return
		}
	}

	if prev < len(skeleton) {
		if !s.pushChunk(MsgChunk{data: skeleton[prev:]}) {
			s.markDone()
			return
		}
	}

	s.markDone()
}

// encodeAttached borrows the source buffer, emits its base64 form in bounded
// slices and detaches the buffer on every exit path. Returns ok=false when
// the instance stopped accepting content mid-blob.
func (s *inlineSerialized) encodeAttached(h shm.Handle) (ok bool, err error) {
	src, err := s.msg.alloc.Attach(h)
	if err != nil {
		return false, fmt.Errorf("failed to attach source buffer %s: %v", h, err)
	}
	defer s.msg.alloc.Detach(h, src)

	for off := 0; off < len(src); off += encodeSliceSize {
		if !s.throttle(maxAwaiterDepth) {
			return false, nil
		}

		end := off + encodeSliceSize
		if end > len(src) {
			end = len(src)
		}
		enc := make([]byte, b64.EncodedLen(end-off))
		b64.EncodeSlice(enc, src[off:end])

		if !s.pushChunk(MsgChunk{data: enc}) {
			return false, nil
		}
	}
	return true, nil
}
