package serialize

import (
	"io"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/openhydrogen/hydrogen/lib/shm"
)

var Logger = logger.GetLogger("serialize")

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

var (
	metricChunksInline = metrics.GetOrCreateCounter(`hydrogen_serialize_chunks_total{strategy="inline"}`)
	metricChunksShared = metrics.GetOrCreateCounter(`hydrogen_serialize_chunks_total{strategy="shm"}`)
	metricBytesInline  = metrics.GetOrCreateCounter(`hydrogen_serialize_bytes_total{strategy="inline"}`)
	metricBytesShared  = metrics.GetOrCreateCounter(`hydrogen_serialize_bytes_total{strategy="shm"}`)
	metricErrors       = metrics.GetOrCreateCounter(`hydrogen_serialize_errors_total`)
	metricSizeMismatch = metrics.GetOrCreateCounter(`hydrogen_serialize_warnings_total{kind="size_mismatch"}`)
	metricMissingSize  = metrics.GetOrCreateCounter(`hydrogen_serialize_warnings_total{kind="missing_size"}`)
)

// --------------------------------------------------------------------------
// Producer Strategy
// --------------------------------------------------------------------------

// producer is the strategy half of a serialized message: the routine that
// appends chunks until done. Implemented by the inline and shared-buffer
// serializers.
type producer interface {
	// needsAsync reports whether production is CPU-bound enough to warrant
	// a dedicated goroutine (any base64 conversion). Trivial passthroughs
	// run synchronously on the requesting caller.
	needsAsync() bool

	// produce runs the production routine. It must end the stream by
	// calling markDone or fail, on every path.
	produce()

	// strategyName is used in log lines.
	strategyName() string
}

// --------------------------------------------------------------------------
// Serialized Base
// --------------------------------------------------------------------------

// serializedBase carries the state shared by both serializer strategies: the
// generation state machine, the append-only chunk list, the awaiter set, the
// requirement descriptor and the owned shared-buffer allocations.
//
// One mutex guards all of it. Progress notifications are delivered after the
// mutex is released, so a consumer is free to re-enter the instance from
// within its NotifyProgressed callback.
type serializedBase struct {
	mu       sync.Mutex
	status   Status
	err      error
	chunks   []MsgChunk
	req      Requirements
	awaiters map[IConsumer]struct{}

	// owned allocations, released exactly once when the instance is
	// reclaimed. Plain byte buffers produced during conversion need no
	// bookkeeping: the chunk list keeps them alive and the GC drops them
	// with the instance.
	ownAllocs []*shm.Allocation
	destroyed bool

	msg  *Message
	self ISerializedMessage
	prod producer

	metricChunks *metrics.Counter
	metricBytes  *metrics.Counter
}

func (b *serializedBase) init(msg *Message, self ISerializedMessage, prod producer, req Requirements) {
	b.msg = msg
	b.self = self
	b.prod = prod
	b.req = req
	b.awaiters = make(map[IConsumer]struct{})
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serialize/interface.go)
// --------------------------------------------------------------------------

func (b *serializedBase) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *serializedBase) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *serializedBase) RequestContent(cur *ChunkCursor) (bool, error) {
	b.mu.Lock()

	if b.err != nil {
		b.mu.Unlock()
		return false, b.err
	}
	if cur.eos || cur.chunk < len(b.chunks) || b.status == StatusTerminated {
		b.mu.Unlock()
		return true, nil
	}
	if b.status != StatusPending {
		// generation already in flight, caller waits for a notification
		b.mu.Unlock()
		return false, nil
	}

	// first request starts generation
	b.status = StatusRunning
	async := b.prod.needsAsync()
	b.mu.Unlock()

	if async {
		go b.runProduce()
		return false, nil
	}

	b.runProduce()
	return b.RequestContent(cur)
}

func (b *serializedBase) ReadAt(cur *ChunkCursor) ([]byte, []shm.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return nil, nil, b.err
	}
	if cur.eos {
		return nil, nil, io.EOF
	}
	if cur.chunk >= len(b.chunks) {
		if b.status == StatusTerminated {
			cur.eos = true
			return nil, nil, io.EOF
		}
		return nil, nil, ErrNotReady
	}

	c := b.chunks[cur.chunk]
	data := c.data[cur.offset:]
	if cur.offset == 0 {
		return data, c.attach, nil
	}
	return data, nil, nil
}

func (b *serializedBase) Advance(cur *ChunkCursor, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for n > 0 && cur.chunk < len(b.chunks) {
		remain := len(b.chunks[cur.chunk].data) - cur.offset
		if n < remain {
			cur.offset += n
			return
		}
		n -= remain
		cur.chunk++
		cur.offset = 0
	}
	if cur.chunk >= len(b.chunks) && b.status == StatusTerminated {
		cur.eos = true
	}
}

func (b *serializedBase) AddAwaiter(c IConsumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaiters[c] = struct{}{}
}

func (b *serializedBase) Release(c IConsumer) {
	b.mu.Lock()
	delete(b.awaiters, c)
	empty := len(b.awaiters) == 0
	b.mu.Unlock()

	if empty {
		b.msg.reclaim(b)
	}
}

func (b *serializedBase) CollectRequirements(agg *Requirements) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// nothing is needed once the stream is complete or nobody awaits it
	if b.status == StatusTerminated || len(b.awaiters) == 0 {
		return
	}
	agg.Merge(b.req)
}

func (b *serializedBase) UpdateRequirements(req Requirements) {
	b.mu.Lock()
	if req.Equal(b.req) {
		b.mu.Unlock()
		return
	}
	b.req = req.clone()
	waiters := b.awaitersSnapshotLocked()
	b.mu.Unlock()

	b.notify(waiters)
}

// --------------------------------------------------------------------------
// Generation Side
// --------------------------------------------------------------------------

func (b *serializedBase) runProduce() {
	start := time.Now()
	b.prod.produce()
	Logger.Debugf("%s serialization finished in %s (%d chunks)",
		b.prod.strategyName(), time.Since(start), b.chunkCount())
}

// pushChunk appends a chunk and wakes all awaiters. Returns false if the
// instance no longer accepts content (canceled or terminated); the
// production routine must then stop and call markDone.
func (b *serializedBase) pushChunk(c MsgChunk) bool {
	b.mu.Lock()
	if b.status != StatusRunning {
		b.mu.Unlock()
		return false
	}
	b.chunks = append(b.chunks, c)
	waiters := b.awaitersSnapshotLocked()
	b.mu.Unlock()

	if b.metricChunks != nil {
		b.metricChunks.Inc()
		b.metricBytes.Add(c.Len())
	}

	b.notify(waiters)
	return true
}

// markDone moves the instance to Terminated and wakes all awaiters a final
// time. Safe to call from any prior state.
func (b *serializedBase) markDone() {
	b.mu.Lock()
	if b.status == StatusTerminated {
		b.mu.Unlock()
		return
	}
	b.status = StatusTerminated
	waiters := b.awaitersSnapshotLocked()
	empty := len(b.awaiters) == 0
	b.mu.Unlock()

	b.notify(waiters)

	if empty {
		b.msg.reclaim(b)
	}
}

// fail records a terminal generation error. Every current and future reader
// observes it from RequestContent/ReadAt instead of truncated content.
func (b *serializedBase) fail(err error) {
	b.mu.Lock()
	if b.status == StatusTerminated {
		b.mu.Unlock()
		return
	}
	b.err = err
	b.status = StatusTerminated
	waiters := b.awaitersSnapshotLocked()
	empty := len(b.awaiters) == 0
	b.mu.Unlock()

	metricErrors.Inc()
	Logger.Errorf("%s serialization failed: %v", b.prod.strategyName(), err)

	b.notify(waiters)

	if empty {
		b.msg.reclaim(b)
	}
}

// canceled is checked by production routines between chunk productions.
func (b *serializedBase) canceled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status != StatusRunning
}

// ownAlloc records a shared-buffer allocation as owned by this instance. It
// is released when the instance is reclaimed, never earlier.
func (b *serializedBase) ownAlloc(a *shm.Allocation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ownAllocs = append(b.ownAllocs, a)
}

// throttle parks the production routine briefly while every awaiter is
// saturated, bounding chunk backlog under slow consumers. Returns false if
// the instance stopped accepting content while parked.
func (b *serializedBase) throttle(maxDepth int) bool {
	for {
		b.mu.Lock()
		if b.status != StatusRunning {
			b.mu.Unlock()
			return false
		}
		depth := 0
		for c := range b.awaiters {
			if d := c.CurrentQueueDepth(); d > depth {
				depth = d
			}
		}
		b.mu.Unlock()

		if depth <= maxDepth {
			return true
		}
		time.Sleep(time.Millisecond)
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (b *serializedBase) awaitersSnapshotLocked() []IConsumer {
	if len(b.awaiters) == 0 {
		return nil
	}
	waiters := make([]IConsumer, 0, len(b.awaiters))
	for c := range b.awaiters {
		waiters = append(waiters, c)
	}
	return waiters
}

// notify delivers progress callbacks. Must be called without b.mu held.
func (b *serializedBase) notify(waiters []IConsumer) {
	for _, c := range waiters {
		c.NotifyProgressed(b.self)
	}
}

func (b *serializedBase) chunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
