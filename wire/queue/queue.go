package queue

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/openhydrogen/hydrogen/lib/serialize"
	"github.com/openhydrogen/hydrogen/lib/shm"
)

var Logger = logger.GetLogger("queue")

var (
	metricMessages    = metrics.NewCounter(`hydrogen_queue_messages_total`)
	metricDisconnects = metrics.NewCounter(`hydrogen_queue_disconnects_total`)
)

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// IConsumerQueue is one connected consumer: a bounded queue of messages and
// the pump that streams each message's serialized form onto the socket. It
// implements serialize.IConsumer, so the engine can observe this consumer's
// capabilities and backlog directly.
type IConsumerQueue interface {
	serialize.IConsumer

	// ID returns the unique identifier assigned to this consumer
	ID() string

	// RemoteAddr returns the peer address for logging
	RemoteAddr() string

	// Enqueue appends a message to this consumer's backlog. Blocks while
	// the backlog is full and returns false once the queue is closed.
	Enqueue(msg *serialize.Message) bool

	// ProducerBlocked reports whether the serialization engine asked to
	// park the driver feed until this consumer has drained its backlog
	ProducerBlocked() bool

	// Run pumps queued messages onto the connection until the connection
	// fails or the queue is closed. Must be called exactly once.
	Run() error

	// Close shuts the queue down and closes the connection
	Close()
}

// Options configures a consumer queue.
type Options struct {
	// Conn is the accepted connection, already past the handshake
	Conn net.Conn

	// SharedBuffers is the negotiated consumer capability
	SharedBuffers bool

	// Alloc is the allocator backing shared buffers (used for descriptor
	// passing, may be nil for inline-only consumers)
	Alloc shm.IAllocator

	// Depth is the backlog capacity in messages (default 16)
	Depth int

	// WriteTimeout is the per-write socket deadline (0 = none)
	WriteTimeout time.Duration
}

// NewConsumerQueue creates a queue for one accepted connection.
func NewConsumerQueue(opts Options) IConsumerQueue {
	depth := opts.Depth
	if depth <= 0 {
		depth = 16
	}

	return &consumerQueue{
		id:      uuid.NewString(),
		conn:    opts.Conn,
		shared:  opts.SharedBuffers,
		alloc:   opts.Alloc,
		timeout: opts.WriteTimeout,
		pending: make(chan *serialize.Message, depth),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

type consumerQueue struct {
	id      string
	conn    net.Conn
	shared  bool
	alloc   shm.IAllocator
	timeout time.Duration

	pending chan *serialize.Message
	wake    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	blocked   atomic.Bool
}

// ----- serialize.IConsumer -----

func (q *consumerQueue) AcceptsSharedBuffers() bool { return q.shared }

func (q *consumerQueue) CurrentQueueDepth() int { return len(q.pending) }

func (q *consumerQueue) NotifyProgressed(_ serialize.ISerializedMessage) {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *consumerQueue) BlockProducer() {
	q.blocked.Store(true)
}

// ----- queue surface -----

func (q *consumerQueue) ID() string { return q.id }

func (q *consumerQueue) RemoteAddr() string {
	if addr := q.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

func (q *consumerQueue) ProducerBlocked() bool { return q.blocked.Load() }

func (q *consumerQueue) Enqueue(msg *serialize.Message) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.pending <- msg:
		return true
	case <-q.done:
		return false
	}
}

func (q *consumerQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		_ = q.conn.Close()
	})
}

func (q *consumerQueue) Run() error {
	Logger.Infof("consumer %s connected (%s, shared buffers: %t)", q.id, q.RemoteAddr(), q.shared)
	defer metricDisconnects.Inc()

	for {
		select {
		case msg := <-q.pending:
			metricMessages.Inc()
			if err := q.stream(msg); err != nil {
				Logger.Infof("consumer %s disconnected: %v", q.id, err)
				q.Close()
				return err
			}
			if len(q.pending) == 0 {
				q.blocked.Store(false)
			}
		case <-q.done:
			return nil
		}
	}
}

// stream writes one message onto the connection: attach frames for shared
// buffers, chunk frames for stream bytes, and a final end frame. A failed
// generation is logged and skipped; only socket errors end the connection.
func (q *consumerQueue) stream(msg *serialize.Message) error {
	sm := msg.SerializeFor(q)
	defer sm.Release(q)

	var cur serialize.ChunkCursor
	for !cur.EndOfStream() {
		ready, err := sm.RequestContent(&cur)
		if err != nil {
			Logger.Errorf("consumer %s: dropping failed message: %v", q.id, err)
			break
		}
		if !ready {
			select {
			case <-q.wake:
			case <-q.done:
				return net.ErrClosed
			}
			continue
		}

		data, attach, err := sm.ReadAt(&cur)
		if err == io.EOF {
			break
		}
		if err != nil {
			Logger.Errorf("consumer %s: dropping failed message: %v", q.id, err)
			break
		}

		for _, h := range attach {
			q.setWriteDeadline()
			if err := writeAttachRights(q.conn, q.alloc, h); err != nil {
				return err
			}
		}

		q.setWriteDeadline()
		if err := WriteFrame(q.conn, FrameChunk, data); err != nil {
			return err
		}
		sm.Advance(&cur, len(data))
	}

	q.setWriteDeadline()
	return WriteFrame(q.conn, FrameEnd, nil)
}

func (q *consumerQueue) setWriteDeadline() {
	if q.timeout > 0 {
		_ = q.conn.SetWriteDeadline(time.Now().Add(q.timeout))
	}
}
