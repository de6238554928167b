package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openhydrogen/hydrogen/lib/document"
	"github.com/openhydrogen/hydrogen/lib/serialize"
	"github.com/openhydrogen/hydrogen/lib/shm"
	"github.com/openhydrogen/hydrogen/wire/common"
	"github.com/openhydrogen/hydrogen/wire/queue"
	"github.com/openhydrogen/hydrogen/wire/transport"
)

var Logger = logger.GetLogger("server")

var (
	metricMessages   = metrics.NewCounter(`hydrogen_server_messages_total`)
	metricFeedErrors = metrics.NewCounter(`hydrogen_server_feed_errors_total`)
	metricConnects   = metrics.NewCounter(`hydrogen_server_connects_total`)
)

const (
	// maxFeedDocument bounds a single feed document (inline blobs included)
	maxFeedDocument = 64 * 1024 * 1024

	// producerBackoff is the poll interval while a consumer parks the feed
	producerBackoff = time.Millisecond
)

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// IServer is the hydrogen server: it reads property-update documents from
// the driver feed and broadcasts each one to every connected consumer.
type IServer interface {
	// Serve runs the listeners and the feed loop. Blocks until the context
	// is canceled, the feed is exhausted or a listener fails
	Serve(ctx context.Context) error

	// Broadcast queues a message on every connected consumer
	Broadcast(msg *serialize.Message)

	// Close shuts down listeners and disconnects all consumers
	Close() error
}

// Options configures a server instance.
type Options struct {
	// Config is the full server configuration
	Config common.ServerConfig

	// Alloc is the shared-buffer allocator used for all messages
	Alloc shm.IAllocator

	// Transports are the consumer-facing listeners
	Transports []transport.IStreamServerTransport

	// Feed is the stream of newline-delimited XML documents from the driver
	Feed io.Reader
}

// NewServer creates a server for the given options.
func NewServer(opts Options) IServer {
	return &hydrogenServer{
		config:     opts.Config,
		alloc:      opts.Alloc,
		transports: opts.Transports,
		feed:       opts.Feed,
		consumers:  xsync.NewMapOf[string, queue.IConsumerQueue](),
	}
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

type hydrogenServer struct {
	config     common.ServerConfig
	alloc      shm.IAllocator
	transports []transport.IStreamServerTransport
	feed       io.Reader

	consumers *xsync.MapOf[string, queue.IConsumerQueue]
	closeOnce sync.Once
}

func (s *hydrogenServer) Serve(ctx context.Context) error {
	Logger.Infof("starting hydrogen server%s", s.config.String())

	errCh := make(chan error, len(s.transports)+1)
	for _, tr := range s.transports {
		tr.RegisterHandler(s.accept)
		go func(tr transport.IStreamServerTransport) {
			errCh <- tr.Listen(s.config)
		}(tr)
	}
	go func() {
		errCh <- s.feedLoop(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	_ = s.Close()
	return err
}

func (s *hydrogenServer) Broadcast(msg *serialize.Message) {
	metricMessages.Inc()

	s.consumers.Range(func(id string, q queue.IConsumerQueue) bool {
		// a queue may park the feed until it has drained its backlog
		for q.ProducerBlocked() {
			time.Sleep(producerBackoff)
		}
		if !q.Enqueue(msg) {
			s.consumers.Delete(id)
		}
		return true
	})
}

func (s *hydrogenServer) Close() error {
	s.closeOnce.Do(func() {
		for _, tr := range s.transports {
			if err := tr.Close(); err != nil {
				Logger.Errorf("closing listener: %v", err)
			}
		}
		s.consumers.Range(func(id string, q queue.IConsumerQueue) bool {
			q.Close()
			s.consumers.Delete(id)
			return true
		})
	})
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// accept is the transport.AcceptHandler: it wraps the negotiated connection
// in a consumer queue and pumps it until the consumer disconnects
func (s *hydrogenServer) accept(conn net.Conn, sharedBuffers bool) {
	metricConnects.Inc()

	q := queue.NewConsumerQueue(queue.Options{
		Conn:          conn,
		SharedBuffers: sharedBuffers,
		Alloc:         s.alloc,
		Depth:         s.config.QueueDepth,
		WriteTimeout:  time.Duration(s.config.TimeoutSecond) * time.Second,
	})

	s.consumers.Store(q.ID(), q)
	_ = q.Run()
	s.consumers.Delete(q.ID())
	q.Close()
}

// feedLoop reads newline-delimited XML documents from the driver feed and
// broadcasts each one. Returns nil when the feed is exhausted.
func (s *hydrogenServer) feedLoop(ctx context.Context) error {
	if s.feed == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	scanner := bufio.NewScanner(s.feed)
	scanner.Buffer(make([]byte, 64*1024), maxFeedDocument)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		doc, err := document.Parse(line)
		if err != nil {
			metricFeedErrors.Inc()
			Logger.Warningf("dropping malformed document: %v", err)
			continue
		}

		msg, err := serialize.NewMessage(doc, nil, s.alloc)
		if err != nil {
			metricFeedErrors.Inc()
			Logger.Warningf("dropping document %s: %v", doc.Name(), err)
			continue
		}

		Logger.Debugf("broadcasting %s device=%q name=%q",
			doc.Name(), doc.Attr("device"), doc.Attr("name"))
		s.Broadcast(msg)
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	Logger.Infof("driver feed exhausted, shutting down")
	return nil
}
