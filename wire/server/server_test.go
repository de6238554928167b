package server

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openhydrogen/hydrogen/lib/document"
	"github.com/openhydrogen/hydrogen/lib/serialize"
	"github.com/openhydrogen/hydrogen/lib/shm"
	"github.com/openhydrogen/hydrogen/wire/common"
	"github.com/openhydrogen/hydrogen/wire/queue"
)

func testConfig() common.ServerConfig {
	return common.ServerConfig{QueueDepth: 4, LogLevel: "error"}
}

// readMessage reads frames until an end frame and returns the chunk bytes.
func readMessage(t *testing.T, conn net.Conn) []byte {
	t.Helper()

	var body bytes.Buffer
	for {
		typ, payload, err := queue.ReadFrame(conn, nil)
		require.NoError(t, err)
		switch typ {
		case queue.FrameChunk:
			body.Write(payload)
		case queue.FrameAttach:
			// ignore, inline consumers never see these
		case queue.FrameEnd:
			return body.Bytes()
		}
	}
}

func TestBroadcastReachesAllConsumers(t *testing.T) {
	alloc := shm.NewHeapAllocator(nil)
	srv := NewServer(Options{Config: testConfig(), Alloc: alloc}).(*hydrogenServer)
	defer srv.Close()

	var clients []net.Conn
	for i := 0; i < 3; i++ {
		serverSide, clientSide := net.Pipe()
		go srv.accept(serverSide, false)
		clients = append(clients, clientSide)
	}

	// wait until all queues are registered
	require.Eventually(t, func() bool {
		return srv.consumers.Size() == 3
	}, 5*time.Second, time.Millisecond)

	doc, err := document.Parse([]byte(`<setNumberVector device="Focuser" name="POS"/>`))
	require.NoError(t, err)
	msg, err := serialize.NewMessage(doc, nil, alloc)
	require.NoError(t, err)
	srv.Broadcast(msg)

	for _, c := range clients {
		got, err := document.Parse(readMessage(t, c))
		require.NoError(t, err)
		require.Equal(t, "Focuser", got.Attr("device"))
	}
}

func TestDisconnectedConsumerIsRemoved(t *testing.T) {
	alloc := shm.NewHeapAllocator(nil)
	srv := NewServer(Options{Config: testConfig(), Alloc: alloc}).(*hydrogenServer)
	defer srv.Close()

	serverSide, clientSide := net.Pipe()
	go srv.accept(serverSide, false)

	require.Eventually(t, func() bool {
		return srv.consumers.Size() == 1
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, clientSide.Close())

	doc, err := document.Parse([]byte(`<setTextVector name="gone"/>`))
	require.NoError(t, err)
	msg, err := serialize.NewMessage(doc, nil, alloc)
	require.NoError(t, err)
	srv.Broadcast(msg)

	require.Eventually(t, func() bool {
		return srv.consumers.Size() == 0
	}, 5*time.Second, time.Millisecond)
}

func TestFeedLoopBroadcastsDocuments(t *testing.T) {
	alloc := shm.NewHeapAllocator(nil)
	feed := strings.NewReader(
		`<setTextVector name="one"/>` + "\n" +
			"not xml at all\n" +
			`<setTextVector name="two"/>` + "\n")

	srv := NewServer(Options{Config: testConfig(), Alloc: alloc, Feed: feed}).(*hydrogenServer)
	defer srv.Close()

	serverSide, clientSide := net.Pipe()
	go srv.accept(serverSide, false)

	require.Eventually(t, func() bool {
		return srv.consumers.Size() == 1
	}, 5*time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- srv.feedLoop(context.Background()) }()

	for _, want := range []string{"one", "two"} {
		got, err := document.Parse(readMessage(t, clientSide))
		require.NoError(t, err)
		require.Equal(t, want, got.Attr("name"))
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("feed loop did not finish")
	}
}
