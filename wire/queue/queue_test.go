package queue

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openhydrogen/hydrogen/lib/document"
	"github.com/openhydrogen/hydrogen/lib/serialize"
	"github.com/openhydrogen/hydrogen/lib/shm"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

func messageFromXML(t *testing.T, alloc shm.IAllocator, xml string, blobs ...[]byte) *serialize.Message {
	t.Helper()

	doc, err := document.Parse([]byte(xml))
	require.NoError(t, err)

	var handles []shm.Handle
	i := 0
	for _, el := range doc.BlobElements() {
		if !el.IsAttached() {
			continue
		}
		require.Less(t, i, len(blobs), "not enough blob payloads for attached elements")
		a, err := alloc.Allocate(len(blobs[i]))
		require.NoError(t, err)
		copy(a.Bytes(), blobs[i])
		handles = append(handles, a.Handle())
		i++
	}

	msg, err := serialize.NewMessage(doc, handles, alloc)
	require.NoError(t, err)
	return msg
}

// readMessage reads frames off the connection until an end frame arrives
// and returns the concatenated chunk bytes plus the announced handles.
func readMessage(t *testing.T, conn net.Conn) ([]byte, []shm.Handle) {
	t.Helper()

	var body bytes.Buffer
	var handles []shm.Handle
	for {
		typ, payload, err := ReadFrame(conn, nil)
		require.NoError(t, err)

		switch typ {
		case FrameChunk:
			body.Write(payload)
		case FrameAttach:
			h, err := DecodeAttach(payload)
			require.NoError(t, err)
			handles = append(handles, h)
		case FrameEnd:
			return body.Bytes(), handles
		default:
			t.Fatalf("unexpected frame type 0x%02x", typ)
		}
	}
}

// --------------------------------------------------------------------------
// Frame Codec
// --------------------------------------------------------------------------

func TestFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := []byte("defSwitchVector")
	go func() {
		_ = WriteFrame(server, FrameChunk, payload)
		_ = WriteFrame(server, FrameEnd, nil)
	}()

	typ, got, err := ReadFrame(client, nil)
	require.NoError(t, err)
	require.Equal(t, FrameChunk, typ)
	require.Equal(t, payload, got)

	typ, got, err = ReadFrame(client, nil)
	require.NoError(t, err)
	require.Equal(t, FrameEnd, typ)
	require.Empty(t, got)
}

func TestAttachEncoding(t *testing.T) {
	h := shm.NewHandle(42, 1<<20)

	got, err := DecodeAttach(EncodeAttach(h))
	require.NoError(t, err)
	require.Equal(t, h, got)

	_, err = DecodeAttach([]byte{1, 2, 3})
	require.Error(t, err)
}

// --------------------------------------------------------------------------
// Consumer Queue
// --------------------------------------------------------------------------

func TestInlineConsumerReceivesDocument(t *testing.T) {
	server, client := net.Pipe()
	alloc := shm.NewHeapAllocator(nil)

	q := NewConsumerQueue(Options{Conn: server, SharedBuffers: false, Alloc: alloc})
	go func() { _ = q.Run() }()
	defer q.Close()

	xml := `<defTextVector device="cam" name="INFO"><defText name="MODEL">Atik</defText></defTextVector>`
	require.True(t, q.Enqueue(messageFromXML(t, alloc, xml)))

	body, handles := readMessage(t, client)
	require.Empty(t, handles)

	doc, err := document.Parse(body)
	require.NoError(t, err)
	require.Equal(t, "defTextVector", doc.Name())
	require.Equal(t, "cam", doc.Attr("device"))
}

func TestSharedConsumerReceivesHandles(t *testing.T) {
	server, client := net.Pipe()
	alloc := shm.NewHeapAllocator(nil)

	q := NewConsumerQueue(Options{Conn: server, SharedBuffers: true, Alloc: alloc})
	go func() { _ = q.Run() }()
	defer q.Close()

	payload := []byte("raw pixel data of a short exposure")
	xml := `<setBLOBVector name="v"><oneBLOB name="b" attached="true" size="34"/></setBLOBVector>`
	require.True(t, q.Enqueue(messageFromXML(t, alloc, xml, payload)))

	body, handles := readMessage(t, client)
	require.Len(t, handles, 1)
	require.Equal(t, len(payload), handles[0].Size())

	data, err := alloc.Attach(handles[0])
	require.NoError(t, err)
	require.Equal(t, payload, data)
	alloc.Detach(handles[0], data)

	doc, err := document.Parse(body)
	require.NoError(t, err)
	require.Equal(t, "setBLOBVector", doc.Name())
}

func TestQueueStreamsBacklogInOrder(t *testing.T) {
	server, client := net.Pipe()
	alloc := shm.NewHeapAllocator(nil)

	q := NewConsumerQueue(Options{Conn: server, SharedBuffers: false, Alloc: alloc, Depth: 4})
	go func() { _ = q.Run() }()
	defer q.Close()

	names := []string{"first", "second", "third"}
	go func() {
		for _, n := range names {
			q.Enqueue(messageFromXML(t, alloc, `<setTextVector name="`+n+`"/>`))
		}
	}()

	for _, n := range names {
		body, _ := readMessage(t, client)
		doc, err := document.Parse(body)
		require.NoError(t, err)
		require.Equal(t, n, doc.Attr("name"))
	}
}

func TestEnqueueFailsAfterClose(t *testing.T) {
	server, _ := net.Pipe()
	alloc := shm.NewHeapAllocator(nil)

	q := NewConsumerQueue(Options{Conn: server, SharedBuffers: false, Alloc: alloc})
	q.Close()

	done := make(chan bool, 1)
	go func() {
		done <- q.Enqueue(messageFromXML(t, alloc, `<setTextVector name="late"/>`))
	}()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue did not return after Close")
	}
}
