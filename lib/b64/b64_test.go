package b64

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeSlice(t *testing.T) {
	src := []byte("hello, world")
	dst := make([]byte, EncodedLen(len(src)))
	n := EncodeSlice(dst, src)
	require.Equal(t, len(dst), n)
	require.Equal(t, base64.StdEncoding.EncodeToString(src), string(dst))
}

func TestDecodeIntoExactFit(t *testing.T) {
	src := make([]byte, 1000)
	rand.New(rand.NewSource(1)).Read(src)
	enc := []byte(base64.StdEncoding.EncodeToString(src))

	dst := make([]byte, len(src))
	written, total, err := DecodeInto(dst, enc)
	require.NoError(t, err)
	require.Equal(t, len(src), written)
	require.Equal(t, len(src), total)
	require.True(t, bytes.Equal(src, dst))
}

func TestDecodeIntoTruncates(t *testing.T) {
	src := []byte("0123456789")
	enc := []byte(base64.StdEncoding.EncodeToString(src))

	// undersized destination: decode stops at the bound but still reports
	// the full payload length
	dst := make([]byte, 1)
	written, total, err := DecodeInto(dst, enc)
	require.NoError(t, err)
	require.Equal(t, 1, written)
	require.Equal(t, len(src), total)
	require.Equal(t, byte('0'), dst[0])
}

func TestDecodeIntoOversizedDst(t *testing.T) {
	src := []byte("abc")
	enc := []byte(base64.StdEncoding.EncodeToString(src))

	dst := make([]byte, 64)
	written, total, err := DecodeInto(dst, enc)
	require.NoError(t, err)
	require.Equal(t, len(src), written)
	require.Equal(t, len(src), total)
	require.Equal(t, src, dst[:written])
}

func TestDecodeIntoIgnoresWhitespace(t *testing.T) {
	src := []byte("some payload with length")
	enc := base64.StdEncoding.EncodeToString(src)
	wrapped := enc[:10] + "\n" + enc[10:20] + "\r\n  " + enc[20:]

	dst := make([]byte, len(src))
	written, total, err := DecodeInto(dst, []byte(wrapped))
	require.NoError(t, err)
	require.Equal(t, len(src), written)
	require.Equal(t, len(src), total)
	require.True(t, bytes.Equal(src, dst))
}

func TestDecodeIntoMalformed(t *testing.T) {
	dst := make([]byte, 16)
	_, _, err := DecodeInto(dst, []byte("!!not base64!!"))
	require.Error(t, err)
}
