// Package b64 wraps the standard base64 codec with the bounded-slice helpers
// the serialization engine needs: encoding a source range into a
// caller-supplied buffer sized for the worst case, and decoding base64 text
// into a caller-supplied buffer that may be smaller than the decoded payload.
package b64

import (
	"bytes"
	"encoding/base64"
	"io"
)

// EncodedLen returns the number of base64 bytes produced for n source bytes
// (4/3 expansion plus padding).
func EncodedLen(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}

// DecodedLen returns the maximum number of decoded bytes for n base64 bytes.
func DecodedLen(n int) int {
	return base64.StdEncoding.DecodedLen(n)
}

// EncodeSlice encodes src into dst and returns the number of bytes written.
// dst must be at least EncodedLen(len(src)) bytes long.
func EncodeSlice(dst, src []byte) int {
	base64.StdEncoding.Encode(dst, src)
	return EncodedLen(len(src))
}

// DecodeInto decodes base64 text into dst. The decode is truncated at
// len(dst): written is the number of bytes stored in dst, total is the full
// decoded length of src (counted past the truncation point so callers can
// detect a size mismatch). Whitespace in src is ignored.
func DecodeInto(dst, src []byte) (written, total int, err error) {
	dec := base64.NewDecoder(base64.StdEncoding, newSpaceStrippingReader(src))

	for written < len(dst) {
		n, rerr := dec.Read(dst[written:])
		written += n
		if rerr == io.EOF {
			return written, written, nil
		}
		if rerr != nil {
			return written, written, rerr
		}
	}

	// dst is full, drain the remainder to measure the real payload length
	total = written
	var scratch [512]byte
	for {
		n, rerr := dec.Read(scratch[:])
		total += n
		if rerr == io.EOF {
			return written, total, nil
		}
		if rerr != nil {
			return written, total, rerr
		}
	}
}

// newSpaceStrippingReader returns a reader over src with ASCII whitespace
// removed. Inline blob bodies may carry line breaks from the document layer.
func newSpaceStrippingReader(src []byte) io.Reader {
	if !bytes.ContainsAny(src, " \t\r\n") {
		return bytes.NewReader(src)
	}
	stripped := make([]byte, 0, len(src))
	for _, c := range src {
		switch c {
		case ' ', '\t', '\r', '\n':
		default:
			stripped = append(stripped, c)
		}
	}
	return bytes.NewReader(stripped)
}
