// Package serialize implements the message-serialization engine of the
// hydrogen protocol server: the bridge between one logical property-update
// message and the per-consumer wire representations of it.
//
// A Message carries a parsed property-update document plus the shared-buffer
// handles its attached blob elements reference. Consumers differ in
// capability: some accept out-of-band shared-buffer handles (zero-copy
// delivery), others need a fully self-contained document with payloads
// inlined as base64. The engine produces, on demand, the right
// representation per consumer class:
//
//   - the inline serializer turns attached buffers into streamed base64
//     content, emitted in bounded slices so the first bytes of a message
//     reach consumers before a large blob is fully encoded;
//
//   - the shared-buffer serializer turns inline base64 content into newly
//     allocated shared buffers and emits the document as a single chunk
//     carrying the handle set.
//
// Each strategy is generated at most once per message regardless of how many
// consumers need it. Generation runs on a dedicated goroutine when it
// involves base64 conversion and appends to an append-only chunk list;
// every consumer reads that list through its own ChunkCursor at its own
// pace, observing the identical byte stream.
//
// The collaborating document model (lib/document), shared-buffer allocator
// (lib/shm) and base64 codec (lib/b64) are injected; this package contains
// only the chunk bookkeeping, the generation state machine and the two
// conversion strategies.
package serialize
