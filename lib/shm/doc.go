// Package shm provides the shared-buffer primitives used for out-of-band
// blob delivery: allocate, attach, detach and release of buffers identified
// by small handle values.
//
// Two allocators are provided:
//
//   - NewMemfdAllocator (Linux): buffers backed by memfd_create + mmap, whose
//     file descriptors can travel to another process over a unix socket for
//     true zero-copy delivery.
//
//   - NewHeapAllocator: plain in-process buffers with the same contract, used
//     by tests and as the fallback on platforms without memfd.
//
// The allocator is always dependency-injected (see serialize.NewMessage);
// nothing in this repository holds a global allocator instance.
//
// Ownership rules:
//
//   - Allocate returns an attached, writable buffer owned by the caller.
//     The owner must call Release exactly once.
//   - Attach/Detach must be balanced on every code path; attached views of a
//     borrowed buffer must never outlive the Detach.
package shm
