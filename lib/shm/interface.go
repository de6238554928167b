package shm

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("shm")

// --------------------------------------------------------------------------
// Shared Buffer Handle
// --------------------------------------------------------------------------

// Handle identifies one out-of-band shared buffer. A handle is a small value
// type that can be copied freely and delivered to consumers alongside the
// byte stream; the buffer contents are only reachable through
// IAllocator.Attach.
type Handle struct {
	id   uint64
	size int
}

// ID returns the allocator-unique identifier of the buffer.
func (h Handle) ID() uint64 { return h.id }

// Size returns the byte size the buffer was allocated with.
func (h Handle) Size() int { return h.size }

// String returns a short representation for logging.
func (h Handle) String() string { return fmt.Sprintf("shm(%d,%d)", h.id, h.size) }

// NewHandle creates a handle value. It is exported for allocator
// implementations and for tests; a handle is only meaningful to the
// allocator that issued its id.
func NewHandle(id uint64, size int) Handle {
	return Handle{id: id, size: size}
}

// --------------------------------------------------------------------------
// Allocation
// --------------------------------------------------------------------------

// Allocation is a buffer owned by whoever allocated it. It stays attached
// (writable) until released via IAllocator.Release.
type Allocation struct {
	handle Handle
	data   []byte
}

// Handle returns the handle identifying this allocation.
func (a *Allocation) Handle() Handle { return a.handle }

// Bytes returns the attached buffer contents.
func (a *Allocation) Bytes() []byte { return a.data }

// NewAllocation creates an allocation value for allocator implementations.
func NewAllocation(h Handle, data []byte) *Allocation {
	return &Allocation{handle: h, data: data}
}

// --------------------------------------------------------------------------
// Allocator Interface
// --------------------------------------------------------------------------

// IAllocator is the interface for shared-buffer allocators. It is injected
// into every component that touches shared buffers - there is no process
// global allocator, which keeps the serialization core testable with an
// in-memory implementation.
type IAllocator interface {
	// Allocate creates a new shared buffer of the given size. The returned
	// allocation is attached and writable. The caller owns the buffer and
	// must Release its handle exactly once.
	Allocate(size int) (*Allocation, error)

	// Attach maps the buffer identified by the handle into the caller's
	// address space and returns its contents. Every successful Attach must
	// be paired with exactly one Detach.
	Attach(h Handle) ([]byte, error)

	// Detach unmaps a buffer previously returned by Attach. The data slice
	// must not be used afterwards.
	Detach(h Handle, data []byte)

	// Release frees the buffer identified by the handle. Only the owner of
	// the buffer may call Release, and only once.
	Release(h Handle)
}
