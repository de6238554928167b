package shm

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Heap Allocator
// --------------------------------------------------------------------------

// heapAllocator implements IAllocator with plain heap memory. Buffers are
// "shared" only within the process, which is all tests and non-Linux builds
// need. The implementation intentionally mirrors the attach/detach contract
// of the memfd allocator so the serialization core behaves identically on
// either one.
type heapAllocator struct {
	nextID   atomic.Uint64
	buffers  *xsync.MapOf[uint64, []byte]
	maxBytes int
	used     atomic.Int64
}

// HeapOptions configures the heap allocator.
type HeapOptions struct {
	// MaxBytes caps the total number of live allocated bytes. Allocate
	// returns an error once the cap would be exceeded. Zero means no cap.
	MaxBytes int
}

// NewHeapAllocator creates an in-process allocator. It is the default for
// tests and for platforms without memfd support.
func NewHeapAllocator(opts *HeapOptions) IAllocator {
	a := &heapAllocator{
		buffers: xsync.NewMapOf[uint64, []byte](),
	}
	if opts != nil {
		a.maxBytes = opts.MaxBytes
	}
	return a
}

// --------------------------------------------------------------------------
// Interface Methods (docu see shm/interface.go)
// --------------------------------------------------------------------------

func (a *heapAllocator) Allocate(size int) (*Allocation, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	if a.maxBytes > 0 && a.used.Load()+int64(size) > int64(a.maxBytes) {
		Logger.Warningf("rejecting allocation of %d bytes, limit of %d exceeded", size, a.maxBytes)
		return nil, fmt.Errorf("allocator limit of %d bytes exceeded", a.maxBytes)
	}

	data := make([]byte, size)
	h := NewHandle(a.nextID.Add(1), size)
	a.buffers.Store(h.ID(), data)
	a.used.Add(int64(size))
	return NewAllocation(h, data), nil
}

func (a *heapAllocator) Attach(h Handle) ([]byte, error) {
	data, ok := a.buffers.Load(h.ID())
	if !ok {
		return nil, fmt.Errorf("unknown shared buffer %s", h)
	}
	return data, nil
}

func (a *heapAllocator) Detach(h Handle, data []byte) {
	// heap buffers are not mapped, nothing to unmap
}

func (a *heapAllocator) Release(h Handle) {
	if _, ok := a.buffers.LoadAndDelete(h.ID()); ok {
		a.used.Add(-int64(h.Size()))
	}
}
