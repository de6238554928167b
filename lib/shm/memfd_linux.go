//go:build linux

package shm

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"
)

// --------------------------------------------------------------------------
// Memfd Allocator (Linux)
// --------------------------------------------------------------------------

// memfdAllocator implements IAllocator on top of memfd_create + mmap. Each
// buffer is an anonymous file whose descriptor can be passed to another
// process over a unix socket, giving consumers true zero-copy access.
type memfdAllocator struct {
	nextID atomic.Uint64
	fds    *xsync.MapOf[uint64, int]
}

// NewMemfdAllocator creates an allocator backed by anonymous memory files.
func NewMemfdAllocator() (IAllocator, error) {
	// probe support once so callers can fall back early
	fd, err := unix.MemfdCreate("hydrogen-probe", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create not available: %v", err)
	}
	_ = unix.Close(fd)

	return &memfdAllocator{fds: xsync.NewMapOf[uint64, int]()}, nil
}

// Fd returns the file descriptor backing a handle, for transports that pass
// descriptors over SCM_RIGHTS. Returns false if the handle is unknown.
func Fd(alloc IAllocator, h Handle) (int, bool) {
	m, ok := alloc.(*memfdAllocator)
	if !ok {
		return 0, false
	}
	fd, ok := m.fds.Load(h.ID())
	return fd, ok
}

// --------------------------------------------------------------------------
// Interface Methods (docu see shm/interface.go)
// --------------------------------------------------------------------------

func (a *memfdAllocator) Allocate(size int) (*Allocation, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}

	fd, err := unix.MemfdCreate("hydrogen-blob", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create failed: %v", err)
	}

	// mmap of length 0 is invalid, map at least one page worth of file
	mapSize := size
	if mapSize == 0 {
		mapSize = 1
	}

	if err := unix.Ftruncate(fd, int64(mapSize)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ftruncate failed: %v", err)
	}

	data, err := unix.Mmap(fd, 0, mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap failed: %v", err)
	}

	h := NewHandle(a.nextID.Add(1), size)
	a.fds.Store(h.ID(), fd)
	return NewAllocation(h, data[:size]), nil
}

func (a *memfdAllocator) Attach(h Handle) ([]byte, error) {
	fd, ok := a.fds.Load(h.ID())
	if !ok {
		return nil, fmt.Errorf("unknown shared buffer %s", h)
	}

	mapSize := h.Size()
	if mapSize == 0 {
		mapSize = 1
	}

	data, err := unix.Mmap(fd, 0, mapSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed for %s: %v", h, err)
	}
	return data[:h.Size()], nil
}

func (a *memfdAllocator) Detach(h Handle, data []byte) {
	if cap(data) == 0 {
		return
	}
	_ = unix.Munmap(data[:cap(data)])
}

func (a *memfdAllocator) Release(h Handle) {
	if fd, ok := a.fds.LoadAndDelete(h.ID()); ok {
		_ = unix.Close(fd)
	}
}
