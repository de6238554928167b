package shm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// testAllocators maps allocator name to factory, mirroring how all tests in
// this repository exercise every available implementation.
func testAllocators(t *testing.T) map[string]IAllocator {
	allocs := map[string]IAllocator{
		"heap": NewHeapAllocator(nil),
	}
	if memfd, err := NewMemfdAllocator(); err == nil {
		allocs["memfd"] = memfd
	}
	return allocs
}

func TestAllocateAttachRoundTrip(t *testing.T) {
	for name, alloc := range testAllocators(t) {
		t.Run(name, func(t *testing.T) {
			a, err := alloc.Allocate(1024)
			require.NoError(t, err)
			require.Equal(t, 1024, a.Handle().Size())
			require.Len(t, a.Bytes(), 1024)

			// write through the owner view, read through an attached view
			for i := range a.Bytes() {
				a.Bytes()[i] = byte(i)
			}

			view, err := alloc.Attach(a.Handle())
			require.NoError(t, err)
			require.True(t, bytes.Equal(a.Bytes(), view))
			alloc.Detach(a.Handle(), view)

			alloc.Release(a.Handle())

			// a released handle must no longer attach
			_, err = alloc.Attach(a.Handle())
			require.Error(t, err)
		})
	}
}

func TestAllocateEmptyBuffer(t *testing.T) {
	for name, alloc := range testAllocators(t) {
		t.Run(name, func(t *testing.T) {
			a, err := alloc.Allocate(0)
			require.NoError(t, err)
			require.Len(t, a.Bytes(), 0)

			view, err := alloc.Attach(a.Handle())
			require.NoError(t, err)
			require.Len(t, view, 0)
			alloc.Detach(a.Handle(), view)

			alloc.Release(a.Handle())
		})
	}
}

func TestHeapAllocatorLimit(t *testing.T) {
	alloc := NewHeapAllocator(&HeapOptions{MaxBytes: 100})

	a, err := alloc.Allocate(80)
	require.NoError(t, err)

	// over the cap while the first buffer is live
	_, err = alloc.Allocate(30)
	require.Error(t, err)

	// releasing frees budget again
	alloc.Release(a.Handle())
	b, err := alloc.Allocate(30)
	require.NoError(t, err)
	alloc.Release(b.Handle())
}

func TestReleaseIsIdempotentPerHandle(t *testing.T) {
	alloc := NewHeapAllocator(&HeapOptions{MaxBytes: 100})

	a, err := alloc.Allocate(60)
	require.NoError(t, err)
	alloc.Release(a.Handle())
	// double release must not corrupt accounting
	alloc.Release(a.Handle())

	b, err := alloc.Allocate(100)
	require.NoError(t, err)
	alloc.Release(b.Handle())
}
