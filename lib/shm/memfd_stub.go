//go:build !linux

package shm

import "fmt"

// NewMemfdAllocator is only available on Linux. Other platforms fall back to
// the heap allocator (which disables cross-process zero-copy delivery).
func NewMemfdAllocator() (IAllocator, error) {
	return nil, fmt.Errorf("memfd allocator requires linux")
}

// Fd always reports false on non-Linux platforms.
func Fd(alloc IAllocator, h Handle) (int, bool) {
	return 0, false
}
