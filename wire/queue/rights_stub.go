//go:build !linux

package queue

import (
	"net"

	"github.com/openhydrogen/hydrogen/lib/shm"
)

// writeAttachRights sends a plain attach frame. SCM_RIGHTS descriptor
// passing is only available on linux.
func writeAttachRights(conn net.Conn, alloc shm.IAllocator, h shm.Handle) error {
	return WriteFrame(conn, FrameAttach, EncodeAttach(h))
}
