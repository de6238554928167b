//go:build linux

package queue

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/openhydrogen/hydrogen/lib/shm"
)

// writeAttachRights sends an attach frame with the file descriptor backing
// the shared buffer piggybacked as SCM_RIGHTS ancillary data, so consumers
// on the same host can mmap the buffer directly. Falls back to a plain
// attach frame for tcp connections and non-memfd allocators.
func writeAttachRights(conn net.Conn, alloc shm.IAllocator, h shm.Handle) error {
	uc, isUnix := conn.(*net.UnixConn)
	fd, hasFd := shm.Fd(alloc, h)
	if !isUnix || !hasFd {
		return WriteFrame(conn, FrameAttach, EncodeAttach(h))
	}

	frame := make([]byte, 0, frameHeaderSize+16)
	frame = append(frame, FrameAttach, 0, 0, 0, 16)
	frame = append(frame, EncodeAttach(h)...)

	rights := unix.UnixRights(fd)
	_, _, err := uc.WriteMsgUnix(frame, rights, nil)
	return err
}
