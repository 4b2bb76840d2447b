// Package waitfd blocks the calling goroutine on "a file descriptor is
// readable, or a timeout elapses" — the primitive the logger's protocol
// loop uses to interleave socket reads with its silence/ping timers
// without spinning a second goroutine per connection.
package waitfd

import (
	"golang.org/x/sys/unix"
)

// Result reports why Wait returned.
type Result int

const (
	// Timeout means the descriptor was not seen readable: the requested
	// duration elapsed, or the wait was interrupted by a signal (EINTR)
	// before it did.
	Timeout Result = iota
	// FdReady means the descriptor became readable before the timeout.
	FdReady
)

// Wait blocks until fd is readable or timeoutMs milliseconds have
// elapsed, whichever comes first. A negative timeoutMs blocks
// indefinitely until the fd is ready.
func Wait(fd int, timeoutMs int) (Result, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return Timeout, nil
		}
		return Timeout, err
	}
	if n == 0 {
		return Timeout, nil
	}
	if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		return FdReady, nil
	}
	return Timeout, nil
}
