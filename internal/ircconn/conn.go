package ircconn

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"syscall"

	irc "gopkg.in/irc.v3"

	"github.com/rcowham/irclogd/internal/waitfd"
)

// Conn is a single TLS-wrapped IRC socket: a buffered line reader paired
// with the fd-level scheduling helper in internal/waitfd, so the caller
// can block on "next line or deadline" without a goroutine per
// connection (spec §5's single-threaded process model).
type Conn struct {
	nc net.Conn
	fd int
	r  *bufio.Reader
	w  *irc.Writer
}

// Dial opens a TLS connection to addr ("host:port") and wraps it.
func Dial(addr string, tlsConfig *tls.Config) (*Conn, error) {
	nc, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("ircconn: dialing %s: %w", addr, err)
	}
	fd, err := rawFd(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ircconn: extracting socket descriptor: %w", err)
	}
	return &Conn{nc: nc, fd: fd, r: bufio.NewReader(nc), w: irc.NewWriter(nc)}, nil
}

// rawFd descends through the *tls.Conn wrapper to the underlying TCP
// socket's file descriptor, for use with waitfd.Wait.
func rawFd(nc net.Conn) (int, error) {
	type netConner interface {
		NetConn() net.Conn
	}
	under := nc
	if tc, ok := nc.(netConner); ok {
		under = tc.NetConn()
	}
	sc, ok := under.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("ircconn: connection type %T exposes no raw descriptor", under)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctrlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// Close releases the socket.
func (c *Conn) Close() error { return c.nc.Close() }

// Send encodes and writes one outbound message.
func (c *Conn) Send(m *irc.Message) error { return c.w.Write(m) }

// NextLine waits until either a full line is available or deadlineUnix
// (seconds since the epoch, per internal/clock) is reached. When data is
// already buffered from a prior read it is returned immediately without
// polling. The returned timestamp is when the line was actually read,
// for the state machine's OnRead/PRIVMSG bookkeeping.
func (c *Conn) NextLine(deadlineUnix int64, now func() int64) (line string, timedOut bool, readAt int64, err error) {
	for c.r.Buffered() == 0 {
		n := now()
		if n >= deadlineUnix {
			return "", true, n, nil
		}
		res, werr := waitfd.Wait(c.fd, int((deadlineUnix-n)*1000))
		if werr != nil {
			return "", false, n, fmt.Errorf("ircconn: waiting for socket: %w", werr)
		}
		if res == waitfd.Timeout {
			// Wait also reports Timeout when interrupted by a signal, so
			// re-check the deadline at the top of the loop.
			continue
		}
		// res == waitfd.FdReady: the fd has data to read, but Wait only
		// polls readability, it doesn't fill c.r's buffer. Fall through
		// to ReadString below instead of re-polling a never-changing
		// "ready" fd.
		break
	}

	raw, rerr := c.r.ReadString('\n')
	readAt = now()
	if rerr != nil {
		return "", false, readAt, fmt.Errorf("ircconn: reading line: %w", rerr)
	}
	return strings.TrimRight(raw, "\r\n"), false, readAt, nil
}
