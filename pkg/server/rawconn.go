package server

import (
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// rawConn adapts an already-accepted, non-blocking socket fd to
// net.Conn, the type session.Session.Conn expects. pkg/reactor manages
// readability and writability for this fd directly through epoll;
// rawConn only needs Write and Close (the two methods pkg/session
// actually calls) to operate on that same fd, without the extra
// duplication net.FileConn would introduce.
type rawConn struct {
	fd int
}

func newRawConn(fd int) *rawConn { return &rawConn{fd: fd} }

// Read is used directly by the server's readable callback via unix.Read
// on the same fd; it's implemented here only so rawConn satisfies
// net.Conn for callers (pkg/replication's SessionRegistrar path) that
// expect a full connection value.
func (c *rawConn) Read(b []byte) (int, error) {
	n, err := unix.Read(c.fd, b)
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write reports an EAGAIN from the non-blocking socket as zero bytes
// written with no error, which pkg/session.Drain treats as "stop for
// now, the writable callback will resume" rather than a broken
// connection.
func (c *rawConn) Write(b []byte) (int, error) {
	n, err := unix.Write(c.fd, b)
	if err == unix.EAGAIN {
		return 0, nil
	}
	return n, err
}

func (c *rawConn) Close() error { return unix.Close(c.fd) }

func (c *rawConn) LocalAddr() net.Addr                { return rawAddr{} }
func (c *rawConn) RemoteAddr() net.Addr               { return rawAddr{} }
func (c *rawConn) SetDeadline(time.Time) error        { return nil }
func (c *rawConn) SetReadDeadline(time.Time) error    { return nil }
func (c *rawConn) SetWriteDeadline(time.Time) error   { return nil }

// rawAddr is a placeholder net.Addr: the reactor's raw sockets don't
// carry the peer address through, and nothing in emberdb's command set
// reports it.
type rawAddr struct{}

func (rawAddr) Network() string { return "tcp" }
func (rawAddr) String() string  { return "" }
