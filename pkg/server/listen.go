package server

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen opens bind:port through the standard net package — which
// already handles address parsing, dual-stack binding, and DNS-free
// literal addresses correctly — and then extracts the underlying file
// descriptor for direct epoll management, so the reactor never hands
// socket I/O back to the Go runtime's own netpoller. The returned
// *os.File must be kept alive for as long as fd is in use: closing or
// garbage-collecting it would close the duplicated descriptor out from
// under the reactor.
func listen(bind string, port int) (fd int, keepAlive *os.File, err error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bind, port))
	if err != nil {
		return 0, nil, fmt.Errorf("server: listen: %w", err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return 0, nil, fmt.Errorf("server: listener is not TCP")
	}

	file, err := tcpLn.File()
	// tcpLn.File dup's the descriptor; closing tcpLn after this point
	// does not affect the dup, per the net package's documented contract.
	tcpLn.Close()
	if err != nil {
		return 0, nil, fmt.Errorf("server: extract listener fd: %w", err)
	}

	lfd := int(file.Fd())
	if err := unix.SetNonblock(lfd, true); err != nil {
		file.Close()
		return 0, nil, fmt.Errorf("server: set listener non-blocking: %w", err)
	}
	return lfd, file, nil
}

// acceptAll drains every connection currently pending on listenFD,
// returning the raw, non-blocking fd of each. The reactor is
// level-triggered, so stopping at the first EAGAIN is sufficient: it
// will fire OnReadable again if more connections arrive.
func acceptAll(listenFD int) ([]int, error) {
	var fds []int
	for {
		cfd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return fds, nil
			}
			if err == unix.ECONNABORTED || err == unix.EINTR {
				continue
			}
			return fds, fmt.Errorf("server: accept: %w", err)
		}
		fds = append(fds, cfd)
	}
}
