/*
Package server is the process-wide wiring point spec.md §9 calls "the
server singleton (config + keyspace array + client list + replication
state + stats + timers)": it owns the listening socket, the client
table, and every concrete collaborator pkg/command, pkg/maintenance,
and pkg/replication only see through narrow interfaces, and threads
them all through pkg/reactor.Loop's single goroutine.

Sockets are raw, non-blocking file descriptors managed directly through
golang.org/x/sys/unix rather than net.Listener/net.Conn, matching
pkg/reactor's own choice to bypass the standard library's netpoller so
that no Go-runtime-managed goroutine can ever run a callback
concurrently with the reactor loop. rawConn adapts one such fd to the
net.Conn interface pkg/session.Session.Conn expects, without the extra
file-descriptor duplication net.FileConn would introduce.

The Prometheus metrics HTTP listener is the one deliberate exception:
it runs on the standard net/http server, on its own goroutine, against
its own listener, per SPEC_FULL.md §6.4, kept independent of the
reactor loop so a slow scrape can never stall command dispatch.
*/
package server
