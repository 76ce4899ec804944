/*
Package reactor is emberdb's single-threaded event loop: one
epoll-backed poller that multiplexes the listening socket, every client
fd, and a periodic ~1 s timer (spec.md §5's "one event loop per
process" scheduling model).

Run blocks the calling goroutine and never lets two callbacks execute
concurrently — Loop is the reason pkg/keyspace, pkg/session and
pkg/replication need no locks of their own (SPEC_FULL.md §5). Using
epoll directly through golang.org/x/sys/unix, rather than a
goroutine-per-connection net.Listener loop, is what preserves that
single-threaded-cooperative invariant: a goroutine per connection would
let the Go scheduler run client callbacks in parallel, which spec.md §5
explicitly rules out.
*/
package reactor
