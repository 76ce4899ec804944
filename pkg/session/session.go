package session

import (
	"net"
	"os"
	"time"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
)

// ReplState is a replica session's place in the bulk-transfer state
// machine (spec.md §3's fourth invariant).
type ReplState int

const (
	ReplNone ReplState = iota
	ReplWaitDumpStart
	ReplWaitDumpEnd
	ReplSendingBulk
	ReplOnline
)

// Flags bundle the boolean facets of a session named in spec.md §4.C.
type Flags struct {
	CloseAfterReply bool
	IsReplica       bool
	IsMaster        bool
	IsMonitor       bool
}

// PendingBulkNone is the sentinel pending_bulk value meaning the
// session is in inline framing mode, not mid-bulk-read.
const PendingBulkNone = -1

// Session is one connection's full protocol and replication state.
type Session struct {
	ID   int64
	Conn net.Conn
	FD   int

	DB *keyspace.Database

	QueryBuf    []byte
	Args        []*object.Value
	PendingBulk int

	ReplyQueue   []*object.Value
	SentOffset   int // bytes of ReplyQueue[0] already written
	LastActivity time.Time

	Flags         Flags
	Authenticated bool
	ReplState     ReplState

	// Populated only while IsReplica and ReplState == ReplSendingBulk.
	DumpFile   *os.File
	DumpOffset int64
	DumpSize   int64
}

// New creates a session in inline-framing mode with no arguments or
// queued replies, attached to db.
func New(id int64, conn net.Conn, fd int, db *keyspace.Database) *Session {
	return &Session{
		ID:           id,
		Conn:         conn,
		FD:           fd,
		DB:           db,
		PendingBulk:  PendingBulkNone,
		LastActivity: time.Now(),
	}
}

// Touch records interaction for idle-timeout accounting.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// IdleFor reports how long the session has gone without activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// ShouldIdleTimeout reports whether the session should be closed for
// inactivity, per spec.md §4.C: replicas and masters are exempt, and a
// maxIdle of zero disables the check.
func (s *Session) ShouldIdleTimeout(now time.Time, maxIdle time.Duration) bool {
	if maxIdle <= 0 {
		return false
	}
	if s.Flags.IsReplica || s.Flags.IsMaster {
		return false
	}
	return s.IdleFor(now) > maxIdle
}

// ResetArgs clears the argument vector and bulk state after a command
// has been dispatched, decrementing the refcount of each argument value
// (dispatch step 8 in spec.md §4.D).
func (s *Session) ResetArgs() {
	for _, v := range s.Args {
		v.DecrRef()
	}
	s.Args = s.Args[:0]
	s.PendingBulk = PendingBulkNone
}

// Enqueue appends a reply value to the session's reply queue, taking a
// reference to it.
func (s *Session) Enqueue(v *object.Value) {
	s.ReplyQueue = append(s.ReplyQueue, v.IncrRef())
}

// coalesceThreshold and coalesceMinCount gate spec.md §4.C's rule:
// "if multiple small replies are queued (>1) and total < 1 KiB, they
// are first coalesced into a single buffer to reduce syscalls."
const (
	coalesceThreshold = 1024
	coalesceMinCount  = 1
)

// ShouldCoalesce reports whether the current reply queue meets the
// small-multi-reply coalescing threshold.
func (s *Session) ShouldCoalesce() bool {
	if len(s.ReplyQueue) <= coalesceMinCount {
		return false
	}
	total := 0
	for _, v := range s.ReplyQueue {
		if v.Type() != object.TypeString {
			return false
		}
		total += len(v.Bytes())
		if total >= coalesceThreshold {
			return false
		}
	}
	return true
}

// drainBudget bounds how many bytes a single writable-event drain may
// flush to one client, so one slow-draining socket can't starve its
// siblings (spec.md §4.C's ~64 KiB fairness share).
const drainBudget = 64 * 1024

// Drain writes as much of the queued replies as the connection accepts
// within the fairness budget, advancing SentOffset and removing fully
// sent replies. It returns the number of bytes written and whether the
// reply queue is now empty.
func (s *Session) Drain() (written int, empty bool, err error) {
	for written < drainBudget && len(s.ReplyQueue) > 0 {
		head := s.ReplyQueue[0]
		buf := head.Bytes()[s.SentOffset:]
		if len(buf) == 0 {
			s.popHead()
			continue
		}
		if len(buf) > drainBudget-written {
			buf = buf[:drainBudget-written]
		}
		n, werr := s.Conn.Write(buf)
		written += n
		s.SentOffset += n
		if werr != nil {
			return written, len(s.ReplyQueue) == 0, werr
		}
		if s.SentOffset >= len(head.Bytes()) {
			s.popHead()
		} else {
			break
		}
	}
	return written, len(s.ReplyQueue) == 0, nil
}

func (s *Session) popHead() {
	s.ReplyQueue[0].DecrRef()
	s.ReplyQueue = s.ReplyQueue[1:]
	s.SentOffset = 0
}

// Close releases every queued reply and argument value and closes the
// underlying connection.
func (s *Session) Close() error {
	for _, v := range s.ReplyQueue {
		v.DecrRef()
	}
	s.ReplyQueue = nil
	for _, v := range s.Args {
		v.DecrRef()
	}
	s.Args = nil
	if s.DumpFile != nil {
		s.DumpFile.Close()
		s.DumpFile = nil
	}
	return s.Conn.Close()
}
