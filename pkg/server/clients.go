package server

import (
	"time"

	"github.com/cuemby/emberdb/pkg/session"
)

// clientTable is the in-process registry of connected sessions, keyed
// by fd. It implements pkg/maintenance.ClientTable and backs the
// connected-clients and blocked-clients figures INFO and pkg/metrics
// report, neither of which pkg/command or pkg/maintenance may own
// directly (spec.md §9's narrow-interface rule).
//
// closeFn does the actual teardown (reactor.Unregister, s.Close,
// replication bookkeeping); clientTable only decides which sessions
// qualify, since it has no reference to the reactor loop.
type clientTable struct {
	sessions map[int]*session.Session
	closeFn  func(*session.Session)
}

func newClientTable(closeFn func(*session.Session)) *clientTable {
	return &clientTable{sessions: make(map[int]*session.Session), closeFn: closeFn}
}

func (t *clientTable) add(s *session.Session)    { t.sessions[s.FD] = s }
func (t *clientTable) remove(s *session.Session) { delete(t.sessions, s.FD) }

// Count reports ordinary clients, excluding replica and master links
// (spec.md §6.4's connected-clients gauge definition).
func (t *clientTable) Count() int {
	n := 0
	for _, s := range t.sessions {
		if !s.Flags.IsReplica && !s.Flags.IsMaster {
			n++
		}
	}
	return n
}

// BlockedCount reports sessions currently mid-bulk-argument.
func (t *clientTable) BlockedCount() int {
	n := 0
	for _, s := range t.sessions {
		if s.PendingBulk != session.PendingBulkNone {
			n++
		}
	}
	return n
}

// ReplicaCount reports sessions attached as replicas, for
// command.Dispatcher.ReplicaCount and the INFO connected_slaves field.
func (t *clientTable) ReplicaCount() int {
	n := 0
	for _, s := range t.sessions {
		if s.Flags.IsReplica {
			n++
		}
	}
	return n
}

// CloseIdle implements pkg/maintenance.ClientTable, closing every
// ordinary client idle past timeout. Replica and master links are
// exempt (session.ShouldIdleTimeout already encodes this).
func (t *clientTable) CloseIdle(timeout time.Duration) int {
	now := time.Now()
	var stale []*session.Session
	for _, s := range t.sessions {
		if s.ShouldIdleTimeout(now, timeout) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		t.closeFn(s)
	}
	return len(stale)
}
