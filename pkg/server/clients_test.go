package server

import (
	"net"
	"testing"
	"time"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/session"
)

func newPipeSession(t *testing.T, id int64) *session.Session {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close() })
	ks := keyspace.New(1, 0)
	db, err := ks.DB(0)
	if err != nil {
		t.Fatal(err)
	}
	return session.New(id, srv, int(id), db)
}

func TestClientTableCountExcludesReplicasAndMasters(t *testing.T) {
	tbl := newClientTable(func(*session.Session) {})
	ordinary := newPipeSession(t, 1)
	replica := newPipeSession(t, 2)
	replica.Flags.IsReplica = true
	master := newPipeSession(t, 3)
	master.Flags.IsMaster = true

	tbl.add(ordinary)
	tbl.add(replica)
	tbl.add(master)

	if got := tbl.Count(); got != 1 {
		t.Errorf("expected Count 1, got %d", got)
	}
	if got := tbl.ReplicaCount(); got != 1 {
		t.Errorf("expected ReplicaCount 1, got %d", got)
	}
}

func TestClientTableBlockedCount(t *testing.T) {
	tbl := newClientTable(func(*session.Session) {})
	blocked := newPipeSession(t, 1)
	blocked.PendingBulk = 10
	idle := newPipeSession(t, 2)

	tbl.add(blocked)
	tbl.add(idle)

	if got := tbl.BlockedCount(); got != 1 {
		t.Errorf("expected BlockedCount 1, got %d", got)
	}
}

func TestClientTableCloseIdleInvokesCloseFnAndRemoves(t *testing.T) {
	var closed []*session.Session
	var tbl *clientTable
	tbl = newClientTable(func(s *session.Session) {
		closed = append(closed, s)
		tbl.remove(s)
	})

	stale := newPipeSession(t, 1)
	stale.Touch()
	stale.LastActivity = time.Now().Add(-time.Hour)
	fresh := newPipeSession(t, 2)

	tbl.add(stale)
	tbl.add(fresh)

	n := tbl.CloseIdle(time.Minute)
	if n != 1 {
		t.Fatalf("expected 1 idle session closed, got %d", n)
	}
	if len(closed) != 1 || closed[0] != stale {
		t.Errorf("expected the stale session passed to closeFn, got %v", closed)
	}
	if len(tbl.sessions) != 1 {
		t.Errorf("expected only the fresh session left, got %d entries", len(tbl.sessions))
	}
}
