package replication

import (
	"fmt"
	"net"
	"testing"

	"github.com/cuemby/emberdb/pkg/command"
	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/session"
)

// setLine builds SET's bulk-framed wire form: the value argument is
// replaced on the command line by its own byte length, followed by the
// raw value on the next line, matching table.go's FlagBulk contract.
func setLine(key, val string) string {
	return fmt.Sprintf("SET %s %d\r\n%s", key, len(val), val)
}

// runInline executes every inline command in lines against disp/s,
// draining s.QueryBuf exactly as pkg/server's onClientReadable would.
func runInline(t *testing.T, disp *command.Dispatcher, s *session.Session, lines ...string) {
	t.Helper()
	for _, line := range lines {
		s.QueryBuf = append(s.QueryBuf, []byte(line+"\r\n")...)
		if _, err := disp.ProcessBuffer(s); err != nil {
			t.Fatalf("ProcessBuffer(%q): %v", line, err)
		}
	}
}

// feedBytes drains every queued reply on s into one byte slice, the
// same bytes a real replica socket would receive from Master.Feed.
func feedBytes(s *session.Session) []byte {
	var out []byte
	for _, v := range s.ReplyQueue {
		out = append(out, v.Bytes()...)
		v.DecrRef()
	}
	s.ReplyQueue = s.ReplyQueue[:0]
	return out
}

// TestFeedConvergesReplicaKeyspace replays a command log fed to a
// Master through a second, independent keyspace and asserts the two
// end up holding identical state — spec.md §4.H's replication
// contract: applying the feed byte-for-byte on the replica reproduces
// the master's writes.
func TestFeedConvergesReplicaKeyspace(t *testing.T) {
	masterKS := keyspace.New(2, 0)
	masterDB0, err := masterKS.DB(0)
	if err != nil {
		t.Fatal(err)
	}
	masterDB1, err := masterKS.DB(1)
	if err != nil {
		t.Fatal(err)
	}

	masterDisp := &command.Dispatcher{KS: masterKS}
	master := NewMaster(masterDisp, &fakeSnapshotter{})
	masterDisp.Repl = master

	replicaLinkSess := newTestSession(t)
	master.replicas[replicaLinkSess] = &replicaLink{sess: replicaLinkSess, lastDB: -1}
	replicaLinkSess.ReplState = session.ReplOnline

	client := newTestSession(t)
	client.DB = masterDB0
	runInline(t, masterDisp, client,
		setLine("alpha", "1"),
		setLine("beta", "hello"),
		`EXPIRE alpha 1000`,
		`DEL beta`,
	)

	client2, srv2 := net.Pipe()
	defer client2.Close()
	other := session.New(2, srv2, 0, masterDB1)
	defer other.Close()
	runInline(t, masterDisp, other,
		setLine("gamma", "on-db-one"),
	)

	feed := feedBytes(replicaLinkSess)
	if len(feed) == 0 {
		t.Fatal("expected Feed to have queued replicated bytes")
	}

	replicaKS := keyspace.New(2, 0)
	replicaDB0, err := replicaKS.DB(0)
	if err != nil {
		t.Fatal(err)
	}
	replicaDisp := &command.Dispatcher{KS: replicaKS}
	replicaSess := newTestSession(t)
	replicaSess.Flags.IsMaster = true
	replicaSess.DB = replicaDB0

	replicaSess.QueryBuf = append(replicaSess.QueryBuf, feed...)
	for len(replicaSess.QueryBuf) > 0 {
		if _, err := replicaDisp.ProcessBuffer(replicaSess); err != nil {
			t.Fatalf("replica ProcessBuffer: %v", err)
		}
	}
	feedBytes(replicaSess) // a master link's replies are discarded, never read

	replicaDB1, err := replicaKS.DB(1)
	if err != nil {
		t.Fatal(err)
	}

	assertSameValue(t, masterDB0, replicaDB0, "alpha")
	assertSameValue(t, masterDB0, replicaDB0, "beta")
	assertSameValue(t, masterDB1, replicaDB1, "gamma")

	if _, ok := replicaDB0.LookupRead("beta"); ok {
		t.Error("expected DEL beta to have converged on the replica")
	}
	if _, exp := replicaDB0.GetExpire("alpha"); !exp {
		t.Error("expected EXPIRE alpha to have converged on the replica")
	}
}

func assertSameValue(t *testing.T, masterDB, replicaDB *keyspace.Database, key string) {
	t.Helper()
	mv, mok := masterDB.LookupRead(key)
	rv, rok := replicaDB.LookupRead(key)
	if mok != rok {
		t.Fatalf("key %q: master present=%v, replica present=%v", key, mok, rok)
	}
	if !mok {
		return
	}
	if string(mv.Bytes()) != string(rv.Bytes()) {
		t.Errorf("key %q: master=%q, replica=%q", key, mv.Bytes(), rv.Bytes())
	}
}
