package command

import (
	"net"
	"testing"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

// newTestSession builds a Session backed by an in-memory net.Pipe, so
// Close() has a real net.Conn to tear down even though these tests
// never exercise the wire.
func newTestSession(t *testing.T, db *keyspace.Database) *session.Session {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close() })
	s := session.New(1, srv, 0, db)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDispatcher(ks *keyspace.Keyspace) *Dispatcher {
	return &Dispatcher{KS: ks}
}

// setArgs populates s.Args the way Dispatcher.ProcessBuffer does:
// one refcount-1 *object.Value per token, command name included at
// index 0. It also releases any replies still queued from earlier
// steps, so each step's assertions see only its own command's replies.
func setArgs(s *session.Session, tokens ...string) {
	for _, v := range s.ReplyQueue {
		v.DecrRef()
	}
	s.ReplyQueue = s.ReplyQueue[:0]
	s.SentOffset = 0
	s.Args = make([]*object.Value, len(tokens))
	for i, tok := range tokens {
		s.Args[i] = object.NewString([]byte(tok))
	}
}

// replies decodes every queued reply back into its raw wire bytes, for
// tests that just want to assert on the resulting RESP frames.
func replies(s *session.Session) []string {
	out := make([]string, len(s.ReplyQueue))
	for i, v := range s.ReplyQueue {
		out[i] = string(v.Bytes())
	}
	return out
}

func singleReply(t *testing.T, s *session.Session) string {
	t.Helper()
	r := replies(s)
	if len(r) != 1 {
		t.Fatalf("expected exactly one queued reply, got %d: %v", len(r), r)
	}
	return r[0]
}

func newDB(t *testing.T) *keyspace.Database {
	t.Helper()
	ks := keyspace.New(1, 0)
	db, err := ks.DB(0)
	if err != nil {
		t.Fatalf("DB(0): %v", err)
	}
	return db
}
