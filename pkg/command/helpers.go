package command

import (
	"strconv"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/resp"
	"github.com/cuemby/emberdb/pkg/session"
)

func enqueueBytes(s *session.Session, b []byte) {
	v := object.NewString(b)
	s.Enqueue(v)
	v.DecrRef()
}

func replyStatus(s *session.Session, msg string)    { enqueueBytes(s, resp.Status(msg)) }
func replyErrorMsg(s *session.Session, msg string)   { enqueueBytes(s, resp.Error(msg)) }
func replyInt(s *session.Session, n int64)           { enqueueBytes(s, resp.Int(n)) }
func replyBulk(s *session.Session, b []byte)         { enqueueBytes(s, resp.Bulk(b)) }
func replyNullBulk(s *session.Session)               { enqueueBytes(s, resp.NullBulk()) }
func replyMultiBulkHeader(s *session.Session, n int) { enqueueBytes(s, resp.MultiBulkHeader(n)) }
func replyNullMultiBulk(s *session.Session)          { enqueueBytes(s, resp.NullMultiBulk()) }

// arg returns the raw bytes of the i'th command argument (0 is the
// command name itself, matching original_source/redis.c's argv[0]).
func arg(s *session.Session, i int) []byte { return s.Args[i].Bytes() }

func argStr(s *session.Session, i int) string { return string(arg(s, i)) }

func argInt(s *session.Session, i int) (int64, error) {
	n, err := strconv.ParseInt(argStr(s, i), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

// clampIndex resolves the negative-index convention (count from the
// tail) shared by LINDEX/LSET/LRANGE/LTRIM. It does not clamp: the
// result can still fall outside [0,n), and callers bound it themselves.
func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return i
}

// fetchTyped looks a key up for reading and enforces its type, the
// shape almost every command in string.go/list.go/set.go needs first.
func fetchTyped(db *keyspace.Database, key string, want object.Type) (*object.Value, bool, error) {
	v, ok := db.LookupRead(key)
	if !ok {
		return nil, false, nil
	}
	if v.Type() != want {
		return nil, true, ErrWrongType
	}
	return v, true, nil
}

// fetchTypedForWrite is fetchTyped but through lookup_write, clearing
// any TTL before the caller overwrites the key (spec.md §4.B).
func fetchTypedForWrite(db *keyspace.Database, key string, want object.Type) (*object.Value, bool, error) {
	v, ok := db.LookupWrite(key)
	if !ok {
		return nil, false, nil
	}
	if v.Type() != want {
		return nil, true, ErrWrongType
	}
	return v, true, nil
}
