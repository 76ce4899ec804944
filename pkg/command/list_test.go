package command

import "testing"

func TestRPushLRangeLTrim(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	for _, v := range []string{"a", "b", "c", "d"} {
		setArgs(s, "rpush", "mylist", v)
		if err := cmdRPush(d, s); err != nil {
			t.Fatalf("RPUSH %s: %v", v, err)
		}
		s.ResetArgs()
	}

	setArgs(s, "llen", "mylist")
	cmdLLen(d, s)
	if got := singleReply(t, s); got != ":4\r\n" {
		t.Fatalf("LLEN = %q, want :4", got)
	}
	s.ResetArgs()

	setArgs(s, "lrange", "mylist", "0", "-1")
	cmdLRange(d, s)
	got := replies(s)
	want := []string{"*4\r\n", "$1\r\na\r\n", "$1\r\nb\r\n", "$1\r\nc\r\n", "$1\r\nd\r\n"}
	if len(got) != len(want) {
		t.Fatalf("LRANGE 0 -1 = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("LRANGE[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	s.ResetArgs()

	setArgs(s, "ltrim", "mylist", "1", "2")
	cmdLTrim(d, s)
	s.ResetArgs()

	setArgs(s, "lrange", "mylist", "0", "-1")
	cmdLRange(d, s)
	got = replies(s)
	want = []string{"*2\r\n", "$1\r\nb\r\n", "$1\r\nc\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("LRANGE after LTRIM[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLPopRPopEmptyDeletesKey(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	setArgs(s, "rpush", "q", "only")
	cmdRPush(d, s)
	s.ResetArgs()

	setArgs(s, "lpop", "q")
	cmdLPop(d, s)
	if got := singleReply(t, s); got != "$4\r\nonly\r\n" {
		t.Fatalf("LPOP = %q, want $4\\r\\nonly\\r\\n", got)
	}
	s.ResetArgs()

	if _, ok := db.Peek("q"); ok {
		t.Fatalf("expected key q deleted after last LPOP")
	}
}

func TestLRemPositiveAndNegativeCount(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	for _, v := range []string{"a", "b", "a", "c", "a"} {
		setArgs(s, "rpush", "l", v)
		cmdRPush(d, s)
		s.ResetArgs()
	}

	setArgs(s, "lrem", "l", "2", "a")
	cmdLRem(d, s)
	if got := singleReply(t, s); got != ":2\r\n" {
		t.Fatalf("LREM 2 a = %q, want :2", got)
	}
	s.ResetArgs()

	setArgs(s, "lrange", "l", "0", "-1")
	cmdLRange(d, s)
	got := replies(s)
	want := []string{"*3\r\n", "$1\r\nb\r\n", "$1\r\nc\r\n", "$1\r\na\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after LREM[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	s.ResetArgs()

	setArgs(s, "lrem", "l", "-1", "a")
	cmdLRem(d, s)
	if got := singleReply(t, s); got != ":1\r\n" {
		t.Fatalf("LREM -1 a = %q, want :1", got)
	}
	s.ResetArgs()

	setArgs(s, "lrange", "l", "0", "-1")
	cmdLRange(d, s)
	got = replies(s)
	want = []string{"*2\r\n", "$1\r\nb\r\n", "$1\r\nc\r\n"}
	if len(got) != len(want) {
		t.Fatalf("after LREM -1 = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after LREM -1[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLIndexLSetOutOfRange(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	setArgs(s, "rpush", "l", "x")
	cmdRPush(d, s)
	s.ResetArgs()

	setArgs(s, "lindex", "l", "5")
	if err := cmdLIndex(d, s); err != nil {
		t.Fatalf("LINDEX: %v", err)
	}
	if got := singleReply(t, s); got != "$-1\r\n" {
		t.Fatalf("LINDEX out of range = %q, want $-1", got)
	}
	s.ResetArgs()

	setArgs(s, "lset", "l", "5", "y")
	if err := cmdLSet(d, s); err != ErrOutOfRange {
		t.Fatalf("LSET out of range error = %v, want ErrOutOfRange", err)
	}
}

func TestLPushOnWrongTypeFails(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	setArgs(s, "set", "k", "v")
	cmdSet(d, s)
	s.ResetArgs()

	setArgs(s, "lpush", "k", "x")
	if err := cmdLPush(d, s); err != ErrWrongType {
		t.Fatalf("LPUSH on string key error = %v, want ErrWrongType", err)
	}
}
