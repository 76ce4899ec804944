package command

import (
	"testing"

	"github.com/cuemby/emberdb/pkg/session"
)

func rpushAll(t *testing.T, d *Dispatcher, s *session.Session, key string, values ...string) {
	t.Helper()
	for _, v := range values {
		setArgs(s, "rpush", key, v)
		if err := cmdRPush(d, s); err != nil {
			t.Fatalf("RPUSH %s %s: %v", key, v, err)
		}
		s.ResetArgs()
	}
}

func TestSortNumericAscDesc(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	rpushAll(t, d, s, "l", "3", "1", "2")

	setArgs(s, "sort", "l")
	if err := cmdSort(d, s); err != nil {
		t.Fatalf("SORT: %v", err)
	}
	got := replies(s)
	want := []string{"*3\r\n", "$1\r\n1\r\n", "$1\r\n2\r\n", "$1\r\n3\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SORT asc[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	s.ResetArgs()

	setArgs(s, "sort", "l", "desc")
	cmdSort(d, s)
	got = replies(s)
	want = []string{"*3\r\n", "$1\r\n3\r\n", "$1\r\n2\r\n", "$1\r\n1\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SORT desc[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSortAlpha(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	rpushAll(t, d, s, "l", "banana", "apple", "cherry")

	setArgs(s, "sort", "l", "alpha")
	cmdSort(d, s)
	got := replies(s)
	want := []string{"*3\r\n", "$5\r\napple\r\n", "$6\r\nbanana\r\n", "$6\r\ncherry\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SORT ALPHA[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSortWithoutAlphaOnNonNumericFails(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	rpushAll(t, d, s, "l", "notanumber")

	setArgs(s, "sort", "l")
	if err := cmdSort(d, s); err != ErrNotInteger {
		t.Fatalf("SORT non-numeric error = %v, want ErrNotInteger", err)
	}
}

func TestSortLimitIsPrefixOfFullSort(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	rpushAll(t, d, s, "l", "5", "3", "1", "4", "2")

	setArgs(s, "sort", "l")
	cmdSort(d, s)
	full := replies(s)[1:]
	s.ResetArgs()

	setArgs(s, "sort", "l", "limit", "0", "3")
	cmdSort(d, s)
	limited := replies(s)[1:]

	if len(limited) != 3 {
		t.Fatalf("SORT LIMIT 0 3 returned %d elements, want 3", len(limited))
	}
	for i := range limited {
		if limited[i] != full[i] {
			t.Fatalf("SORT LIMIT element[%d] = %q, want %q (prefix of full sort)", i, limited[i], full[i])
		}
	}
}

func TestSortByPatternWithNoPlaceholderSkipsSorting(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	rpushAll(t, d, s, "l", "3", "1", "2")

	setArgs(s, "sort", "l", "by", "nosort")
	cmdSort(d, s)
	got := replies(s)
	want := []string{"*3\r\n", "$1\r\n3\r\n", "$1\r\n1\r\n", "$1\r\n2\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SORT BY nosort[%d] = %q, want %q (original order preserved)", i, got[i], want[i])
		}
	}
}

func TestSortGetPatternAndHashSign(t *testing.T) {
	db := newDB(t)
	d := newTestDispatcher(nil)
	s := newTestSession(t, db)

	rpushAll(t, d, s, "l", "1", "2")

	setArgs(s, "set", "weight_1", "100")
	cmdSet(d, s)
	s.ResetArgs()
	setArgs(s, "set", "weight_2", "200")
	cmdSet(d, s)
	s.ResetArgs()

	setArgs(s, "sort", "l", "get", "#", "get", "weight_*")
	cmdSort(d, s)
	got := replies(s)
	want := []string{"*4\r\n", "$1\r\n1\r\n", "$3\r\n100\r\n", "$1\r\n2\r\n", "$3\r\n200\r\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SORT GET # GET weight_*[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
