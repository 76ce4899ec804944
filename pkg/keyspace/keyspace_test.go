package keyspace

import (
	"testing"

	"github.com/cuemby/emberdb/pkg/object"
)

func TestDBBoundsChecking(t *testing.T) {
	ks := New(16, 0)
	if ks.NumDatabases() != 16 {
		t.Fatalf("NumDatabases() = %d, want 16", ks.NumDatabases())
	}
	if _, err := ks.DB(15); err != nil {
		t.Fatalf("DB(15) unexpected error: %v", err)
	}
	if _, err := ks.DB(16); err == nil {
		t.Fatalf("DB(16) expected out-of-range error")
	}
	if _, err := ks.DB(-1); err == nil {
		t.Fatalf("DB(-1) expected out-of-range error")
	}
}

func TestFlushAllEmptiesEveryDatabase(t *testing.T) {
	ks := New(2, 0)
	db0, _ := ks.DB(0)
	db1, _ := ks.DB(1)
	db0.Insert("a", object.NewString([]byte("1")))
	db1.Insert("b", object.NewString([]byte("2")))
	ks.FlushAll()
	if !db0.Empty() || !db1.Empty() {
		t.Fatalf("expected every database emptied by FlushAll")
	}
}
