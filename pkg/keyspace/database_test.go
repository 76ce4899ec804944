package keyspace

import (
	"testing"
	"time"

	"github.com/cuemby/emberdb/pkg/object"
)

func newTestDB() *Database {
	return newDatabase(0, object.NewPool(0))
}

func TestExpiryInvariant(t *testing.T) {
	d := newTestDB()
	d.Insert("k", object.NewString([]byte("v")))
	if !d.SetExpire("k", time.Now().Add(time.Hour)) {
		t.Fatalf("SetExpire on existing key should succeed")
	}
	for key := range d.expiry {
		if _, ok := d.main[key]; !ok {
			t.Fatalf("expiry map key %q missing from main map", key)
		}
	}
}

func TestSetExpireFailsOnAbsentKey(t *testing.T) {
	d := newTestDB()
	if d.SetExpire("missing", time.Now().Add(time.Hour)) {
		t.Fatalf("SetExpire on absent key should fail")
	}
}

func TestLookupReadExpiresLazily(t *testing.T) {
	d := newTestDB()
	d.Insert("k", object.NewString([]byte("v")))
	d.SetExpire("k", time.Now().Add(-time.Second))

	if _, ok := d.LookupRead("k"); ok {
		t.Fatalf("expected expired key to miss on read")
	}
	if d.Size() != 0 {
		t.Fatalf("expected expired key to be deleted, Size() = %d", d.Size())
	}
}

func TestLookupWriteClearsTTLWithoutDeletingKey(t *testing.T) {
	d := newTestDB()
	d.Insert("k", object.NewString([]byte("v")))
	d.SetExpire("k", time.Now().Add(time.Hour))

	v, ok := d.LookupWrite("k")
	if !ok || string(v.Bytes()) != "v" {
		t.Fatalf("LookupWrite should still return the value")
	}
	if _, hasTTL := d.GetExpire("k"); hasTTL {
		t.Fatalf("LookupWrite should have cleared the TTL")
	}
	if _, ok := d.main["k"]; !ok {
		t.Fatalf("LookupWrite must not delete the key itself")
	}
}

func TestDeleteReleasesValue(t *testing.T) {
	d := newTestDB()
	v := object.NewString([]byte("v"))
	v.IncrRef()
	d.Insert("k", v)
	if !d.Delete("k") {
		t.Fatalf("Delete should report true for an existing key")
	}
	if v.RefCount() != 1 {
		t.Fatalf("RefCount() after delete = %d, want 1 (caller's own ref remains)", v.RefCount())
	}
	if d.Delete("k") {
		t.Fatalf("second Delete should report false")
	}
}

func TestSampleExpirationsReapsPastTTLs(t *testing.T) {
	d := newTestDB()
	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		d.Insert(key, object.NewString([]byte("v")))
		d.SetExpire(key, time.Now().Add(-time.Minute))
	}
	reaped := d.SampleExpirations()
	if reaped != 10 {
		t.Fatalf("SampleExpirations() = %d, want 10", reaped)
	}
	if d.Size() != 0 {
		t.Fatalf("expected all expired keys reaped, Size() = %d", d.Size())
	}
}

func TestRandomKeySkipsExpired(t *testing.T) {
	d := newTestDB()
	d.Insert("live", object.NewString([]byte("v")))
	d.Insert("dead", object.NewString([]byte("v")))
	d.SetExpire("dead", time.Now().Add(-time.Minute))

	for i := 0; i < 20; i++ {
		key, ok := d.RandomKey()
		if !ok {
			continue
		}
		if key != "live" {
			t.Fatalf("RandomKey() returned expired key %q", key)
		}
	}
}

func TestFlushReleasesAllValues(t *testing.T) {
	d := newTestDB()
	d.Insert("a", object.NewString([]byte("1")))
	d.Insert("b", object.NewString([]byte("2")))
	d.Flush()
	if !d.Empty() {
		t.Fatalf("expected empty database after Flush")
	}
}
