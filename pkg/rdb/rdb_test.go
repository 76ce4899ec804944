package rdb

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
)

func TestSaveLoadRoundTripAllTypes(t *testing.T) {
	ks := keyspace.New(2, 0)
	db0, _ := ks.DB(0)
	db1, _ := ks.DB(1)

	db0.Insert("greeting", object.NewString([]byte("hello world")))
	db0.Insert("counter", object.NewString([]byte("42")))

	list := object.NewList()
	list.List().PushBack(object.NewString([]byte("a")))
	list.List().PushBack(object.NewString([]byte("b")))
	db0.Insert("mylist", list)

	set := object.NewSet()
	set.Set()["x"] = object.NewString([]byte("x"))
	set.Set()["y"] = object.NewString([]byte("y"))
	db1.Insert("myset", set)

	path := filepath.Join(t.TempDir(), "dump.rdb")
	sv := New(ks, path)
	if err := sv.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := keyspace.New(2, 0)
	if err := Load(loaded, path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ldb0, _ := loaded.DB(0)
	v, ok := ldb0.Peek("greeting")
	if !ok || string(v.Bytes()) != "hello world" {
		t.Fatalf("greeting = %v, %v", v, ok)
	}
	v, ok = ldb0.Peek("counter")
	if !ok || string(v.Bytes()) != "42" {
		t.Fatalf("counter = %v, %v", v, ok)
	}
	v, ok = ldb0.Peek("mylist")
	if !ok {
		t.Fatalf("mylist missing")
	}
	var got []string
	for e := v.List().Front(); e != nil; e = e.Next() {
		got = append(got, string(e.Value.(*object.Value).Bytes()))
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("mylist = %v", got)
	}

	ldb1, _ := loaded.DB(1)
	v, ok = ldb1.Peek("myset")
	if !ok || len(v.Set()) != 2 {
		t.Fatalf("myset = %v, %v", v, ok)
	}
}

func TestSaveLoadRoundTripExpiry(t *testing.T) {
	ks := keyspace.New(1, 0)
	db, _ := ks.DB(0)
	db.Insert("soon", object.NewString([]byte("bye")))
	future := time.Now().Add(time.Hour)
	db.SetExpire("soon", future)

	path := filepath.Join(t.TempDir(), "dump.rdb")
	if err := New(ks, path).Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := keyspace.New(1, 0)
	if err := Load(loaded, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ldb, _ := loaded.DB(0)
	when, ok := ldb.GetExpire("soon")
	if !ok {
		t.Fatalf("expected expiry to survive round trip")
	}
	if when.Unix() != future.Unix() {
		t.Fatalf("expire = %v, want %v", when, future)
	}
}

func TestLoadDeletesAlreadyExpiredKey(t *testing.T) {
	ks := keyspace.New(1, 0)
	db, _ := ks.DB(0)
	db.Insert("stale", object.NewString([]byte("v")))
	db.SetExpire("stale", time.Now().Add(-time.Hour))

	path := filepath.Join(t.TempDir(), "dump.rdb")
	if err := New(ks, path).Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := keyspace.New(1, 0)
	if err := Load(loaded, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ldb, _ := loaded.DB(0)
	if _, ok := ldb.Peek("stale"); ok {
		t.Fatalf("expected already-expired key to be dropped on load")
	}
}

func TestIntegerEncodingRoundTrips(t *testing.T) {
	values := []string{"0", "42", "-1", "127", "-128", "128", "32767", "-32768", "32768", "2147483647", "-2147483648"}
	for _, want := range values {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := writeStringV1(w, []byte(want)); err != nil {
			t.Fatalf("write %q: %v", want, err)
		}
		w.Flush()
		got, err := readStringV1(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("read %q: %v", want, err)
		}
		if string(got) != want {
			t.Fatalf("round trip %q -> %q", want, got)
		}
	}
}

func TestNonCanonicalIntegerStringsAreStoredRaw(t *testing.T) {
	// Leading zero and explicit "+" are not canonical decimal renderings,
	// so they must survive as raw bytes rather than being reinterpreted
	// through the integer encoding.
	for _, want := range []string{"007", "+5", " 5", "5 "} {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := writeStringV1(w, []byte(want)); err != nil {
			t.Fatalf("write %q: %v", want, err)
		}
		w.Flush()
		got, err := readStringV1(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("read %q: %v", want, err)
		}
		if string(got) != want {
			t.Fatalf("round trip %q -> %q", want, got)
		}
	}
}

func TestLZFEncodingRoundTripsLongStrings(t *testing.T) {
	want := strings.Repeat("abcdefgh", 50)
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeStringV1(w, []byte(want)); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Flush()

	first := buf.Bytes()[0]
	if first>>6 != lenModeEncode || first&0x3F != encLZF {
		t.Fatalf("expected a highly repetitive long string to compress, got tag 0x%02x", first)
	}

	got, err := readStringV1(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != want {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestLegacyVersion0LoadCompatibility(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.rdb")

	var buf bytes.Buffer
	buf.WriteString("REDIS0000")
	w := bufio.NewWriter(&buf)
	w.WriteByte(markerSelectDB)
	writeLength(w, 0)
	w.WriteByte(typeString)
	writeStringV0(w, []byte("k"))
	writeStringV0(w, []byte("v"))
	w.WriteByte(markerEOF)
	w.Flush()

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing legacy fixture: %v", err)
	}

	ks := keyspace.New(1, 0)
	if err := Load(ks, path); err != nil {
		t.Fatalf("Load legacy snapshot: %v", err)
	}
	db, _ := ks.DB(0)
	v, ok := db.Peek("k")
	if !ok || string(v.Bytes()) != "v" {
		t.Fatalf("k = %v, %v", v, ok)
	}
}

func TestLoadRejectsDuplicateKeyWithinDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.rdb")

	var buf bytes.Buffer
	buf.WriteString("REDIS0001")
	w := bufio.NewWriter(&buf)
	w.WriteByte(markerSelectDB)
	writeLength(w, 0)
	w.WriteByte(typeString)
	writeStringV1(w, []byte("k"))
	writeStringV1(w, []byte("v1"))
	w.WriteByte(typeString)
	writeStringV1(w, []byte("k"))
	writeStringV1(w, []byte("v2"))
	w.WriteByte(markerEOF)
	w.Flush()

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	ks := keyspace.New(1, 0)
	if err := Load(ks, path); err == nil {
		t.Fatalf("expected duplicate key within a database section to be fatal")
	}
}

func TestBackgroundSaveCompletesAndReleasesReferences(t *testing.T) {
	ks := keyspace.New(1, 0)
	db, _ := ks.DB(0)
	v := object.NewString([]byte("hello"))
	db.Insert("k", v)

	path := filepath.Join(t.TempDir(), "dump.rdb")
	sv := New(ks, path)
	if err := sv.BackgroundSave(); err != nil {
		t.Fatalf("BackgroundSave: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		done, ok, err := sv.PollCompletion()
		if done {
			if !ok {
				t.Fatalf("background save failed: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("background save never completed")
		}
		time.Sleep(time.Millisecond)
	}

	if v.RefCount() != 1 {
		t.Fatalf("refcount after background save completion = %d, want 1", v.RefCount())
	}

	loaded := keyspace.New(1, 0)
	if err := Load(loaded, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ldb, _ := loaded.DB(0)
	got, ok := ldb.Peek("k")
	if !ok || string(got.Bytes()) != "hello" {
		t.Fatalf("k = %v, %v", got, ok)
	}
}
