package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
)

const (
	magic          = "REDIS"
	currentVersion = 1
	maxVersion     = 1
)

// Saver implements pkg/command.Persister against a live Keyspace,
// grounded on spec.md §4.G's write algorithm and the fork-avoidant
// snapshot-thread model spec.md §9 prescribes for managed runtimes.
type Saver struct {
	ks      *keyspace.Keyspace
	path    string
	pending chan saveResult
}

type saveResult struct {
	ok    bool
	err   error
	snaps []dbSnapshot
}

// dbSnapshot is a point-in-time, refcount-protected view of one
// database: a freshly allocated map sharing the original *object.Value
// pointers (spec.md §9's "map assignment does not deep-copy"), with
// every value's refcount bumped so the background writer can safely
// read it even if the live database deletes or replaces that key
// before the write finishes.
type dbSnapshot struct {
	index   int
	entries map[string]*object.Value
	expiry  map[string]time.Time
}

// New wires a Saver to ks, writing snapshots to path.
func New(ks *keyspace.Keyspace, path string) *Saver {
	return &Saver{ks: ks, path: path, pending: make(chan saveResult, 1)}
}

// Path reports the dump file path this Saver writes to, for
// pkg/replication's master-side bulk transfer (spec.md §4.H: open the
// dump file, record its size, stream it to the replica).
func (sv *Saver) Path() string { return sv.path }

// Save performs a synchronous, full snapshot write. Safe to call
// directly from the single dispatch goroutine: nothing else touches
// the keyspace while it runs.
func (sv *Saver) Save() error {
	exporters := make([]dbExporter, 0, len(sv.ks.All()))
	for _, db := range sv.ks.All() {
		exporters = append(exporters, liveDBExporter{db})
	}
	return writeSnapshotFile(sv.path, exporters)
}

// BackgroundSave takes an IncrRef'd snapshot of every database and
// hands the actual write to a new goroutine, returning immediately.
// The refcounts it took are only ever released back on the main
// dispatch goroutine, via PollCompletion — the writer goroutine never
// touches a Value's refcount, only its bytes (object.Value content is
// never mutated in place once written, only replaced or recycled, so a
// refcount-protected read is race-free).
func (sv *Saver) BackgroundSave() error {
	snaps := make([]dbSnapshot, 0, len(sv.ks.All()))
	for _, db := range sv.ks.All() {
		entries := make(map[string]*object.Value)
		db.Range(func(key string, v *object.Value) {
			v.IncrRef()
			entries[key] = v
		})
		if len(entries) == 0 {
			continue
		}
		expiry := make(map[string]time.Time, len(entries))
		for key := range entries {
			if when, ok := db.GetExpire(key); ok {
				expiry[key] = when
			}
		}
		snaps = append(snaps, dbSnapshot{index: db.ID(), entries: entries, expiry: expiry})
	}

	path := sv.path
	go func() {
		exporters := make([]dbExporter, len(snaps))
		for i, snap := range snaps {
			exporters[i] = snapshotExporter{snap}
		}
		err := writeSnapshotFile(path, exporters)
		sv.pending <- saveResult{ok: err == nil, err: err, snaps: snaps}
	}()
	return nil
}

// PollCompletion is non-blocking, called once per pkg/maintenance tick.
// When a background save has finished, it releases the snapshot's
// borrowed references and reports the outcome; otherwise it reports
// done=false immediately.
func (sv *Saver) PollCompletion() (done, ok bool, err error) {
	select {
	case res := <-sv.pending:
		for _, snap := range res.snaps {
			for _, v := range snap.entries {
				v.DecrRef()
			}
		}
		return true, res.ok, res.err
	default:
		return false, false, nil
	}
}

// dbExporter abstracts the two sources writeSnapshotFile can read from:
// a live Database (synchronous Save) or a frozen dbSnapshot
// (BackgroundSave), so the wire-format writer is shared by both paths.
type dbExporter interface {
	ID() int
	Len() int
	Each(fn func(key string, v *object.Value, expire time.Time, hasExpire bool))
}

type liveDBExporter struct{ db *keyspace.Database }

func (l liveDBExporter) ID() int  { return l.db.ID() }
func (l liveDBExporter) Len() int { return l.db.Size() }
func (l liveDBExporter) Each(fn func(string, *object.Value, time.Time, bool)) {
	l.db.Range(func(key string, v *object.Value) {
		when, ok := l.db.GetExpire(key)
		fn(key, v, when, ok)
	})
}

type snapshotExporter struct{ snap dbSnapshot }

func (s snapshotExporter) ID() int  { return s.snap.index }
func (s snapshotExporter) Len() int { return len(s.snap.entries) }
func (s snapshotExporter) Each(fn func(string, *object.Value, time.Time, bool)) {
	for key, v := range s.snap.entries {
		when, ok := s.snap.expiry[key]
		fn(key, v, when, ok)
	}
}

// writeSnapshotFile implements spec.md §4.G's write algorithm: write to
// a pid-scoped temp file, flush+fsync+close, then atomically rename
// over the target. Any failure removes the temp file and returns an
// error instead of leaving a partial dump in place.
func writeSnapshotFile(path string, dbs []dbExporter) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf("temp-%d.rdb", os.Getpid()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if werr := writeSnapshot(f, dbs); werr != nil {
		f.Close()
		os.Remove(tmp)
		return werr
	}
	if serr := f.Sync(); serr != nil {
		f.Close()
		os.Remove(tmp)
		return serr
	}
	if cerr := f.Close(); cerr != nil {
		os.Remove(tmp)
		return cerr
	}
	if rerr := os.Rename(tmp, path); rerr != nil {
		os.Remove(tmp)
		return rerr
	}
	return nil
}

func writeSnapshot(f *os.File, dbs []dbExporter) error {
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(fmt.Sprintf("%s%04d", magic, currentVersion)); err != nil {
		return err
	}
	for _, db := range dbs {
		if db.Len() == 0 {
			continue
		}
		if err := w.WriteByte(markerSelectDB); err != nil {
			return err
		}
		if err := writeLength(w, db.ID()); err != nil {
			return err
		}
		var innerErr error
		db.Each(func(key string, v *object.Value, expire time.Time, hasExpire bool) {
			if innerErr != nil {
				return
			}
			if hasExpire {
				if innerErr = w.WriteByte(markerExpire); innerErr != nil {
					return
				}
				var buf [4]byte
				binary.LittleEndian.PutUint32(buf[:], uint32(expire.Unix()))
				if _, innerErr = w.Write(buf[:]); innerErr != nil {
					return
				}
			}
			innerErr = writeEntry(w, key, v)
		})
		if innerErr != nil {
			return innerErr
		}
	}
	if err := w.WriteByte(markerEOF); err != nil {
		return err
	}
	return w.Flush()
}

func writeEntry(w *bufio.Writer, key string, v *object.Value) error {
	switch v.Type() {
	case object.TypeString:
		if err := w.WriteByte(typeString); err != nil {
			return err
		}
		if err := writeStringV1(w, []byte(key)); err != nil {
			return err
		}
		return writeStringV1(w, v.Bytes())
	case object.TypeList:
		if err := w.WriteByte(typeList); err != nil {
			return err
		}
		if err := writeStringV1(w, []byte(key)); err != nil {
			return err
		}
		l := v.List()
		if err := writeLength(w, l.Len()); err != nil {
			return err
		}
		for e := l.Front(); e != nil; e = e.Next() {
			if err := writeStringV1(w, e.Value.(*object.Value).Bytes()); err != nil {
				return err
			}
		}
		return nil
	case object.TypeSet:
		if err := w.WriteByte(typeSet); err != nil {
			return err
		}
		if err := writeStringV1(w, []byte(key)); err != nil {
			return err
		}
		set := v.Set()
		if err := writeLength(w, len(set)); err != nil {
			return err
		}
		for member := range set {
			if err := writeStringV1(w, []byte(member)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("rdb: unknown value type %v", v.Type())
	}
}

// Load reads a snapshot from path into ks, per spec.md §4.G's load
// algorithm: validate magic+version (accepting version 0's legacy
// fixed-length strings and version 1's full encoding), walk entries
// handling select-DB and expire prefixes in-band, and treat a
// duplicate key within one database's section as fatal.
func Load(ks *keyspace.Keyspace, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [9]byte
	if _, err := readFull(r, header[:]); err != nil {
		return fmt.Errorf("rdb: reading header: %w", err)
	}
	if string(header[:5]) != magic {
		return fmt.Errorf("rdb: bad magic %q", header[:5])
	}
	version := 0
	for _, c := range header[5:] {
		if c < '0' || c > '9' {
			return errCorruptSnapshot
		}
		version = version*10 + int(c-'0')
	}
	if version > maxVersion {
		return fmt.Errorf("rdb: unsupported snapshot version %d", version)
	}

	readString := readStringV1
	if version == 0 {
		readString = readStringV0
	}

	var cur *keyspace.Database
	seen := map[string]bool{}
	var pendingExpire time.Time
	hasPendingExpire := false

	for {
		tag, terr := r.ReadByte()
		if terr != nil {
			return fmt.Errorf("rdb: reading entry tag: %w", terr)
		}
		switch tag {
		case markerEOF:
			return nil
		case markerSelectDB:
			idx, _, _, lerr := readLength(r)
			if lerr != nil {
				return lerr
			}
			db, derr := ks.DB(idx)
			if derr != nil {
				return derr
			}
			cur = db
			seen = map[string]bool{}
		case markerExpire:
			var buf [4]byte
			if _, eerr := readFull(r, buf[:]); eerr != nil {
				return eerr
			}
			pendingExpire = time.Unix(int64(binary.LittleEndian.Uint32(buf[:])), 0)
			hasPendingExpire = true
		default:
			if cur == nil {
				return fmt.Errorf("rdb: value entry before any select-DB marker")
			}
			keyBytes, kerr := readString(r)
			if kerr != nil {
				return kerr
			}
			key := string(keyBytes)
			if seen[key] {
				return fmt.Errorf("rdb: duplicate key %q in snapshot", key)
			}
			seen[key] = true

			v, verr := readValue(r, tag, readString)
			if verr != nil {
				return verr
			}
			cur.Insert(key, v)
			if hasPendingExpire {
				cur.SetExpire(key, pendingExpire)
				if !pendingExpire.After(time.Now()) {
					cur.Delete(key)
				}
			}
			hasPendingExpire = false
		}
	}
}

func readValue(r *bufio.Reader, tag byte, readString func(*bufio.Reader) ([]byte, error)) (*object.Value, error) {
	switch tag {
	case typeString:
		b, err := readString(r)
		if err != nil {
			return nil, err
		}
		return object.NewString(b), nil
	case typeList:
		n, _, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		v := object.NewList()
		l := v.List()
		for i := 0; i < n; i++ {
			b, err := readString(r)
			if err != nil {
				return nil, err
			}
			l.PushBack(object.NewString(b))
		}
		return v, nil
	case typeSet:
		n, _, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		v := object.NewSet()
		set := v.Set()
		for i := 0; i < n; i++ {
			b, err := readString(r)
			if err != nil {
				return nil, err
			}
			set[string(b)] = object.NewString(b)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("rdb: unknown type tag 0x%02x", tag)
	}
}
