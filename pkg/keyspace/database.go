package keyspace

import (
	"time"

	"github.com/cuemby/emberdb/pkg/object"
)

// initialCapacityHint is the size below which Database never bothers
// shrinking its underlying maps, matching "exceeds its initial
// capacity" from spec.md §4.B.
const initialCapacityHint = 64

// sampleExpireBudget bounds how many expiring keys a single
// SampleExpirations call inspects, matching spec.md §4.B's "sample up
// to a small fixed budget (~100)".
const sampleExpireBudget = 100

// Database is one logically independent keyspace: a main key->value map
// and an auxiliary key->expiry map. Every key in expiry is also present
// in main (spec.md §3 invariant).
type Database struct {
	id      int
	main    map[string]*object.Value
	expiry  map[string]time.Time
	pool    *object.Pool
	highWaterMark int
}

func newDatabase(id int, pool *object.Pool) *Database {
	return &Database{
		id:     id,
		main:   make(map[string]*object.Value, initialCapacityHint),
		expiry: make(map[string]time.Time),
		pool:   pool,
	}
}

// ID returns the database's index within the keyspace.
func (d *Database) ID() int { return d.id }

// LookupRead returns the value for key, applying lazy expiration first:
// if key carries a TTL that has passed, it is deleted (from both maps)
// and LookupRead reports a miss.
func (d *Database) LookupRead(key string) (*object.Value, bool) {
	d.expireIfNeeded(key)
	v, ok := d.main[key]
	return v, ok
}

// LookupWrite returns the current value for key (without checking
// expiration) after unconditionally clearing any TTL on key — the
// "delete_if_volatile" step spec.md §4.B requires before a caller
// mutates a key. It does not remove the key itself, only its expiry
// map entry; the caller goes on to Insert/Replace/Delete as needed.
func (d *Database) LookupWrite(key string) (*object.Value, bool) {
	delete(d.expiry, key)
	v, ok := d.main[key]
	return v, ok
}

// Peek returns the current value for key without any expiration or TTL
// side effects. Used by commands that append to an existing container
// (LPUSH, SADD, ...) and must not disturb that key's TTL.
func (d *Database) Peek(key string) (*object.Value, bool) {
	v, ok := d.main[key]
	return v, ok
}

// Insert adds a brand-new key. Callers must have already established
// the key is absent (e.g. via LookupWrite).
func (d *Database) Insert(key string, v *object.Value) {
	d.main[key] = v
	if len(d.main) > d.highWaterMark {
		d.highWaterMark = len(d.main)
	}
}

// Replace overwrites an existing key's value, releasing the old one.
func (d *Database) Replace(key string, v *object.Value) {
	if old, ok := d.main[key]; ok {
		old.DecrRef()
	}
	d.main[key] = v
}

// Delete removes key from both maps, releasing its value. Reports
// whether the key was present.
func (d *Database) Delete(key string) bool {
	v, ok := d.main[key]
	if !ok {
		return false
	}
	delete(d.main, key)
	delete(d.expiry, key)
	v.DecrRef()
	return true
}

// SetExpire attaches an absolute expiry to key. Fails (returns false)
// if key is absent from the main map.
func (d *Database) SetExpire(key string, when time.Time) bool {
	if _, ok := d.main[key]; !ok {
		return false
	}
	d.expiry[key] = when
	return true
}

// RemoveExpire clears any TTL on key, reporting whether one was set.
func (d *Database) RemoveExpire(key string) bool {
	if _, ok := d.expiry[key]; !ok {
		return false
	}
	delete(d.expiry, key)
	return true
}

// GetExpire reports key's absolute expiry, if any.
func (d *Database) GetExpire(key string) (time.Time, bool) {
	t, ok := d.expiry[key]
	return t, ok
}

// RandomKey samples uniformly from the main map, skipping (and
// reaping) any key whose TTL has already passed. Returns false if the
// database is empty or every sampled key turned out to be expired
// within a bounded number of attempts.
func (d *Database) RandomKey() (string, bool) {
	if len(d.main) == 0 {
		return "", false
	}
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		key := d.sampleMainKey()
		if key == "" {
			return "", false
		}
		d.expireIfNeeded(key)
		if _, ok := d.main[key]; ok {
			return key, true
		}
	}
	return "", false
}

// sampleMainKey returns one pseudo-random key from the main map using
// Go's randomized map iteration order, taking the first entry visited.
func (d *Database) sampleMainKey() string {
	for k := range d.main {
		return k
	}
	return ""
}

// Size reports the number of keys in the main map.
func (d *Database) Size() int { return len(d.main) }

// ExpiringCount reports how many keys currently carry a TTL, for the
// maintenance task's per-DB size logging (spec.md §4.F step 2).
func (d *Database) ExpiringCount() int { return len(d.expiry) }

// SampleExpiring returns up to n keys drawn from the expiry map via
// Go's randomized map iteration order, for freeMemoryIfNeeded's
// nearest-expiry eviction (spec.md §4.F): sample a few candidates and
// let the caller pick the one closest to expiring.
func (d *Database) SampleExpiring(n int) []string {
	keys := make([]string, 0, n)
	for k := range d.expiry {
		if len(keys) >= n {
			break
		}
		keys = append(keys, k)
	}
	return keys
}

// Empty reports whether the database has no keys.
func (d *Database) Empty() bool { return len(d.main) == 0 }

// Flush releases every value and empties both maps.
func (d *Database) Flush() {
	for _, v := range d.main {
		v.DecrRef()
	}
	d.main = make(map[string]*object.Value, initialCapacityHint)
	d.expiry = make(map[string]time.Time)
	d.highWaterMark = 0
}

// Range calls fn for every key in the main map. fn must not mutate the
// database; used by KEYS and by the snapshot writer.
func (d *Database) Range(fn func(key string, v *object.Value)) {
	for k, v := range d.main {
		fn(k, v)
	}
}

func (d *Database) expireIfNeeded(key string) {
	when, ok := d.expiry[key]
	if !ok {
		return
	}
	if time.Now().Before(when) {
		return
	}
	d.Delete(key)
}

// SampleExpirations inspects up to sampleExpireBudget random entries of
// the expiry map and deletes any whose TTL has passed. Returns the
// number of keys reaped. This bounds the worst-case cost of a
// maintenance tick while keeping amortized reclamation proportional to
// expiration pressure (spec.md §4.B).
func (d *Database) SampleExpirations() int {
	if len(d.expiry) == 0 {
		return 0
	}
	now := time.Now()
	reaped := 0
	sampled := 0
	for key, when := range d.expiry {
		if sampled >= sampleExpireBudget {
			break
		}
		sampled++
		if now.After(when) || now.Equal(when) {
			d.Delete(key)
			reaped++
		}
	}
	return reaped
}

// MaybeShrink rebuilds the underlying maps into freshly sized ones when
// the fill ratio has fallen far below the high-water mark, releasing
// the old (now oversized) bucket arrays back to the Go runtime. This is
// the stand-in for spec.md §4.B's "request a shrink from the table
// primitive" — Go's built-in map has no explicit capacity/shrink hook,
// so rebuilding is the idiomatic way to reclaim that memory.
func (d *Database) MaybeShrink() {
	if d.highWaterMark <= initialCapacityHint {
		return
	}
	if len(d.main) == 0 {
		return
	}
	fillRatio := float64(len(d.main)) / float64(d.highWaterMark)
	if fillRatio >= 0.10 {
		return
	}
	fresh := make(map[string]*object.Value, len(d.main)*2)
	for k, v := range d.main {
		fresh[k] = v
	}
	d.main = fresh
	d.highWaterMark = len(d.main)
}
