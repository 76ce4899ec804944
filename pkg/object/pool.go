package object

import "math/rand"

// poolEntry tracks one interned string Value alongside a hit counter
// used for the probabilistic eviction described in spec.md §4.A: on a
// miss with a full pool, a random victim's counter is decremented and
// the entry evicted once that counter reaches zero.
type poolEntry struct {
	val *Value
	hit int
}

// pool is the process-wide bounded interning table. Interning is purely
// opportunistic: a miss never fails the caller's command, it just means
// the pool didn't dedupe that particular string this time.
type pool struct {
	entries  map[string]*poolEntry
	capacity int
}

// Pool is the shared interning pool. Disabled (capacity 0) unless the
// config directive `shareobjects yes` enables it, matching spec.md §6's
// `shareobjects`/`shareobjectspoolsize` directives.
type Pool struct {
	inner *pool
}

// NewPool constructs a pool with the given capacity. A capacity of zero
// disables interning: Intern becomes a no-op, matching
// "intern is a no-op unless interning is enabled in config".
func NewPool(capacity int) *Pool {
	return &Pool{inner: &pool{entries: make(map[string]*poolEntry), capacity: capacity}}
}

func (p *pool) forget(v *Value) {
	// Called from Value.DecrRef when a pooled value's refcount reaches
	// zero from outside the pool's own bookkeeping (shouldn't normally
	// happen while the pool still holds a reference, but guards against
	// it rather than leaving a dangling entry).
	for k, e := range p.entries {
		if e.val == v {
			delete(p.entries, k)
			return
		}
	}
}

// Intern looks up v's bytes in the pool. On a hit it increments the
// pooled entry's hit counter and refcount, decrements the caller's
// value, and returns the pooled Value. On a miss, if the pool has room
// it inserts v; otherwise it probabilistically displaces a random
// entry, decrementing that entry's hit counter and evicting it only
// once the counter reaches zero (so hot entries survive several misses
// before being displaced, without requiring exact LRU bookkeeping).
func (p *Pool) Intern(v *Value) *Value {
	if p == nil || p.inner.capacity == 0 || v.Type() != TypeString {
		return v
	}
	inner := p.inner
	key := string(v.Bytes())

	if entry, ok := inner.entries[key]; ok {
		entry.hit++
		entry.val.IncrRef()
		v.DecrRef()
		return entry.val
	}

	if len(inner.entries) < inner.capacity {
		v.pooled = inner
		inner.entries[key] = &poolEntry{val: v, hit: 1}
		return v
	}

	// Pool full: pick a random victim and decay it.
	victimKey := randomKey(inner.entries)
	if victimKey == "" {
		return v
	}
	victim := inner.entries[victimKey]
	victim.hit--
	if victim.hit <= 0 {
		delete(inner.entries, victimKey)
		victim.val.pooled = nil
	}
	return v
}

// Size reports how many strings are currently interned.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return len(p.inner.entries)
}

func randomKey(m map[string]*poolEntry) string {
	n := len(m)
	if n == 0 {
		return ""
	}
	skip := rand.Intn(n)
	i := 0
	for k := range m {
		if i == skip {
			return k
		}
		i++
	}
	return ""
}
