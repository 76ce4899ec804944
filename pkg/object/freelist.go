package object

import "sync"

// freeListCap bounds the recycled-value stack, spec.md's "bounded free
// list (capacity ~10^6)". Sized generously but finitely so
// a burst of short-lived values doesn't pin an unbounded amount of
// memory behind the free list itself.
const freeListCap = 1_000_000

// freeList is a bounded, reusable stack of *Value containers whose
// representation has already been released. It exists so that a server
// churning through many short-lived string/list/set values doesn't push
// that churn onto the Go garbage collector on every single command.
//
// Grounded on gholt-valuestore's bounded free-list pattern for recycled
// value structs (valuestore_GEN_.go keeps a capped pool of freed
// locations rather than allocating fresh ones per write).
type freeList struct {
	mu    sync.Mutex
	items []*Value
}

var globalFreeList = &freeList{}

func (f *freeList) release(v *Value) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) >= freeListCap {
		return false
	}
	f.items = append(f.items, v)
	return true
}

// acquire pops a recycled container, or returns nil if the free list is
// empty. The caller is responsible for re-initializing typ/refcnt/repr.
func (f *freeList) acquire() *Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.items)
	if n == 0 {
		return nil
	}
	v := f.items[n-1]
	f.items[n-1] = nil
	f.items = f.items[:n-1]
	return v
}

// FreeListSize reports how many recycled containers are currently
// parked on the free list. Exposed for metrics and tests.
func FreeListSize() int {
	globalFreeList.mu.Lock()
	defer globalFreeList.mu.Unlock()
	return len(globalFreeList.items)
}

// DiscardFreeListEntry drops one recycled container from the free
// list without reusing it, reporting whether there was one to drop.
// This is freeMemoryIfNeeded's first-choice reclaim step: shedding the
// free list's retained memory costs no live keys, so it is tried
// before evicting anything from the keyspace.
func DiscardFreeListEntry() bool {
	return globalFreeList.acquire() != nil
}

// RecycleString pops a container off the free list and initializes it
// as a new string Value, or allocates a fresh one if the list is empty.
func RecycleString(b []byte) *Value {
	if v := globalFreeList.acquire(); v != nil {
		v.typ = TypeString
		v.str = b
		v.refcnt = 1
		v.pooled = nil
		return v
	}
	return NewString(b)
}
