package object

import (
	"runtime"
	"sync/atomic"
)

// Allocator is the process-wide, advisorily-consulted memory usage
// gauge described in spec.md §5 ("The allocator-usage gauge is a
// process-wide counter consulted advisorily"). emberdb has no custom
// allocator to instrument, so it samples the Go runtime's own heap
// statistics on each maintenance tick rather than tracking every
// malloc/free by hand — the gauge's consumers (maxmemory gating,
// freeMemoryIfNeeded, the used_memory metric) only need a reasonably
// fresh estimate, not byte-exact accounting.
type Allocator struct {
	usedBytes int64
}

var globalAllocator = &Allocator{}

// GlobalAllocator returns the process-wide allocator gauge.
func GlobalAllocator() *Allocator { return globalAllocator }

// Refresh re-samples the Go heap and updates the cached usage figure.
// Called once per maintenance tick (spec.md §4.F step 1).
func (a *Allocator) Refresh() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	atomic.StoreInt64(&a.usedBytes, int64(m.HeapAlloc))
}

// UsedBytes returns the most recently sampled usage figure.
func (a *Allocator) UsedBytes() int64 {
	return atomic.LoadInt64(&a.usedBytes)
}

// OverLimit reports whether current usage exceeds maxBytes. A maxBytes
// of zero means no limit is configured.
func (a *Allocator) OverLimit(maxBytes int64) bool {
	if maxBytes <= 0 {
		return false
	}
	return a.UsedBytes() > maxBytes
}
