/*
Package object implements emberdb's value representation: a small,
reference-counted, tagged container shared by every key in every
database, plus the bounded free list and interning pool that recycle
and deduplicate those containers.

# Value objects

A Value never exposes its representation directly; callers go through
the typed accessors (Bytes, List, Set) after checking Type. Values are
shared by reference. IncrRef/DecrRef track how many places — database
maps, a client's argument vector, a client's reply queue — currently
hold a pointer to the Value. The final DecrRef releases the
representation and, if the free list has room, recycles the empty
container instead of letting it become garbage.

# Interning pool

Pool deduplicates small string Values that recur often (empty strings,
"0", "OK", and the like). Interning is opportunistic: it never changes
command semantics, only whether two equal strings happen to share one
allocation. Eviction is a single random probe per miss, matching the
spec's intentionally non-LRU victim selection.
*/
package object
