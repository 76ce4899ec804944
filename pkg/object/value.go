package object

import (
	"container/list"
	"fmt"
)

// Type tags a Value's underlying representation.
type Type int

const (
	// TypeString is a raw byte-string representation.
	TypeString Type = iota
	// TypeList is an ordered sequence of string Values.
	TypeList
	// TypeSet is an unordered, deduplicated collection of string Values.
	TypeSet
)

// String renders the type the way the TYPE command replies.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	default:
		return "none"
	}
}

// Value is emberdb's tagged, reference-counted container. Every key in
// every database, every client argument, and every queued reply holds
// a *Value rather than a copy of its bytes.
type Value struct {
	typ     Type
	str     []byte
	list    *list.List
	set     map[string]*Value
	refcnt  int32
	pooled  *pool // non-nil when interned; tracks the shared entry
}

// NewString creates a refcount-1 string Value.
func NewString(b []byte) *Value {
	return &Value{typ: TypeString, str: b, refcnt: 1}
}

// NewList creates an empty refcount-1 list Value.
func NewList() *Value {
	return &Value{typ: TypeList, list: list.New(), refcnt: 1}
}

// NewSet creates an empty refcount-1 set Value.
func NewSet() *Value {
	return &Value{typ: TypeSet, set: make(map[string]*Value), refcnt: 1}
}

// Type reports the Value's tag.
func (v *Value) Type() Type { return v.typ }

// Bytes returns the raw bytes of a TypeString Value. Callers must check
// Type() first; Bytes panics on any other type, since reading a list or
// set as bytes is always a caller bug, not a runtime condition.
func (v *Value) Bytes() []byte {
	if v.typ != TypeString {
		panic(fmt.Sprintf("object: Bytes called on %s value", v.typ))
	}
	return v.str
}

// List returns the underlying doubly linked list of element Values.
func (v *Value) List() *list.List {
	if v.typ != TypeList {
		panic(fmt.Sprintf("object: List called on %s value", v.typ))
	}
	return v.list
}

// Set returns the underlying membership map, keyed by element bytes.
func (v *Value) Set() map[string]*Value {
	if v.typ != TypeSet {
		panic(fmt.Sprintf("object: Set called on %s value", v.typ))
	}
	return v.set
}

// RefCount reports the current reference count, for tests and DEBUG OBJECT.
func (v *Value) RefCount() int32 { return v.refcnt }

// IncrRef increments the reference count. Call it whenever a new owner
// (a database map entry, a client argv slot, a reply queue entry) starts
// holding this Value.
func (v *Value) IncrRef() *Value {
	v.refcnt++
	return v
}

// DecrRef decrements the reference count. At zero it releases the
// representation and recycles the now-empty container onto the shared
// free list (or lets it be garbage if the list is full).
func (v *Value) DecrRef() {
	v.refcnt--
	if v.refcnt > 0 {
		return
	}
	if v.refcnt < 0 {
		panic("object: DecrRef on a Value with refcount already zero")
	}
	switch v.typ {
	case TypeList:
		v.list.Init()
	case TypeSet:
		for k := range v.set {
			delete(v.set, k)
		}
	}
	v.str = nil
	if v.pooled != nil {
		v.pooled.forget(v)
		v.pooled = nil
	}
	globalFreeList.release(v)
}
