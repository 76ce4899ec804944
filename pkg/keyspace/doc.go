/*
Package keyspace implements emberdb's multi-database key/value mapping:
a fixed-size array of databases, each a pair of maps (key -> value,
key -> absolute expiry), with lazy expiration on read, sampled
expiration on a timer, and opportunistic table shrinking.

One method per operation, errors built with fmt.Errorf, mirroring
a document-store CRUD layer; the read/write/expire paths themselves
follow lookupKeyRead / lookupKeyWrite / deleteIfVolatile /
activeExpireCycle from the original C implementation, translated from
dict-based C to Go maps.
*/
package keyspace
