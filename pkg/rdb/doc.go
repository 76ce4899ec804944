// Package rdb implements emberdb's point-in-time snapshot format:
// synchronous and background saves to disk, and loading a snapshot
// back into a keyspace at boot. The on-disk layout is described in
// format.go and is unchanged across snapshot-thread vs. fork-based
// background save strategies — only how the write gets scheduled
// differs.
package rdb
