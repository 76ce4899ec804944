/*
Package session models one connected client: its query buffer, argument
vector, reply queue and the flags and replication sub-state attached to
it (spec.md §4.C).

A Session carries no synchronization of its own — every field is only
ever touched from callbacks invoked by pkg/reactor's single-threaded
event loop (see SPEC_FULL.md §5), the same way
original_source/redis.c's redisClient is touched only from the one
aeEventLoop thread.
*/
package session
