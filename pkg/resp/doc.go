/*
Package resp implements emberdb's wire protocol: inline/bulk request
framing and reply serialization (spec.md §4.D, §6).

Requests are parsed out of a session's query buffer by ScanLine, which
never blocks — a partial line simply reports ok=false with a nil error
so the caller waits for the next readable event. Replies are built with the
Reply* helpers, each returning the exact bytes to enqueue on a session
(`+`, `-`, `:`, `$LEN\r\n...`, `*COUNT\r\n...`, and the `$-1\r\n`/`*-1\r\n`
nulls), grounded on original_source/redis.c's addReply family.
*/
package resp
