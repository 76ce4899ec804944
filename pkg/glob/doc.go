// Package glob implements the pattern matcher used by KEYS and by
// SORT's BY/GET pattern substitution: a small glob dialect supporting
// '*' (any run), '?' (exactly one), and '[...]' character classes with
// optional '^' negation and 'a-z' ranges, backslash-escaped literals,
// and an optional case-fold mode.
//
// Ported from stringmatchlen in _examples/original_source/redis.c,
// translated to Go idiom (recursion on string/[]byte slices instead of
// C pointer/length pairs; no original comments retained).
package glob
