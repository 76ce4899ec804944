package command

import (
	"errors"

	"github.com/cuemby/emberdb/pkg/resp"
)

// Sentinel errors surfaced to clients, grounded on the error kinds
// spec.md §7 names.
var (
	ErrWrongType         = errors.New("Operation against a key holding the wrong kind of value")
	ErrNoSuchKey         = errors.New("no such key")
	ErrOutOfRange        = errors.New("index out of range")
	ErrSameKey           = errors.New("source and destination objects are the same")
	ErrSyntax            = errors.New("syntax error")
	ErrNotInteger        = errors.New("value is not an integer or out of range")
	ErrSaveInProgress    = errors.New("background save already in progress")
	ErrNoSaveInProgress  = errors.New("no background save in progress")
	ErrNotAuthenticated  = errors.New("operation not permitted")
	ErrAuthNotConfigured = errors.New("Client sent AUTH, but no password is set")
	ErrInvalidPassword   = errors.New("invalid password")
)

// WireError renders err in the wire format clients expect: WRONGTYPE
// gets its own leading token (the one case original_source/redis.c's
// addReply callers special-case beyond a generic -ERR), everything
// else is a generic -ERR.
func WireError(err error) []byte {
	if err == ErrWrongType {
		return resp.Error("WRONGTYPE " + err.Error())
	}
	return resp.Error("ERR " + err.Error())
}
