package command

import (
	"strings"

	"github.com/cuemby/emberdb/pkg/session"
)

// Flag bits describe a command row's gating behavior, mirroring
// original_source/redis.c's REDIS_CMD_* bitmask on its command table.
type Flag int

const (
	// FlagWrite marks a command that can set the dirty counter and must
	// be fanned out to replicas/monitors on success.
	FlagWrite Flag = 1 << iota
	// FlagDenyOOM marks a command refused once allocator usage exceeds
	// maxmemory (spec.md §4.D step 4).
	FlagDenyOOM
	// FlagBulk marks a command whose last inline token is a byte count
	// introducing a following bulk body (spec.md §4.D's bulk-read mode).
	FlagBulk
	// FlagAdmin marks a server-administration command. It does not by
	// itself bypass the requirepass gate: requiresAuth exempts only the
	// admin command named "auth".
	FlagAdmin
)

// HandlerFunc implements one command. s.Args[0] is the command name;
// s.Args[1:] are its arguments, already fully buffered (bulk or not) by
// the time the dispatcher invokes the handler.
type HandlerFunc func(d *Dispatcher, s *session.Session) error

// Command is one row of the command table: name, handler, arity and
// flags, the same shape as original_source/redis.c's
// {"get",getCommand,2,REDIS_CMD_INLINE} rows.
type Command struct {
	Name    string
	Handler HandlerFunc
	// Arity >= 0 requires exactly that many tokens (including the
	// command name); Arity < 0 requires at least |Arity|.
	Arity int
	Flags Flag
}

func (c *Command) IsWrite() bool { return c.Flags&FlagWrite != 0 }
func (c *Command) DenyOOM() bool { return c.Flags&FlagDenyOOM != 0 }
func (c *Command) IsBulk() bool  { return c.Flags&FlagBulk != 0 }
func (c *Command) IsAdmin() bool { return c.Flags&FlagAdmin != 0 }

func checkArity(c *Command, argc int) bool {
	if c.Arity >= 0 {
		return argc == c.Arity
	}
	return argc >= -c.Arity
}

var table = buildTable()

func buildTable() map[string]*Command {
	rows := []*Command{
		// String
		{"get", cmdGet, 2, 0},
		{"set", cmdSet, 3, FlagWrite | FlagDenyOOM | FlagBulk},
		{"setnx", cmdSetNX, 3, FlagWrite | FlagDenyOOM | FlagBulk},
		{"getset", cmdGetSet, 3, FlagWrite | FlagDenyOOM | FlagBulk},
		{"mget", cmdMGet, -2, 0},
		{"incr", cmdIncr, 2, FlagWrite | FlagDenyOOM},
		{"decr", cmdDecr, 2, FlagWrite | FlagDenyOOM},
		{"incrby", cmdIncrBy, 3, FlagWrite | FlagDenyOOM},
		{"decrby", cmdDecrBy, 3, FlagWrite | FlagDenyOOM},

		// List
		{"lpush", cmdLPush, 3, FlagWrite | FlagDenyOOM | FlagBulk},
		{"rpush", cmdRPush, 3, FlagWrite | FlagDenyOOM | FlagBulk},
		{"lpop", cmdLPop, 2, FlagWrite},
		{"rpop", cmdRPop, 2, FlagWrite},
		{"llen", cmdLLen, 2, 0},
		{"lindex", cmdLIndex, 3, 0},
		{"lset", cmdLSet, 4, FlagWrite | FlagDenyOOM | FlagBulk},
		{"lrange", cmdLRange, 4, 0},
		{"ltrim", cmdLTrim, 4, FlagWrite},
		{"lrem", cmdLRem, 4, FlagWrite | FlagBulk},

		// Set
		{"sadd", cmdSAdd, 3, FlagWrite | FlagDenyOOM | FlagBulk},
		{"srem", cmdSRem, 3, FlagWrite | FlagBulk},
		{"sismember", cmdSIsMember, 3, FlagBulk},
		{"scard", cmdSCard, 2, 0},
		{"smove", cmdSMove, 4, FlagWrite | FlagBulk},
		{"spop", cmdSPop, 2, FlagWrite},
		{"sinter", cmdSInter, -2, 0},
		{"sinterstore", cmdSInterStore, -3, FlagWrite | FlagDenyOOM},
		{"sunion", cmdSUnion, -2, 0},
		{"sunionstore", cmdSUnionStore, -3, FlagWrite | FlagDenyOOM},
		{"sdiff", cmdSDiff, -2, 0},
		{"sdiffstore", cmdSDiffStore, -3, FlagWrite | FlagDenyOOM},
		{"smembers", cmdSMembers, 2, 0},

		// Keyspace admin
		{"del", cmdDel, -2, FlagWrite},
		{"exists", cmdExists, 2, 0},
		{"keys", cmdKeys, 2, 0},
		{"type", cmdType, 2, 0},
		{"randomkey", cmdRandomKey, 1, 0},
		{"rename", cmdRename, 3, FlagWrite},
		{"renamenx", cmdRenameNX, 3, FlagWrite},
		{"move", cmdMove, 3, FlagWrite},
		{"select", cmdSelect, 2, 0},
		{"dbsize", cmdDBSize, 1, 0},
		{"flushdb", cmdFlushDB, 1, FlagWrite},
		{"flushall", cmdFlushAll, 1, FlagWrite},
		{"expire", cmdExpire, 3, FlagWrite},
		{"ttl", cmdTTL, 2, 0},

		// SORT
		{"sort", cmdSort, -2, FlagWrite | FlagDenyOOM},

		// Server
		{"ping", cmdPing, 1, 0},
		{"echo", cmdEcho, 2, FlagBulk},
		{"auth", cmdAuth, 2, FlagAdmin | FlagBulk},
		{"save", cmdSave, 1, FlagAdmin},
		{"bgsave", cmdBGSave, 1, FlagAdmin},
		{"lastsave", cmdLastSave, 1, 0},
		{"shutdown", cmdShutdown, 1, FlagAdmin},
		{"info", cmdInfo, 1, 0},
		{"monitor", cmdMonitor, 1, FlagAdmin},
		{"debug", cmdDebug, -2, FlagAdmin},
		{"slaveof", cmdSlaveOf, 3, FlagAdmin},
	}
	m := make(map[string]*Command, len(rows))
	for _, c := range rows {
		m[c.Name] = c
	}
	return m
}

// Lookup finds a command row by case-insensitive name.
func Lookup(name string) (*Command, bool) {
	c, ok := table[strings.ToLower(name)]
	return c, ok
}
