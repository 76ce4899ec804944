package command

import (
	"strings"
	"time"

	"github.com/cuemby/emberdb/pkg/config"
	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/resp"
	"github.com/cuemby/emberdb/pkg/session"
)

// ReplicationSink receives executed commands for fan-out (spec.md
// §4.H), implemented by pkg/replication. Feed is only called for
// write commands that actually dirtied the keyspace; FeedMonitors is
// called for every command, matching MONITOR's "receives every
// executed command" contract.
type ReplicationSink interface {
	Feed(dbIndex int, argv [][]byte, bulkArgIndex int)
	FeedMonitors(dbIndex int, argv [][]byte)
}

// MetricsSink receives dispatch-time observations, implemented by
// pkg/metrics. start is the time immediately before the handler ran,
// so the sink can derive per-command latency without pkg/command
// importing prometheus itself.
type MetricsSink interface {
	ObserveCommand(name string, start time.Time)
}

// Dispatcher owns the command table and spec.md §4.D's 8-step dispatch
// algorithm. A Dispatcher is driven exclusively by pkg/reactor
// callbacks on one goroutine; it holds no lock because it needs none.
type Dispatcher struct {
	KS      *keyspace.Keyspace
	Cfg     *config.Config
	Repl    ReplicationSink
	Metrics MetricsSink
	Persist Persister
	Replica ReplicaController

	// RunID is this instance's unique identifier, surfaced by INFO and
	// used during replication handshakes (spec.md §4.H); set once at
	// boot by pkg/server.
	RunID string
	// ConnectedClients and ReplicaCount are read-only hooks into state
	// pkg/command doesn't itself own (the client table and the replica
	// list), wired by pkg/server the same way FreeMemory is.
	ConnectedClients func() int
	ReplicaCount     func() int

	// FreeMemory implements spec.md §4.F's free_memory_if_needed; wired
	// to pkg/maintenance by pkg/server so command need not import
	// maintenance (which itself depends on command's dirty counter).
	FreeMemory func()

	// Dirty counts accumulated writes since the last successful save,
	// spec.md §3 invariant five's "dirty" counter.
	Dirty int64
	// LastSaveUnix is the Unix timestamp of the last successful save,
	// for LASTSAVE and the save-rule scan in pkg/maintenance.
	LastSaveUnix int64
	// SaveInProgress mirrors "at most one background snapshot child
	// exists at any time" (spec.md §3 invariant three); BGSAVE sets it
	// before calling Persister.BackgroundSave, and pkg/maintenance clears
	// it once that save completes.
	SaveInProgress bool
	// ShouldShutdown is set by the SHUTDOWN command; cmd/emberdb's main
	// loop checks it after every ProcessBuffer call.
	ShouldShutdown bool
}

// ProcessBuffer consumes as many complete commands as s.QueryBuf
// currently holds, looping per spec.md §4.D step 8. It returns
// closeSession=true when the session must be torn down (QUIT, a
// handler setting CloseAfterReply, or a framing error).
func (d *Dispatcher) ProcessBuffer(s *session.Session) (closeSession bool, err error) {
	for {
		if s.PendingBulk == session.PendingBulkNone {
			line, rest, ok, lineErr := resp.ScanLine(s.QueryBuf)
			if lineErr != nil {
				return true, lineErr
			}
			if !ok {
				return false, nil
			}
			s.QueryBuf = rest
			tokens := resp.SplitTokens(line)
			if len(tokens) == 0 {
				continue
			}
			for _, tok := range tokens {
				cp := append([]byte(nil), tok...)
				s.Args = append(s.Args, object.NewString(cp))
			}
		}

		name := strings.ToLower(argStr(s, 0))
		if name == "quit" {
			replyStatus(s, "OK")
			s.ResetArgs()
			return true, nil
		}

		cmd, ok := Lookup(name)
		if !ok {
			replyErrorMsg(s, "ERR unknown command '"+name+"'")
			s.ResetArgs()
			if len(s.QueryBuf) == 0 {
				return false, nil
			}
			continue
		}

		if cmd.IsBulk() {
			if s.PendingBulk == session.PendingBulkNone {
				last := s.Args[len(s.Args)-1]
				n, perr := resp.ParseBulkCount(last.Bytes())
				if perr != nil {
					replyErrorMsg(s, "ERR "+perr.Error())
					s.ResetArgs()
					if len(s.QueryBuf) == 0 {
						return false, nil
					}
					continue
				}
				last.DecrRef()
				s.Args = s.Args[:len(s.Args)-1]
				s.PendingBulk = n
			}
			body, rest, bulkOK := resp.ReadBulkBody(s.QueryBuf, s.PendingBulk)
			if !bulkOK {
				return false, nil
			}
			s.QueryBuf = rest
			cp := append([]byte(nil), body...)
			s.Args = append(s.Args, object.NewString(cp))
			s.PendingBulk = session.PendingBulkNone
		}

		if !checkArity(cmd, len(s.Args)) {
			replyErrorMsg(s, "ERR wrong number of arguments for '"+name+"' command")
			s.ResetArgs()
			if len(s.QueryBuf) == 0 {
				return false, nil
			}
			continue
		}

		if d.Cfg != nil && d.Cfg.MaxMemory > 0 && d.FreeMemory != nil {
			d.FreeMemory()
		}

		if cmd.DenyOOM() && d.overMaxMemory() {
			replyErrorMsg(s, "ERR command not allowed when used memory > 'maxmemory'")
			s.ResetArgs()
			if len(s.QueryBuf) == 0 {
				return false, nil
			}
			continue
		}

		if d.requiresAuth(s, cmd) {
			replyErrorMsg(s, "ERR operation not permitted")
			s.ResetArgs()
			if len(s.QueryBuf) == 0 {
				return false, nil
			}
			continue
		}

		argv := argvBytes(s)
		dirtyBefore := d.Dirty
		start := time.Now()
		if herr := cmd.Handler(d, s); herr != nil {
			enqueueBytes(s, WireError(herr))
		}
		if d.Metrics != nil {
			d.Metrics.ObserveCommand(cmd.Name, start)
		}
		if d.Repl != nil {
			if cmd.IsWrite() && d.Dirty != dirtyBefore {
				d.Repl.Feed(s.DB.ID(), argv, bulkArgIndex(cmd, argv))
			}
			d.Repl.FeedMonitors(s.DB.ID(), argv)
		}

		s.ResetArgs()

		if s.Flags.CloseAfterReply {
			return true, nil
		}
		if len(s.QueryBuf) == 0 {
			return false, nil
		}
	}
}

func (d *Dispatcher) overMaxMemory() bool {
	if d.Cfg == nil || d.Cfg.MaxMemory <= 0 {
		return false
	}
	return object.GlobalAllocator().OverLimit(d.Cfg.MaxMemory)
}

func (d *Dispatcher) requiresAuth(s *session.Session, cmd *Command) bool {
	if cmd.IsAdmin() && cmd.Name == "auth" {
		return false
	}
	if d.Cfg == nil || d.Cfg.RequirePass == "" {
		return false
	}
	if s.Flags.IsMaster {
		return false
	}
	return !s.Authenticated
}

func argvBytes(s *session.Session) [][]byte {
	out := make([][]byte, len(s.Args))
	for i, v := range s.Args {
		out[i] = append([]byte(nil), v.Bytes()...)
	}
	return out
}

// bulkArgIndex reports which argument (if any) needs the replication
// feed's LEN\r\n framing (spec.md §4.H's "precede its final argument
// with a LEN\r\n line").
func bulkArgIndex(cmd *Command, argv [][]byte) int {
	if !cmd.IsBulk() {
		return -1
	}
	return len(argv) - 1
}
