package replication

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/emberdb/pkg/command"
	"github.com/cuemby/emberdb/pkg/config"
	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/log"
)

// dialTimeout bounds the initial connect to a master, the same
// dial-with-timeout shape as the pack's TCP health checker.
const dialTimeout = 5 * time.Second

// LoadFunc installs a freshly received dump into ks, matching
// pkg/rdb.Load's exact signature so pkg/server can pass that function
// directly without wrapping it in an interface.
type LoadFunc func(ks *keyspace.Keyspace, path string) error

// SessionRegistrar hands a freshly synced master connection off to
// pkg/server, which owns session IDs and the reactor's fd table.
// Replica itself only runs the handshake; it does not reach into the
// reactor or the client table directly.
type SessionRegistrar interface {
	RegisterMasterLink(conn net.Conn) error
}

// DialFunc opens the connection to a master. pkg/server sets this to a
// raw-fd dialer so the handshake and the long-lived feed connection
// RegisterMasterLink hands to the reactor are the identical descriptor
// type; the zero value falls back to net.DialTimeout for callers (and
// tests) that don't need raw-fd registration.
type DialFunc func(host string, port int, timeout time.Duration) (net.Conn, error)

// Replica implements command.ReplicaController and
// pkg/maintenance.ReplicaSync, driving the replica-side half of
// spec.md §4.H's must-connect/connected state machine.
type Replica struct {
	KS        *keyspace.Keyspace
	Cfg       *config.Config
	Disp      *command.Dispatcher
	Loader    LoadFunc
	DumpPath  string
	Registrar SessionRegistrar
	Dialer    DialFunc

	host        string
	port        int
	mustConnect bool
	connected   bool
}

// NewReplica builds a Replica with no master configured; SlaveOf (or
// the slaveof config directive at boot, via Configure) sets one.
func NewReplica(ks *keyspace.Keyspace, cfg *config.Config, disp *command.Dispatcher, loader LoadFunc, dumpPath string) *Replica {
	return &Replica{KS: ks, Cfg: cfg, Disp: disp, Loader: loader, DumpPath: dumpPath}
}

// Configure points this instance at a boot-time slaveof host/port
// without going through the SLAVEOF command path, for pkg/server's
// startup wiring.
func (r *Replica) Configure(host string, port int) {
	if host == "" {
		return
	}
	r.host, r.port = host, port
	r.mustConnect = true
}

// SlaveOf implements command.ReplicaController.
func (r *Replica) SlaveOf(host string, port int) error {
	if host == "" {
		r.host, r.port = "", 0
		r.mustConnect = false
		r.connected = false
		return nil
	}
	r.host, r.port = host, port
	r.mustConnect = true
	r.connected = false
	return nil
}

// MarkDisconnected tells the replica state machine the master link
// dropped, so the next maintenance tick retries. Called by pkg/server
// when a session with Flags.IsMaster closes.
func (r *Replica) MarkDisconnected() {
	r.connected = false
}

// NeedsReconnect implements pkg/maintenance.ReplicaSync.
func (r *Replica) NeedsReconnect() bool {
	return r.mustConnect && !r.connected
}

// Reconnect implements pkg/maintenance.ReplicaSync: the full
// must-connect handshake of spec.md §4.H, run synchronously on the
// single reactor goroutine. Any failure at any step leaves the state
// at must-connect for the next tick to retry.
func (r *Replica) Reconnect() error {
	replLog := log.WithComponent("replication")
	addr := net.JoinHostPort(r.host, strconv.Itoa(r.port))

	dial := r.Dialer
	if dial == nil {
		dial = func(host string, port int, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
		}
	}
	conn, err := dial(r.host, r.port, dialTimeout)
	if err != nil {
		return fmt.Errorf("replication: dial master %s: %w", addr, err)
	}

	if err := r.syncFrom(conn); err != nil {
		conn.Close()
		return err
	}

	if err := r.Registrar.RegisterMasterLink(conn); err != nil {
		conn.Close()
		return fmt.Errorf("replication: register master link: %w", err)
	}

	r.connected = true
	replLog.Info().Str("master", addr).Msg("initial sync complete, now online")
	return nil
}

func (r *Replica) syncFrom(conn net.Conn) error {
	if _, err := conn.Write([]byte("SYNC \r\n")); err != nil {
		return fmt.Errorf("replication: send SYNC: %w", err)
	}

	reader := bufio.NewReader(conn)
	header, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("replication: read dump header: %w", err)
	}
	size, err := parseDumpHeader(header)
	if err != nil {
		return fmt.Errorf("replication: %w", err)
	}

	tmp, err := os.CreateTemp(dumpDir(r.DumpPath), "sync-*.rdb")
	if err != nil {
		return fmt.Errorf("replication: create temp dump: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.CopyN(tmp, reader, size); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("replication: receive dump body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replication: flush temp dump: %w", err)
	}
	if err := os.Rename(tmpPath, r.DumpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replication: install dump: %w", err)
	}

	r.KS.FlushAll()
	if err := r.Loader(r.KS, r.DumpPath); err != nil {
		return fmt.Errorf("replication: load dump: %w", err)
	}
	return nil
}

// parseDumpHeader parses the master's "$<size>\r\n" inline reply.
func parseDumpHeader(line string) (int64, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "$") {
		return 0, fmt.Errorf("malformed dump header %q", line)
	}
	size, err := strconv.ParseInt(line[1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed dump size %q: %w", line, err)
	}
	return size, nil
}

func dumpDir(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}
