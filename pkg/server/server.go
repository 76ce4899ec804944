package server

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/cuemby/emberdb/pkg/command"
	"github.com/cuemby/emberdb/pkg/config"
	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/log"
	"github.com/cuemby/emberdb/pkg/maintenance"
	"github.com/cuemby/emberdb/pkg/metrics"
	"github.com/cuemby/emberdb/pkg/rdb"
	"github.com/cuemby/emberdb/pkg/reactor"
	"github.com/cuemby/emberdb/pkg/replication"
	"github.com/cuemby/emberdb/pkg/resp"
	"github.com/cuemby/emberdb/pkg/session"
)

// readChunk bounds a single unix.Read call on a client socket.
const readChunk = 16 * 1024

// Server is the process-wide wiring point described in doc.go: every
// collaborator pkg/command, pkg/maintenance, and pkg/replication only
// reach through a narrow interface is constructed and connected here.
type Server struct {
	Cfg *config.Config
	KS  *keyspace.Keyspace

	loop    *reactor.Loop
	disp    *command.Dispatcher
	task    *maintenance.Task
	saver   *rdb.Saver
	master  *replication.Master
	replica *replication.Replica
	metrics *metrics.Collector
	clients *clientTable

	listenFD   int
	listenFile *os.File
	metricsSrv *http.Server

	nextSessionID int64
}

// New builds a Server from cfg but does not yet bind or listen.
func New(cfg *config.Config) (*Server, error) {
	ks := keyspace.New(cfg.Databases, cfg.PoolSize())
	loop, err := reactor.New()
	if err != nil {
		return nil, err
	}

	disp := &command.Dispatcher{KS: ks, Cfg: cfg, RunID: uuid.NewString()}
	saver := rdb.New(ks, filepath.Join(cfg.Dir, cfg.DBFilename))
	master := replication.NewMaster(disp, saver)
	sink := metrics.Sink{}

	srv := &Server{
		Cfg:    cfg,
		KS:     ks,
		loop:   loop,
		disp:   disp,
		saver:  saver,
		master: master,
	}
	srv.clients = newClientTable(srv.closeSession)

	replica := replication.NewReplica(ks, cfg, disp, rdb.Load, filepath.Join(cfg.Dir, "sync-"+cfg.DBFilename))
	replica.Registrar = srv
	replica.Dialer = DialMaster
	srv.replica = replica
	if cfg.SlaveOfHost != "" {
		replica.Configure(cfg.SlaveOfHost, cfg.SlaveOfPort)
	}

	disp.Repl = master
	disp.Metrics = sink
	disp.Persist = saver
	disp.Replica = replica
	disp.ConnectedClients = srv.clients.Count
	disp.ReplicaCount = srv.clients.ReplicaCount

	task := maintenance.New(ks, cfg, disp, saver)
	task.Clients = srv.clients
	task.Replica = replica
	task.OnSaveDone = master.OnSaveDone
	task.OnExpired = sink.ObserveExpired
	task.OnEvicted = sink.ObserveEvicted
	disp.FreeMemory = task.FreeMemoryIfNeeded
	srv.task = task

	collector := metrics.NewCollector(ks, disp)
	collector.BlockedClients = srv.clients.BlockedCount
	srv.metrics = collector

	metrics.RegisterComponent("keyspace", true, "ready")
	metrics.RegisterComponent("reactor", false, "not yet accepting connections")

	return srv, nil
}

// Run binds the listening socket, starts the metrics HTTP server and
// the sampling collector, and blocks in the reactor loop until Close
// stops it.
func (srv *Server) Run() error {
	serverLog := log.WithComponent("server")

	lfd, file, err := listen(srv.Cfg.Bind, srv.Cfg.Port)
	if err != nil {
		return err
	}
	srv.listenFD, srv.listenFile = lfd, file

	if err := srv.loop.Register(lfd, reactor.Callbacks{OnReadable: srv.onListenerReadable}); err != nil {
		return err
	}
	srv.loop.OnTick(srv.task.Tick)

	srv.metrics.Start()
	if srv.Cfg.MetricsAddr != "" {
		srv.startMetricsServer()
	}
	metrics.RegisterComponent("reactor", true, "accepting connections")

	serverLog.Info().Str("bind", srv.Cfg.Bind).Int("port", srv.Cfg.Port).Msg("accepting connections")
	return srv.loop.Run()
}

// Close stops the reactor loop and the metrics HTTP server. Safe to
// call from a signal handler goroutine.
func (srv *Server) Close() error {
	metrics.RegisterComponent("reactor", false, "shutting down")
	if srv.metricsSrv != nil {
		srv.metricsSrv.Close()
	}
	srv.metrics.Stop()
	err := srv.loop.Close()
	if srv.listenFile != nil {
		srv.listenFile.Close()
	}
	return err
}

func (srv *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	srv.metricsSrv = &http.Server{Addr: srv.Cfg.MetricsAddr, Handler: mux}

	metricsLog := log.WithComponent("metrics")
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metricsLog.Error().Interface("panic", r).Msg("metrics server panicked")
			}
		}()
		if err := srv.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metricsLog.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

func (srv *Server) onListenerReadable(fd int) {
	fds, err := acceptAll(srv.listenFD)
	if err != nil {
		log.WithComponent("server").Warn().Err(err).Msg("accept failed")
	}
	for _, cfd := range fds {
		srv.adoptConnection(cfd)
	}
}

func (srv *Server) adoptConnection(fd int) {
	srv.nextSessionID++
	db, _ := srv.KS.DB(0)
	conn := newRawConn(fd)
	s := session.New(srv.nextSessionID, conn, fd, db)

	if srv.Cfg.MaxClients > 0 && srv.clients.Count() >= srv.Cfg.MaxClients {
		s.Close()
		return
	}

	srv.clients.add(s)
	cb := reactor.Callbacks{
		OnReadable: func(fd int) { srv.onClientReadable(s) },
	}
	if err := srv.loop.Register(fd, cb); err != nil {
		srv.clients.remove(s)
		s.Close()
	}
}

func (srv *Server) onClientReadable(s *session.Session) {
	var buf [readChunk]byte
	n, err := unix.Read(s.FD, buf[:])
	if err == unix.EAGAIN {
		return
	}
	if err != nil || n == 0 {
		srv.closeSession(s)
		return
	}
	s.Touch()
	s.QueryBuf = append(s.QueryBuf, buf[:n]...)

	if s.Flags.IsReplica {
		// A replica link only ever sends the initial SYNC line; any
		// further bytes are unexpected and discarded rather than
		// dispatched, since table.go deliberately carries no "sync" row.
		if srv.consumeSyncLine(s) {
			srv.master.HandleSync(s)
			srv.syncWritability(s)
		}
		return
	}

	if srv.consumeSyncLine(s) {
		s.Flags.IsReplica = true
		srv.master.HandleSync(s)
		srv.syncWritability(s)
		return
	}

	wasMonitor := s.Flags.IsMonitor
	closeAfter, perr := srv.disp.ProcessBuffer(s)
	if perr != nil {
		closeAfter = true
	}

	if !wasMonitor && s.Flags.IsMonitor {
		srv.master.AddMonitor(s)
	}

	if s.Flags.IsMaster {
		// Replies to applied commands on a master link are never sent
		// back upstream; drop them instead of letting them pile up.
		for _, v := range s.ReplyQueue {
			v.DecrRef()
		}
		s.ReplyQueue = s.ReplyQueue[:0]
		s.SentOffset = 0
	}

	srv.syncWritability(s)
	if closeAfter && len(s.ReplyQueue) == 0 {
		srv.closeSession(s)
	}
}

// consumeSyncLine peeks the first queued inline line; if it is the
// SYNC command, it is removed from QueryBuf and true is returned.
// table.go has no "sync" row (SYNC doesn't fit HandlerFunc's
// single-reply contract), so it must be intercepted here, ahead of
// ordinary dispatch.
func (srv *Server) consumeSyncLine(s *session.Session) bool {
	line, rest, ok, err := resp.ScanLine(s.QueryBuf)
	if err != nil || !ok {
		return false
	}
	tokens := resp.SplitTokens(line)
	if len(tokens) == 0 || !strings.EqualFold(string(tokens[0]), "sync") {
		return false
	}
	s.QueryBuf = rest
	return true
}

func (srv *Server) onClientWritable(s *session.Session) {
	if s.ReplState == session.ReplSendingBulk {
		done, err := srv.master.DrainBulk(s)
		if err != nil {
			srv.closeSession(s)
			return
		}
		if done {
			srv.syncWritability(s)
		}
		return
	}

	_, empty, err := s.Drain()
	if err != nil {
		srv.closeSession(s)
		return
	}
	srv.syncWritability(s)
	if empty && s.Flags.CloseAfterReply {
		srv.closeSession(s)
	}
}

// syncWritability tells the reactor whether this session's fd still
// needs EPOLLOUT, based on whether anything is queued to send.
func (srv *Server) syncWritability(s *session.Session) {
	wantWritable := len(s.ReplyQueue) > 0 || s.ReplState == session.ReplSendingBulk
	cb := reactor.Callbacks{OnReadable: func(fd int) { srv.onClientReadable(s) }}
	if wantWritable {
		cb.OnWritable = func(fd int) { srv.onClientWritable(s) }
	}
	srv.loop.Modify(s.FD, cb)
}

func (srv *Server) closeSession(s *session.Session) {
	srv.loop.Unregister(s.FD)
	srv.clients.remove(s)
	srv.master.RemoveSession(s)
	if s.Flags.IsMaster {
		srv.replica.MarkDisconnected()
	}
	s.Close()
}

// RegisterMasterLink implements replication.SessionRegistrar: it wraps
// an already-connected net.Conn to this instance's master as a normal
// session flagged IsMaster, and registers it with the reactor so
// replicated commands arriving on it flow through the same
// ProcessBuffer path as any other client.
func (srv *Server) RegisterMasterLink(conn net.Conn) error {
	rc, ok := conn.(*rawConn)
	if !ok {
		return fmt.Errorf("server: master link connection is not a raw fd")
	}
	if err := unix.SetNonblock(rc.fd, true); err != nil {
		return fmt.Errorf("server: set master link non-blocking: %w", err)
	}
	srv.nextSessionID++
	db, _ := srv.KS.DB(0)
	s := session.New(srv.nextSessionID, rc, rc.fd, db)
	s.Flags.IsMaster = true

	srv.clients.add(s)
	cb := reactor.Callbacks{OnReadable: func(fd int) { srv.onClientReadable(s) }}
	return srv.loop.Register(rc.fd, cb)
}

// DialMaster implements the net.Conn-producing half of
// replication.Replica.Reconnect's dial step, using the same rawConn
// type RegisterMasterLink expects, so the handshake and the long-lived
// feed connection are the identical fd all the way through.
func DialMaster(host string, port int, timeout time.Duration) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	var sa unix.SockaddrInet4
	copy(sa.Addr[:], tcpAddr.IP.To4())
	sa.Port = tcpAddr.Port

	errCh := make(chan error, 1)
	go func() { errCh <- unix.Connect(fd, &sa) }()
	select {
	case err := <-errCh:
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
	case <-time.After(timeout):
		unix.Close(fd)
		return nil, fmt.Errorf("server: dial %s: timed out", addr)
	}
	// Left blocking deliberately: Replica.syncFrom's handshake (the SYNC
	// write, the header read, the dump copy) runs synchronously on the
	// maintenance-tick goroutine and expects ordinary blocking I/O.
	// RegisterMasterLink switches the fd non-blocking once the handshake
	// finishes and it's handed to the epoll-driven feed reader.
	return newRawConn(fd), nil
}
