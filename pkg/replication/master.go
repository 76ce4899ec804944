package replication

import (
	"io"
	"os"
	"strconv"

	"github.com/cuemby/emberdb/pkg/command"
	"github.com/cuemby/emberdb/pkg/log"
	"github.com/cuemby/emberdb/pkg/session"
)

// bulkSendChunk bounds how many dump-file bytes one writable event
// copies to a replica, spec.md §4.H's "bounded read/write cycle per
// event" for the sending-bulk streaming sender.
const bulkSendChunk = 64 * 1024

// Snapshotter is the subset of pkg/rdb.Saver the master side needs:
// starting a save and knowing where its output landed.
type Snapshotter interface {
	BackgroundSave() error
	Path() string
}

type replicaLink struct {
	sess   *session.Session
	lastDB int
}

// Master implements command.ReplicationSink and drives the master-side
// half of spec.md §4.H's replica state machine.
type Master struct {
	Disp *command.Dispatcher
	Snap Snapshotter

	replicas map[*session.Session]*replicaLink
	monitors map[*session.Session]*replicaLink
}

// NewMaster builds a Master wired to disp and snap. disp.Repl should be
// set to the returned value, and pkg/maintenance.Task.OnSaveDone to its
// OnSaveDone method, to complete the wiring.
func NewMaster(disp *command.Dispatcher, snap Snapshotter) *Master {
	return &Master{
		Disp:     disp,
		Snap:     snap,
		replicas: make(map[*session.Session]*replicaLink),
		monitors: make(map[*session.Session]*replicaLink),
	}
}

// ReplicaCount reports how many replicas are attached, online or not,
// for command.Dispatcher.ReplicaCount and emberdb_replica_count.
func (m *Master) ReplicaCount() int { return len(m.replicas) }

// AddMonitor registers s to receive the command feed, for MONITOR.
func (m *Master) AddMonitor(s *session.Session) {
	m.monitors[s] = &replicaLink{sess: s, lastDB: -1}
}

// RemoveSession drops s from both the replica and monitor sets. Called
// by pkg/server when a session closes.
func (m *Master) RemoveSession(s *session.Session) {
	delete(m.replicas, s)
	delete(m.monitors, s)
}

// HandleSync implements the master side of SYNC (spec.md §4.H),
// invoked by pkg/server when it recognizes the inline "sync" line
// ahead of normal command dispatch.
func (m *Master) HandleSync(s *session.Session) {
	s.Flags.IsReplica = true
	link := &replicaLink{sess: s, lastDB: -1}
	m.replicas[s] = link

	switch {
	case m.Disp.SaveInProgress && m.anyWaitingDumpEnd() != nil:
		donor := m.anyWaitingDumpEnd()
		for _, v := range donor.sess.ReplyQueue {
			s.Enqueue(v)
		}
		s.ReplState = session.ReplWaitDumpEnd
	case m.Disp.SaveInProgress:
		s.ReplState = session.ReplWaitDumpStart
	default:
		m.Disp.SaveInProgress = true
		if err := m.Snap.BackgroundSave(); err != nil {
			m.Disp.SaveInProgress = false
			delete(m.replicas, s)
			s.Flags.CloseAfterReply = true
			log.WithComponent("replication").Warn().Err(err).Msg("sync-triggered background save failed to start")
			return
		}
		s.ReplState = session.ReplWaitDumpEnd
	}
}

func (m *Master) anyWaitingDumpEnd() *replicaLink {
	for _, link := range m.replicas {
		if link.sess.ReplState == session.ReplWaitDumpEnd {
			return link
		}
	}
	return nil
}

// OnSaveDone implements pkg/maintenance.Task.OnSaveDone, advancing
// every replica waiting on this save (spec.md §4.H's "on save
// completion" transitions).
func (m *Master) OnSaveDone(ok bool) {
	replLog := log.WithComponent("replication")
	var waitingStart, waitingEnd []*replicaLink
	for _, link := range m.replicas {
		switch link.sess.ReplState {
		case session.ReplWaitDumpStart:
			waitingStart = append(waitingStart, link)
		case session.ReplWaitDumpEnd:
			waitingEnd = append(waitingEnd, link)
		}
	}

	if !ok {
		for _, link := range append(waitingStart, waitingEnd...) {
			m.closeReplica(link, "background save failed")
		}
		return
	}

	for _, link := range waitingEnd {
		m.beginBulkSend(link)
	}

	if len(waitingStart) == 0 {
		return
	}
	for _, link := range waitingStart {
		link.sess.ReplState = session.ReplWaitDumpEnd
	}
	m.Disp.SaveInProgress = true
	if err := m.Snap.BackgroundSave(); err != nil {
		m.Disp.SaveInProgress = false
		for _, link := range waitingStart {
			m.closeReplica(link, "background save failed to start")
		}
		replLog.Warn().Err(err).Msg("follow-up background save failed to start")
	}
}

func (m *Master) closeReplica(link *replicaLink, reason string) {
	log.WithComponent("replication").Warn().Str("reason", reason).Msg("closing replica")
	link.sess.Flags.CloseAfterReply = true
	delete(m.replicas, link.sess)
}

func (m *Master) beginBulkSend(link *replicaLink) {
	f, err := os.Open(m.Snap.Path())
	if err != nil {
		m.closeReplica(link, "dump file open failed: "+err.Error())
		return
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		m.closeReplica(link, "dump file stat failed: "+err.Error())
		return
	}
	link.sess.DumpFile = f
	link.sess.DumpOffset = 0
	link.sess.DumpSize = info.Size()
	link.sess.ReplState = session.ReplSendingBulk
	enqueueRaw(link.sess, []byte(headerLine(info.Size())))
}

func headerLine(size int64) string {
	return "$" + strconv.FormatInt(size, 10) + "\r\n"
}

// DrainBulk is pkg/server's writable callback for a session in
// ReplSendingBulk state: it streams the dump file in bounded chunks
// instead of draining the normal reply queue, then transitions the
// replica online once the whole file has been sent.
func (m *Master) DrainBulk(s *session.Session) (done bool, err error) {
	if s.SentOffset > 0 || len(s.ReplyQueue) > 0 {
		if _, empty, werr := s.Drain(); werr != nil || !empty {
			return false, werr
		}
	}

	buf := make([]byte, bulkSendChunk)
	n, rerr := s.DumpFile.Read(buf)
	if n > 0 {
		written, werr := s.Conn.Write(buf[:n])
		if written < n {
			// A short (possibly zero-byte, on EAGAIN) write leaves part of
			// this chunk unsent; rewind so the next writable event re-reads
			// and resends exactly the unwritten tail instead of skipping it.
			s.DumpFile.Seek(int64(written-n), io.SeekCurrent)
		}
		s.DumpOffset += int64(written)
		if werr != nil {
			return false, werr
		}
	}
	if rerr != nil && rerr != io.EOF {
		return false, rerr
	}
	if s.DumpOffset < s.DumpSize {
		return false, nil
	}

	s.DumpFile.Close()
	s.DumpFile = nil
	s.ReplState = session.ReplOnline
	if link, ok := m.replicas[s]; ok {
		link.lastDB = -1
	}
	return true, nil
}

// Feed implements command.ReplicationSink: it reserializes argv and
// fans it out to every online replica, prefixing SELECT on DB change.
func (m *Master) Feed(dbIndex int, argv [][]byte, bulkArgIndex int) {
	if len(m.replicas) == 0 {
		return
	}
	line := serializeCommand(argv, bulkArgIndex)
	for _, link := range m.replicas {
		if link.sess.ReplState != session.ReplOnline {
			continue
		}
		if link.lastDB != dbIndex {
			enqueueRaw(link.sess, selectLine(dbIndex))
			link.lastDB = dbIndex
		}
		enqueueRaw(link.sess, line)
	}
}

// FeedMonitors implements command.ReplicationSink. Monitors receive the
// plain inline form (no LEN-prefixed bulk argument, per spec.md §4.H's
// "inline text form" wording for MONITOR output, distinct from the
// replica feed's bulk-aware framing this package's Feed method uses;
// see DESIGN.md for why the interface carries no bulk index here).
func (m *Master) FeedMonitors(dbIndex int, argv [][]byte) {
	if len(m.monitors) == 0 {
		return
	}
	line := serializeCommand(argv, noBulkArg)
	for _, link := range m.monitors {
		if link.lastDB != dbIndex {
			enqueueRaw(link.sess, selectLine(dbIndex))
			link.lastDB = dbIndex
		}
		enqueueRaw(link.sess, line)
	}
}
