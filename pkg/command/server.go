package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

// Persister implements synchronous and background snapshotting,
// implemented by pkg/rdb. BackgroundSave must not block the calling
// goroutine; pkg/maintenance owns polling its completion and flipping
// Dispatcher.SaveInProgress/LastSaveUnix back on the next tick, since
// both run on the same single reactor goroutine as command dispatch
// and must never be mutated from another one.
type Persister interface {
	Save() error
	BackgroundSave() error
}

// ReplicaController lets SLAVEOF reconfigure pkg/replication's
// replica-side state machine without pkg/command importing it.
type ReplicaController interface {
	// SlaveOf points this instance at a new master, or promotes it back
	// to a master when host is empty (SLAVEOF NO ONE).
	SlaveOf(host string, port int) error
}

func cmdPing(d *Dispatcher, s *session.Session) error {
	replyStatus(s, "PONG")
	return nil
}

func cmdEcho(d *Dispatcher, s *session.Session) error {
	replyBulk(s, arg(s, 1))
	return nil
}

func cmdAuth(d *Dispatcher, s *session.Session) error {
	if d.Cfg == nil || d.Cfg.RequirePass == "" {
		return ErrAuthNotConfigured
	}
	if argStr(s, 1) != d.Cfg.RequirePass {
		return ErrInvalidPassword
	}
	s.Authenticated = true
	replyStatus(s, "OK")
	return nil
}

func cmdSave(d *Dispatcher, s *session.Session) error {
	if d.Persist == nil {
		replyStatus(s, "OK")
		return nil
	}
	if err := d.Persist.Save(); err != nil {
		return err
	}
	d.LastSaveUnix = time.Now().Unix()
	d.Dirty = 0
	replyStatus(s, "OK")
	return nil
}

func cmdBGSave(d *Dispatcher, s *session.Session) error {
	if d.SaveInProgress {
		return ErrSaveInProgress
	}
	if d.Persist == nil {
		replyStatus(s, "Background saving started")
		return nil
	}
	d.SaveInProgress = true
	if err := d.Persist.BackgroundSave(); err != nil {
		d.SaveInProgress = false
		return err
	}
	replyStatus(s, "Background saving started")
	return nil
}

func cmdLastSave(d *Dispatcher, s *session.Session) error {
	replyInt(s, d.LastSaveUnix)
	return nil
}

func cmdShutdown(d *Dispatcher, s *session.Session) error {
	if d.Persist != nil && !d.SaveInProgress {
		_ = d.Persist.Save()
	}
	d.ShouldShutdown = true
	s.Flags.CloseAfterReply = true
	return nil
}

func cmdMonitor(d *Dispatcher, s *session.Session) error {
	s.Flags.IsMonitor = true
	replyStatus(s, "OK")
	return nil
}

func cmdSlaveOf(d *Dispatcher, s *session.Session) error {
	host, portTok := argStr(s, 1), argStr(s, 2)
	if strings.EqualFold(host, "no") && strings.EqualFold(portTok, "one") {
		if d.Replica != nil {
			if err := d.Replica.SlaveOf("", 0); err != nil {
				return err
			}
		}
		if d.Cfg != nil {
			d.Cfg.SlaveOfHost = ""
			d.Cfg.SlaveOfPort = 0
		}
		replyStatus(s, "OK")
		return nil
	}
	port, err := strconv.Atoi(portTok)
	if err != nil {
		return ErrNotInteger
	}
	if d.Replica != nil {
		if rerr := d.Replica.SlaveOf(host, port); rerr != nil {
			return rerr
		}
	}
	if d.Cfg != nil {
		d.Cfg.SlaveOfHost = host
		d.Cfg.SlaveOfPort = port
	}
	replyStatus(s, "OK")
	return nil
}

func cmdDebug(d *Dispatcher, s *session.Session) error {
	switch strings.ToLower(argStr(s, 1)) {
	case "sleep":
		if len(s.Args) < 3 {
			return ErrSyntax
		}
		secs, err := strconv.ParseFloat(argStr(s, 2), 64)
		if err != nil {
			return ErrNotInteger
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		replyStatus(s, "OK")
		return nil
	case "object":
		if len(s.Args) < 3 {
			return ErrSyntax
		}
		key := argStr(s, 2)
		v, ok := s.DB.Peek(key)
		if !ok {
			return ErrNoSuchKey
		}
		info := fmt.Sprintf("Value at:0x0 refcount:%d encoding:%s", v.RefCount(), v.Type())
		replyStatus(s, info)
		return nil
	default:
		return ErrSyntax
	}
}

func cmdInfo(d *Dispatcher, s *session.Session) error {
	var b strings.Builder
	role := "master"
	if d.Cfg != nil && d.Cfg.SlaveOfHost != "" {
		role = "slave"
	}
	fmt.Fprintf(&b, "role:%s\r\n", role)
	if d.RunID != "" {
		fmt.Fprintf(&b, "run_id:%s\r\n", d.RunID)
	}
	fmt.Fprintf(&b, "used_memory:%d\r\n", object.GlobalAllocator().UsedBytes())
	if d.ConnectedClients != nil {
		fmt.Fprintf(&b, "connected_clients:%d\r\n", d.ConnectedClients())
	}
	if d.ReplicaCount != nil {
		fmt.Fprintf(&b, "connected_slaves:%d\r\n", d.ReplicaCount())
	}
	fmt.Fprintf(&b, "changes_since_last_save:%d\r\n", d.Dirty)
	fmt.Fprintf(&b, "bgsave_in_progress:%d\r\n", boolToInt(d.SaveInProgress))
	fmt.Fprintf(&b, "last_save_time:%d\r\n", d.LastSaveUnix)
	if d.KS != nil {
		for _, db := range d.KS.All() {
			if db.Size() == 0 {
				continue
			}
			fmt.Fprintf(&b, "db%d:keys=%d\r\n", db.ID(), db.Size())
		}
	}
	replyBulk(s, []byte(b.String()))
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
