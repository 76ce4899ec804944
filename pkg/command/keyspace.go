package command

import (
	"time"

	"github.com/cuemby/emberdb/pkg/glob"
	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

func cmdDel(d *Dispatcher, s *session.Session) error {
	n := 0
	for i := 1; i < len(s.Args); i++ {
		if s.DB.Delete(argStr(s, i)) {
			n++
		}
	}
	if n > 0 {
		d.Dirty++
	}
	replyInt(s, int64(n))
	return nil
}

func cmdExists(d *Dispatcher, s *session.Session) error {
	if _, ok := s.DB.LookupRead(argStr(s, 1)); ok {
		replyInt(s, 1)
		return nil
	}
	replyInt(s, 0)
	return nil
}

func cmdKeys(d *Dispatcher, s *session.Session) error {
	return keysImpl(s, argStr(s, 1))
}

func cmdType(d *Dispatcher, s *session.Session) error {
	v, ok := s.DB.LookupRead(argStr(s, 1))
	if !ok {
		replyStatus(s, "none")
		return nil
	}
	replyStatus(s, v.Type().String())
	return nil
}

func cmdRandomKey(d *Dispatcher, s *session.Session) error {
	key, ok := s.DB.RandomKey()
	if !ok {
		replyNullBulk(s)
		return nil
	}
	replyBulk(s, []byte(key))
	return nil
}

func cmdRename(d *Dispatcher, s *session.Session) error {
	src, dst := argStr(s, 1), argStr(s, 2)
	if src == dst {
		return ErrSameKey
	}
	v, ok := s.DB.LookupWrite(src)
	if !ok {
		return ErrNoSuchKey
	}
	s.DB.Delete(dst)
	// IncrRef protects v across the Delete/Insert pair: Delete(src)
	// drops the main map's reference, Insert(dst, v) takes ownership of
	// this one without incrementing it itself.
	v.IncrRef()
	s.DB.Delete(src)
	s.DB.Insert(dst, v)
	d.Dirty++
	replyStatus(s, "OK")
	return nil
}

func cmdRenameNX(d *Dispatcher, s *session.Session) error {
	src, dst := argStr(s, 1), argStr(s, 2)
	if src == dst {
		return ErrSameKey
	}
	if _, ok := s.DB.Peek(src); !ok {
		return ErrNoSuchKey
	}
	if _, ok := s.DB.Peek(dst); ok {
		replyInt(s, 0)
		return nil
	}
	v, _ := s.DB.LookupWrite(src)
	v.IncrRef()
	s.DB.Delete(src)
	s.DB.Insert(dst, v)
	d.Dirty++
	replyInt(s, 1)
	return nil
}

func cmdMove(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	dbIdx, err := argInt(s, 2)
	if err != nil {
		return err
	}
	destDB, derr := d.KS.DB(int(dbIdx))
	if derr != nil {
		return ErrSyntax
	}
	if destDB == s.DB {
		return ErrSameKey
	}
	v, ok := s.DB.Peek(key)
	if !ok {
		replyInt(s, 0)
		return nil
	}
	if _, exists := destDB.Peek(key); exists {
		replyInt(s, 0)
		return nil
	}
	v.IncrRef()
	s.DB.Delete(key)
	destDB.Insert(key, v)
	d.Dirty++
	replyInt(s, 1)
	return nil
}

func cmdSelect(d *Dispatcher, s *session.Session) error {
	idx, err := argInt(s, 1)
	if err != nil {
		return err
	}
	db, derr := d.KS.DB(int(idx))
	if derr != nil {
		return ErrSyntax
	}
	s.DB = db
	replyStatus(s, "OK")
	return nil
}

func cmdDBSize(d *Dispatcher, s *session.Session) error {
	replyInt(s, int64(s.DB.Size()))
	return nil
}

func cmdFlushDB(d *Dispatcher, s *session.Session) error {
	s.DB.Flush()
	d.Dirty++
	replyStatus(s, "OK")
	return nil
}

func cmdFlushAll(d *Dispatcher, s *session.Session) error {
	d.KS.FlushAll()
	d.Dirty++
	replyStatus(s, "OK")
	return nil
}

func cmdExpire(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	seconds, err := argInt(s, 2)
	if err != nil {
		return err
	}
	when := time.Now().Add(time.Duration(seconds) * time.Second)
	if s.DB.SetExpire(key, when) {
		d.Dirty++
		replyInt(s, 1)
		return nil
	}
	replyInt(s, 0)
	return nil
}

func cmdTTL(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	if _, ok := s.DB.LookupRead(key); !ok {
		replyInt(s, -1)
		return nil
	}
	when, ok := s.DB.GetExpire(key)
	if !ok {
		replyInt(s, -1)
		return nil
	}
	remaining := time.Until(when)
	if remaining < 0 {
		remaining = 0
	}
	replyInt(s, int64(remaining/time.Second))
	return nil
}

func keysImpl(s *session.Session, pattern string) error {
	var matched []string
	s.DB.Range(func(key string, _ *object.Value) {
		if glob.Match(pattern, key, false) {
			matched = append(matched, key)
		}
	})
	replyMultiBulkHeader(s, len(matched))
	for _, k := range matched {
		replyBulk(s, []byte(k))
	}
	return nil
}
