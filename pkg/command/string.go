package command

import (
	"strconv"

	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

func cmdGet(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	v, _, err := fetchTyped(s.DB, key, object.TypeString)
	if err != nil {
		return err
	}
	if v == nil {
		replyNullBulk(s)
		return nil
	}
	replyBulk(s, v.Bytes())
	return nil
}

func cmdSet(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	val := object.NewString(append([]byte(nil), arg(s, 2)...))
	if _, existed := s.DB.LookupWrite(key); existed {
		s.DB.Replace(key, val)
	} else {
		s.DB.Insert(key, val)
	}
	d.Dirty++
	replyStatus(s, "OK")
	return nil
}

func cmdSetNX(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	if _, ok := s.DB.Peek(key); ok {
		replyInt(s, 0)
		return nil
	}
	val := object.NewString(append([]byte(nil), arg(s, 2)...))
	s.DB.Insert(key, val)
	d.Dirty++
	replyInt(s, 1)
	return nil
}

func cmdGetSet(d *Dispatcher, s *session.Session) error {
	key := argStr(s, 1)
	v, _, err := fetchTypedForWrite(s.DB, key, object.TypeString)
	if err != nil {
		return err
	}
	newVal := object.NewString(append([]byte(nil), arg(s, 2)...))
	if v == nil {
		replyNullBulk(s)
		s.DB.Insert(key, newVal)
	} else {
		// Reply before Replace: Replace releases v, which may recycle it.
		replyBulk(s, v.Bytes())
		s.DB.Replace(key, newVal)
	}
	d.Dirty++
	return nil
}

func cmdMGet(d *Dispatcher, s *session.Session) error {
	replyMultiBulkHeader(s, len(s.Args)-1)
	for i := 1; i < len(s.Args); i++ {
		v, ok := s.DB.LookupRead(argStr(s, i))
		if !ok || v.Type() != object.TypeString {
			replyNullBulk(s)
			continue
		}
		replyBulk(s, v.Bytes())
	}
	return nil
}

func incrDecr(d *Dispatcher, s *session.Session, key string, by int64) error {
	v, _, err := fetchTypedForWrite(s.DB, key, object.TypeString)
	if err != nil {
		return err
	}
	var cur int64
	if v != nil {
		cur, err = strconv.ParseInt(string(v.Bytes()), 10, 64)
		if err != nil {
			return ErrNotInteger
		}
	}
	cur += by
	newVal := object.NewString([]byte(strconv.FormatInt(cur, 10)))
	if v != nil {
		s.DB.Replace(key, newVal)
	} else {
		s.DB.Insert(key, newVal)
	}
	d.Dirty++
	replyInt(s, cur)
	return nil
}

func cmdIncr(d *Dispatcher, s *session.Session) error {
	return incrDecr(d, s, argStr(s, 1), 1)
}

func cmdDecr(d *Dispatcher, s *session.Session) error {
	return incrDecr(d, s, argStr(s, 1), -1)
}

func cmdIncrBy(d *Dispatcher, s *session.Session) error {
	by, err := argInt(s, 2)
	if err != nil {
		return err
	}
	return incrDecr(d, s, argStr(s, 1), by)
}

func cmdDecrBy(d *Dispatcher, s *session.Session) error {
	by, err := argInt(s, 2)
	if err != nil {
		return err
	}
	return incrDecr(d, s, argStr(s, 1), -by)
}
