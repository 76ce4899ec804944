package command

import (
	"container/list"

	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

func listFor(s *session.Session, key string, create bool) (*object.Value, error) {
	v, ok := s.DB.Peek(key)
	if ok {
		if v.Type() != object.TypeList {
			return nil, ErrWrongType
		}
		return v, nil
	}
	if !create {
		return nil, nil
	}
	nv := object.NewList()
	s.DB.Insert(key, nv)
	return nv, nil
}

func pushCommon(d *Dispatcher, s *session.Session, front bool) error {
	key := argStr(s, 1)
	v, err := listFor(s, key, true)
	if err != nil {
		return err
	}
	elem := object.NewString(append([]byte(nil), arg(s, 2)...))
	l := v.List()
	if front {
		l.PushFront(elem)
	} else {
		l.PushBack(elem)
	}
	d.Dirty++
	replyInt(s, int64(l.Len()))
	return nil
}

func cmdLPush(d *Dispatcher, s *session.Session) error { return pushCommon(d, s, true) }
func cmdRPush(d *Dispatcher, s *session.Session) error { return pushCommon(d, s, false) }

func popCommon(d *Dispatcher, s *session.Session, front bool) error {
	key := argStr(s, 1)
	v, _, err := fetchTypedForWrite(s.DB, key, object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		replyNullBulk(s)
		return nil
	}
	l := v.List()
	var e *list.Element
	if front {
		e = l.Front()
	} else {
		e = l.Back()
	}
	if e == nil {
		replyNullBulk(s)
		return nil
	}
	l.Remove(e)
	ev := e.Value.(*object.Value)
	d.Dirty++
	replyBulk(s, ev.Bytes())
	ev.DecrRef()
	if l.Len() == 0 {
		s.DB.Delete(key)
	}
	return nil
}

func cmdLPop(d *Dispatcher, s *session.Session) error { return popCommon(d, s, true) }
func cmdRPop(d *Dispatcher, s *session.Session) error { return popCommon(d, s, false) }

func cmdLLen(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTyped(s.DB, argStr(s, 1), object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		replyInt(s, 0)
		return nil
	}
	replyInt(s, int64(v.List().Len()))
	return nil
}

func elementAt(l *list.List, idx int) *list.Element {
	if idx < 0 || idx >= l.Len() {
		return nil
	}
	e := l.Front()
	for i := 0; i < idx; i++ {
		e = e.Next()
	}
	return e
}

func cmdLIndex(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTyped(s.DB, argStr(s, 1), object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		replyNullBulk(s)
		return nil
	}
	idx, ierr := argInt(s, 2)
	if ierr != nil {
		return ierr
	}
	l := v.List()
	e := elementAt(l, clampIndex(int(idx), l.Len()))
	if e == nil {
		replyNullBulk(s)
		return nil
	}
	replyBulk(s, e.Value.(*object.Value).Bytes())
	return nil
}

func cmdLSet(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTypedForWrite(s.DB, argStr(s, 1), object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrNoSuchKey
	}
	idx, ierr := argInt(s, 2)
	if ierr != nil {
		return ierr
	}
	l := v.List()
	e := elementAt(l, clampIndex(int(idx), l.Len()))
	if e == nil {
		return ErrOutOfRange
	}
	old := e.Value.(*object.Value)
	old.DecrRef()
	e.Value = object.NewString(append([]byte(nil), arg(s, 3)...))
	d.Dirty++
	replyStatus(s, "OK")
	return nil
}

func cmdLRange(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTyped(s.DB, argStr(s, 1), object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		replyMultiBulkHeader(s, 0)
		return nil
	}
	start, serr := argInt(s, 2)
	if serr != nil {
		return serr
	}
	stop, eerr := argInt(s, 3)
	if eerr != nil {
		return eerr
	}
	l := v.List()
	n := l.Len()
	lo := clampIndex(int(start), n)
	hi := clampIndex(int(stop), n)
	if hi >= n {
		hi = n - 1
	}
	if lo < 0 {
		lo = 0
	}
	if lo > hi || n == 0 {
		replyMultiBulkHeader(s, 0)
		return nil
	}
	var elems []*object.Value
	e := elementAt(l, lo)
	for i := lo; i <= hi && e != nil; i++ {
		elems = append(elems, e.Value.(*object.Value))
		e = e.Next()
	}
	replyMultiBulkHeader(s, len(elems))
	for _, ev := range elems {
		replyBulk(s, ev.Bytes())
	}
	return nil
}

func cmdLTrim(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTypedForWrite(s.DB, argStr(s, 1), object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		replyStatus(s, "OK")
		return nil
	}
	start, serr := argInt(s, 2)
	if serr != nil {
		return serr
	}
	stop, eerr := argInt(s, 3)
	if eerr != nil {
		return eerr
	}
	l := v.List()
	n := l.Len()
	lo := clampIndex(int(start), n)
	hi := clampIndex(int(stop), n)
	if hi >= n {
		hi = n - 1
	}
	if lo < 0 {
		lo = 0
	}
	i := 0
	for e := l.Front(); e != nil; {
		next := e.Next()
		if i < lo || i > hi {
			l.Remove(e)
			e.Value.(*object.Value).DecrRef()
		}
		e = next
		i++
	}
	d.Dirty++
	if l.Len() == 0 {
		s.DB.Delete(argStr(s, 1))
	}
	replyStatus(s, "OK")
	return nil
}

func cmdLRem(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTypedForWrite(s.DB, argStr(s, 1), object.TypeList)
	if err != nil {
		return err
	}
	if v == nil {
		replyInt(s, 0)
		return nil
	}
	count, cerr := argInt(s, 2)
	if cerr != nil {
		return cerr
	}
	target := arg(s, 3)
	l := v.List()
	removed := 0
	limit := int(count)
	if limit < 0 {
		limit = -limit
	}
	remove := func(e *list.Element) { l.Remove(e); e.Value.(*object.Value).DecrRef() }

	if count >= 0 {
		for e := l.Front(); e != nil && (limit == 0 || removed < limit); {
			next := e.Next()
			if equalBytes(e.Value.(*object.Value).Bytes(), target) {
				remove(e)
				removed++
			}
			e = next
		}
	} else {
		for e := l.Back(); e != nil && removed < limit; {
			prev := e.Prev()
			if equalBytes(e.Value.(*object.Value).Bytes(), target) {
				remove(e)
				removed++
			}
			e = prev
		}
	}
	if removed > 0 {
		d.Dirty++
	}
	if l.Len() == 0 {
		s.DB.Delete(argStr(s, 1))
	}
	replyInt(s, int64(removed))
	return nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
