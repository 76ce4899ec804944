package command

import (
	"sort"

	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

func setFor(s *session.Session, key string, create bool) (*object.Value, error) {
	v, ok := s.DB.Peek(key)
	if ok {
		if v.Type() != object.TypeSet {
			return nil, ErrWrongType
		}
		return v, nil
	}
	if !create {
		return nil, nil
	}
	nv := object.NewSet()
	s.DB.Insert(key, nv)
	return nv, nil
}

func cmdSAdd(d *Dispatcher, s *session.Session) error {
	v, err := setFor(s, argStr(s, 1), true)
	if err != nil {
		return err
	}
	member := argStr(s, 2)
	set := v.Set()
	if _, exists := set[member]; exists {
		replyInt(s, 0)
		return nil
	}
	set[member] = object.NewString(append([]byte(nil), arg(s, 2)...))
	d.Dirty++
	replyInt(s, 1)
	return nil
}

func cmdSRem(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTypedForWrite(s.DB, argStr(s, 1), object.TypeSet)
	if err != nil {
		return err
	}
	if v == nil {
		replyInt(s, 0)
		return nil
	}
	set := v.Set()
	member := argStr(s, 2)
	mv, exists := set[member]
	if !exists {
		replyInt(s, 0)
		return nil
	}
	delete(set, member)
	mv.DecrRef()
	d.Dirty++
	if len(set) == 0 {
		s.DB.Delete(argStr(s, 1))
	}
	replyInt(s, 1)
	return nil
}

func cmdSIsMember(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTyped(s.DB, argStr(s, 1), object.TypeSet)
	if err != nil {
		return err
	}
	if v == nil {
		replyInt(s, 0)
		return nil
	}
	if _, ok := v.Set()[argStr(s, 2)]; ok {
		replyInt(s, 1)
		return nil
	}
	replyInt(s, 0)
	return nil
}

func cmdSCard(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTyped(s.DB, argStr(s, 1), object.TypeSet)
	if err != nil {
		return err
	}
	if v == nil {
		replyInt(s, 0)
		return nil
	}
	replyInt(s, int64(len(v.Set())))
	return nil
}

func cmdSMove(d *Dispatcher, s *session.Session) error {
	srcKey, dstKey, member := argStr(s, 1), argStr(s, 2), argStr(s, 3)
	if srcKey == dstKey {
		replyInt(s, 1)
		return nil
	}
	src, _, err := fetchTypedForWrite(s.DB, srcKey, object.TypeSet)
	if err != nil {
		return err
	}
	if src == nil {
		replyInt(s, 0)
		return nil
	}
	mv, exists := src.Set()[member]
	if !exists {
		replyInt(s, 0)
		return nil
	}
	dst, derr := setFor(s, dstKey, true)
	if derr != nil {
		return derr
	}
	delete(src.Set(), member)
	if len(src.Set()) == 0 {
		s.DB.Delete(srcKey)
	}
	if _, already := dst.Set()[member]; already {
		mv.DecrRef()
	} else {
		dst.Set()[member] = mv
	}
	d.Dirty++
	replyInt(s, 1)
	return nil
}

func cmdSPop(d *Dispatcher, s *session.Session) error {
	v, _, err := fetchTypedForWrite(s.DB, argStr(s, 1), object.TypeSet)
	if err != nil {
		return err
	}
	if v == nil {
		replyNullBulk(s)
		return nil
	}
	set := v.Set()
	if len(set) == 0 {
		replyNullBulk(s)
		return nil
	}
	var member string
	for k := range set {
		member = k
		break
	}
	mv := set[member]
	delete(set, member)
	d.Dirty++
	if len(set) == 0 {
		s.DB.Delete(argStr(s, 1))
	}
	replyBulk(s, mv.Bytes())
	mv.DecrRef()
	return nil
}

// loadSets resolves each key argument to a set's membership map
// (stdlib map, never nil) for the SINTER/SUNION/SDIFF family. A missing
// key becomes an empty set, so an intersection with it is empty; a key
// holding another type fails the whole call with ErrWrongType.
func loadSets(s *session.Session, keys []string) ([]map[string]*object.Value, error) {
	out := make([]map[string]*object.Value, len(keys))
	for i, k := range keys {
		v, _, err := fetchTyped(s.DB, k, object.TypeSet)
		if err != nil {
			return nil, err
		}
		if v == nil {
			out[i] = map[string]*object.Value{}
			continue
		}
		out[i] = v.Set()
	}
	return out, nil
}

func sinterCompute(sets []map[string]*object.Value) map[string]bool {
	if len(sets) == 0 {
		return nil
	}
	order := make([]int, len(sets))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return len(sets[order[a]]) < len(sets[order[b]]) })
	result := make(map[string]bool, len(sets[order[0]]))
	for member := range sets[order[0]] {
		result[member] = true
	}
	for _, idx := range order[1:] {
		for member := range result {
			if _, ok := sets[idx][member]; !ok {
				delete(result, member)
			}
		}
	}
	return result
}

func sunionCompute(sets []map[string]*object.Value) map[string]bool {
	result := make(map[string]bool)
	for _, set := range sets {
		for member := range set {
			result[member] = true
		}
	}
	return result
}

func sdiffCompute(sets []map[string]*object.Value) map[string]bool {
	if len(sets) == 0 {
		return nil
	}
	result := make(map[string]bool, len(sets[0]))
	for member := range sets[0] {
		result[member] = true
	}
	for _, set := range sets[1:] {
		for member := range set {
			delete(result, member)
		}
	}
	return result
}

func keysFrom(s *session.Session, from int) []string {
	keys := make([]string, 0, len(s.Args)-from)
	for i := from; i < len(s.Args); i++ {
		keys = append(keys, argStr(s, i))
	}
	return keys
}

func replySetResult(s *session.Session, result map[string]bool) {
	replyMultiBulkHeader(s, len(result))
	for member := range result {
		replyBulk(s, []byte(member))
	}
}

func cmdSInter(d *Dispatcher, s *session.Session) error {
	sets, err := loadSets(s, keysFrom(s, 1))
	if err != nil {
		return err
	}
	replySetResult(s, sinterCompute(sets))
	return nil
}

func cmdSMembers(d *Dispatcher, s *session.Session) error {
	return cmdSInter(d, s)
}

func storeResult(d *Dispatcher, s *session.Session, destKey string, result map[string]bool) error {
	if len(result) == 0 {
		s.DB.Delete(destKey)
		d.Dirty++
		replyInt(s, 0)
		return nil
	}
	nv := object.NewSet()
	for member := range result {
		nv.Set()[member] = object.NewString([]byte(member))
	}
	if _, existed := s.DB.LookupWrite(destKey); existed {
		s.DB.Replace(destKey, nv)
	} else {
		s.DB.Insert(destKey, nv)
	}
	d.Dirty++
	replyInt(s, int64(len(result)))
	return nil
}

func cmdSInterStore(d *Dispatcher, s *session.Session) error {
	sets, err := loadSets(s, keysFrom(s, 2))
	if err != nil {
		return err
	}
	return storeResult(d, s, argStr(s, 1), sinterCompute(sets))
}

func cmdSUnion(d *Dispatcher, s *session.Session) error {
	sets, err := loadSets(s, keysFrom(s, 1))
	if err != nil {
		return err
	}
	replySetResult(s, sunionCompute(sets))
	return nil
}

func cmdSUnionStore(d *Dispatcher, s *session.Session) error {
	sets, err := loadSets(s, keysFrom(s, 2))
	if err != nil {
		return err
	}
	return storeResult(d, s, argStr(s, 1), sunionCompute(sets))
}

func cmdSDiff(d *Dispatcher, s *session.Session) error {
	sets, err := loadSets(s, keysFrom(s, 1))
	if err != nil {
		return err
	}
	replySetResult(s, sdiffCompute(sets))
	return nil
}

func cmdSDiffStore(d *Dispatcher, s *session.Session) error {
	sets, err := loadSets(s, keysFrom(s, 2))
	if err != nil {
		return err
	}
	return storeResult(d, s, argStr(s, 1), sdiffCompute(sets))
}
