package command

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

type sortOptions struct {
	desc        bool
	alpha       bool
	limitStart  int
	limitCount  int // -1 means "no LIMIT given"
	byPattern   string
	getPatterns []string
	delPatterns []string
	incrPatterns []string
}

func parseSortOptions(s *session.Session) (*sortOptions, error) {
	opt := &sortOptions{limitCount: -1}
	i := 2
	for i < len(s.Args) {
		tok := strings.ToLower(argStr(s, i))
		switch tok {
		case "asc":
			opt.desc = false
			i++
		case "desc":
			opt.desc = true
			i++
		case "alpha":
			opt.alpha = true
			i++
		case "limit":
			if i+2 >= len(s.Args) {
				return nil, ErrSyntax
			}
			start, err := argInt(s, i+1)
			if err != nil {
				return nil, err
			}
			count, err := argInt(s, i+2)
			if err != nil {
				return nil, err
			}
			opt.limitStart = int(start)
			opt.limitCount = int(count)
			i += 3
		case "by":
			if i+1 >= len(s.Args) {
				return nil, ErrSyntax
			}
			opt.byPattern = argStr(s, i+1)
			i += 2
		case "get":
			if i+1 >= len(s.Args) {
				return nil, ErrSyntax
			}
			opt.getPatterns = append(opt.getPatterns, argStr(s, i+1))
			i += 2
		case "del":
			if i+1 >= len(s.Args) {
				return nil, ErrSyntax
			}
			opt.delPatterns = append(opt.delPatterns, argStr(s, i+1))
			i += 2
		case "incr":
			if i+1 >= len(s.Args) {
				return nil, ErrSyntax
			}
			opt.incrPatterns = append(opt.incrPatterns, argStr(s, i+1))
			i += 2
		default:
			return nil, ErrSyntax
		}
	}
	return opt, nil
}

// substitute replaces the first '*' in pattern with elem. A pattern
// with no '*' placeholder has no target key at all; callers treat that
// as the documented no-op case (see DESIGN.md's SORT Open Question
// resolution), not an error.
func substitute(pattern, elem string) (string, bool) {
	idx := strings.IndexByte(pattern, '*')
	if idx < 0 {
		return "", false
	}
	return pattern[:idx] + elem + pattern[idx+1:], true
}

func sourceElements(s *session.Session, key string) ([]string, error) {
	v, ok := s.DB.LookupRead(key)
	if !ok {
		return nil, nil
	}
	switch v.Type() {
	case object.TypeList:
		var out []string
		for e := v.List().Front(); e != nil; e = e.Next() {
			out = append(out, string(e.Value.(*object.Value).Bytes()))
		}
		return out, nil
	case object.TypeSet:
		out := make([]string, 0, len(v.Set()))
		for member := range v.Set() {
			out = append(out, member)
		}
		return out, nil
	default:
		return nil, ErrWrongType
	}
}

func sortKeyFor(s *session.Session, opt *sortOptions, elem string) (string, float64, error) {
	target := elem
	if opt.byPattern != "" {
		key, ok := substitute(opt.byPattern, elem)
		if !ok {
			return "", 0, nil // no '*': caller skips sorting entirely
		}
		v, exists := s.DB.LookupRead(key)
		if !exists || v.Type() != object.TypeString {
			target = ""
		} else {
			target = string(v.Bytes())
		}
	}
	if opt.alpha {
		return target, 0, nil
	}
	f, err := strconv.ParseFloat(target, 64)
	if err != nil {
		if target == "" {
			return "", 0, nil
		}
		return "", 0, ErrNotInteger
	}
	return "", f, nil
}

func cmdSort(d *Dispatcher, s *session.Session) error {
	opt, err := parseSortOptions(s)
	if err != nil {
		return err
	}
	elems, serr := sourceElements(s, argStr(s, 1))
	if serr != nil {
		return serr
	}

	skipSort := opt.byPattern != "" && !strings.Contains(opt.byPattern, "*")
	if !skipSort {
		type scored struct {
			elem string
			str  string
			num  float64
		}
		rows := make([]scored, len(elems))
		for i, e := range elems {
			str, num, kerr := sortKeyFor(s, opt, e)
			if kerr != nil {
				return kerr
			}
			rows[i] = scored{elem: e, str: str, num: num}
		}
		sort.SliceStable(rows, func(a, b int) bool {
			var less bool
			if opt.alpha {
				less = rows[a].str < rows[b].str
			} else {
				less = rows[a].num < rows[b].num
			}
			if opt.desc {
				var greater bool
				if opt.alpha {
					greater = rows[a].str > rows[b].str
				} else {
					greater = rows[a].num > rows[b].num
				}
				return greater
			}
			return less
		})
		elems = elems[:0]
		for _, r := range rows {
			elems = append(elems, r.elem)
		}
	}

	start, count := 0, len(elems)
	if opt.limitCount >= 0 {
		start = opt.limitStart
		count = opt.limitCount
	}
	if start < 0 {
		start = 0
	}
	if start > len(elems) {
		start = len(elems)
	}
	end := start + count
	if count < 0 || end > len(elems) {
		end = len(elems)
	}
	page := elems[start:end]

	for _, e := range page {
		for _, pat := range opt.delPatterns {
			if key, ok := substitute(pat, e); ok {
				if s.DB.Delete(key) {
					d.Dirty++
				}
			}
		}
		for _, pat := range opt.incrPatterns {
			if key, ok := substitute(pat, e); ok {
				if incrErr := incrDecr(d, s, key, 1); incrErr != nil {
					return incrErr
				}
				// incrDecr queues its own :N\r\n reply, which must not
				// leak into SORT's output.
				last := len(s.ReplyQueue) - 1
				s.ReplyQueue[last].DecrRef()
				s.ReplyQueue = s.ReplyQueue[:last]
			}
		}
	}

	if len(opt.getPatterns) == 0 {
		replyMultiBulkHeader(s, len(page))
		for _, e := range page {
			replyBulk(s, []byte(e))
		}
		return nil
	}

	replyMultiBulkHeader(s, len(page)*len(opt.getPatterns))
	for _, e := range page {
		for _, pat := range opt.getPatterns {
			if pat == "#" {
				replyBulk(s, []byte(e))
				continue
			}
			key, ok := substitute(pat, e)
			if !ok {
				replyNullBulk(s)
				continue
			}
			v, exists := s.DB.LookupRead(key)
			if !exists || v.Type() != object.TypeString {
				replyNullBulk(s)
				continue
			}
			replyBulk(s, v.Bytes())
		}
	}
	return nil
}
