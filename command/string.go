package command

import (
	"strings"

	"github.com/kvshard/kvshard/resp"
	"github.com/kvshard/kvshard/shard"
	"github.com/kvshard/kvshard/store"
)

// Get returns the scalar stored at a key, or the null bulk string if
// absent. An integer scalar is rendered as its decimal string, matching
// how SET/INCR round-trip through GET.
type Get struct {
	key []byte
}

func parseGet(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 1 {
		return nil, errArity("get")
	}
	return &Get{key: rest[0]}, nil
}

func (g *Get) Shard() uint64 { return shard.Of(g.key) }

func (g *Get) Exec(ks *store.Keyspace) (resp.Message, error) {
	v, ok := ks.Get(string(g.key))
	if !ok {
		return resp.NullBulk(), nil
	}
	b, err := valueBytes(v)
	if err != nil {
		return errMessage(err), nil
	}
	// Reply with a copy so a later in-place write to the stored buffer
	// can't change a reply still waiting to be written.
	cp := make([]byte, len(b))
	copy(cp, b)
	return resp.Bulk(cp), nil
}

// errMessage renders err (expected to be *Error) as the reply Message.
func errMessage(err error) resp.Message {
	if ce, ok := err.(*Error); ok {
		return ce.Message()
	}
	return resp.Err("ERR " + err.Error())
}

// SetOpt selects SET's conditional-existence behavior.
type SetOpt int

const (
	SetAlways SetOpt = iota
	SetIfAbsent
	SetIfPresent
)

// Set implements SET and its SETNX/SETEX/PSETEX sibling verbs. The TTL
// fields are parsed for protocol compatibility but never enforced — no
// key in this server ever expires on its own; see spec's non-goals.
type Set struct {
	key  []byte
	val  []byte
	opt  SetOpt
	ttl  int64 // seconds (EX/SETEX) or milliseconds (PX/PSETEX); unused
	hasT bool
}

func parseSet(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) < 2 {
		return nil, errArity("set")
	}
	s := &Set{key: rest[0], val: rest[1]}
	toks := rest[2:]
	for i := 0; i < len(toks); i++ {
		switch strings.ToUpper(string(toks[i])) {
		case "NX":
			s.opt = SetIfAbsent
		case "XX":
			s.opt = SetIfPresent
		case "EX":
			if i+1 >= len(toks) {
				return nil, errSyntax()
			}
			i++
			// Per a documented quirk of the reference implementation, an
			// unparsable TTL number is silently discarded rather than
			// rejected: the SET still succeeds, just without a TTL.
			if n, ok := parseDecimalInt64(toks[i]); ok {
				s.ttl, s.hasT = n, true
			}
		case "PX":
			if i+1 >= len(toks) {
				return nil, errSyntax()
			}
			i++
			if n, ok := parseDecimalInt64(toks[i]); ok {
				s.ttl, s.hasT = n, true
			}
		default:
			return nil, errSyntax()
		}
	}
	return s, nil
}

func parseSetNX(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 2 {
		return nil, errArity("setnx")
	}
	return &Set{key: rest[0], val: rest[1], opt: SetIfAbsent}, nil
}

func parseSetEX(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 3 {
		return nil, errArity("setex")
	}
	s := &Set{key: rest[0], val: rest[2]}
	if n, ok := parseDecimalInt64(rest[1]); ok {
		s.ttl, s.hasT = n, true
	}
	return s, nil
}

func parsePSetEX(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 3 {
		return nil, errArity("psetex")
	}
	s := &Set{key: rest[0], val: rest[2]}
	if n, ok := parseDecimalInt64(rest[1]); ok {
		s.ttl, s.hasT = n, true
	}
	return s, nil
}

func (s *Set) Shard() uint64 { return shard.Of(s.key) }

func (s *Set) Exec(ks *store.Keyspace) (resp.Message, error) {
	exists := ks.Contains(string(s.key))
	if s.opt == SetIfAbsent && exists {
		return resp.NullBulk(), nil
	}
	if s.opt == SetIfPresent && !exists {
		return resp.NullBulk(), nil
	}
	ks.Insert(string(s.key), store.NewStringValue(store.NewBytes(append([]byte(nil), s.val...))))
	return resp.String("OK"), nil
}

// Append appends a value to the string stored at a key, creating it if
// absent, and returns the new total length.
type Append struct {
	key []byte
	val []byte
}

func parseAppend(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 2 {
		return nil, errArity("append")
	}
	return &Append{key: rest[0], val: rest[1]}, nil
}

func (a *Append) Shard() uint64 { return shard.Of(a.key) }

func (a *Append) Exec(ks *store.Keyspace) (resp.Message, error) {
	old, existed := ks.RemoveEntry(string(a.key))
	bv, err := scalarBytes(old, existed)
	if err != nil {
		if existed {
			ks.Insert(string(a.key), old)
		}
		return errMessage(err), nil
	}

	oldLen := bv.Len()
	newLen := oldLen + len(a.val)
	bv, buf := bv.Mutable(newLen)
	copy(buf[oldLen:], a.val)
	ks.Insert(string(a.key), store.NewStringValue(bv))
	return resp.Integer(int64(newLen)), nil
}

// Strlen reports the byte length of the scalar at a key, 0 if absent.
type Strlen struct {
	key []byte
}

func parseStrlen(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 1 {
		return nil, errArity("strlen")
	}
	return &Strlen{key: rest[0]}, nil
}

func (s *Strlen) Shard() uint64 { return shard.Of(s.key) }

func (s *Strlen) Exec(ks *store.Keyspace) (resp.Message, error) {
	v, ok := ks.Get(string(s.key))
	if !ok {
		return resp.Integer(0), nil
	}
	b, err := valueBytes(v)
	if err != nil {
		return errMessage(err), nil
	}
	return resp.Integer(int64(len(b))), nil
}

// incrDecr implements INCR/DECR/INCRBY/DECRBY: read the scalar as an
// integer (defaulting to 0 if absent), add delta, store and return the
// result.
type incrDecr struct {
	key   []byte
	delta int64
	name  string
}

func parseIncr(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 1 {
		return nil, errArity("incr")
	}
	return &incrDecr{key: rest[0], delta: 1, name: "incr"}, nil
}

func parseDecr(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 1 {
		return nil, errArity("decr")
	}
	return &incrDecr{key: rest[0], delta: -1, name: "decr"}, nil
}

func parseIncrBy(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 2 {
		return nil, errArity("incrby")
	}
	n, ok := parseDecimalInt64(rest[1])
	if !ok {
		return nil, errNotInt()
	}
	return &incrDecr{key: rest[0], delta: n, name: "incrby"}, nil
}

func parseDecrBy(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 2 {
		return nil, errArity("decrby")
	}
	n, ok := parseDecimalInt64(rest[1])
	if !ok {
		return nil, errNotInt()
	}
	return &incrDecr{key: rest[0], delta: -n, name: "decrby"}, nil
}

func (c *incrDecr) Shard() uint64 { return shard.Of(c.key) }

func (c *incrDecr) Exec(ks *store.Keyspace) (resp.Message, error) {
	v, ok := ks.Get(string(c.key))
	var cur int64
	if ok {
		n, err := valueInt(v)
		if err != nil {
			return errMessage(err), nil
		}
		cur = n
	}
	sum := cur + c.delta
	if (c.delta > 0 && sum < cur) || (c.delta < 0 && sum > cur) {
		return errMessage(errOverflow()), nil
	}
	ks.Insert(string(c.key), store.NewIntegerValue(sum))
	return resp.Integer(sum), nil
}

// GetRange returns an inclusive start..end byte slice of the string at a
// key, with negative indices counted from the end of the value. A start
// that's still negative or past the end of the value after adjustment
// yields an empty result; an end past the last index is clamped to it
// rather than rejected.
type GetRange struct {
	key        []byte
	start, end int64
}

func parseGetRange(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 3 {
		return nil, errArity("getrange")
	}
	start, ok := parseDecimalInt64(rest[1])
	if !ok {
		return nil, errNotInt()
	}
	end, ok := parseDecimalInt64(rest[2])
	if !ok {
		return nil, errNotInt()
	}
	return &GetRange{key: rest[0], start: start, end: end}, nil
}

func (g *GetRange) Shard() uint64 { return shard.Of(g.key) }

func (g *GetRange) Exec(ks *store.Keyspace) (resp.Message, error) {
	v, ok := ks.Get(string(g.key))
	if !ok {
		return resp.Bulk([]byte{}), nil
	}
	buf, err := valueBytes(v)
	if err != nil {
		return errMessage(err), nil
	}
	valLen := int64(len(buf))

	left := g.start
	if left < 0 {
		left = valLen + left
	}
	if left > valLen || left < 0 {
		return resp.Bulk([]byte{}), nil
	}

	// end is inclusive; convert to an exclusive bound, clamping a
	// too-large end to the last valid index rather than rejecting it.
	right := g.end
	if right < 0 {
		right = valLen + right
	}
	if right >= valLen {
		right = valLen - 1
	}
	if right < 0 {
		return resp.Bulk([]byte{}), nil
	}
	exclusiveRight := right + 1

	if exclusiveRight <= left {
		return resp.Bulk([]byte{}), nil
	}
	return resp.Bulk(append([]byte(nil), buf[left:exclusiveRight]...)), nil
}

// SetRange overwrites the string at a key starting at a byte offset,
// zero-filling any gap, and returns the new total length. A zero-length
// value is a no-op that still reports the (possibly zero) current
// length, matching real server behavior for an edge RESP clients can
// legally send.
type SetRange struct {
	key    []byte
	offset int64
	val    []byte
}

func parseSetRange(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 3 {
		return nil, errArity("setrange")
	}
	offset, ok := parseDecimalInt64(rest[1])
	if !ok || offset < 0 {
		return nil, errNotInt()
	}
	return &SetRange{key: rest[0], offset: offset, val: rest[2]}, nil
}

func (s *SetRange) Shard() uint64 { return shard.Of(s.key) }

func (s *SetRange) Exec(ks *store.Keyspace) (resp.Message, error) {
	old, existed := ks.RemoveEntry(string(s.key))
	bv, err := scalarBytes(old, existed)
	if err != nil {
		if existed {
			ks.Insert(string(s.key), old)
		}
		return errMessage(err), nil
	}

	if len(s.val) == 0 {
		if existed {
			ks.Insert(string(s.key), old)
		}
		return resp.Integer(int64(bv.Len())), nil
	}

	newLen := int(s.offset) + len(s.val)
	bv, buf := bv.Mutable(growTo(bv.Len(), newLen))
	copy(buf[s.offset:], s.val)
	ks.Insert(string(s.key), store.NewStringValue(bv))
	return resp.Integer(int64(bv.Len())), nil
}
