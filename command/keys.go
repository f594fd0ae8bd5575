package command

import (
	"github.com/kvshard/kvshard/resp"
	"github.com/kvshard/kvshard/shard"
	"github.com/kvshard/kvshard/store"
)

// Del implements both DEL and UNLINK, distinguished only by name (UNLINK
// is meant to free memory asynchronously; this server has no async
// reclaim path, so both behave identically). It carries a documented
// latent bug forward unchanged: only the first key argument is ever
// deleted, any further key arguments are accepted but silently ignored.
type Del struct {
	key []byte
}

func parseDel(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) < 1 {
		return nil, errArity(string(argv[0]))
	}
	return &Del{key: rest[0]}, nil
}

func (d *Del) Shard() uint64 { return shard.Of(d.key) }

func (d *Del) Exec(ks *store.Keyspace) (resp.Message, error) {
	if ks.Remove(string(d.key)) {
		ks.ShrinkToFit()
		return resp.Integer(1), nil
	}
	return resp.Integer(0), nil
}

// Keys lists every key on the worker handling the connection. It takes an
// optional numeric argument; unlike the original Rust implementation
// (which hashes that number directly into a literal shard/worker index),
// this server follows spec's documented "any worker" framing and treats
// the argument as inert, always reporting whichever worker the
// connection landed on. See DESIGN.md for this deliberate divergence.
type Keys struct {
	arg int64
}

func parseKeys(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) == 0 {
		return &Keys{arg: -1}, nil
	}
	if len(rest) != 1 {
		return nil, errArity("keys")
	}
	n, ok := parseDecimalInt64(rest[0])
	if !ok {
		return nil, errNotInt()
	}
	return &Keys{arg: n}, nil
}

func (k *Keys) Shard() uint64 { return shard.Any }

func (k *Keys) Exec(ks *store.Keyspace) (resp.Message, error) {
	keys := ks.Keys()
	elems := make([]resp.Message, len(keys))
	for i, key := range keys {
		elems[i] = resp.Bulk([]byte(key))
	}
	return resp.Arr(elems), nil
}
