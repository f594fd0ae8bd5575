package command

import (
	"unicode/utf8"

	"github.com/kvshard/kvshard/resp"
	"github.com/kvshard/kvshard/shard"
	"github.com/kvshard/kvshard/store"
)

// Ping replies PONG, or echoes its single argument back (as a simple
// string if it's valid UTF-8, otherwise as a bulk string, since a simple
// string can't safely carry arbitrary bytes).
type Ping struct {
	msg []byte
}

func parsePing(argv [][]byte) (Command, error) {
	rest := argv[1:]
	switch len(rest) {
	case 0:
		return &Ping{}, nil
	case 1:
		return &Ping{msg: rest[0]}, nil
	default:
		return nil, errArity("ping")
	}
}

func (p *Ping) Shard() uint64 { return shard.Any }

func (p *Ping) Exec(ks *store.Keyspace) (resp.Message, error) {
	if p.msg == nil {
		return resp.String("PONG"), nil
	}
	if utf8.Valid(p.msg) {
		return resp.String(string(p.msg)), nil
	}
	return resp.Bulk(p.msg), nil
}

// Echo always returns its argument as a bulk string.
type Echo struct {
	msg []byte
}

func parseEcho(argv [][]byte) (Command, error) {
	rest := argv[1:]
	if len(rest) != 1 {
		return nil, errArity("echo")
	}
	return &Echo{msg: rest[0]}, nil
}

func (e *Echo) Shard() uint64 { return shard.Any }

func (e *Echo) Exec(ks *store.Keyspace) (resp.Message, error) {
	return resp.Bulk(e.msg), nil
}

// Quit replies OK and signals the connection loop to close the socket.
type Quit struct{}

func parseQuit(argv [][]byte) (Command, error) {
	return &Quit{}, nil
}

func (q *Quit) Shard() uint64 { return shard.Any }

func (q *Quit) Exec(ks *store.Keyspace) (resp.Message, error) {
	return resp.String("OK"), ErrQuit
}
