// Package command implements the tagged-variant command model: one type
// per verb, each able to parse its own argv, report the shard its key
// hashes to (or the "any worker" sentinel), and execute against a
// worker's Keyspace.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kvshard/kvshard/resp"
	"github.com/kvshard/kvshard/store"
)

// Command is satisfied by every parsed verb.
type Command interface {
	// Shard reports the shard number the command's key hashes to, or
	// shard.Any if the command has no single owning key and may run on
	// whichever worker received the connection.
	Shard() uint64

	// Exec runs the command against a worker's keyspace and returns the
	// reply to send back. A non-nil error is only ever ErrQuit; ordinary
	// command failures are reported as a resp.TypeError Message, not a Go
	// error, since they're part of the normal reply stream.
	Exec(ks *store.Keyspace) (resp.Message, error)
}

// ErrQuit is returned by Quit.Exec to tell the connection loop to close
// the connection after writing the reply.
var ErrQuit = errors.New("command: quit")

// Error is a command-layer failure: a wrong-arity call, an unknown verb,
// a value that doesn't parse as the type a command needs, or a wrong-type
// access. It implements error so it composes with errors.Is/errors.As,
// and carries enough structure to render the exact wire-form the
// protocol requires.
type Error struct {
	WrongType bool
	Msg       string // used when WrongType is false; no "ERR " prefix
}

func (e *Error) Error() string { return e.wireText() }

func (e *Error) wireText() string {
	if e.WrongType {
		return "WRONGTYPE Operation against a key holding the wrong kind of value"
	}
	return "ERR " + e.Msg
}

// Message renders e as the RESP error reply clients receive.
func (e *Error) Message() resp.Message { return resp.Err(e.wireText()) }

func errArity(cmd string) *Error {
	return &Error{Msg: fmt.Sprintf("wrong number of arguments for '%s' command", strings.ToLower(cmd))}
}

func errUnknownCommand(cmd string) *Error {
	return &Error{Msg: fmt.Sprintf("unknown command '%s'", cmd)}
}

func errNotInt() *Error { return &Error{Msg: "value is not an integer or out of range"} }

func errSyntax() *Error { return &Error{Msg: "syntax error"} }

func errWrongType() *Error { return &Error{WrongType: true} }

func errOverflow() *Error {
	return &Error{Msg: "increment or decrement would overflow"}
}

type parseFunc func(argv [][]byte) (Command, error)

// table is keyed by the upper-cased verb name.
var table = map[string]parseFunc{
	"PING": parsePing,
	"ECHO": parseEcho,
	"QUIT": parseQuit,

	"DEL":    parseDel,
	"UNLINK": parseDel,
	"KEYS":   parseKeys,

	"GET":    parseGet,
	"SET":    parseSet,
	"SETNX":  parseSetNX,
	"SETEX":  parseSetEX,
	"PSETEX": parsePSetEX,

	"APPEND": parseAppend,
	"STRLEN": parseStrlen,

	"SETBIT":   parseSetbit,
	"GETBIT":   parseGetbit,
	"BITFIELD": parseBitfield,

	"INCR":     parseIncr,
	"DECR":     parseDecr,
	"INCRBY":   parseIncrBy,
	"DECRBY":   parseDecrBy,

	"GETRANGE": parseGetRange,
	"SETRANGE": parseSetRange,
}

// Parse uppercases argv[0] in place (ASCII only, matching the connection
// loop's wire-level command-name normalization) and dispatches to the
// matching verb's parser. argv must have length >= 1.
func Parse(argv [][]byte) (Command, error) {
	upperASCII(argv[0])
	name := string(argv[0])
	fn, ok := table[name]
	if !ok {
		return nil, errUnknownCommand(name)
	}
	return fn(argv)
}

func upperASCII(b []byte) {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
}

// valueBytes returns the decimal-string or raw-bytes representation of a
// scalar value, or a WRONGTYPE error for anything else.
func valueBytes(v store.Value) ([]byte, error) {
	switch v.Type {
	case store.TypeString:
		return v.Str.Bytes(), nil
	case store.TypeInteger:
		return []byte(itoa(v.Int)), nil
	default:
		return nil, errWrongType()
	}
}

// valueInt reads a scalar value as an integer, parsing a string scalar's
// bytes as decimal if necessary.
func valueInt(v store.Value) (int64, error) {
	switch v.Type {
	case store.TypeInteger:
		return v.Int, nil
	case store.TypeString:
		n, ok := parseDecimalInt64(v.Str.Bytes())
		if !ok {
			return 0, errNotInt()
		}
		return n, nil
	default:
		return 0, errWrongType()
	}
}
