// Package store implements the per-worker keyspace: the in-memory map each
// worker owns exclusively, and the tagged value union it holds.
package store

// ValueType tags which variant a Value holds.
type ValueType byte

const (
	TypeString ValueType = iota
	TypeInteger
	TypeList
	TypeHash
	TypeSet
	TypeSortedSet
)

// Value is the tagged union every keyspace entry holds. Only List, Hash,
// Set, and SortedSet are declared but not implemented by any command in
// this server (see DESIGN.md); scalar String/Integer are fully supported.
type Value struct {
	Type ValueType

	Str Bytes // TypeString
	Int int64 // TypeInteger

	List []Bytes         // TypeList (unimplemented)
	Hash map[string]Bytes // TypeHash (unimplemented)
	Set  map[string]struct{} // TypeSet (unimplemented)
	// TypeSortedSet is declared but has no backing representation; no
	// command in this server constructs one.
}

// NewStringValue builds a scalar string value from an owned byte buffer.
func NewStringValue(b Bytes) Value { return Value{Type: TypeString, Str: b} }

// NewIntegerValue builds a scalar integer value.
func NewIntegerValue(n int64) Value { return Value{Type: TypeInteger, Int: n} }

// IsScalar reports whether v is a String or Integer, the two variants
// string commands (GET/SET/APPEND/bit ops/INCR/...) operate on.
func (v Value) IsScalar() bool { return v.Type == TypeString || v.Type == TypeInteger }
