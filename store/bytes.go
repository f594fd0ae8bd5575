package store

// Bytes is an owned byte buffer with a cheap exclusive-ownership tracking
// flag, standing in for the original implementation's refcounted
// "acquire a mutable buffer from an immutable handle, copy on contention"
// trick. Go's garbage collector already makes aliased slices safe to read
// concurrently; what it doesn't give for free is in-place mutation
// without stepping on a reader that captured the same backing array (for
// instance a reply already queued for a socket write). Owned tracks
// whether this Bytes is still the sole referent of its backing array, so
// a command can mutate in place when it safely can and must copy
// otherwise.
//
// This is purely an allocation-avoidance optimization: a buffer wrongly
// marked shared only costs an extra copy, while one wrongly marked owned
// lets an in-place write show through any other reference to the same
// backing array.
type Bytes struct {
	b     []byte
	owned bool
}

// NewBytes wraps b as a freshly-owned buffer. The caller must not retain
// any other reference to b's backing array after this call.
func NewBytes(b []byte) Bytes { return Bytes{b: b, owned: true} }

// Shared wraps b as a buffer some other reference may still alias, such as
// a slice decoded straight out of a connection's read buffer.
func Shared(b []byte) Bytes { return Bytes{b: b, owned: false} }

// Bytes returns the underlying slice for reading. Callers must not mutate
// the result; use Mutable for that.
func (v Bytes) Bytes() []byte { return v.b }

// Len reports the length of the underlying slice.
func (v Bytes) Len() int { return len(v.b) }

// Clone returns a Bytes with its own freshly-allocated, exclusively-owned
// backing array.
func (v Bytes) Clone() Bytes {
	cp := make([]byte, len(v.b))
	copy(cp, v.b)
	return Bytes{b: cp, owned: true}
}

// Mutable returns a slice of at least n bytes that is safe to write into
// in place, growing or copying as needed. If v is already exclusively
// owned and its backing array has room, the slice aliases v's storage
// directly; otherwise a fresh, exclusively-owned copy is allocated.
// Mutable returns the updated Bytes alongside the slice since ownership
// or capacity may have changed.
func (v Bytes) Mutable(n int) (Bytes, []byte) {
	if v.owned && cap(v.b) >= n {
		v.b = v.b[:n]
		return v, v.b
	}
	grown := make([]byte, n)
	copy(grown, v.b)
	return Bytes{b: grown, owned: true}, grown
}
