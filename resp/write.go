package resp

import "github.com/valyala/bytebufferpool"

// AppendOK appends the canonical "+OK\r\n" simple string.
func AppendOK(b []byte) []byte { return append(b, '+', 'O', 'K', '\r', '\n') }

// AppendSimpleString appends a simple string reply.
func AppendSimpleString(b []byte, s string) []byte { return Append(b, String(s)) }

// AppendError appends an error reply. msg should not include the leading '-'.
func AppendError(b []byte, msg string) []byte { return Append(b, Err(msg)) }

// AppendInt appends an integer reply.
func AppendInt(b []byte, n int64) []byte { return Append(b, Integer(n)) }

// AppendBulk appends a bulk string reply; a nil p encodes the null bulk string.
func AppendBulk(b []byte, p []byte) []byte { return Append(b, Bulk(p)) }

// AppendBulkString appends a bulk string reply built from a Go string.
func AppendBulkString(b []byte, s string) []byte { return Append(b, Bulk([]byte(s))) }

// Writer accumulates encoded RESP replies into a pooled buffer, so a
// connection's per-write-cycle scratch space can be returned to
// bytebufferpool instead of reallocated on every flush.
type Writer struct {
	buf *bytebufferpool.ByteBuffer
}

// NewWriter acquires a pooled buffer for w to write into.
func NewWriter() *Writer {
	return &Writer{buf: bytebufferpool.Get()}
}

// Release returns the underlying pooled buffer. The Writer must not be used
// afterward.
func (w *Writer) Release() {
	bytebufferpool.Put(w.buf)
	w.buf = nil
}

// Reset empties the buffer for reuse without returning it to the pool.
func (w *Writer) Reset() { w.buf.Reset() }

// Bytes returns the accumulated, not-yet-flushed reply bytes.
func (w *Writer) Bytes() []byte { return w.buf.B }

// Len reports how many bytes are currently buffered.
func (w *Writer) Len() int { return w.buf.Len() }

// WriteMessage appends the wire encoding of m.
func (w *Writer) WriteMessage(m Message) {
	w.buf.B = Append(w.buf.B, m)
}

// WriteOK appends a "+OK\r\n" simple string.
func (w *Writer) WriteOK() {
	w.buf.B = AppendOK(w.buf.B)
}

// WriteError appends an error reply.
func (w *Writer) WriteError(msg string) {
	w.buf.B = AppendError(w.buf.B, msg)
}
