// Package server implements the TCP accept loop and per-connection RESP
// request/reply cycle: each connection is a goroutine doing blocking
// reads against a resumable resp.Decoder, dispatching each fully-decoded
// command to the worker pool and writing exactly one reply per command,
// in request order, before reading the next one.
package server

import (
	"errors"
	"net"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kvshard/kvshard/command"
	"github.com/kvshard/kvshard/resp"
	"github.com/kvshard/kvshard/shard"
	"github.com/kvshard/kvshard/store"
	"github.com/kvshard/kvshard/worker"
)

// Options configures a Server, in the teacher's style of a single
// options struct passed to the constructor rather than a long argument
// list.
type Options struct {
	// Addr is the TCP listen address, e.g. "0.0.0.0:6379".
	Addr string

	// WorkerCount is the fixed number of shard-owning workers. 0 means
	// "auto" (GOMAXPROCS).
	WorkerCount int

	// QueueDepth is the buffered capacity of each worker's task channel.
	QueueDepth int

	Logger *zap.Logger
}

// Server accepts RESP connections and routes their commands through a
// fixed worker pool.
type Server struct {
	opts   Options
	pool   *worker.Pool
	logger *zap.Logger

	ln       net.Listener
	nextConn uint64
}

// New builds a Server and its backing worker pool. It does not start
// listening; call ListenAndServe for that.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := opts.WorkerCount
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Server{
		opts:   opts,
		pool:   worker.NewPool(n, opts.QueueDepth),
		logger: logger,
	}
}

// WorkerCount reports how many workers the server's pool runs.
func (s *Server) WorkerCount() int { return s.pool.WorkerCount() }

// ListenAndServe binds the listen address and serves connections until
// the listener is closed or an unrecoverable accept error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop against an already-open listener. Splitting
// this out from ListenAndServe lets tests bind an ephemeral port (":0")
// and discover the real address before Serve starts blocking.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	s.logger.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Int("workers", s.pool.WorkerCount()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting connections and shuts the worker pool down,
// waiting for every already-forwarded task to finish.
func (s *Server) Close() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.pool.Close()
	return err
}

type execResult struct {
	msg resp.Message
	err error
}

func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr()
	s.logger.Debug("connection opened", zap.Stringer("remote", remote))
	defer func() {
		conn.Close()
		s.logger.Debug("connection closed", zap.Stringer("remote", remote))
	}()

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	homeWorker := int(atomic.AddUint64(&s.nextConn, 1) % uint64(s.pool.WorkerCount()))

	var dec resp.Decoder
	readBuf := make([]byte, 4096)
	w := resp.NewWriter()
	defer w.Release()

	for {
		msg, ok, err := dec.Next()
		if err != nil {
			s.logger.Debug("protocol error", zap.Stringer("remote", remote), zap.Error(err))
			w.WriteError("ERR Protocol error: " + err.Error())
			if !s.flush(conn, w) {
				return
			}
			continue
		}
		if !ok {
			n, err := conn.Read(readBuf)
			if err != nil {
				return
			}
			dec.Feed(readBuf[:n])
			continue
		}

		argv, ok := toArgv(msg)
		if !ok {
			w.WriteError("ERR Protocol error: expected array of bulk strings")
			if !s.flush(conn, w) {
				return
			}
			continue
		}
		if len(argv) == 0 {
			continue
		}

		reply, quit := s.dispatch(argv, homeWorker)
		w.WriteMessage(reply)
		if !s.flush(conn, w) {
			return
		}
		if quit {
			return
		}
	}
}

// toArgv converts a decoded array-of-bulk-strings message into the argv
// slice the command layer expects.
func toArgv(msg resp.Message) ([][]byte, bool) {
	if msg.Type != resp.TypeArray || msg.Array == nil {
		return nil, false
	}
	argv := make([][]byte, len(msg.Array))
	for i, elem := range msg.Array {
		if elem.Type != resp.TypeBulk || elem.Bulk == nil {
			return nil, false
		}
		argv[i] = elem.Bulk
	}
	return argv, true
}

func (s *Server) flush(conn net.Conn, w *resp.Writer) bool {
	_, err := conn.Write(w.Bytes())
	w.Reset()
	return err == nil
}

// dispatch parses and runs one command, returning its reply and whether
// the connection should close afterward (QUIT).
//
// Both the fast path (the command's shard is shard.Any, or maps to this
// connection's own home worker) and the slow path (any other shard) hand
// the command to worker.Pool.SpawnOn and wait on a reply channel. This
// differs from the reference implementation, where the fast path is a
// direct synchronous call with no channel at all: that shortcut relies on
// the connection's task already running on the target OS thread inside a
// single-threaded async runtime, a guarantee goroutines don't give.
// Go's only safe way to touch a worker's Keyspace from another goroutine
// is the channel hand-off, so both paths use it; "fast" here means
// "usually the connection's own worker", not "skips synchronization".
func (s *Server) dispatch(argv [][]byte, homeWorker int) (resp.Message, bool) {
	cmd, err := command.Parse(argv)
	if err != nil {
		return messageFromError(err), false
	}

	target := homeWorker
	if sh := cmd.Shard(); sh != shard.Any {
		target = s.pool.WorkerOf(sh)
	}

	done := make(chan execResult, 1)
	s.pool.SpawnOn(target, func(ks *store.Keyspace) {
		msg, execErr := cmd.Exec(ks)
		done <- execResult{msg: msg, err: execErr}
	})
	r := <-done

	if r.err != nil && errors.Is(r.err, command.ErrQuit) {
		return r.msg, true
	}
	return r.msg, false
}

func messageFromError(err error) resp.Message {
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Message()
	}
	return resp.Err("ERR " + err.Error())
}
