package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startTestServer boots a Server on an ephemeral loopback port and
// returns a dialer for it plus a cleanup func.
func startTestServer(t *testing.T, workerCount int) func() net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Options{WorkerCount: workerCount, QueueDepth: 16})
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	addr := ln.Addr().String()
	return func() net.Conn {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		require.NoError(t, err)
		return conn
	}
}

func sendCommand(t *testing.T, conn net.Conn, parts ...string) string {
	t.Helper()
	req := "*" + itoa(len(parts)) + "\r\n"
	for _, p := range parts {
		req += "$" + itoa(len(p)) + "\r\n" + p + "\r\n"
	}
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	return readReply(t, r)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// readReply reads exactly one RESP reply off r, returning its raw wire
// bytes (including type tag and trailing CRLFs) so tests can assert on
// the literal wire form.
func readReply(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	conn := r
	line, err := conn.ReadString('\n')
	require.NoError(t, err)
	switch line[0] {
	case '+', '-', ':':
		return line
	case '$':
		n := parseLen(t, line)
		if n < 0 {
			return line
		}
		body := make([]byte, n+2)
		_, err := ioReadFull(conn, body)
		require.NoError(t, err)
		return line + string(body)
	case '*':
		n := parseLen(t, line)
		out := line
		for i := 0; i < n; i++ {
			out += readReply(t, conn)
		}
		return out
	default:
		t.Fatalf("unexpected reply type byte %q", line[0])
		return ""
	}
}

func ioReadFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func parseLen(t *testing.T, line string) int {
	t.Helper()
	end := len(line) - 2 // strip \r\n
	neg := false
	i := 1
	if line[i] == '-' {
		neg = true
		i++
	}
	n := 0
	for ; i < end; i++ {
		n = n*10 + int(line[i]-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func TestServerPingPong(t *testing.T) {
	dial := startTestServer(t, 2)
	conn := dial()
	defer conn.Close()
	require.Equal(t, "+PONG\r\n", sendCommand(t, conn, "PING"))
}

func TestServerSetGetRoundTrip(t *testing.T) {
	dial := startTestServer(t, 2)
	conn := dial()
	defer conn.Close()
	require.Equal(t, "+OK\r\n", sendCommand(t, conn, "SET", "foo", "bar"))
	require.Equal(t, "$3\r\nbar\r\n", sendCommand(t, conn, "GET", "foo"))
}

func TestServerCrossConnectionVisibility(t *testing.T) {
	dial := startTestServer(t, 3)
	a := dial()
	defer a.Close()
	b := dial()
	defer b.Close()

	require.Equal(t, "+OK\r\n", sendCommand(t, a, "SET", "shared", "value"))
	require.Equal(t, "$5\r\nvalue\r\n", sendCommand(t, b, "GET", "shared"))
}

func TestServerUnknownCommand(t *testing.T) {
	dial := startTestServer(t, 1)
	conn := dial()
	defer conn.Close()
	reply := sendCommand(t, conn, "NOPE")
	require.Equal(t, byte('-'), reply[0])
}

func TestServerQuitClosesConnection(t *testing.T) {
	dial := startTestServer(t, 1)
	conn := dial()
	defer conn.Close()
	require.Equal(t, "+OK\r\n", sendCommand(t, conn, "QUIT"))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	require.Error(t, err) // EOF: server closed the socket
}

// TestServerProtocolErrorDoesNotCloseConnection confirms a decode error on
// one message surfaces as an error reply but leaves the connection open
// for the next one, since the decoder already resynchronizes by
// discarding just the one bad type byte.
func TestServerProtocolErrorDoesNotCloseConnection(t *testing.T) {
	dial := startTestServer(t, 1)
	conn := dial()
	defer conn.Close()

	req := "Z" + "*1\r\n$4\r\nPING\r\n"
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	errReply := readReply(t, r)
	require.Equal(t, byte('-'), errReply[0])
	require.Equal(t, "+PONG\r\n", readReply(t, r))
}

func TestServerPipelinedRepliesStayInOrder(t *testing.T) {
	dial := startTestServer(t, 4)
	conn := dial()
	defer conn.Close()

	req := "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n" +
		"*3\r\n$3\r\nSET\r\n$1\r\nb\r\n$1\r\n2\r\n" +
		"*2\r\n$3\r\nGET\r\n$1\r\na\r\n" +
		"*2\r\n$3\r\nGET\r\n$1\r\nb\r\n"
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	require.Equal(t, "+OK\r\n", readReply(t, r))
	require.Equal(t, "+OK\r\n", readReply(t, r))
	require.Equal(t, "$1\r\n1\r\n", readReply(t, r))
	require.Equal(t, "$1\r\n2\r\n", readReply(t, r))
}
