package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/horgh/irc"
	"github.com/stretchr/testify/require"
)

// testServer starts a Server on an OS-assigned loopback port for the
// lifetime of the test, mirroring the teacher's subprocess-based harness in
// internal/catbox_test.go but in-process, since our core lives in an
// ordinary (if unexported) package main rather than behind a built binary.
func testServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen")

	s := NewServer(cfg)

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ln)
	}()

	t.Cleanup(func() {
		s.Stop()
		<-done
	})

	return s, ln.Addr().String()
}

// testClient is a minimal line-oriented IRC client used to drive scenario
// tests, grounded on the teacher's internal/client_test.go Client harness:
// dial, send messages, and read back whatever the server sends.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err, "dial")

	c := &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return c
}

// send writes a raw command line (without CRLF) to the server.
func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err, "write %q", line)
}

// register performs the PASS/NICK/USER handshake, optionally with a
// password (pass "" to skip PASS entirely).
func (c *testClient) register(password, nick string) {
	if len(password) > 0 {
		c.send("PASS " + password)
	}
	c.send("NICK " + nick)
	c.send(fmt.Sprintf("USER %s 0 * :%s realname", nick, nick))
}

// readMessage reads and parses the next line, returning an error if none
// arrives within the timeout. It parses with irc.ParseMessage directly
// rather than parseMessage, so the server-supplied prefix is kept.
func (c *testClient) readMessage(timeout time.Duration) (irc.Message, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.r.ReadString('\n')
	if err != nil {
		return irc.Message{}, err
	}
	return irc.ParseMessage(strings.TrimRight(line, "\r\n") + "\r\n")
}

// expect reads messages until one with the given command arrives (or the
// timeout elapses), returning it. Intervening messages (e.g. LUSERS/MOTD
// noise) are discarded.
func (c *testClient) expect(command string, timeout time.Duration) irc.Message {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m, err := c.readMessage(time.Until(deadline))
		if err != nil {
			c.t.Fatalf("waiting for %s: %s", command, err)
		}
		if m.Command == command {
			return m
		}
	}
	c.t.Fatalf("timed out waiting for %s", command)
	return irc.Message{}
}

// drainWelcome reads past the 001-004/LUSERS/MOTD burst that follows
// successful registration.
func (c *testClient) drainWelcome() {
	c.expect("376", 5*time.Second)
}
