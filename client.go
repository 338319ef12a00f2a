package main

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/horgh/irc"
)

// maxInputBufferBytes caps a client's unparsed input buffer (spec section 3
// invariant 6). A client that sends more than this many bytes without a
// line terminator is disconnected.
const maxInputBufferBytes = 8192

// maxOutputQueueMessages caps a client's outbound message queue (spec
// section 5's "backpressure" 64 KiB recommendation, expressed here as a
// bounded number of queued messages rather than bytes, matching the way
// the teacher's WriteChan is itself a bounded channel of messages).
const maxOutputQueueMessages = 512

// registrationState tracks a client's progress through the handshake state
// machine from spec section 4.4.
type registrationState int

const (
	stateNew registrationState = iota
	statePassed
	stateRegistered
)

// Client holds all state for a single accepted TCP connection, from accept
// to close. It is owned exclusively by the registry/dispatcher goroutine;
// once started, the read goroutine touches only conn and the input buffer
// in, and the write goroutine only conn and the outbound queue out.
type Client struct {
	// ID is a stable identifier for the lifetime of the connection.
	ID uint64

	conn net.Conn

	// Host is the resolved peer address string.
	Host string

	in  lineBuffer
	out chan irc.Message

	// passAccepted is true once PASS has matched (or no password is
	// configured). registered is true once PASS (if required)/NICK/USER
	// have all succeeded (spec section 4.4 state machine).
	passAccepted bool
	nickSet      bool
	userSet      bool
	registered   bool

	// Nick is not canonicalized; canonicalizeNick(Nick) is the lookup key.
	Nick     string
	User     string
	RealName string

	// Modes is the client's user mode flag set. The core stores it but
	// enforces no semantics beyond storage (spec section 3).
	Modes map[byte]struct{}

	// Channels holds the canonicalized names of channels this client
	// currently belongs to (spec section 3 invariant 1's client-side half).
	Channels map[string]struct{}

	lastActivity time.Time

	// closing is set once a disconnect has been scheduled so the dispatcher
	// doesn't double-process a client already on its way out.
	closing bool
}

// newClient wraps an accepted connection in a Client ready for the read and
// write goroutines to be started against it.
func newClient(id uint64, conn net.Conn) *Client {
	host := conn.RemoteAddr().String()
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		host = tcpAddr.IP.String()
	}

	return &Client{
		ID:       id,
		conn:     conn,
		Host:     host,
		out:      make(chan irc.Message, maxOutputQueueMessages),
		Modes:    make(map[byte]struct{}),
		Channels: make(map[string]struct{}),
	}
}

// state reports the client's position in the registration state machine.
func (c *Client) state() registrationState {
	switch {
	case c.registered:
		return stateRegistered
	case c.passAccepted:
		return statePassed
	default:
		return stateNew
	}
}

// hostmask renders the nick!user@host form used as a message prefix.
func (c *Client) hostmask() string {
	return fmt.Sprintf("%s!%s@%s", c.Nick, c.User, c.Host)
}

// send queues a message for delivery to this client. It reports false,
// without blocking, if the outbound queue is full — the caller must then
// schedule the client for disconnect (spec section 5 backpressure policy).
func (c *Client) send(m irc.Message) bool {
	select {
	case c.out <- m:
		return true
	default:
		return false
	}
}

// readLoop blocks reading from the socket, splitting input into protocol
// lines, and forwarding each parsed message to lines. It is the Go
// equivalent of step 3 of the event loop in spec section 4.5: instead of a
// readiness-polled non-blocking read, one goroutine per connection performs
// a blocking read and the central dispatcher goroutine serializes handling
// of whatever arrives (spec section 2, Go-native realization).
func (c *Client) readLoop(lines chan<- clientLine, dead chan<- uint64) {
	buf := make([]byte, 512)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.in.feed(buf[:n])
			for {
				line, ok := c.in.next()
				if !ok {
					break
				}
				lines <- clientLine{id: c.ID, line: line}
			}
			if c.in.len() > maxInputBufferBytes {
				lines <- clientLine{id: c.ID, oversize: true}
				dead <- c.ID
				return
			}
		}
		if err != nil {
			dead <- c.ID
			return
		}
	}
}

// writeLoop drains the client's outbound queue and writes each message to
// the socket, encoding it with the protocol codec. It exits, and closes the
// underlying connection, once the queue is closed by the dispatcher during
// teardown — mirroring the teacher's writeLoop in ircd.go, which closes the
// socket only after every queued message has been flushed.
func (c *Client) writeLoop() {
	for m := range c.out {
		if err := c.writeMessage(m); err != nil {
			log.Printf("client %d: write error: %s", c.ID, err)
			break
		}
	}
	if err := c.conn.Close(); err != nil {
		log.Printf("client %d: error closing connection: %s", c.ID, err)
	}
}

func (c *Client) writeMessage(m irc.Message) error {
	line, err := encodeMessage(m)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		return err
	}
	_, err = c.conn.Write([]byte(line))
	return err
}

// clientLine pairs a parsed-or-pending input line with the client it came
// from, the unit of work the dispatcher goroutine consumes.
type clientLine struct {
	id       uint64
	line     string
	oversize bool
}
