package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/horgh/irc"
	"github.com/pkg/errors"
)

// Server is the top-level object: it owns the registry and runs the event
// loop from spec section 4.5. The daemon runs one of these per process;
// tests run several side by side (see Serve).
type Server struct {
	Config Config
	reg    *registry

	nextID uint64

	newClients  chan *Client
	lines       chan clientLine
	deadClients chan uint64

	// shutdownChan lets callers (tests, or a collaborator wanting finer
	// control than OS signals) request a clean stop without sending a
	// process signal.
	shutdownChan chan struct{}
}

// NewServer constructs a Server ready to Start. Construction never touches
// the network; Start does.
func NewServer(cfg Config) *Server {
	return &Server{
		Config:       cfg,
		reg:          newRegistry(),
		newClients:   make(chan *Client, 64),
		lines:        make(chan clientLine, 256),
		deadClients:  make(chan uint64, 64),
		shutdownChan: make(chan struct{}),
	}
}

// Start opens the listening socket and runs the event loop until a
// shutdown signal arrives or an unrecoverable error occurs (spec section 7
// tier 3). It returns nil on clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(s.Config.Port)))
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}
	return s.Serve(ln)
}

// Serve runs the event loop against an already-open listener. Start is the
// production entry point (it opens the listener itself from Config.Port);
// tests use Serve directly against a loopback listener bound to an
// OS-assigned port so many servers can run concurrently in one test binary.
func (s *Server) Serve(ln net.Listener) error {
	defer func() {
		_ = ln.Close()
	}()

	go s.acceptLoop(ln)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var ticker *time.Ticker
	var tickChan <-chan time.Time
	if s.Config.DeadTime > 0 {
		ticker = time.NewTicker(s.Config.PingTime)
		tickChan = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-sig:
			log.Printf("shutting down on signal")
			s.shutdown()
			return nil

		case <-s.shutdownChan:
			s.shutdown()
			return nil

		case c := <-s.newClients:
			s.reg.addClient(c)
			c.lastActivity = time.Now()
			log.Printf("client %d connected from %s", c.ID, c.Host)

		case id := <-s.deadClients:
			c := s.reg.clientByID(id)
			if c == nil || c.closing {
				continue
			}
			s.disconnect(c, "I/O error")

		case cl := <-s.lines:
			c := s.reg.clientByID(cl.id)
			if c == nil || c.closing {
				continue
			}
			if cl.oversize {
				s.disconnect(c, "Input buffer full")
				continue
			}
			c.lastActivity = time.Now()
			s.dispatch(c, cl.line)

		case <-tickChan:
			s.checkIdleClients()
		}
	}
}

// acceptLoop accepts connections until the listener is closed, handing each
// one to the dispatcher over newClients. This, plus the per-client
// readLoop/writeLoop goroutines it starts, is step 2 of spec section 4.5
// realized with goroutines instead of a non-blocking accept-until-EAGAIN
// loop: net.Listener.Accept already blocks exactly one goroutine, leaving
// the dispatcher free to keep servicing existing clients.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedError(err) {
				return
			}
			log.Printf("accept error: %s", err)
			continue
		}

		s.nextID++
		c := newClient(s.nextID, conn)
		if len(s.Config.Password) == 0 {
			c.passAccepted = true
		}

		go c.readLoop(s.lines, s.deadClients)
		go c.writeLoop()

		s.newClients <- c
	}
}

// dispatch parses one line from a client and runs it through the command
// precondition ladder and handler table from spec section 4.4.
func (s *Server) dispatch(c *Client, line string) {
	m, err := parseMessage(line)
	if err != nil {
		return
	}

	switch m.Command {
	case "PASS":
		s.cmdPass(c, m)
	case "NICK":
		s.cmdNick(c, m)
	case "USER":
		s.cmdUser(c, m)
	case "QUIT":
		s.cmdQuit(c, m)
	case "PING":
		s.cmdPing(c, m)
	case "PONG":
		// No-op; receiving it already updated lastActivity above.
	case "CAP":
		// Widely sent by modern clients before registration. Silently
		// ignored, matching the teacher's tolerance for it.
	default:
		if !c.registered {
			// Registration gate (spec section 4.4 step 2): silently ignore
			// non-handshake verbs before registration.
			return
		}
		s.dispatchRegistered(c, m)
	}
}

func (s *Server) dispatchRegistered(c *Client, m irc.Message) {
	switch m.Command {
	case "JOIN":
		s.cmdJoin(c, m)
	case "PART":
		s.cmdPart(c, m)
	case "PRIVMSG":
		s.cmdPrivmsg(c, m)
	case "NOTICE":
		s.cmdNotice(c, m)
	case "KICK":
		s.cmdKick(c, m)
	case "INVITE":
		s.cmdInvite(c, m)
	case "TOPIC":
		s.cmdTopic(c, m)
	case "MODE":
		s.cmdMode(c, m)
	case "LUSERS":
		s.cmdLusers(c)
	case "MOTD":
		s.cmdMotd(c)
	default:
		s.numeric(c, "421", m.Command, "Unknown command")
	}
}

// disconnect tears a client down cleanly: broadcasts QUIT to every channel
// it was in, removes it from the registry, and closes its outbound queue
// so writeLoop flushes and closes the socket (spec section 7 tier 2).
func (s *Server) disconnect(c *Client, reason string) {
	if c.closing {
		return
	}
	c.closing = true

	if c.registered {
		s.broadcastQuit(c, reason)
	}

	c.send(irc.Message{Prefix: s.Config.ServerName, Command: "ERROR", Params: []string{reason}})

	s.reg.removeClient(c)
	close(c.out)
}

// broadcastQuit sends ":<nick> QUIT :<reason>" to every distinct client in
// every channel c belonged to, each recipient told exactly once even if it
// shares several channels with c (spec section 4.4 QUIT contract).
func (s *Server) broadcastQuit(c *Client, reason string) {
	told := map[uint64]struct{}{}
	quit := irc.Message{Prefix: c.hostmask(), Command: "QUIT", Params: []string{reason}}

	for _, ch := range s.reg.channelsOf(c) {
		for id := range ch.Members {
			if _, done := told[id]; done {
				continue
			}
			told[id] = struct{}{}
			if member := s.reg.clientByID(id); member != nil {
				member.send(quit)
			}
		}
	}

	if _, done := told[c.ID]; !done {
		c.send(quit)
	}
}

// checkIdleClients pings clients that have been idle past PingTime and
// disconnects ones idle past DeadTime, mirroring the teacher's
// checkAndPingClients/alarm goroutine (spec section 5, optional idle
// handling).
func (s *Server) checkIdleClients() {
	now := time.Now()
	for _, c := range s.reg.clients {
		if c.closing {
			continue
		}
		idle := now.Sub(c.lastActivity)

		if !c.registered {
			if idle > s.Config.DeadTime {
				s.disconnect(c, "Registration timeout")
			}
			continue
		}

		if idle > s.Config.DeadTime {
			s.disconnect(c, "Ping timeout")
			continue
		}
		if idle > s.Config.PingTime {
			c.send(irc.Message{Prefix: s.Config.ServerName, Command: "PING", Params: []string{s.Config.ServerName}})
		}
	}
}

// Stop requests a clean shutdown without sending the process a signal,
// for use by tests and by embedders of Server. It is safe to call at most
// once.
func (s *Server) Stop() {
	close(s.shutdownChan)
}

// shutdown closes every client connection on process termination (spec
// section 5 cancellation policy).
func (s *Server) shutdown() {
	for _, c := range s.reg.clients {
		if !c.closing {
			s.disconnect(c, "Server shutting down")
		}
	}
}

// numeric sends a numeric reply to c, prefixing it with the server name and
// the client's current nick (or "*" if none yet), per spec section 4.1's
// formatting template.
func (s *Server) numeric(c *Client, code string, params ...string) {
	c.send(numericMessage(s.Config.ServerName, code, c.Nick, params...))
}
