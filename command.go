package main

import (
	"strconv"
	"strings"

	"github.com/horgh/irc"
)

// cmdPass implements PASS <password> (spec section 4.4). Valid only before
// registration completes; a second PASS after success is an error.
func (s *Server) cmdPass(c *Client, m irc.Message) {
	if len(s.Config.Password) == 0 {
		// Spec section 4.4: with no server password configured, PASS always
		// succeeds, even if the client already holds that state from
		// accepting a connection.
		c.passAccepted = true
		return
	}

	if len(m.Params) < 1 {
		s.numeric(c, "461", "PASS", "Not enough parameters")
		return
	}

	if c.registered || c.passAccepted {
		s.numeric(c, "462", "Unauthorized command (already registered)")
		return
	}

	if m.Params[0] != s.Config.Password {
		s.numeric(c, "464", "Password incorrect")
		return
	}

	c.passAccepted = true
}

// cmdNick implements NICK <nick> (spec section 4.4): validation, collision
// check, and either completing registration or broadcasting a rename.
func (s *Server) cmdNick(c *Client, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, "431", "No nickname given")
		return
	}

	nick := m.Params[0]
	if !isValidNick(nick) {
		s.numeric(c, "432", nick, "Erroneous nickname")
		return
	}

	if existing := s.reg.findByNick(nick); existing != nil && existing.ID != c.ID {
		s.numeric(c, "433", nick, "Nickname is already in use")
		return
	}

	wasRegistered := c.registered
	oldHostmask := c.hostmask()

	s.reg.claimNick(c, nick)
	c.nickSet = true

	if wasRegistered {
		s.broadcastNick(c, oldHostmask, nick)
		return
	}

	s.tryCompleteRegistration(c)
}

// broadcastNick tells every client that shares a channel with c, plus c
// itself, about a nickname change. Each recipient is told exactly once
// (spec section 4.4 NICK contract).
func (s *Server) broadcastNick(c *Client, oldHostmask, newNick string) {
	told := map[uint64]struct{}{}
	msg := irc.Message{Prefix: oldHostmask, Command: "NICK", Params: []string{newNick}}

	for _, ch := range s.reg.channelsOf(c) {
		for id := range ch.Members {
			if _, done := told[id]; done {
				continue
			}
			told[id] = struct{}{}
			if member := s.reg.clientByID(id); member != nil {
				member.send(msg)
			}
		}
	}

	if _, done := told[c.ID]; !done {
		c.send(msg)
	}
}

// cmdUser implements USER <user> <mode> <unused> :<realname> (spec section
// 4.4). Valid only before registration.
func (s *Server) cmdUser(c *Client, m irc.Message) {
	if c.registered {
		s.numeric(c, "462", "Unauthorized command (already registered)")
		return
	}

	if len(m.Params) < 4 {
		s.numeric(c, "461", "USER", "Not enough parameters")
		return
	}

	if !isValidUser(m.Params[0]) {
		s.numeric(c, "461", "USER", "Invalid username")
		return
	}

	c.User = m.Params[0]
	c.RealName = m.Params[3]
	c.userSet = true

	s.tryCompleteRegistration(c)
}

// tryCompleteRegistration checks whether PASS (if required), NICK, and
// USER have all succeeded and, if so, completes registration and emits the
// welcome quartet (spec section 4.4).
func (s *Server) tryCompleteRegistration(c *Client) {
	if c.registered {
		return
	}
	if !c.passAccepted || !c.nickSet || !c.userSet {
		return
	}

	c.registered = true

	s.numeric(c, "001", "Welcome to the Internet Relay Network "+c.hostmask())
	s.numeric(c, "002", "Your host is "+s.Config.ServerName+", running version "+s.Config.Version)
	s.numeric(c, "003", "This server was created "+s.Config.CreatedAt)
	s.numeric(c, "004", s.Config.ServerName, s.Config.Version, "io", "itklmnps")

	s.cmdLusers(c)
	s.cmdMotd(c)
}

// cmdQuit implements QUIT [:reason] (spec section 4.4).
func (s *Server) cmdQuit(c *Client, m irc.Message) {
	reason := "Client Quit"
	if len(m.Params) > 0 {
		reason = m.Params[0]
	}
	s.disconnect(c, reason)
}

// cmdPing implements PING <token> (spec section 4.4). Allowed before
// registration.
func (s *Server) cmdPing(c *Client, m irc.Message) {
	token := s.Config.ServerName
	if len(m.Params) > 0 {
		token = m.Params[0]
	}
	c.send(irc.Message{Prefix: s.Config.ServerName, Command: "PONG", Params: []string{s.Config.ServerName, token}})
}

// cmdJoin implements JOIN <chan>[,<chan>...] [<key>[,<key>...]] (spec
// section 4.4), processing each requested channel in order.
func (s *Server) cmdJoin(c *Client, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, "461", "JOIN", "Not enough parameters")
		return
	}

	channels := splitList(m.Params[0])
	var keys []string
	if len(m.Params) > 1 {
		keys = splitList(m.Params[1])
	}

	for i, name := range channels {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		s.joinOne(c, name, key)
	}
}

func (s *Server) joinOne(c *Client, name, key string) {
	if !isValidChannel(name) {
		s.numeric(c, "403", name, "Invalid channel name")
		return
	}

	canon := canonicalizeChannel(name)
	if _, already := c.Channels[canon]; already {
		return
	}

	ch, created := s.reg.getOrCreateChannel(name)

	if !created {
		if ch.hasMode('k') && ch.Key != key {
			s.numeric(c, "475", ch.DisplayName, "Cannot join channel (+k)")
			return
		}
		if ch.hasMode('i') && !ch.consumeInvite(canonicalizeNick(c.Nick)) {
			s.numeric(c, "473", ch.DisplayName, "Cannot join channel (+i)")
			return
		}
		if ch.hasMode('l') && ch.Limit > 0 && len(ch.Members) >= ch.Limit {
			s.numeric(c, "471", ch.DisplayName, "Cannot join channel (+l)")
			return
		}
	}

	ch.addMember(c.ID, created)
	c.Channels[ch.Name] = struct{}{}

	join := irc.Message{Prefix: c.hostmask(), Command: "JOIN", Params: []string{ch.DisplayName}}
	for id := range ch.Members {
		if member := s.reg.clientByID(id); member != nil {
			member.send(join)
		}
	}

	if len(ch.Topic) == 0 {
		s.numeric(c, "331", ch.DisplayName, "No topic is set")
	} else {
		s.numeric(c, "332", ch.DisplayName, ch.Topic)
	}

	s.sendNames(c, ch)
}

// sendNames emits the RPL_NAMREPLY/RPL_ENDOFNAMES pair for a channel,
// prefixing operators with '@' (spec section 4.4 JOIN contract).
func (s *Server) sendNames(c *Client, ch *Channel) {
	names := make([]string, 0, len(ch.Members))
	for id := range ch.Members {
		member := s.reg.clientByID(id)
		if member == nil {
			continue
		}
		if ch.isOperator(id) {
			names = append(names, "@"+member.Nick)
		} else {
			names = append(names, member.Nick)
		}
	}

	s.numeric(c, "353", ch.DisplayName, strings.Join(names, " "))
	s.numeric(c, "366", ch.DisplayName, "End of /NAMES list")
}

// cmdPart implements PART <chan>[,<chan>...] [:reason] (spec section 4.4).
func (s *Server) cmdPart(c *Client, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, "461", "PART", "Not enough parameters")
		return
	}

	reason := ""
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}

	for _, name := range splitList(m.Params[0]) {
		s.partOne(c, name, reason)
	}
}

func (s *Server) partOne(c *Client, name, reason string) {
	ch := s.reg.getChannel(name)
	if ch == nil {
		s.numeric(c, "403", name, "No such channel")
		return
	}
	if !ch.isMember(c.ID) {
		s.numeric(c, "442", ch.DisplayName, "You're not on that channel")
		return
	}

	params := []string{ch.DisplayName}
	if len(reason) > 0 {
		params = append(params, reason)
	}
	part := irc.Message{Prefix: c.hostmask(), Command: "PART", Params: params}
	ch.broadcast(s.reg, c.ID, part)
	c.send(part)

	delete(c.Channels, ch.Name)
	if ch.removeMember(c.ID) {
		s.reg.dropEmptyChannel(ch)
	}
}

// cmdPrivmsg implements PRIVMSG <target>[,<target>...] :<text> (spec
// section 4.4).
func (s *Server) cmdPrivmsg(c *Client, m irc.Message) {
	s.relay(c, m, true)
}

// cmdNotice implements NOTICE with identical delivery semantics to
// PRIVMSG, but it never generates a numeric reply (spec section 4.4).
func (s *Server) cmdNotice(c *Client, m irc.Message) {
	s.relay(c, m, false)
}

func (s *Server) relay(c *Client, m irc.Message, withReplies bool) {
	command := m.Command

	if len(m.Params) == 0 {
		if withReplies {
			s.numeric(c, "411", "No recipient given ("+command+")")
		}
		return
	}
	if len(m.Params) < 2 {
		if withReplies {
			s.numeric(c, "412", "No text to send")
		}
		return
	}

	text := m.Params[1]

	for _, target := range splitList(m.Params[0]) {
		if len(target) > 0 && (target[0] == '#' || target[0] == '&') {
			s.relayToChannel(c, command, target, text, withReplies)
			continue
		}
		s.relayToNick(c, command, target, text, withReplies)
	}
}

func (s *Server) relayToChannel(c *Client, command, target, text string, withReplies bool) {
	ch := s.reg.getChannel(target)
	if ch == nil {
		if withReplies {
			s.numeric(c, "403", target, "No such channel")
		}
		return
	}
	if !ch.isMember(c.ID) {
		if withReplies {
			s.numeric(c, "404", ch.DisplayName, "Cannot send to channel")
		}
		return
	}

	msg := irc.Message{Prefix: c.hostmask(), Command: command, Params: []string{ch.DisplayName, text}}
	ch.broadcast(s.reg, c.ID, msg)
}

func (s *Server) relayToNick(c *Client, command, target, text string, withReplies bool) {
	targetClient := s.reg.findByNick(target)
	if targetClient == nil {
		if withReplies {
			s.numeric(c, "401", target, "No such nick/channel")
		}
		return
	}

	targetClient.send(irc.Message{Prefix: c.hostmask(), Command: command, Params: []string{target, text}})
}

// cmdKick implements KICK <chan> <nick> [:reason] (spec section 4.4).
func (s *Server) cmdKick(c *Client, m irc.Message) {
	if len(m.Params) < 2 {
		s.numeric(c, "461", "KICK", "Not enough parameters")
		return
	}

	ch := s.reg.getChannel(m.Params[0])
	if ch == nil {
		s.numeric(c, "403", m.Params[0], "No such channel")
		return
	}
	if !ch.isOperator(c.ID) {
		s.numeric(c, "482", ch.DisplayName, "You're not channel operator")
		return
	}

	target := s.reg.findByNick(m.Params[1])
	if target == nil || !ch.isMember(target.ID) {
		s.numeric(c, "441", m.Params[1], ch.DisplayName, "They aren't on that channel")
		return
	}

	// RFC 2812: default the comment to the kicking operator's nick when
	// none is given.
	reason := c.Nick
	if len(m.Params) > 2 {
		reason = m.Params[2]
	}

	kick := irc.Message{Prefix: c.hostmask(), Command: "KICK", Params: []string{ch.DisplayName, target.Nick, reason}}
	ch.broadcast(s.reg, c.ID, kick)
	c.send(kick)

	delete(target.Channels, ch.Name)
	if ch.removeMember(target.ID) {
		s.reg.dropEmptyChannel(ch)
	}
}

// cmdInvite implements INVITE <nick> <chan> (spec section 4.4).
func (s *Server) cmdInvite(c *Client, m irc.Message) {
	if len(m.Params) < 2 {
		s.numeric(c, "461", "INVITE", "Not enough parameters")
		return
	}

	target := s.reg.findByNick(m.Params[0])
	if target == nil {
		s.numeric(c, "401", m.Params[0], "No such nick/channel")
		return
	}

	ch := s.reg.getChannel(m.Params[1])
	if ch == nil {
		s.numeric(c, "403", m.Params[1], "No such channel")
		return
	}
	if !ch.isMember(c.ID) {
		s.numeric(c, "442", ch.DisplayName, "You're not on that channel")
		return
	}
	if ch.hasMode('i') && !ch.isOperator(c.ID) {
		s.numeric(c, "482", ch.DisplayName, "You're not channel operator")
		return
	}
	if ch.isMember(target.ID) {
		s.numeric(c, "443", target.Nick, ch.DisplayName, "is already on channel")
		return
	}

	ch.Invited[canonicalizeNick(target.Nick)] = struct{}{}

	target.send(irc.Message{Prefix: c.hostmask(), Command: "INVITE", Params: []string{target.Nick, ch.DisplayName}})
}

// cmdTopic implements TOPIC <chan> [:text] (spec section 4.4).
func (s *Server) cmdTopic(c *Client, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, "461", "TOPIC", "Not enough parameters")
		return
	}

	ch := s.reg.getChannel(m.Params[0])
	if ch == nil {
		s.numeric(c, "403", m.Params[0], "No such channel")
		return
	}
	if !ch.isMember(c.ID) {
		s.numeric(c, "442", ch.DisplayName, "You're not on that channel")
		return
	}

	if len(m.Params) < 2 {
		if len(ch.Topic) == 0 {
			s.numeric(c, "331", ch.DisplayName, "No topic is set")
		} else {
			s.numeric(c, "332", ch.DisplayName, ch.Topic)
		}
		return
	}

	if ch.hasMode('t') && !ch.isOperator(c.ID) {
		s.numeric(c, "482", ch.DisplayName, "You're not channel operator")
		return
	}

	ch.Topic = m.Params[1]
	topic := irc.Message{Prefix: c.hostmask(), Command: "TOPIC", Params: []string{ch.DisplayName, ch.Topic}}
	ch.broadcast(s.reg, c.ID, topic)
	c.send(topic)
}

// cmdLusers implements the LUSERS reply (SPEC_FULL.md section 4.4
// addition, grounded on the teacher's lusersCommand).
func (s *Server) cmdLusers(c *Client) {
	registeredCount := len(s.reg.nicks)
	unknown := len(s.reg.clients) - registeredCount

	s.numeric(c, "251", "There are "+strconv.Itoa(registeredCount)+" users on 1 server")
	if unknown > 0 {
		s.numeric(c, "253", strconv.Itoa(unknown), "unknown connection(s)")
	}
	if len(s.reg.channels) > 0 {
		s.numeric(c, "254", strconv.Itoa(len(s.reg.channels)), "channels formed")
	}
	s.numeric(c, "255", "I have "+strconv.Itoa(len(s.reg.clients))+" clients and 1 server")
}

// cmdMotd implements the MOTD reply (SPEC_FULL.md section 4.4 addition,
// grounded on the teacher's motdCommand).
func (s *Server) cmdMotd(c *Client) {
	s.numeric(c, "375", "- "+s.Config.ServerName+" Message of the day -")
	s.numeric(c, "372", "- "+s.Config.MOTD)
	s.numeric(c, "376", "End of /MOTD command")
}
