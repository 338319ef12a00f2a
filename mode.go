package main

import (
	"strconv"
	"strings"

	"github.com/horgh/irc"
)

// channelParameterizedModes is the set of flags that consume a parameter
// when being set or cleared, per spec section 4.4: k (key, only on set), l
// (limit, only on set), o (operator, a nickname, on both set and clear).
const channelParameterizedModes = "klo"

// modeChange records one applied flag change, in the order it was applied,
// for the aggregated broadcast spec section 4.4 requires.
type modeChange struct {
	add   bool
	flag  byte
	param string
}

// cmdMode implements MODE <chan> [<modes> [<param>...]] (spec section
// 4.4). Without a mode string it replies with the channel's current modes;
// with one, it requires the caller to be a channel operator and applies
// only the changes that actually take effect, broadcasting exactly those.
func (s *Server) cmdMode(c *Client, m irc.Message) {
	if len(m.Params) < 1 {
		s.numeric(c, "461", "MODE", "Not enough parameters")
		return
	}

	ch := s.reg.getChannel(m.Params[0])
	if ch == nil {
		s.numeric(c, "403", m.Params[0], "No such channel")
		return
	}

	if len(m.Params) < 2 {
		s.numeric(c, "324", ch.DisplayName, ch.modeString())
		return
	}

	if !ch.isOperator(c.ID) {
		s.numeric(c, "482", ch.DisplayName, "You're not channel operator")
		return
	}

	changes := s.applyChannelModes(ch, m.Params[1], m.Params[2:])
	if len(changes) == 0 {
		return
	}

	s.broadcastModeChanges(c, ch, changes)
}

// applyChannelModes parses the canonical "+/-flags" string and applies
// each flag in turn, drawing one parameter per flag that demands one from
// params, in order — not by indexing into the mode string itself, which
// spec section 9 calls out as the buggy behaviour this core must not
// reproduce.
func (s *Server) applyChannelModes(ch *Channel, modes string, params []string) []modeChange {
	var changes []modeChange
	add := true
	paramIdx := 0

	nextParam := func() (string, bool) {
		if paramIdx >= len(params) {
			return "", false
		}
		p := params[paramIdx]
		paramIdx++
		return p, true
	}

	for _, r := range modes {
		switch r {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}

		flag := byte(r)
		if !strings.ContainsRune("itklmnpso", r) {
			continue
		}

		if strings.IndexByte(channelParameterizedModes, flag) == -1 {
			if ok := ch.setToggleMode(flag, add); ok {
				changes = append(changes, modeChange{add: add, flag: flag})
			}
			continue
		}

		switch flag {
		case 'k':
			if add {
				key, ok := nextParam()
				if !ok || len(key) == 0 {
					continue
				}
				ch.Key = key
				ch.Modes['k'] = struct{}{}
				changes = append(changes, modeChange{add: true, flag: 'k', param: key})
			} else {
				if ch.hasMode('k') {
					delete(ch.Modes, 'k')
					ch.Key = ""
					changes = append(changes, modeChange{add: false, flag: 'k'})
				}
			}

		case 'l':
			if add {
				limStr, ok := nextParam()
				if !ok {
					continue
				}
				lim, err := strconv.Atoi(limStr)
				if err != nil || lim <= 0 {
					continue
				}
				ch.Limit = lim
				ch.Modes['l'] = struct{}{}
				changes = append(changes, modeChange{add: true, flag: 'l', param: limStr})
			} else {
				if ch.hasMode('l') {
					delete(ch.Modes, 'l')
					ch.Limit = 0
					changes = append(changes, modeChange{add: false, flag: 'l'})
				}
			}

		case 'o':
			nick, ok := nextParam()
			if !ok {
				continue
			}
			target := s.reg.findByNick(nick)
			if target == nil || !ch.isMember(target.ID) {
				continue
			}
			if add {
				if !ch.isOperator(target.ID) {
					ch.Operators[target.ID] = struct{}{}
					changes = append(changes, modeChange{add: true, flag: 'o', param: target.Nick})
				}
			} else {
				if ch.isOperator(target.ID) {
					delete(ch.Operators, target.ID)
					changes = append(changes, modeChange{add: false, flag: 'o', param: target.Nick})
				}
			}
		}
	}

	return changes
}

// setToggleMode applies a parameterless flag (i, t, m, n, p, s) and
// reports whether the call actually changed anything, so no-op repeats
// (e.g. "+i" on an already-+i channel) are excluded from the broadcast.
func (ch *Channel) setToggleMode(flag byte, add bool) bool {
	already := ch.hasMode(flag)
	if add == already {
		return false
	}
	if add {
		ch.Modes[flag] = struct{}{}
	} else {
		delete(ch.Modes, flag)
	}
	return true
}

// broadcastModeChanges emits a single aggregated MODE message reflecting
// only the changes that were actually applied (spec section 4.4).
func (s *Server) broadcastModeChanges(c *Client, ch *Channel, changes []modeChange) {
	var flags strings.Builder
	var params []string
	lastAdd := -1 // -1: none yet, 0: '-', 1: '+'

	for _, chg := range changes {
		sign := 1
		if !chg.add {
			sign = 0
		}
		if sign != lastAdd {
			if chg.add {
				flags.WriteByte('+')
			} else {
				flags.WriteByte('-')
			}
			lastAdd = sign
		}
		flags.WriteByte(chg.flag)
		if len(chg.param) > 0 {
			params = append(params, chg.param)
		}
	}

	modeParams := append([]string{ch.DisplayName, flags.String()}, params...)
	mode := irc.Message{Prefix: c.hostmask(), Command: "MODE", Params: modeParams}
	ch.broadcast(s.reg, c.ID, mode)
	c.send(mode)
}
