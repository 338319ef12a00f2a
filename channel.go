package main

import (
	"strconv"

	"github.com/horgh/irc"
)

// channelModeN is the default "no external messages" mode, present on every
// channel at creation time (spec section 3).
const channelModeN = 'n'

// Channel holds everything to do with a single named channel: membership,
// operator set, topic, key, limit, and the mode flag alphabet from spec
// section 6 ({i, t, k, l, m, n, p, s}).
type Channel struct {
	// Name is the canonicalized (lowercased) channel name.
	Name string

	// DisplayName preserves the casing the channel was first created with.
	DisplayName string

	// Members holds the client IDs currently joined to the channel.
	Members map[uint64]struct{}

	// Operators is a subset of Members with elevated privileges.
	Operators map[uint64]struct{}

	// Topic is the channel topic. May be blank.
	Topic string

	// Key gates +k joins. Blank means no key is set.
	Key string

	// Limit caps membership under +l. 0 means unlimited.
	Limit int

	// Modes holds the set of single-character flags currently active.
	Modes map[byte]struct{}

	// Invited holds nicknames (canonicalized) invited past +i. Entries are
	// consumed on a successful JOIN (spec section 9, invite tracking).
	Invited map[string]struct{}
}

// newChannel creates a Channel with the default mode set from spec section
// 3 (+n only).
func newChannel(name, display string) *Channel {
	return &Channel{
		Name:        name,
		DisplayName: display,
		Members:     make(map[uint64]struct{}),
		Operators:   make(map[uint64]struct{}),
		Modes:       map[byte]struct{}{channelModeN: {}},
		Invited:     make(map[string]struct{}),
	}
}

// hasMode reports whether the given mode flag is currently set.
func (ch *Channel) hasMode(flag byte) bool {
	_, ok := ch.Modes[flag]
	return ok
}

// isMember reports whether the client with the given id currently belongs
// to the channel.
func (ch *Channel) isMember(id uint64) bool {
	_, ok := ch.Members[id]
	return ok
}

// isOperator reports whether the client with the given id is an operator
// on the channel. A non-member is never an operator.
func (ch *Channel) isOperator(id uint64) bool {
	_, ok := ch.Operators[id]
	return ok
}

// addMember adds a client to the channel's membership. The caller
// (joinOne in command.go) is responsible for the paired update to the
// client's own channel set (spec section 3 invariant 1). The first member
// ever added becomes an operator (spec section 3 invariant 5); callers pass
// makeOperator=true only when the channel was created by this join.
func (ch *Channel) addMember(id uint64, makeOperator bool) {
	ch.Members[id] = struct{}{}
	if makeOperator {
		ch.Operators[id] = struct{}{}
	}
}

// removeMember removes a client from membership and from the operator set.
// It returns true if the channel is now empty and should be destroyed by
// the caller (registry.dropEmptyChannel).
func (ch *Channel) removeMember(id uint64) (empty bool) {
	delete(ch.Members, id)
	delete(ch.Operators, id)
	return len(ch.Members) == 0
}

// consumeInvite removes a pending invite for nick, if any, and reports
// whether one was present.
func (ch *Channel) consumeInvite(nickCanon string) bool {
	_, ok := ch.Invited[nickCanon]
	if ok {
		delete(ch.Invited, nickCanon)
	}
	return ok
}

// modeString renders the channel's active flags as "+itkl...", appending
// the key and limit parameters a client is entitled to see. Per common
// ircd practice we only include a non-empty key/limit when they are set.
func (ch *Channel) modeString() string {
	flags := "+"
	var params []string

	// Fixed order keeps output deterministic, which matters for the
	// round-trip law in spec section 8 (set then clear returns to the
	// original set, and tests compare exact strings).
	order := []byte{'i', 't', 'k', 'l', 'm', 'n', 'p', 's'}
	for _, f := range order {
		if !ch.hasMode(f) {
			continue
		}
		flags += string(f)
		if f == 'k' {
			params = append(params, ch.Key)
		}
		if f == 'l' {
			params = append(params, strconv.Itoa(ch.Limit))
		}
	}

	out := flags
	for _, p := range params {
		out += " " + p
	}
	return out
}

// broadcast sends an IRC message to every current member of the channel
// except the client identified by exceptID (pass 0, an id no real client
// ever has, to exclude nobody). A member whose outbound queue rejects the
// message is reported back to the caller so the dispatcher can schedule a
// disconnect; broadcast itself never aborts partway through (spec section
// 4.3).
func (ch *Channel) broadcast(reg *registry, exceptID uint64, m irc.Message) (failed []uint64) {
	for id := range ch.Members {
		if id == exceptID {
			continue
		}
		client := reg.clientByID(id)
		if client == nil {
			continue
		}
		if !client.send(m) {
			failed = append(failed, id)
		}
	}
	return failed
}
