package main

// registry is the session-registry component from spec section 4.2. It
// exclusively owns every live Client and Channel; the only other goroutines
// that exist (per-client read/write loops) never reach into it directly —
// they only ever communicate with it across channels, so everything below
// runs unsynchronized on the single dispatcher goroutine (spec section 5).
type registry struct {
	clients  map[uint64]*Client
	nicks    map[string]uint64 // canonicalized nick -> client id
	channels map[string]*Channel
}

func newRegistry() *registry {
	return &registry{
		clients:  make(map[uint64]*Client),
		nicks:    make(map[string]uint64),
		channels: make(map[string]*Channel),
	}
}

// addClient registers a newly accepted Client. It does not publish a
// nickname; the client remains unreachable by findByNick until NICK
// succeeds.
func (r *registry) addClient(c *Client) {
	r.clients[c.ID] = c
}

// clientByID looks up a Client by its stable connection id.
func (r *registry) clientByID(id uint64) *Client {
	return r.clients[id]
}

// findByNick looks up a fully nicknamed client, case-insensitively.
func (r *registry) findByNick(nick string) *Client {
	id, ok := r.nicks[canonicalizeNick(nick)]
	if !ok {
		return nil
	}
	return r.clients[id]
}

// nickInUse reports whether a nickname is claimed by any client,
// case-insensitively.
func (r *registry) nickInUse(nick string) bool {
	_, ok := r.nicks[canonicalizeNick(nick)]
	return ok
}

// claimNick publishes a nickname for a client, evicting any previous
// nickname it held. Callers must already have checked nickInUse.
func (r *registry) claimNick(c *Client, nick string) {
	if len(c.Nick) > 0 {
		delete(r.nicks, canonicalizeNick(c.Nick))
	}
	r.nicks[canonicalizeNick(nick)] = c.ID
	c.Nick = nick
}

// getChannel looks up a channel by canonicalized name without creating it.
func (r *registry) getChannel(name string) *Channel {
	return r.channels[canonicalizeChannel(name)]
}

// getOrCreateChannel returns the existing channel for name, or creates and
// registers a new one. The caller is responsible for applying the "first
// joiner becomes operator" rule (spec section 3 invariant 5) when
// wasCreated is true.
func (r *registry) getOrCreateChannel(name string) (ch *Channel, wasCreated bool) {
	key := canonicalizeChannel(name)
	ch, ok := r.channels[key]
	if ok {
		return ch, false
	}
	ch = newChannel(key, name)
	r.channels[key] = ch
	return ch, true
}

// dropEmptyChannel removes a channel from the registry if it has no
// members left (spec section 3 invariant 4).
func (r *registry) dropEmptyChannel(ch *Channel) {
	if len(ch.Members) == 0 {
		delete(r.channels, ch.Name)
	}
}

// removeClient tears a client out of the registry: every channel it
// belonged to loses it as a member (and is garbage-collected if that
// leaves it empty), its nickname is freed, and it is deleted from the
// client table. It does not close the socket or notify anyone — callers
// that need a QUIT broadcast or connection teardown do that first, using
// the still-present channel membership, then call removeClient.
func (r *registry) removeClient(c *Client) {
	for name := range c.Channels {
		ch := r.channels[name]
		if ch == nil {
			continue
		}
		ch.removeMember(c.ID)
		r.dropEmptyChannel(ch)
	}
	c.Channels = make(map[string]struct{})

	if len(c.Nick) > 0 {
		delete(r.nicks, canonicalizeNick(c.Nick))
	}
	delete(r.clients, c.ID)
}

// channelsOf returns the set of Channel objects a client currently belongs
// to, used when a broadcast must reach every channel a client is in (QUIT,
// NICK change) without telling any recipient twice.
func (r *registry) channelsOf(c *Client) []*Channel {
	out := make([]*Channel, 0, len(c.Channels))
	for name := range c.Channels {
		if ch := r.channels[name]; ch != nil {
			out = append(out, ch)
		}
	}
	return out
}
