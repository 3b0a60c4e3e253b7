package server

import "sync"

// Channel is a named broadcast group of currently subscribed sessions. The
// single mutex serializes membership changes and broadcasts, so every member
// observes fan-outs in the order the calls completed on the channel and no
// broadcast sees a half-updated member list.
type Channel struct {
	name string

	mu      sync.Mutex
	members []*Session
}

func NewChannel(name string) *Channel {
	return &Channel{name: name}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) String() string { return "[" + c.name + "]" }

// Subscribe adds the session to the channel and announces the join to every
// member, the joiner included. Subscribing twice is a no-op.
func (c *Channel) Subscribe(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contains(s) {
		return
	}
	c.members = append(c.members, s)
	c.broadcast("User " + s.Username() + " joined channel " + c.String())
}

// Unsubscribe announces the leave to the members, the leaver still included,
// and removes the session. Not a member is a no-op.
func (c *Channel) Unsubscribe(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.contains(s) {
		return
	}
	c.broadcast("User " + s.Username() + " left channel " + c.String())
	for i, member := range c.members {
		if member == s {
			c.members = append(c.members[:i], c.members[i+1:]...)
			break
		}
	}
}

// Shout fans a sender-prefixed message out to every member. The sender
// receives its own shout; there is no self-filtering.
func (c *Channel) Shout(sender *Session, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast(sender.Username() + "> " + message)
}

// Sessions returns a snapshot of the current members in join order.
func (c *Channel) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Session(nil), c.members...)
}

func (c *Channel) contains(s *Session) bool {
	for _, member := range c.members {
		if member == s {
			return true
		}
	}
	return false
}

// broadcast enqueues the message on every member's outbox. Deliver never
// blocks, so holding the channel mutex here cannot be stalled by a slow
// client.
func (c *Channel) broadcast(message string) {
	for _, member := range c.members {
		member.Deliver(message)
	}
}
