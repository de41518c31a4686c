package chat

import (
	"github.com/glowstudio-app/glowchat/internal/account"
	"github.com/glowstudio-app/glowchat/internal/api"
)

// Partners returns a copy of the current partner list, most recent first.
func (c *Coordinator) Partners() []api.Partner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]api.Partner, len(c.partners))
	copy(out, c.partners)
	return out
}

// Messages returns a copy of the open conversation's messages, oldest first.
func (c *Coordinator) Messages() []api.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]api.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ActivePartnerID returns the currently open partner, or zero.
func (c *Coordinator) ActivePartnerID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID
}

// ActivePartner returns the currently open partner's record, or nil.
func (c *Coordinator) ActivePartner() *api.Partner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.partners {
		if c.partners[i].ID == c.activeID {
			p := c.partners[i]
			return &p
		}
	}
	return nil
}

// UnreadTotal derives the badge value from the partner list: the sum of all
// partners' unread counts. On the customer side the list has exactly one
// partner (the operator), so the sum degenerates to that single count.
func (c *Coordinator) UnreadTotal() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for i := range c.partners {
		total += c.partners[i].UnreadCount
	}
	return total
}

// Sending reports whether a send is in flight.
func (c *Coordinator) Sending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sending
}

// Loading reports the partner-list and history loading flags.
func (c *Coordinator) Loading() (partners, messages bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadingPartners, c.loadingMessages
}

// LastError returns the most recent operation error message, or empty.
func (c *Coordinator) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// SelfID returns the local user's id.
func (c *Coordinator) SelfID() int64 {
	return c.selfID
}

// Role returns the local user's role.
func (c *Coordinator) Role() account.Role {
	return c.role
}
