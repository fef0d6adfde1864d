package websocket

import "classchat/internal/models"

// Presence announces connections coming and going to every other admitted
// connection. Announcements are per connection, so a user with two tabs is
// reported online twice and offline once per closed tab.
type Presence struct {
	broadcaster *Broadcaster
}

func NewPresence(broadcaster *Broadcaster) *Presence {
	return &Presence{broadcaster: broadcaster}
}

func (p *Presence) Online(c *Client) int {
	return p.broadcaster.BroadcastAll(models.UserStatusEvent(c.User(), true), c.ID())
}

func (p *Presence) Offline(c *Client) int {
	return p.broadcaster.BroadcastAll(models.UserStatusEvent(c.User(), false), c.ID())
}
