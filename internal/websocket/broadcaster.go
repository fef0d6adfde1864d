package websocket

import (
	"encoding/json"

	"classchat/internal/metrics"
	"classchat/internal/models"
	"classchat/pkg/logger"
)

// Broadcaster routes outbound events to connections picked from the
// registry. Delivery is best-effort: a target that cannot take the event is
// logged and skipped, the rest of the fan-out continues. Every method reports
// how many connections accepted the event.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// BroadcastToRoom delivers ev to every connection in room except
// excludeConnID, which may be empty.
func (b *Broadcaster) BroadcastToRoom(room string, ev models.Outbound, excludeConnID string) int {
	return b.deliver(b.registry.ConnectionsInRoom(room), ev, excludeConnID)
}

// SendToUser delivers ev to every live connection of userID.
func (b *Broadcaster) SendToUser(userID string, ev models.Outbound, excludeConnID string) int {
	return b.SendToUsers([]string{userID}, ev, excludeConnID)
}

// SendToUsers delivers ev once to every live connection owned by any of
// userIDs.
func (b *Broadcaster) SendToUsers(userIDs []string, ev models.Outbound, excludeConnID string) int {
	seen := make(map[string]struct{})
	var targets []*Client
	for _, userID := range userIDs {
		for _, c := range b.registry.ConnectionsForUser(userID) {
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			seen[c.ID()] = struct{}{}
			targets = append(targets, c)
		}
	}
	return b.deliver(targets, ev, excludeConnID)
}

// SendToConnection is a unicast used for acknowledgements and error replies.
func (b *Broadcaster) SendToConnection(connID string, ev models.Outbound) bool {
	c, ok := b.registry.Get(connID)
	if !ok {
		logger.Debug("Dropping %s for unknown connection %s", ev.Event, connID)
		return false
	}
	return b.deliver([]*Client{c}, ev, "") == 1
}

// BroadcastAll delivers ev to every admitted connection except excludeConnID.
func (b *Broadcaster) BroadcastAll(ev models.Outbound, excludeConnID string) int {
	return b.deliver(b.registry.Connections(), ev, excludeConnID)
}

func (b *Broadcaster) deliver(targets []*Client, ev models.Outbound, excludeConnID string) int {
	if len(targets) == 0 {
		return 0
	}

	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Error marshaling %s event: %v", ev.Event, err)
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if excludeConnID != "" && c.ID() == excludeConnID {
			continue
		}
		if err := c.Send(data); err != nil {
			metrics.DeliveryFailures.Inc()
			logger.Warn("Failed to deliver %s to connection %s: %v", ev.Event, c.ID(), err)
			continue
		}
		delivered++
	}
	return delivered
}
