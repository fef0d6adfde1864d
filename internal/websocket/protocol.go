package websocket

import (
	"context"

	"classchat/internal/metrics"
	"classchat/internal/models"
	"classchat/pkg/logger"
)

// sendFailedReason is the only detail a sender gets about a failed send.
const sendFailedReason = "Failed to send message"

// MessageService persists chat messages and read receipts.
type MessageService interface {
	Send(ctx context.Context, sender *models.User, req models.SendMessage) (*models.Message, error)
	MarkRead(ctx context.Context, messageID string, reader *models.User) error
}

// Protocol drives each connection through its lifecycle and dispatches the
// events it sends. Events from one connection are handled in arrival order;
// different connections are handled concurrently.
type Protocol struct {
	registry    *Registry
	broadcaster *Broadcaster
	presence    *Presence
	messages    MessageService

	ctx    context.Context
	cancel context.CancelFunc
}

func NewProtocol(registry *Registry, messages MessageService) *Protocol {
	broadcaster := NewBroadcaster(registry)
	ctx, cancel := context.WithCancel(context.Background())
	return &Protocol{
		registry:    registry,
		broadcaster: broadcaster,
		presence:    NewPresence(broadcaster),
		messages:    messages,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Protocol) Registry() *Registry {
	return p.registry
}

// Serve runs an upgraded, authenticated connection until it closes.
func (p *Protocol) Serve(c *Client) {
	if err := p.Connect(c); err != nil {
		logger.Error("Error admitting connection %s: %v", c.ID(), err)
		c.conn.Close()
		return
	}

	go c.WritePump()
	c.ReadPump(func(raw []byte) {
		p.Handle(c, raw)
	})
	p.Disconnect(c)
}

// Connect admits c, which subscribes it to its implicit rooms, and announces
// it to everyone else.
func (p *Protocol) Connect(c *Client) error {
	if err := p.registry.Admit(c); err != nil {
		return err
	}
	c.setState(StateActive)
	metrics.ActiveConnections.Inc()

	user := c.User()
	logger.Info("User %s connected on %s (rooms: %v)", user.Username, c.ID(), user.ImplicitRooms())
	p.presence.Online(c)
	return nil
}

// Disconnect evicts c and announces it offline. Calling it again for the same
// connection does nothing.
func (p *Protocol) Disconnect(c *Client) {
	if !p.registry.Evict(c.ID()) {
		return
	}
	c.setState(StateClosed)
	c.Close()
	metrics.ActiveConnections.Dec()

	logger.Info("User %s disconnected from %s", c.User().Username, c.ID())
	p.presence.Offline(c)
}

// Shutdown closes every live connection without presence announcements and
// cancels in-flight store calls.
func (p *Protocol) Shutdown() {
	p.cancel()

	closed := 0
	for _, c := range p.registry.Connections() {
		if p.registry.Evict(c.ID()) {
			c.setState(StateClosed)
			c.Close()
			metrics.ActiveConnections.Dec()
			closed++
		}
	}
	logger.Info("Closed %d connections", closed)
}

// Handle processes one inbound frame. Invalid frames are logged and dropped;
// the connection stays open.
func (p *Protocol) Handle(c *Client, raw []byte) {
	if c.State() != StateActive {
		logger.Debug("Ignoring frame on %s connection %s", c.State(), c.ID())
		return
	}

	ev, err := models.ParseInbound(raw)
	if err != nil {
		metrics.InvalidEvents.Inc()
		logger.Warn("Dropping invalid event from connection %s: %v", c.ID(), err)
		return
	}
	metrics.EventsReceived.WithLabelValues(ev.EventName()).Inc()

	switch e := ev.(type) {
	case models.JoinRoom:
		if err := p.registry.Join(c.ID(), e.RoomID); err != nil {
			logger.Warn("Join %s failed for connection %s: %v", e.RoomID, c.ID(), err)
			return
		}
		logger.Debug("Connection %s joined %s", c.ID(), e.RoomID)

	case models.LeaveRoom:
		if err := p.registry.Leave(c.ID(), e.RoomID); err != nil {
			logger.Warn("Leave %s failed for connection %s: %v", e.RoomID, c.ID(), err)
			return
		}
		logger.Debug("Connection %s left %s", c.ID(), e.RoomID)

	case models.SendMessage:
		p.sendMessage(c, e)

	case models.Typing:
		p.broadcaster.BroadcastToRoom(e.RoomID, models.UserTypingEvent(c.User(), e.IsTyping), c.ID())

	case models.MarkMessageRead:
		p.markRead(c, e)

	case models.AnnounceOnline:
		p.presence.Online(c)
	}
}

// sendMessage persists first and only fans out what was stored.
func (p *Protocol) sendMessage(c *Client, req models.SendMessage) {
	msg, err := p.messages.Send(p.ctx, c.User(), req)
	if err != nil {
		logger.Error("Error sending message from %s: %v", c.User().Username, err)
		p.broadcaster.SendToConnection(c.ID(), models.MessageErrorEvent(sendFailedReason))
		return
	}

	ev := models.NewMessageEvent(msg)
	if msg.IsGroupMessage {
		p.broadcaster.BroadcastToRoom(msg.ChatRoom, ev, c.ID())
	} else {
		p.broadcaster.SendToUsers(msg.Recipients, ev, c.ID())
	}

	p.broadcaster.SendToConnection(c.ID(), models.MessageSentEvent(msg))
}

func (p *Protocol) markRead(c *Client, req models.MarkMessageRead) {
	if err := p.messages.MarkRead(p.ctx, req.MessageID, c.User()); err != nil {
		logger.Error("Error marking message %s read for %s: %v", req.MessageID, c.User().Username, err)
		return
	}
	p.broadcaster.SendToConnection(c.ID(), models.MessageReadConfirmedEvent(req.MessageID))
}
