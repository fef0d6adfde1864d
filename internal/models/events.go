package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks an inbound frame that does not match any known event.
var ErrValidation = errors.New("validation error")

// Inbound event names.
const (
	EventJoinRoom        = "join_room"
	EventLeaveRoom       = "leave_room"
	EventSendMessage     = "send_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
	EventMarkMessageRead = "mark_message_read"
	EventUserOnline      = "user_online"
)

// Outbound event names.
const (
	EventNewMessage           = "new_message"
	EventMessageSent          = "message_sent"
	EventMessageError         = "message_error"
	EventUserTyping           = "user_typing"
	EventMessageReadConfirmed = "message_read_confirmed"
	EventUserStatus           = "user_status"
)

// Envelope is the frame every event travels in, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundEvent is implemented by every event a client may send.
type InboundEvent interface {
	EventName() string
}

type JoinRoom struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type SendMessage struct {
	Content     string   `json:"content" validate:"required,max=5000"`
	ChatRoom    string   `json:"chatRoom" validate:"max=128"`
	MessageType string   `json:"messageType" validate:"omitempty,oneof=text image file"`
	Recipients  []string `json:"recipients" validate:"max=100,dive,required,max=64"`
}

// Typing covers both typing_start and typing_stop.
type Typing struct {
	RoomID   string `json:"roomId" validate:"required,max=128"`
	IsTyping bool   `json:"-"`
}

type MarkMessageRead struct {
	MessageID string `json:"messageId" validate:"required,max=64"`
}

type AnnounceOnline struct{}

func (JoinRoom) EventName() string        { return EventJoinRoom }
func (LeaveRoom) EventName() string       { return EventLeaveRoom }
func (SendMessage) EventName() string     { return EventSendMessage }
func (MarkMessageRead) EventName() string { return EventMarkMessageRead }
func (AnnounceOnline) EventName() string  { return EventUserOnline }

func (t Typing) EventName() string {
	if t.IsTyping {
		return EventTypingStart
	}
	return EventTypingStop
}

// IsDirect reports whether the message is addressed to explicit recipients.
func (s SendMessage) IsDirect() bool {
	return len(s.Recipients) > 0
}

var validate = validator.New()

// ParseInbound decodes one client frame into its event variant. Unknown
// events, unknown fields and payloads failing validation are rejected with an
// error wrapping ErrValidation.
func ParseInbound(raw []byte) (InboundEvent, error) {
	var env Envelope
	if err := decodeStrict(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", ErrValidation, err)
	}

	var ev InboundEvent
	var err error
	switch env.Event {
	case EventJoinRoom:
		var p JoinRoom
		p.RoomID, err = decodeRoomID(env.Data)
		ev = p
	case EventLeaveRoom:
		var p LeaveRoom
		p.RoomID, err = decodeRoomID(env.Data)
		ev = p
	case EventSendMessage:
		var p SendMessage
		err = decodeStrict(env.Data, &p)
		if err == nil {
			err = checkSendMessage(&p)
		}
		ev = p
	case EventTypingStart, EventTypingStop:
		p := Typing{IsTyping: env.Event == EventTypingStart}
		err = decodeStrict(env.Data, &p)
		ev = p
	case EventMarkMessageRead:
		var p MarkMessageRead
		err = decodeStrict(env.Data, &p)
		ev = p
	case EventUserOnline:
		if !isEmptyPayload(env.Data) {
			err = errors.New("user_online takes no data")
		}
		ev = AnnounceOnline{}
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrValidation, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidation, env.Event, err)
	}

	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidation, env.Event, err)
	}
	return ev, nil
}

func decodeStrict(data []byte, dst interface{}) error {
	if isEmptyPayload(data) {
		return errors.New("missing data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

// decodeRoomID accepts either {"roomId": "..."} or a bare JSON string.
func decodeRoomID(data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var room string
		if err := json.Unmarshal(trimmed, &room); err != nil {
			return "", err
		}
		return room, nil
	}
	var p JoinRoom
	if err := decodeStrict(trimmed, &p); err != nil {
		return "", err
	}
	return p.RoomID, nil
}

func checkSendMessage(p *SendMessage) error {
	if strings.TrimSpace(p.Content) == "" {
		return errors.New("content is blank")
	}
	if !p.IsDirect() && p.ChatRoom == "" {
		return errors.New("chatRoom is required for group messages")
	}
	if p.MessageType == "" {
		p.MessageType = MessageTypeText
	}
	return nil
}

func isEmptyPayload(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

// Outbound is a server-to-client event.
type Outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type MessageError struct {
	Error string `json:"error"`
}

type UserTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type MessageReadConfirmed struct {
	MessageID string `json:"messageId"`
}

type UserStatus struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

func NewMessageEvent(m *Message) Outbound {
	return Outbound{Event: EventNewMessage, Data: m}
}

func MessageSentEvent(m *Message) Outbound {
	return Outbound{Event: EventMessageSent, Data: m}
}

func MessageErrorEvent(reason string) Outbound {
	return Outbound{Event: EventMessageError, Data: MessageError{Error: reason}}
}

func UserTypingEvent(u *User, isTyping bool) Outbound {
	return Outbound{Event: EventUserTyping, Data: UserTyping{UserID: u.ID, Username: u.Username, IsTyping: isTyping}}
}

func MessageReadConfirmedEvent(messageID string) Outbound {
	return Outbound{Event: EventMessageReadConfirmed, Data: MessageReadConfirmed{MessageID: messageID}}
}

func UserStatusEvent(u *User, isOnline bool) Outbound {
	return Outbound{Event: EventUserStatus, Data: UserStatus{UserID: u.ID, Username: u.Username, IsOnline: isOnline}}
}
