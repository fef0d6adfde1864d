package models

import "time"

const MessageTypeText = "text"

// Sender is the subset of the sender identity carried on every message.
type Sender struct {
	ID       string `json:"_id" bson:"id"`
	Username string `json:"username" bson:"username"`
	FullName string `json:"fullName" bson:"fullName"`
}

type ReadReceipt struct {
	UserID string    `json:"user" bson:"user"`
	ReadAt time.Time `json:"readAt" bson:"readAt"`
}

// Message is a persisted chat message. Group messages are addressed to
// ChatRoom; direct messages carry a non-empty Recipients list and are routed
// to the recipients' personal rooms instead.
type Message struct {
	ID             string        `json:"_id" bson:"_id"`
	Sender         Sender        `json:"sender" bson:"sender"`
	Content        string        `json:"content" bson:"content"`
	ChatRoom       string        `json:"chatRoom" bson:"chatRoom"`
	MessageType    string        `json:"messageType" bson:"messageType"`
	IsGroupMessage bool          `json:"isGroupMessage" bson:"isGroupMessage"`
	Recipients     []string      `json:"recipients" bson:"recipients"`
	ReadBy         []ReadReceipt `json:"readBy" bson:"readBy"`
	CreatedAt      time.Time     `json:"createdAt" bson:"createdAt"`
}

func SenderFromUser(u *User) Sender {
	return Sender{ID: u.ID, Username: u.Username, FullName: u.FullName}
}

// HasReadReceipt reports whether userID already acknowledged the message.
func (m *Message) HasReadReceipt(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
