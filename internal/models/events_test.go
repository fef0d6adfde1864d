package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInboundVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want InboundEvent
	}{
		{
			name: "join room object",
			raw:  `{"event":"join_room","data":{"roomId":"study_group"}}`,
			want: JoinRoom{RoomID: "study_group"},
		},
		{
			name: "join room bare string",
			raw:  `{"event":"join_room","data":"study_group"}`,
			want: JoinRoom{RoomID: "study_group"},
		},
		{
			name: "leave room",
			raw:  `{"event":"leave_room","data":{"roomId":"study_group"}}`,
			want: LeaveRoom{RoomID: "study_group"},
		},
		{
			name: "group message defaults to text",
			raw:  `{"event":"send_message","data":{"content":"hello","chatRoom":"class_SSC"}}`,
			want: SendMessage{Content: "hello", ChatRoom: "class_SSC", MessageType: MessageTypeText},
		},
		{
			name: "direct message without room",
			raw:  `{"event":"send_message","data":{"content":"hi","recipients":["a","b"],"messageType":"image"}}`,
			want: SendMessage{Content: "hi", MessageType: "image", Recipients: []string{"a", "b"}},
		},
		{
			name: "typing start",
			raw:  `{"event":"typing_start","data":{"roomId":"r1"}}`,
			want: Typing{RoomID: "r1", IsTyping: true},
		},
		{
			name: "typing stop",
			raw:  `{"event":"typing_stop","data":{"roomId":"r1"}}`,
			want: Typing{RoomID: "r1", IsTyping: false},
		},
		{
			name: "mark read",
			raw:  `{"event":"mark_message_read","data":{"messageId":"01HZY"}}`,
			want: MarkMessageRead{MessageID: "01HZY"},
		},
		{
			name: "user online without data",
			raw:  `{"event":"user_online"}`,
			want: AnnounceOnline{},
		},
		{
			name: "user online with empty object",
			raw:  `{"event":"user_online","data":{}}`,
			want: AnnounceOnline{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.EventName(), got.EventName())
		})
	}
}

func TestParseInboundRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"missing event", `{"data":{"roomId":"r"}}`},
		{"unknown event", `{"event":"delete_message","data":{"messageId":"x"}}`},
		{"unknown envelope field", `{"event":"user_online","extra":1}`},
		{"unknown payload field", `{"event":"join_room","data":{"roomId":"r","force":true}}`},
		{"join without room", `{"event":"join_room","data":{}}`},
		{"join empty string", `{"event":"join_room","data":""}`},
		{"blank content", `{"event":"send_message","data":{"content":"   ","chatRoom":"r"}}`},
		{"group message without room", `{"event":"send_message","data":{"content":"hi"}}`},
		{"bad message type", `{"event":"send_message","data":{"content":"hi","chatRoom":"r","messageType":"video"}}`},
		{"empty recipient id", `{"event":"send_message","data":{"content":"hi","recipients":[""]}}`},
		{"typing without data", `{"event":"typing_start"}`},
		{"mark read without id", `{"event":"mark_message_read","data":{"messageId":""}}`},
		{"user online with data", `{"event":"user_online","data":{"x":1}}`},
		{"trailing frame", `{"event":"user_online"}{"event":"user_online"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInbound([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestOutboundEncoding(t *testing.T) {
	u := &User{ID: "u1", Username: "alice", FullName: "Alice A", Role: RoleStudent}

	data, err := json.Marshal(UserTypingEvent(u, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user_typing","data":{"userId":"u1","username":"alice","isTyping":true}}`, string(data))

	data, err = json.Marshal(UserStatusEvent(u, false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user_status","data":{"userId":"u1","username":"alice","isOnline":false}}`, string(data))

	data, err = json.Marshal(MessageErrorEvent("Failed to send message"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"message_error","data":{"error":"Failed to send message"}}`, string(data))

	data, err = json.Marshal(MessageReadConfirmedEvent("m1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"message_read_confirmed","data":{"messageId":"m1"}}`, string(data))
}

func TestImplicitRooms(t *testing.T) {
	u := &User{ID: "42", Role: RoleTeacher}
	assert.Equal(t, []string{"user_42", "role_teacher"}, u.ImplicitRooms())

	u.ClassLevel = "HSC"
	assert.Equal(t, []string{"user_42", "role_teacher", "class_HSC"}, u.ImplicitRooms())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Bob B", (&User{Username: "bob", FullName: "Bob B"}).DisplayName())
	assert.Equal(t, "bob", (&User{Username: "bob"}).DisplayName())
}
