package websocket

import (
	"fmt"
	"sync"
	"testing"

	"classchat/internal/config"
	"classchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAdmitTwiceFails(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil, bob, testSettings)

	require.NoError(t, r.Admit(c))
	assert.ErrorIs(t, r.Admit(c), ErrDuplicateConnection)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryJoinLeaveAreIdempotent(t *testing.T) {
	r := NewRegistry()
	c := NewClient(nil, carol, testSettings)
	require.NoError(t, r.Admit(c))

	require.NoError(t, r.Join(c.ID(), "study_group"))
	require.NoError(t, r.Join(c.ID(), "study_group"))
	assert.Len(t, r.ConnectionsInRoom("study_group"), 1)

	require.NoError(t, r.Leave(c.ID(), "study_group"))
	require.NoError(t, r.Leave(c.ID(), "study_group"))
	assert.Empty(t, r.ConnectionsInRoom("study_group"))

	assert.ErrorIs(t, r.Leave(c.ID(), "role_teacher"), ErrImplicitRoom)
	assert.ErrorIs(t, r.Join("nope", "study_group"), ErrUnknownConnection)
}

func TestRegistryEvict(t *testing.T) {
	r := NewRegistry()
	c1 := NewClient(nil, carol, testSettings)
	c2 := NewClient(nil, carol, testSettings)
	require.NoError(t, r.Admit(c1))
	require.NoError(t, r.Admit(c2))
	require.NoError(t, r.Join(c1.ID(), "study_group"))

	assert.Len(t, r.ConnectionsForUser(carol.ID), 2)

	assert.True(t, r.Evict(c1.ID()))
	assert.False(t, r.Evict(c1.ID()))
	assert.False(t, r.Evict("never-admitted"))

	assert.Empty(t, r.ConnectionsInRoom("study_group"))
	assert.Len(t, r.ConnectionsInRoom("role_teacher"), 1)
	users := r.ConnectionsForUser(carol.ID)
	require.Len(t, users, 1)
	assert.Equal(t, c2.ID(), users[0].ID())

	assert.True(t, r.Evict(c2.ID()))
	assert.Empty(t, r.ConnectionsForUser(carol.ID))
	assert.Equal(t, 0, r.Count())
}

func TestConcurrentMembershipAndBroadcast(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	var clients []*Client
	for i := 0; i < 20; i++ {
		u := &models.User{ID: fmt.Sprintf("u-%d", i), Username: fmt.Sprintf("user%d", i), Role: models.RoleStudent}
		c := NewClient(nil, u, config.WebSocketConfig{SendQueueSize: 8})
		require.NoError(t, r.Admit(c))
		clients = append(clients, c)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = r.Join(c.ID(), "lobby")
				_ = r.Leave(c.ID(), "lobby")
			}
			_ = r.Join(c.ID(), "lobby")
		}(c)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				b.BroadcastToRoom("lobby", models.UserStatusEvent(bob, true), "")
				b.BroadcastAll(models.UserStatusEvent(bob, false), "")
			}
		}()
	}
	wg.Wait()

	assert.Len(t, r.ConnectionsInRoom("lobby"), len(clients))
	assert.Equal(t, len(clients), b.BroadcastToRoom("lobby", models.UserStatusEvent(bob, true), ""))
}

func TestBroadcasterSkipsClosedTargets(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	live := NewClient(nil, bob, testSettings)
	dead := NewClient(nil, dave, testSettings)
	require.NoError(t, r.Admit(live))
	require.NoError(t, r.Admit(dead))
	dead.Close()

	assert.Equal(t, 1, b.BroadcastToRoom("class_SSC", models.UserStatusEvent(carol, true), ""))
	assert.Len(t, drain(live), 1)

	assert.True(t, b.SendToConnection(live.ID(), models.MessageReadConfirmedEvent("m1")))
	assert.False(t, b.SendToConnection(dead.ID(), models.MessageReadConfirmedEvent("m1")))
	assert.False(t, b.SendToConnection("unknown", models.MessageReadConfirmedEvent("m1")))
}

func TestClientQueueDropsOldest(t *testing.T) {
	c := NewClient(nil, bob, config.WebSocketConfig{SendQueueSize: 2})

	for _, frame := range []string{"1", "2", "3", "4"} {
		require.NoError(t, c.Send([]byte(frame)))
	}

	assert.Equal(t, "3", string(<-c.send))
	assert.Equal(t, "4", string(<-c.send))
	assert.Empty(t, c.send)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := NewClient(nil, bob, testSettings)
	require.NoError(t, c.Send([]byte("queued")))

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.Send([]byte("late")), ErrConnectionClosed)
	msg, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, "queued", string(msg))
	_, ok = <-c.send
	assert.False(t, ok)
}

func TestClientDefaults(t *testing.T) {
	c := NewClient(nil, bob, config.WebSocketConfig{})
	assert.Equal(t, defaultSendQueueSize, cap(c.send))
	assert.Equal(t, StateAuthenticated, c.State())
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, "authenticated", c.State().String())
}
