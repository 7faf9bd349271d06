package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Baaaki/agora/internal/broker"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanout_ReachesOtherNodes(t *testing.T) {
	// Arrange: two API nodes sharing one Redis
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newNode := func() (*BrokerFanout, *Hub) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		hub := NewHub()
		fanout := NewBrokerFanout(broker.NewRedisBroker(client, "test:notifications"), hub)
		require.NoError(t, fanout.Relay(ctx))
		return fanout, hub
	}
	nodeA, hubA := newNode()
	_, hubB := newNode()

	userID := uuid.New()
	onA := NewClient(userID)
	onB := NewClient(userID)
	hubA.Register(onA)
	hubB.Register(onB)

	// Act
	nodeA.DeliverToUser(ctx, userID, Event{Name: EventVoteUpdate, Data: map[string]int{"score": 3}})

	// Assert: the local socket gets it once, the remote socket gets it through Redis
	local := receive(t, onA)
	assert.Equal(t, EventVoteUpdate, local.Name)
	assertNothing(t, onA)

	remote := receive(t, onB)
	assert.Equal(t, EventVoteUpdate, remote.Name)
	raw, ok := remote.Data.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"score":3}`, string(raw))
}
