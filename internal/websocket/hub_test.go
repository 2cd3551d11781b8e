package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func connect(hub *Hub, userID string) *Client {
	client := NewClient(hub, nil, userID)
	hub.register <- client
	return client
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.userID)
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message for %s: %+v", c.userID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishMatchEventReachesRecipientsOnly(t *testing.T) {
	hub, _ := startHub(t)
	alice := connect(hub, "alice")
	bob := connect(hub, "bob")
	carol := connect(hub, "carol")

	event := models.MatchEvent{
		Type:         models.EventMatchUpdated,
		MatchID:      "m1",
		Status:       models.MatchStatusCompleted,
		RecipientIDs: []string{"alice", "bob", "offline"},
		Version:      4,
	}
	require.NoError(t, hub.PublishMatchEvent(context.Background(), event))

	for _, c := range []*Client{alice, bob} {
		msg := receive(t, c)
		assert.Equal(t, "match_updated", msg.Type)
		assert.Equal(t, event, msg.Payload)
	}
	assertNoMessage(t, carol)
}

func TestHub_DeliverDecodesBusPayload(t *testing.T) {
	hub, _ := startHub(t)
	bob := connect(hub, "bob")

	payload, err := json.Marshal(models.MatchEvent{
		Type:         models.EventMatchParticipantJoined,
		MatchID:      "m1",
		RecipientIDs: []string{"bob"},
	})
	require.NoError(t, err)
	require.NoError(t, hub.Deliver(payload))

	msg := receive(t, bob)
	assert.Equal(t, "match_participant_joined", msg.Type)

	assert.Error(t, hub.Deliver([]byte("not json")))
}

func TestHub_ReconnectReplacesOldConnection(t *testing.T) {
	hub, _ := startHub(t)
	first := connect(hub, "alice")
	second := connect(hub, "alice")

	_, ok := <-first.send
	assert.False(t, ok)

	// 교체된 연결의 해제 요청은 새 연결에 영향을 주지 않는다
	hub.leave(first)
	require.NoError(t, hub.PublishMatchEvent(context.Background(), models.MatchEvent{
		Type:         models.EventMatchUpdated,
		RecipientIDs: []string{"alice"},
	}))
	receive(t, second)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	alice := connect(hub, "alice")

	cancel()
	select {
	case _, ok := <-alice.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("client not closed on stop")
	}

	// 멈춘 Hub에 발행해도 막히지 않는다
	assert.NoError(t, hub.PublishMatchEvent(context.Background(), models.MatchEvent{RecipientIDs: []string{"alice"}}))
}
