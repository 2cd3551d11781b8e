package distributed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventBus_PublishAndReceive(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	logger := zap.NewNop()
	subscriber := NewEventBus(client, "test:events", logger)
	publisher := NewEventBus(client, "test:events", logger)
	assert.NotEqual(t, subscriber.InstanceID(), publisher.InstanceID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan map[string]string, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = subscriber.Run(ctx, func(payload []byte) error {
			var v map[string]string
			if err := json.Unmarshal(payload, &v); err != nil {
				return err
			}
			received <- v
			return nil
		})
	}()
	<-ready

	// 구독이 붙을 때까지 재발행
	deadline := time.After(3 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		require.NoError(t, publisher.Publish(ctx, map[string]string{"matchId": "m1"}))
		select {
		case v := <-received:
			assert.Equal(t, "m1", v["matchId"])
			return
		case <-ticker.C:
		case <-deadline:
			t.Fatal("event not received")
		}
	}
}
