package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope 인스턴스 간 전달되는 메시지
type Envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// EventBus Redis Pub/Sub 기반 인스턴스 간 이벤트 전파.
// 모든 인스턴스(발행한 인스턴스 포함)가 구독해서 자기 웹소켓 클라이언트에게 전달한다.
type EventBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.Logger
}

func NewEventBus(client *redis.Client, channel string, logger *zap.Logger) *EventBus {
	return &EventBus{
		client:     client,
		channel:    channel,
		instanceID: uuid.New().String(),
		logger:     logger,
	}
}

func (b *EventBus) InstanceID() string {
	return b.instanceID
}

// Publish v를 JSON으로 직렬화해 발행
func (b *EventBus) Publish(ctx context.Context, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data, err := json.Marshal(Envelope{Origin: b.instanceID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run ctx가 끝날 때까지 구독하며 payload를 handler에 넘긴다
func (b *EventBus) Run(ctx context.Context, handler func(payload []byte) error) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	b.logger.Info("Event bus subscribed",
		zap.String("instance_id", b.instanceID),
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Error("Failed to unmarshal envelope", zap.Error(err))
				continue
			}
			if err := handler(env.Payload); err != nil {
				b.logger.Error("Failed to handle event",
					zap.String("origin", env.Origin),
					zap.Error(err))
			}

		case <-ctx.Done():
			b.logger.Info("Event bus stopped", zap.String("instance_id", b.instanceID))
			return nil
		}
	}
}
