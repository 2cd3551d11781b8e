package websocket

import (
	"context"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/pkg/distributed"
	"go.uber.org/zap"
)

// Relay 매치 이벤트를 Redis 버스로 발행하고, 버스에서 받은 이벤트를 로컬 Hub로 전달한다.
// 다른 인스턴스에 연결된 참가자도 이벤트를 받는다.
type Relay struct {
	bus    *distributed.EventBus
	hub    *Hub
	logger *zap.Logger
}

func NewRelay(bus *distributed.EventBus, hub *Hub, logger *zap.Logger) *Relay {
	return &Relay{bus: bus, hub: hub, logger: logger}
}

// PublishMatchEvent 버스 발행이 실패하면 최소한 이 인스턴스의 연결에는 전달한다
func (r *Relay) PublishMatchEvent(ctx context.Context, event models.MatchEvent) error {
	err := r.bus.Publish(ctx, event)
	if err == nil {
		return nil
	}

	r.logger.Warn("Event bus unavailable, delivering locally",
		zap.String("matchId", event.MatchID),
		zap.Error(err))
	if lerr := r.hub.PublishMatchEvent(ctx, event); lerr != nil {
		return lerr
	}
	return err
}

// Run ctx가 끝날 때까지 버스를 구독
func (r *Relay) Run(ctx context.Context) error {
	return r.bus.Run(ctx, r.hub.Deliver)
}
