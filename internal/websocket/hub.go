package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"go.uber.org/zap"
)

// Hub WebSocket 연결 관리 및 매치 이벤트 전달
type Hub struct {
	// 사용자별 연결 저장 (userID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	// 전송 대기 메시지
	broadcast chan *Message

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	UserID  string      `json:"-"`       // 수신자 (빈 문자열이면 전체 브로드캐스트)
	Type    string      `json:"type"`    // 메시지 타입
	Payload interface{} `json:"payload"` // 메시지 내용
}

// NewHub Hub 생성
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run ctx가 끝날 때까지 Hub 실행. 종료 시 모든 연결을 닫는다.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 기존 연결이 있으면 닫기
	if oldClient, exists := h.clients[client.userID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("userId", client.userID))
	}

	h.clients[client.userID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제 (이미 교체된 연결이면 무시)
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.userID]; exists && current == client {
		delete(h.clients, client.userID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("userId", client.userID),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, client := range h.clients {
		close(client.send)
		delete(h.clients, userID)
	}
	h.logger.Info("WebSocket hub stopped")
}

// broadcastMessage 메시지 전달
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.UserID == "" {
		for _, client := range h.clients {
			h.trySend(client, message)
		}
		return
	}

	if client, exists := h.clients[message.UserID]; exists {
		h.trySend(client, message)
	}
}

func (h *Hub) trySend(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		// 채널이 가득 찬 느린 클라이언트는 연결 해제
		h.logger.Warn("Client send channel full, unregistering",
			zap.String("userId", client.userID))
		go h.leave(client)
	}
}

// leave Hub가 이미 멈췄으면 해제 요청을 버린다
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishMatchEvent 이벤트 수신자 중 이 인스턴스에 연결된 사용자에게 전달
func (h *Hub) PublishMatchEvent(ctx context.Context, event models.MatchEvent) error {
	for _, userID := range event.RecipientIDs {
		msg := &Message{
			UserID:  userID,
			Type:    string(event.Type),
			Payload: event,
		}
		select {
		case h.broadcast <- msg:
		case <-h.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Deliver 이벤트 버스에서 받은 JSON 이벤트 전달
func (h *Hub) Deliver(payload []byte) error {
	var event models.MatchEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode match event: %w", err)
	}
	return h.PublishMatchEvent(context.Background(), event)
}

// ClientCount 현재 연결 수
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
