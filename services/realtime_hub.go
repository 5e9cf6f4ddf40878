package services

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// GamificationEvent is pushed to connected clients when streaks or badges
// change. Observability for the app UI, not a correctness surface.
type GamificationEvent struct {
	Type          string    `json:"type"`
	ChildID       uuid.UUID `json:"child_id"`
	CurrentStreak int       `json:"current_streak,omitempty"`
	LongestStreak int       `json:"longest_streak,omitempty"`
	BadgeID       uuid.UUID `json:"badge_id,omitempty"`
	BadgeName     string    `json:"badge_name,omitempty"`
	Points        int       `json:"points,omitempty"`
}

type WSClient struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*WSClient]struct{}
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[uuid.UUID]map[*WSClient]struct{})}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

func (h *RealtimeHub) Broadcast(userID uuid.UUID, payload any) {
	msg, _ := json.Marshal(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		_ = c.Conn.WriteMessage(websocket.TextMessage, msg)
	}
}
