package app

import (
	"sync"
)

// NotificationType names a pushed update.
type NotificationType string

const (
	NotifyProfileReady NotificationType = "profile_ready"
	NotifyTyping       NotificationType = "typing"
)

// Notification is pushed to a user's subscribers.
type Notification struct {
	Type      NotificationType `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Typing    bool             `json:"typing,omitempty"`
	State     *State           `json:"state,omitempty"`
}

// Hub fans notifications out to per-user subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Notification
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Notification)}
}

// Subscribe registers a subscriber for userID. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Notification, 16)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan Notification)
	}
	h.subs[userID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Publish delivers n to every subscriber of userID. Slow subscribers miss
// notifications rather than block the publisher.
func (h *Hub) Publish(userID string, n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[userID] {
		select {
		case ch <- n:
		default:
		}
	}
}
