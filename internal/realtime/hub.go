// Package realtime fans game events out to websocket clients.  Each game
// is a channel; clients subscribe to the games they are looking at and
// treat every event as a hint to refetch.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Message is the envelope written to clients.
type Message struct {
	Event  string          `json:"event"`
	GameID string          `json:"gameId"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Encode builds the wire form of an event.
func Encode(gameID, event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, GameID: gameID, Data: data})
}

// Subscriber receives encoded messages.  Send must not block; it reports
// false when the message was dropped.
type Subscriber interface {
	Send(msg []byte) bool
}

type channel struct {
	mu   sync.Mutex // held for the whole of one broadcast
	subs map[Subscriber]struct{}
}

// Hub maps game ids to their subscribers.  Broadcasts for one game are
// delivered in call order; different games proceed independently.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channel
	log      *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]*channel),
		log:      logrus.WithField("component", "realtime"),
	}
}

// Subscribe adds sub to gameID's channel.  Subscribing twice is a no-op.
func (h *Hub) Subscribe(sub Subscriber, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[gameID]
	if !ok {
		ch = &channel{subs: make(map[Subscriber]struct{})}
		h.channels[gameID] = ch
	}
	ch.mu.Lock()
	ch.subs[sub] = struct{}{}
	ch.mu.Unlock()
}

// Unsubscribe removes sub from gameID's channel.
func (h *Hub) Unsubscribe(sub Subscriber, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[gameID]
	if !ok {
		return
	}
	ch.mu.Lock()
	delete(ch.subs, sub)
	empty := len(ch.subs) == 0
	ch.mu.Unlock()
	if empty {
		delete(h.channels, gameID)
	}
}

// UnsubscribeAll removes sub from every channel.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.channels {
		ch.mu.Lock()
		delete(ch.subs, sub)
		empty := len(ch.subs) == 0
		ch.mu.Unlock()
		if empty {
			delete(h.channels, id)
		}
	}
}

// Subscribers returns how many subscribers gameID has.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	ch, ok := h.channels[gameID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subs)
}

// Publish encodes the event and delivers it to the game's current
// subscribers.  Each subscriber gets the message at most once.
func (h *Hub) Publish(ctx context.Context, gameID, event string, payload any) error {
	msg, err := Encode(gameID, event, payload)
	if err != nil {
		return err
	}
	h.Broadcast(gameID, msg)
	return nil
}

// Broadcast delivers an already encoded message.  Subscribers whose
// buffers are full miss it.
func (h *Hub) Broadcast(gameID string, msg []byte) {
	h.mu.RLock()
	ch, ok := h.channels[gameID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	dropped := 0
	for sub := range ch.subs {
		if !sub.Send(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		h.log.WithFields(logrus.Fields{"game_id": gameID, "dropped": dropped}).Warn("slow subscribers missed an event")
	}
}
