// Package events implements the notification broadcast contract: publish
// a state-change event to a topic, fan it out to every live subscriber.
// Delivery is at-least-once and best-effort; a subscriber that cannot keep
// up loses events rather than blocking the hot path.
package events

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topics mirror the broadcast groups of the auction UI.
const (
	TopicAuctionUpdates = "auction.updates"
)

// Event types.
const (
	TypeAuctionCreated = "auction_created"
	TypeAuctionDeleted = "auction_deleted"
	TypeStatusChanged  = "status_changed"
	TypeNewBid         = "new_bid"
	TypeAuctionEnded   = "auction_ended"
)

// Event is a broadcast state change.
type Event struct {
	Type      string         `json:"type"`
	AuctionID uint           `json:"auction_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Broker is an in-process topic fan-out.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Event
	next int
	log  *zap.Logger
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{
		subs: make(map[string]map[int]chan Event),
		log:  log,
	}
}

// Subscribe registers a buffered subscriber on a topic. The returned
// cancel func must be called to release the subscription.
func (b *Broker) Subscribe(topic string, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.subs[topic]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subs, topic)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of the topic without
// blocking. A full subscriber buffer drops the event with a warning.
func (b *Broker) Publish(topic string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			b.log.Warn("subscriber buffer full, event dropped",
				zap.String("topic", topic),
				zap.String("type", ev.Type))
		}
	}
}

// AuctionTopic returns the per-auction topic name.
func AuctionTopic(auctionID uint) string {
	return "auction." + strconv.FormatUint(uint64(auctionID), 10)
}

// LeaderboardTopic returns the per-auction leaderboard topic name.
func LeaderboardTopic(auctionID uint) string {
	return "leaderboard." + strconv.FormatUint(uint64(auctionID), 10)
}
