package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldsentry/backend/internal/presence"
)

// TopicSupervisors receives every emergency regardless of event subscription.
const TopicSupervisors = "supervisors"

func EventTopic(eventID string) string {
	return "event:" + eventID
}

// Buffered per-subscriber queue. A subscriber that falls this far behind
// starts losing messages rather than stalling publishers.
const sendQueueSize = 32

// Subscription is one (observerID, topic) delivery channel. Stable across
// transport reconnects: resubscribing with the same pair replaces the old
// channel instead of special-casing reconnect logic.
type Subscription struct {
	ObserverID string
	Topic      string
	ch         chan presence.Update
}

// C is the delivery channel. Closed when the subscription is replaced or
// removed.
func (s *Subscription) C() <-chan presence.Update {
	return s.ch
}

// Hub fans out presence updates to observers. Delivery is at-most-once and
// best-effort: no replay, and a full subscriber queue drops the message for
// that subscriber only. Messages from a single officer are published
// sequentially (the officer's processing lane is serialized upstream), so
// each subscriber sees them in production order.
type Hub struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]map[string]*Subscription // topic -> observerID

	dropped     atomic.Int64
	dropLogMu   sync.Mutex
	lastDropLog time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   map[string]map[string]*Subscription{},
	}
}

// Subscribe registers (observerID, topic), replacing any previous
// subscription for the same pair.
func (h *Hub) Subscribe(observerID, topic string) *Subscription {
	sub := &Subscription{
		ObserverID: observerID,
		Topic:      topic,
		ch:         make(chan presence.Update, sendQueueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	byObserver, ok := h.subs[topic]
	if !ok {
		byObserver = map[string]*Subscription{}
		h.subs[topic] = byObserver
	}
	if old, ok := byObserver[observerID]; ok {
		close(old.ch)
	}
	byObserver[observerID] = sub
	return sub
}

// Unsubscribe removes the subscription if it is still the registered one for
// its (observerID, topic) pair.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byObserver, ok := h.subs[sub.Topic]
	if !ok {
		return
	}
	if current, ok := byObserver[sub.ObserverID]; ok && current == sub {
		delete(byObserver, sub.ObserverID)
		close(sub.ch)
		if len(byObserver) == 0 {
			delete(h.subs, sub.Topic)
		}
	}
}

func (h *Hub) PublishEvent(eventID string, upd presence.Update) {
	h.publish(EventTopic(eventID), upd)
}

func (h *Hub) PublishSupervisors(upd presence.Update) {
	h.publish(TopicSupervisors, upd)
}

func (h *Hub) publish(topic string, upd presence.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[topic] {
		select {
		case sub.ch <- upd:
		default:
			total := h.dropped.Add(1)
			h.dropLogMu.Lock()
			if now := time.Now(); now.Sub(h.lastDropLog) > 5*time.Second {
				h.lastDropLog = now
				h.dropLogMu.Unlock()
				h.logger.Warn().
					Str("topic", topic).
					Str("observer_id", sub.ObserverID).
					Int64("dropped_total", total).
					Msg("dropping update for slow observer")
			} else {
				h.dropLogMu.Unlock()
			}
		}
	}
}
