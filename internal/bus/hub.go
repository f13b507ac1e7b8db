package bus

import (
	"sync"

	"github.com/FocuswithJustin/CedarLink/internal/logging"
)

// Hub fans messages out to subscribed panes and retains the latest state
// message per source+topic so late subscribers converge on current state.
type Hub struct {
	mu       sync.RWMutex
	subs     map[int]*Subscription
	retained map[string]Envelope
	nextID   int
	closed   bool
}

// Subscription is one receiver's attachment to the hub.
type Subscription struct {
	// C delivers envelopes. Closed on Unsubscribe or hub Close.
	C <-chan Envelope

	hub *Hub
	id  int
	ch  chan Envelope
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:     make(map[int]*Subscription),
		retained: make(map[string]Envelope),
	}
}

// Subscribe attaches a receiver. Every retained state message is replayed
// into the subscription before any subsequent publish reaches it, so a late
// pane converges without a handshake. Buffer sizes the delivery channel; a
// receiver that falls behind has messages dropped rather than blocking the
// publisher.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 64
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Envelope, buffer)
	sub := &Subscription{C: ch, hub: h, id: h.nextID, ch: ch}
	h.nextID++

	if h.closed {
		close(ch)
		return sub
	}

	for _, env := range h.retained {
		select {
		case ch <- env:
		default:
		}
	}
	h.subs[sub.id] = sub
	logging.BroadcastEvent("subscribed", len(h.subs))
	return sub
}

// Unsubscribe detaches the receiver and closes its channel.
func (s *Subscription) Unsubscribe() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.ch)
	logging.BroadcastEvent("unsubscribed", len(h.subs))
}

// Publish delivers an envelope to every subscriber. State messages are
// retained latest-wins per source+topic: a stale Seq from the same key is
// dropped entirely. Event messages pass through unretained.
func (h *Hub) Publish(env Envelope) bool {
	if !env.Kind.IsValid() {
		logging.Warn("dropping message with unknown kind", "kind", string(env.Kind), "source", env.Source)
		return false
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}

	if env.Kind.IsState() {
		key := env.StateKey()
		if prev, ok := h.retained[key]; ok && prev.Seq >= env.Seq {
			h.mu.Unlock()
			logging.Debug("dropping superseded state message",
				"source", env.Source, "topic", env.Topic, "seq", env.Seq, "retained_seq", prev.Seq)
			return false
		}
		h.retained[key] = env
	}

	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- env:
		default:
			logging.Warn("subscriber channel full, dropping message", "source", env.Source, "kind", string(env.Kind))
		}
	}
	return true
}

// Retained returns the retained state message for a source+topic, if any.
func (h *Hub) Retained(source, topic string) (Envelope, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	env, ok := h.retained[source+"|"+topic]
	return env, ok
}

// SubscriberCount returns the number of attached receivers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close shuts the hub down and closes every subscription channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}
