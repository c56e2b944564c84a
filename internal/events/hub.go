package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/acme/dialburst/pkg/logger"
)

// Sink receives a copy of every published event, regardless of session.
// Sinks are best-effort; failures are logged and swallowed.
type Sink interface {
	Write(sessionToken string, ev Event) error
}

// Hub is the live status channel: a per-session addressable publish
// mechanism. Publishing to a session with no subscribers, or to a
// subscriber whose buffer is full, never blocks and never fails the
// publisher. Events for one session are delivered in publish order.
type Hub struct {
	bufferSize int
	log        *logger.Logger

	mu       sync.RWMutex
	sessions map[string]map[*Subscription]struct{}
	sinks    []Sink
}

// Subscription is one connected listener on a session.
type Subscription struct {
	hub     *Hub
	session string
	ch      chan Event
	once    sync.Once
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(bufferSize int, log *logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		bufferSize: bufferSize,
		log:        log,
		sessions:   make(map[string]map[*Subscription]struct{}),
	}
}

// AddSink registers a mirror sink. Not safe to call after publishing starts.
func (h *Hub) AddSink(s Sink) {
	h.sinks = append(h.sinks, s)
}

// Subscribe attaches a listener to the given session.
func (h *Hub) Subscribe(sessionToken string) *Subscription {
	sub := &Subscription{
		hub:     h,
		session: sessionToken,
		ch:      make(chan Event, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.sessions[sessionToken]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.sessions[sessionToken] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// C returns the event channel. It is closed when the subscription closes.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if subs, ok := h.sessions[s.session]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.sessions, s.session)
			}
		}
		h.mu.Unlock()
		close(s.ch)
	})
}

// Publish delivers the event to every subscriber of the session. A
// disconnected session or saturated subscriber drops the event with a log
// line; the caller is never blocked or failed.
func (h *Hub) Publish(sessionToken string, ev Event) {
	h.mu.RLock()
	subs := h.sessions[sessionToken]
	delivered := 0
	for sub := range subs {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.log.Warn("events: subscriber buffer full, dropping event",
				zap.String("session", sessionToken), zap.String("type", string(ev.Type)))
		}
	}
	h.mu.RUnlock()

	if delivered == 0 {
		h.log.Debug("events: no subscriber for session, event dropped",
			zap.String("session", sessionToken), zap.String("type", string(ev.Type)))
	}

	for _, sink := range h.sinks {
		if err := sink.Write(sessionToken, ev); err != nil {
			h.log.Warn("events: sink write failed", zap.Error(err))
		}
	}
}
