package services

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Event is one notification pushed to discussion observers.
type Event struct {
	DiscussionID string      `json:"discussion_id"`
	Name         string      `json:"name"`
	Payload      interface{} `json:"payload"`
}

// EventHub fans events out to per-discussion subscribers. Emit never
// blocks: a subscriber that cannot keep up has events dropped rather than
// stalling round execution.
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers an observer for one discussion. The returned cancel
// function must be called when the observer goes away.
func (h *EventHub) Subscribe(discussionID string) (<-chan Event, func()) {
	ch := make(chan Event, 256)

	h.mu.Lock()
	if h.subs[discussionID] == nil {
		h.subs[discussionID] = make(map[chan Event]struct{})
	}
	h.subs[discussionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[discussionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, discussionID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Emit implements dialogue.EventEmitter: fire-and-forget delivery to all
// subscribers of the discussion.
func (h *EventHub) Emit(discussionID, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[discussionID] {
		select {
		case ch <- Event{DiscussionID: discussionID, Name: event, Payload: payload}:
		default:
			logrus.WithFields(logrus.Fields{
				"discussion_id": discussionID,
				"event":         event,
			}).Debug("dropping event for slow subscriber")
		}
	}
}
