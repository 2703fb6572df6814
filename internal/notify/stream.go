// Package notify fan-outs case change events to live subscribers
// (SSE clients watching the case register).
package notify

import (
	"context"
	"sync"
	"time"

	"bank.com/mop/internal/cases"
)

// CaseEvent describes one change to a case.
type CaseEvent struct {
	CaseID    string    `json:"case_id"`
	Status    string    `json:"status"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs case events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan CaseEvent
	next int
	now  func() time.Time
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]chan CaseEvent),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan CaseEvent {
	ch := make(chan CaseEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt CaseEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// CaseChanged implements the workflow notifier contract.
func (s *Stream) CaseChanged(c cases.Case, action string) {
	s.Publish(CaseEvent{
		CaseID:    c.ID,
		Status:    c.Status,
		Action:    action,
		Timestamp: s.now().UTC(),
	})
}

// SubscriberCount reports how many clients are currently attached.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
