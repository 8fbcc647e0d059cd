package sink

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// CapturedEvent is one event received on /capture or /batch.
type CapturedEvent struct {
	UUID       string         `json:"uuid"`
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp"`
	// TS is the ts query parameter of the capture URL, if any.
	TS string `json:"ts,omitempty"`
}

// Store is a thread-safe, insertion-ordered event log.
type Store struct {
	mu      sync.RWMutex
	events  []CapturedEvent
	counter atomic.Uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// NextID generates a deterministic ID of the form "evt_000001".
func (s *Store) NextID() string {
	n := s.counter.Add(1)
	return fmt.Sprintf("evt_%06d", n)
}

// Add appends an event.
func (s *Store) Add(evt CapturedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

// List returns all events in insertion order.
func (s *Store) List() []CapturedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CapturedEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Filter returns events matching the predicate, in insertion order.
func (s *Store) Filter(predicate func(CapturedEvent) bool) []CapturedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []CapturedEvent{}
	for _, evt := range s.events {
		if predicate(evt) {
			out = append(out, evt)
		}
	}
	return out
}

// Count returns the number of stored events.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Reset clears all events and the ID counter.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.counter.Store(0)
}
