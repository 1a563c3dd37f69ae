package channels

import (
	"context"
	"sort"
	"sync"
)

// MemorySurface is an in-process LocalSurface. Used when no realtime
// surface is wired and in tests.
type MemorySurface struct {
	mu           sync.Mutex
	scheduled    map[string]map[string]LocalNotification
	interactions chan Interaction
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		scheduled:    make(map[string]map[string]LocalNotification),
		interactions: make(chan Interaction, 64),
	}
}

func (s *MemorySurface) Schedule(_ context.Context, n LocalNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.scheduled[n.UserID]
	if !ok {
		user = make(map[string]LocalNotification)
		s.scheduled[n.UserID] = user
	}
	user[n.ID] = n
	return nil
}

func (s *MemorySurface) Cancel(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled[userID], notificationID)
	return nil
}

func (s *MemorySurface) CancelAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, userID)
	return nil
}

func (s *MemorySurface) Interactions() <-chan Interaction {
	return s.interactions
}

// Interact injects a user interaction, as a device would.
func (s *MemorySurface) Interact(i Interaction) {
	s.interactions <- i
}

// Scheduled lists the user's pending notifications ordered by id.
func (s *MemorySurface) Scheduled(userID string) []LocalNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LocalNotification, 0, len(s.scheduled[userID]))
	for _, n := range s.scheduled[userID] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
