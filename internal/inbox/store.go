package inbox

import (
	"context"
	"sort"
	"sync"

	"bookverse-notifications/internal/models"
)

// Store persists inbox notifications. Lists are newest first. Operations
// on an unknown id are silent no-ops.
type Store interface {
	Insert(ctx context.Context, n models.Notification) error
	List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error)
	Get(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) error
}

// Matches reports whether n passes every set field of f.
func Matches(n models.Notification, f models.NotificationFilter) bool {
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == n.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsRead != nil && n.IsRead != *f.IsRead {
		return false
	}
	if f.Priority != "" && n.Priority != f.Priority {
		return false
	}
	if f.From != nil && n.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && n.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// MemoryStore keeps notifications in process.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]map[string]models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]map[string]models.Notification)}
}

func (s *MemoryStore) Insert(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inbox, ok := s.users[n.UserID]
	if !ok {
		inbox = make(map[string]models.Notification)
		s.users[n.UserID] = inbox
	}
	inbox[n.ID] = n
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.users[userID]))
	for _, n := range s.users[userID] {
		if Matches(n, filter) {
			out = append(out, n)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.users[userID][id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.users[userID][id]; ok {
		n.IsRead = true
		s.users[userID][id] = n
	}
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.users[userID] {
		n.IsRead = true
		s.users[userID][id] = n
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users[userID], id)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

// ties on timestamp fall back to id so listings are stable
func sortNewestFirst(ns []models.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Timestamp.Equal(ns[j].Timestamp) {
			return ns[i].ID > ns[j].ID
		}
		return ns[i].Timestamp.After(ns[j].Timestamp)
	})
}
