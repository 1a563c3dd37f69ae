package preferences

import (
	"context"
	"sync"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"
)

// Repository persists one document per user. Get returns a
// PREFERENCES_NOT_FOUND StandardError when the user has none yet.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	Save(ctx context.Context, userID string, prefs *models.NotificationPreferences) error
}

// MemoryRepository keeps documents in process. Used when no database is
// configured and in tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*models.NotificationPreferences
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]*models.NotificationPreferences)}
}

func (r *MemoryRepository) Get(_ context.Context, userID string) (*models.NotificationPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[userID]
	if !ok {
		return nil, errors.NewPreferencesNotFoundError(userID)
	}
	return doc.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, userID string, prefs *models.NotificationPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[userID] = prefs.Clone()
	return nil
}
