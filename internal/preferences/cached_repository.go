package preferences

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedRepository puts a Redis read-through cache in front of another
// repository. Cache failures are logged and fall through to the backing
// store.
type CachedRepository struct {
	next   Repository
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRepository(next Repository, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.Component(log, "preference-cache"),
	}
}

func cacheKey(userID string) string {
	return "notification:prefs:" + userID
}

func (r *CachedRepository) Get(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	key := cacheKey(userID)

	cached, err := r.redis.Get(ctx, key).Result()
	if err == nil {
		var doc models.NotificationPreferences
		if jsonErr := json.Unmarshal([]byte(cached), &doc); jsonErr == nil {
			return &doc, nil
		}
		r.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"userId": userID})
	} else if !stderrors.Is(err, redis.Nil) {
		r.logger.Warn("cache read failed", map[string]interface{}{"userId": userID, "error": err})
	}

	doc, err := r.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, doc)
	return doc, nil
}

func (r *CachedRepository) Save(ctx context.Context, userID string, prefs *models.NotificationPreferences) error {
	if err := r.next.Save(ctx, userID, prefs); err != nil {
		return err
	}
	r.store(ctx, cacheKey(userID), prefs)
	return nil
}

func (r *CachedRepository) store(ctx context.Context, key string, doc *models.NotificationPreferences) {
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
