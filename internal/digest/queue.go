package digest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"sync"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"

	"github.com/redis/go-redis/v9"
)

// Queue holds pending digest entries per user, plus the retry counter of
// the user's current batch.
type Queue interface {
	Enqueue(ctx context.Context, userID string, entry models.DigestEntry) error
	// Entries returns the user's entries, oldest first.
	Entries(ctx context.Context, userID string) ([]models.DigestEntry, error)
	// Remove drops the given entries; entries queued since stay.
	Remove(ctx context.Context, userID string, ids []string) error
	Users(ctx context.Context) ([]string, error)
	IncrRetries(ctx context.Context, userID string) (int, error)
	ResetRetries(ctx context.Context, userID string) error
}

func sortOldestFirst(entries []models.DigestEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]map[string]models.DigestEntry
	retries map[string]int
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		entries: make(map[string]map[string]models.DigestEntry),
		retries: make(map[string]int),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, userID string, entry models.DigestEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	user, ok := q.entries[userID]
	if !ok {
		user = make(map[string]models.DigestEntry)
		q.entries[userID] = user
	}
	user[entry.ID] = entry
	return nil
}

func (q *MemoryQueue) Entries(_ context.Context, userID string) ([]models.DigestEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.DigestEntry, 0, len(q.entries[userID]))
	for _, e := range q.entries[userID] {
		out = append(out, e)
	}
	sortOldestFirst(out)
	return out, nil
}

func (q *MemoryQueue) Remove(_ context.Context, userID string, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		delete(q.entries[userID], id)
	}
	if len(q.entries[userID]) == 0 {
		delete(q.entries, userID)
	}
	return nil
}

func (q *MemoryQueue) Users(context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.entries))
	for u := range q.entries {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (q *MemoryQueue) IncrRetries(_ context.Context, userID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retries[userID]++
	return q.retries[userID], nil
}

func (q *MemoryQueue) ResetRetries(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.retries, userID)
	return nil
}

const (
	queueKeyPrefix  = "notification:digest:"
	retryKeyPrefix  = "notification:digest:retries:"
	pendingUsersKey = "notification:digest:users"
)

// RedisQueue keeps one hash per user (entry id -> JSON entry) and a set of
// users with pending entries.
type RedisQueue struct {
	client redis.UniversalClient
}

func NewRedisQueue(client redis.UniversalClient) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, userID string, entry models.DigestEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.NewCacheOperationFailedError("encode digest entry", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, queueKeyPrefix+userID, entry.ID, data)
	pipe.SAdd(ctx, pendingUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewCacheOperationFailedError("enqueue digest entry", err)
	}
	return nil
}

func (q *RedisQueue) Entries(ctx context.Context, userID string) ([]models.DigestEntry, error) {
	raw, err := q.client.HGetAll(ctx, queueKeyPrefix+userID).Result()
	if err != nil {
		return nil, errors.NewCacheOperationFailedError("read digest queue", err)
	}
	out := make([]models.DigestEntry, 0, len(raw))
	for _, v := range raw {
		var e models.DigestEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, errors.NewCacheOperationFailedError("decode digest entry", err)
		}
		out = append(out, e)
	}
	sortOldestFirst(out)
	return out, nil
}

func (q *RedisQueue) Remove(ctx context.Context, userID string, ids []string) error {
	key := queueKeyPrefix + userID
	if len(ids) > 0 {
		if err := q.client.HDel(ctx, key, ids...).Err(); err != nil {
			return errors.NewCacheOperationFailedError("clear digest entries", err)
		}
	}
	left, err := q.client.HLen(ctx, key).Result()
	if err != nil {
		return errors.NewCacheOperationFailedError("clear digest entries", err)
	}
	if left == 0 {
		if err := q.client.SRem(ctx, pendingUsersKey, userID).Err(); err != nil {
			return errors.NewCacheOperationFailedError("clear digest user", err)
		}
	}
	return nil
}

func (q *RedisQueue) Users(ctx context.Context) ([]string, error) {
	users, err := q.client.SMembers(ctx, pendingUsersKey).Result()
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return nil, errors.NewCacheOperationFailedError("list digest users", err)
	}
	sort.Strings(users)
	return users, nil
}

func (q *RedisQueue) IncrRetries(ctx context.Context, userID string) (int, error) {
	n, err := q.client.Incr(ctx, retryKeyPrefix+userID).Result()
	if err != nil {
		return 0, errors.NewCacheOperationFailedError("increment digest retries", err)
	}
	return int(n), nil
}

func (q *RedisQueue) ResetRetries(ctx context.Context, userID string) error {
	if err := q.client.Del(ctx, retryKeyPrefix+userID).Err(); err != nil {
		return errors.NewCacheOperationFailedError("reset digest retries", err)
	}
	return nil
}
