package inbox

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"bookverse-notifications/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func note(id string, category models.Category, minutesAgo int) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    "reader-1",
		Category:  category,
		Title:     "t-" + id,
		Body:      "b-" + id,
		Timestamp: base.Add(-time.Duration(minutesAgo) * time.Minute),
		Priority:  models.PriorityNormal,
	}
}

func ids(ns []models.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

// ==========================
// Filter
// ==========================

func TestMatches(t *testing.T) {
	read := true
	unread := false
	from := base.Add(-30 * time.Minute)
	to := base.Add(-5 * time.Minute)

	n := note("a", models.CategoryReviewLike, 10)
	n.Priority = models.PriorityHigh

	tests := []struct {
		name   string
		filter models.NotificationFilter
		want   bool
	}{
		{"empty filter", models.NotificationFilter{}, true},
		{"category hit", models.NotificationFilter{Categories: []models.Category{models.CategoryNewFollower, models.CategoryReviewLike}}, true},
		{"category miss", models.NotificationFilter{Categories: []models.Category{models.CategoryNewFollower}}, false},
		{"unread", models.NotificationFilter{IsRead: &unread}, true},
		{"read", models.NotificationFilter{IsRead: &read}, false},
		{"priority", models.NotificationFilter{Priority: models.PriorityHigh}, true},
		{"priority miss", models.NotificationFilter{Priority: models.PriorityLow}, false},
		{"in range", models.NotificationFilter{From: &from, To: &to}, true},
		{"before range", models.NotificationFilter{To: &from}, false},
		{"all ANDed", models.NotificationFilter{Priority: models.PriorityHigh, IsRead: &read}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(n, tt.filter))
		})
	}
}

// ==========================
// Memory store
// ==========================

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, note("old", models.CategoryNewFollower, 30)))
	require.NoError(t, s.Insert(ctx, note("new", models.CategoryNewFollower, 1)))
	require.NoError(t, s.Insert(ctx, note("mid", models.CategoryReviewLike, 10)))

	got, err := s.List(ctx, "reader-1", models.NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(got))

	got, err = s.List(ctx, "reader-2", models.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_Mutations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, note("a", models.CategoryNewFollower, 2)))
	require.NoError(t, s.Insert(ctx, note("b", models.CategoryNewFollower, 1)))

	require.NoError(t, s.MarkRead(ctx, "reader-1", "a"))
	require.NoError(t, s.MarkRead(ctx, "reader-1", "ghost"))
	a, err := s.Get(ctx, "reader-1", "a")
	require.NoError(t, err)
	assert.True(t, a.IsRead)

	require.NoError(t, s.Delete(ctx, "reader-1", "ghost"))
	require.NoError(t, s.Delete(ctx, "reader-1", "a"))
	a, err = s.Get(ctx, "reader-1", "a")
	require.NoError(t, err)
	assert.Nil(t, a)

	require.NoError(t, s.MarkAllRead(ctx, "reader-1"))
	b, _ := s.Get(ctx, "reader-1", "b")
	assert.True(t, b.IsRead)

	require.NoError(t, s.DeleteAll(ctx, "reader-1"))
	all, _ := s.List(ctx, "reader-1", models.NotificationFilter{})
	assert.Empty(t, all)
}

// ==========================
// Postgres store
// ==========================

var columns = []string{"id", "user_id", "category", "title", "body", "data", "created_at", "is_read", "action_url", "priority", "group_id", "hints"}

func TestListQuery(t *testing.T) {
	read := false
	from := base
	query, args := listQuery("reader-1", models.NotificationFilter{
		Categories: []models.Category{models.CategoryReviewLike},
		IsRead:     &read,
		From:       &from,
	})

	assert.Contains(t, query, "category = ANY($2)")
	assert.Contains(t, query, "is_read = $3")
	assert.Contains(t, query, "created_at >= $4")
	assert.NotContains(t, query, "priority =")
	assert.Contains(t, query, "ORDER BY created_at DESC")
	assert.Len(t, args, 4)
}

func TestPostgresStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE user_id = $1 AND priority = $2")).
		WithArgs("reader-1", "high").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("n-2", "reader-1", "reviewLike", "Liked", "Ana liked", []byte(`{"reviewId":"r1"}`), base, false, "/reviews/r1", "high", "r1", []byte(`{"sound":"default"}`)).
			AddRow("n-1", "reader-1", "newFollower", "Follow", "Bo follows", nil, base.Add(-time.Hour), true, nil, "high", nil, nil))

	got, err := NewPostgresStore(db).List(context.Background(), "reader-1", models.NotificationFilter{Priority: models.PriorityHigh})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.CategoryReviewLike, got[0].Category)
	assert.Equal(t, "r1", got[0].Data["reviewId"])
	assert.Equal(t, "default", got[0].Hints.Sound)
	assert.Equal(t, "/reviews/r1", got[0].ActionURL)
	assert.Empty(t, got[1].GroupID)
	assert.True(t, got[1].IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectNotificationQuery)).
		WithArgs("reader-1", "ghost").
		WillReturnError(sql.ErrNoRows)

	n, err := NewPostgresStore(db).Get(context.Background(), "reader-1", "ghost")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestPostgresStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	n := note("n-1", models.CategoryNewFollower, 0)
	mock.ExpectExec(regexp.QuoteMeta(insertNotificationQuery)).
		WithArgs("n-1", "reader-1", "newFollower", "t-n-1", "b-n-1", []byte("null"), n.Timestamp, false, "", "normal", "", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresStore(db).Insert(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteUnknownIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(deleteNotificationQuery)).
		WithArgs("reader-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPostgresStore(db).Delete(context.Background(), "reader-1", "ghost"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
