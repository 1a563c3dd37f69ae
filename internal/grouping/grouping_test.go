package grouping

import (
	"fmt"
	"testing"
	"time"

	"bookverse-notifications/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(id string, category models.Category, groupID string, ts time.Time, read bool) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    "reader-1",
		Category:  category,
		Title:     "title " + id,
		GroupID:   groupID,
		Timestamp: ts,
		IsRead:    read,
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		category models.Category
		count    int
		want     string
	}{
		{models.CategoryActivityLike, 3, "3 people liked your activity"},
		{models.CategoryActivityComment, 2, "2 new comments on your activity"},
		{models.CategoryReviewLike, 5, "5 people liked your review"},
		{models.CategoryReviewComment, 1, "1 new comments on your review"},
		{models.CategoryNewFollower, 4, "4 new followers"},
		{models.CategoryBadgeEarned, 2, "2 new notifications"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.category, tt.count), func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.category, tt.count))
		})
	}
}

func TestBuild_ThreeLikesOneGroup(t *testing.T) {
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	var ns []models.Notification
	for i := 0; i < 3; i++ {
		ns = append(ns, notification(fmt.Sprintf("n%d", i), models.CategoryActivityLike, "post-42", base.Add(time.Duration(i)*time.Minute), false))
	}

	groups := Build(ns)

	require.Len(t, groups, 1)
	assert.Equal(t, "post-42", groups[0].ID)
	assert.Equal(t, "3 people liked your activity", groups[0].Summary)
	assert.Len(t, groups[0].Members, 3)
	assert.False(t, groups[0].IsRead)
	assert.Equal(t, base.Add(2*time.Minute), groups[0].Timestamp)

	// same members, same summary
	assert.Equal(t, groups, Build(ns))
}

func TestBuild_NoHeuristicGrouping(t *testing.T) {
	now := time.Now()
	ns := []models.Notification{
		notification("a", models.CategoryActivityLike, "", now, false),
		notification("b", models.CategoryActivityLike, "", now, false),
		notification("c", models.CategoryActivityComment, "post-42", now, false),
		notification("d", models.CategoryActivityLike, "post-42", now, false),
	}

	groups := Build(ns)

	require.Len(t, groups, 2, "same groupId in different categories stays apart")
	for _, g := range groups {
		assert.Len(t, g.Members, 1)
	}
}

func TestBuild_ReadStateIsDerived(t *testing.T) {
	now := time.Now()
	ns := []models.Notification{
		notification("a", models.CategoryNewFollower, "followers", now, true),
		notification("b", models.CategoryNewFollower, "followers", now, false),
	}
	assert.False(t, Build(ns)[0].IsRead)

	ns[1].IsRead = true
	assert.True(t, Build(ns)[0].IsRead)
}

func TestBuild_NewestGroupFirst(t *testing.T) {
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	ns := []models.Notification{
		notification("a", models.CategoryNewFollower, "old", base, false),
		notification("b", models.CategoryActivityLike, "new", base.Add(time.Hour), false),
	}

	groups := Build(ns)

	require.Len(t, groups, 2)
	assert.Equal(t, "new", groups[0].ID)
	assert.Equal(t, "old", groups[1].ID)
}

func TestFind(t *testing.T) {
	now := time.Now()
	ns := []models.Notification{
		notification("a", models.CategoryReviewLike, "review-7", now, false),
		notification("b", models.CategoryReviewLike, "review-7", now, false),
		notification("c", models.CategoryReviewLike, "review-8", now, false),
	}

	g := Find(ns, models.CategoryReviewLike, "review-7")
	require.NotNil(t, g)
	assert.Equal(t, "2 people liked your review", g.Summary)

	assert.Nil(t, Find(ns, models.CategoryReviewLike, "review-9"))
	assert.Nil(t, Find(ns, models.CategoryReviewLike, ""))
}

func memberIDs(g *models.NotificationGroup) []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

func TestMembersInArrivalOrder(t *testing.T) {
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	// newest first, the way the inbox lists them
	ns := []models.Notification{
		notification("third", models.CategoryActivityLike, "g", base.Add(2*time.Minute), false),
		notification("second-b", models.CategoryActivityLike, "g", base.Add(time.Minute), false),
		notification("second-a", models.CategoryActivityLike, "g", base.Add(time.Minute), false),
		notification("first", models.CategoryActivityLike, "g", base, false),
	}
	want := []string{"first", "second-a", "second-b", "third"}

	groups := Build(ns)
	require.Len(t, groups, 1)
	assert.Equal(t, want, memberIDs(&groups[0]))

	g := Find(ns, models.CategoryActivityLike, "g")
	require.NotNil(t, g)
	assert.Equal(t, want, memberIDs(g))
	assert.Equal(t, base.Add(2*time.Minute), g.Timestamp)
}
