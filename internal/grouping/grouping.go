// Package grouping folds notifications that share a category and an explicit
// group id into NotificationGroups. Groups are derived from their members on
// every call, so summaries and read state never drift from the inbox.
package grouping

import (
	"fmt"
	"sort"

	"bookverse-notifications/internal/models"
)

var summaryFormats = map[models.Category]string{
	models.CategoryActivityLike:    "%d people liked your activity",
	models.CategoryActivityComment: "%d new comments on your activity",
	models.CategoryReviewLike:      "%d people liked your review",
	models.CategoryReviewComment:   "%d new comments on your review",
	models.CategoryNewFollower:     "%d new followers",
}

// Summary is deterministic in (category, count).
func Summary(category models.Category, count int) string {
	format, ok := summaryFormats[category]
	if !ok {
		format = "%d new notifications"
	}
	return fmt.Sprintf(format, count)
}

type key struct {
	category models.Category
	groupID  string
}

// Build groups every notification carrying a GroupID. Members are in arrival
// order; groups are returned newest first.
func Build(notifications []models.Notification) []models.NotificationGroup {
	index := make(map[key]int)
	var groups []models.NotificationGroup

	for _, n := range notifications {
		if n.GroupID == "" {
			continue
		}
		k := key{category: n.Category, groupID: n.GroupID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, models.NotificationGroup{ID: n.GroupID, Category: n.Category})
		}
		groups[i].Members = append(groups[i].Members, n)
	}

	for i := range groups {
		finalize(&groups[i])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Timestamp.After(groups[j].Timestamp)
	})
	return groups
}

// Find returns the group for (category, groupID), or nil when no member
// exists.
func Find(notifications []models.Notification, category models.Category, groupID string) *models.NotificationGroup {
	if groupID == "" {
		return nil
	}
	var members []models.Notification
	for _, n := range notifications {
		if n.Category == category && n.GroupID == groupID {
			members = append(members, n)
		}
	}
	if len(members) == 0 {
		return nil
	}
	g := &models.NotificationGroup{ID: groupID, Category: category, Members: members}
	finalize(g)
	return g
}

func finalize(g *models.NotificationGroup) {
	sort.SliceStable(g.Members, func(i, j int) bool {
		a, b := g.Members[i], g.Members[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	g.Summary = Summary(g.Category, len(g.Members))
	g.IsRead = true
	for _, m := range g.Members {
		if m.Timestamp.After(g.Timestamp) {
			g.Timestamp = m.Timestamp
		}
		if !m.IsRead {
			g.IsRead = false
		}
	}
}
