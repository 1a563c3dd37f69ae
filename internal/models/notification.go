// internal/models/notification.go
package models

import "time"

// Category classifies a notification-worthy event. Every policy keys off it.
type Category string

// Social
const (
	CategoryNewFollower        Category = "newFollower"
	CategoryActivityLike       Category = "activityLike"
	CategoryActivityComment    Category = "activityComment"
	CategoryMentionedInComment Category = "mentionedInComment"
)

// Book clubs
const (
	CategoryClubInvite      Category = "clubInvite"
	CategoryNewDiscussion   Category = "newDiscussion"
	CategoryDiscussionReply Category = "discussionReply"
	CategoryNewEvent        Category = "newEvent"
	CategoryEventReminder   Category = "eventReminder"
	CategoryEventUpdate     Category = "eventUpdate"
)

// Challenges
const (
	CategoryChallengeInvite    Category = "challengeInvite"
	CategoryChallengeStarted   Category = "challengeStarted"
	CategoryChallengeCompleted Category = "challengeCompleted"
	CategoryMilestoneReached   Category = "milestoneReached"
	CategoryChallengeUpdate    Category = "challengeUpdate"
)

// Reading progress
const (
	CategoryReadingGoalReminder Category = "readingGoalReminder"
	CategoryReadingGoalAchieved Category = "readingGoalAchieved"
	CategoryReadingStreak       Category = "readingStreak"
	CategoryReadingStreakRisk   Category = "readingStreakRisk"
)

// Reviews
const (
	CategoryReviewLike    Category = "reviewLike"
	CategoryReviewComment Category = "reviewComment"
	CategoryReviewMention Category = "reviewMention"
)

// Achievements
const (
	CategoryBadgeEarned         Category = "badgeEarned"
	CategoryLevelUp             Category = "levelUp"
	CategoryAchievementUnlocked Category = "achievementUnlocked"
)

// System
const (
	CategorySystemAnnouncement Category = "systemAnnouncement"
	CategoryAppUpdate          Category = "appUpdate"
	CategoryMaintenanceAlert   Category = "maintenanceAlert"
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategoryNewFollower, CategoryActivityLike, CategoryActivityComment, CategoryMentionedInComment,
	CategoryClubInvite, CategoryNewDiscussion, CategoryDiscussionReply, CategoryNewEvent, CategoryEventReminder, CategoryEventUpdate,
	CategoryChallengeInvite, CategoryChallengeStarted, CategoryChallengeCompleted, CategoryMilestoneReached, CategoryChallengeUpdate,
	CategoryReadingGoalReminder, CategoryReadingGoalAchieved, CategoryReadingStreak, CategoryReadingStreakRisk,
	CategoryReviewLike, CategoryReviewComment, CategoryReviewMention,
	CategoryBadgeEarned, CategoryLevelUp, CategoryAchievementUnlocked,
	CategorySystemAnnouncement, CategoryAppUpdate, CategoryMaintenanceAlert,
}

var knownCategories = func() map[Category]bool {
	m := make(map[Category]bool, len(AllCategories))
	for _, c := range AllCategories {
		m[c] = true
	}
	return m
}()

func (c Category) Valid() bool {
	return knownCategories[c]
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// ChannelHints carries presentation cues for push and local surfaces.
// Nil pointers mean "absent".
type ChannelHints struct {
	Icon      string `json:"icon,omitempty"`
	Sound     string `json:"sound,omitempty"`
	Vibration *bool  `json:"vibration,omitempty"`
	Badge     *int   `json:"badge,omitempty"`
}

// Audible reports whether any noise-making hint survives.
func (h ChannelHints) Audible() bool {
	return h.Sound != "" || (h.Vibration != nil && *h.Vibration)
}

// Notification is one delivered (or should-have-been-shown) alert.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Category  Category               `json:"category"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	IsRead    bool                   `json:"isRead"`
	ActionURL string                 `json:"actionUrl,omitempty"`
	Priority  Priority               `json:"priority"`
	GroupID   string                 `json:"groupId,omitempty"`
	Hints     ChannelHints           `json:"channelHints"`
}

// NotificationGroup folds notifications sharing (category, groupId).
type NotificationGroup struct {
	ID        string         `json:"id"`
	Category  Category       `json:"category"`
	Members   []Notification `json:"memberNotifications"`
	Summary   string         `json:"summary"`
	Timestamp time.Time      `json:"timestamp"`
	IsRead    bool           `json:"isRead"`
}

// Event is an incoming notification-worthy occurrence for one recipient.
type Event struct {
	UserID     string                 `json:"userId,omitempty"`
	Category   Category               `json:"category"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Data       map[string]interface{} `json:"data,omitempty"`
	ActionURL  string                 `json:"actionUrl,omitempty"`
	Priority   Priority               `json:"priority,omitempty"`
	GroupID    string                 `json:"groupId,omitempty"`
	Icon       string                 `json:"icon,omitempty"`
	Sound      string                 `json:"sound,omitempty"`
	Badge      *int                   `json:"badge,omitempty"`
	TemplateID string                 `json:"templateId,omitempty"`
	Variables  map[string]string      `json:"variables,omitempty"`
}

// NotificationFilter narrows inbox queries. Set fields are ANDed.
type NotificationFilter struct {
	Categories []Category `json:"categories,omitempty"`
	IsRead     *bool      `json:"isRead,omitempty"`
	Priority   Priority   `json:"priority,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

// InboxCounts is published after every inbox mutation.
type InboxCounts struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	ByCategory map[Category]int `json:"byCategory"`
}
