// pkg/registry/builtin.go
package registry

// Builtin is the registry compiled into the binary. It matches
// configs/category-registry.json and is used when no file is configured.
func Builtin() *CategoryRegistry {
	reg := &CategoryRegistry{
		Version: "1.0.0",
		Categories: []CategoryInfo{
			{ID: "newFollower", DisplayName: "New follower", Description: "Someone started following you", Group: "social", Channel: ChannelSocial, TemplateID: "new-follower"},
			{ID: "activityLike", DisplayName: "Activity like", Description: "Someone liked your reading activity", Group: "social", Channel: ChannelSocial},
			{ID: "activityComment", DisplayName: "Activity comment", Description: "Someone commented on your reading activity", Group: "social", Channel: ChannelSocial},
			{ID: "mentionedInComment", DisplayName: "Mention", Description: "You were mentioned in a comment", Group: "social", Channel: ChannelSocial},
			{ID: "clubInvite", DisplayName: "Book club invite", Description: "You were invited to a book club", Group: "clubs", Channel: ChannelBookClubs, TemplateID: "book-club-invite"},
			{ID: "newDiscussion", DisplayName: "New discussion", Description: "A new discussion started in one of your clubs", Group: "clubs", Channel: ChannelBookClubs},
			{ID: "discussionReply", DisplayName: "Discussion reply", Description: "Someone replied in a discussion you follow", Group: "clubs", Channel: ChannelDefault},
			{ID: "newEvent", DisplayName: "New club event", Description: "A club you belong to scheduled an event", Group: "clubs", Channel: ChannelBookClubs},
			{ID: "eventReminder", DisplayName: "Event reminder", Description: "A club event is coming up", Group: "clubs", Channel: ChannelDefault},
			{ID: "eventUpdate", DisplayName: "Event update", Description: "A club event changed", Group: "clubs", Channel: ChannelDefault},
			{ID: "challengeInvite", DisplayName: "Challenge invite", Description: "You were invited to a reading challenge", Group: "challenges", Channel: ChannelChallenges},
			{ID: "challengeStarted", DisplayName: "Challenge started", Description: "A reading challenge you joined has started", Group: "challenges", Channel: ChannelDefault},
			{ID: "challengeCompleted", DisplayName: "Challenge completed", Description: "You completed a reading challenge", Group: "challenges", Channel: ChannelChallenges, TemplateID: "challenge-completed"},
			{ID: "milestoneReached", DisplayName: "Milestone reached", Description: "You reached a challenge milestone", Group: "challenges", Channel: ChannelChallenges},
			{ID: "challengeUpdate", DisplayName: "Challenge update", Description: "A reading challenge changed", Group: "challenges", Channel: ChannelDefault},
			{ID: "readingGoalReminder", DisplayName: "Reading goal reminder", Description: "Progress towards your reading goal", Group: "reading", Channel: ChannelDefault, TemplateID: "reading-goal"},
			{ID: "readingGoalAchieved", DisplayName: "Reading goal achieved", Description: "You reached your reading goal", Group: "reading", Channel: ChannelDefault},
			{ID: "readingStreak", DisplayName: "Reading streak", Description: "Your reading streak grew", Group: "reading", Channel: ChannelDefault},
			{ID: "readingStreakRisk", DisplayName: "Reading streak at risk", Description: "Read today to keep your streak", Group: "reading", Channel: ChannelDefault},
			{ID: "reviewLike", DisplayName: "Review like", Description: "Someone liked your review", Group: "reviews", Channel: ChannelDefault},
			{ID: "reviewComment", DisplayName: "Review comment", Description: "Someone commented on your review", Group: "reviews", Channel: ChannelDefault, TemplateID: "review-comment"},
			{ID: "reviewMention", DisplayName: "Review mention", Description: "You were mentioned in a review", Group: "reviews", Channel: ChannelDefault},
			{ID: "badgeEarned", DisplayName: "Badge earned", Description: "You earned a badge", Group: "achievements", Channel: ChannelDefault},
			{ID: "levelUp", DisplayName: "Level up", Description: "You reached a new level", Group: "achievements", Channel: ChannelDefault},
			{ID: "achievementUnlocked", DisplayName: "Achievement unlocked", Description: "You unlocked an achievement", Group: "achievements", Channel: ChannelDefault},
			{ID: "systemAnnouncement", DisplayName: "Announcement", Description: "News from the BookVerse team", Group: "system", Channel: ChannelSystem, TemplateID: "welcome"},
			{ID: "appUpdate", DisplayName: "App update", Description: "A new version of BookVerse is available", Group: "system", Channel: ChannelSystem},
			{ID: "maintenanceAlert", DisplayName: "Maintenance alert", Description: "Planned maintenance of BookVerse", Group: "system", Channel: ChannelSystem},
		},
	}
	for i := range reg.Categories {
		reg.Categories[i].Importance = ImportanceOf(reg.Categories[i].Channel)
	}
	return reg
}
