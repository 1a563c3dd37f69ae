// Package preferences owns the per-user NotificationPreferences document:
// defaults, merge, validation, persistence and the live update stream.
package preferences

import (
	"bookverse-notifications/internal/models"

	"github.com/google/uuid"
)

func defaultDelivery() models.DeliveryPreference {
	return models.DeliveryPreference{
		InApp:       true,
		Push:        true,
		Email:       true,
		EmailDigest: false,
	}
}

// DefaultCategoryPreference is the entry every category starts with.
func DefaultCategoryPreference() models.CategoryPreference {
	return models.CategoryPreference{
		Enabled:     true,
		Priority:    models.PriorityNormal,
		Delivery:    defaultDelivery(),
		TimeWindows: []models.TimeWindow{},
		Vibration:   true,
		Grouping:    true,
	}
}

func allDays() []models.Weekday {
	return append([]models.Weekday{}, models.AllWeekdays...)
}

// Defaults builds the document a user gets on first access.
func Defaults() *models.NotificationPreferences {
	categories := make(map[models.Category]models.CategoryPreference, len(models.AllCategories))
	for _, c := range models.AllCategories {
		categories[c] = DefaultCategoryPreference()
	}

	return &models.NotificationPreferences{
		GlobalEnabled: true,
		QuietHours: models.TimeWindow{
			Enabled:   false,
			StartTime: "22:00",
			EndTime:   "07:00",
			Days:      allDays(),
		},
		Categories:      categories,
		DefaultDelivery: defaultDelivery(),
		DefaultTimeWindow: models.TimeWindow{
			Enabled:   false,
			StartTime: "09:00",
			EndTime:   "21:00",
			Days:      allDays(),
		},
		DeviceTokens: []string{},
		EmailSettings: models.EmailSettings{
			DigestFrequency:  models.DigestDaily,
			DigestTime:       "09:00",
			DigestDays:       []models.Weekday{models.Monday, models.Wednesday, models.Friday},
			UnsubscribeToken: NewUnsubscribeToken(),
		},
	}
}

// NewUnsubscribeToken returns the opaque token embedded in email footers.
func NewUnsubscribeToken() string {
	return uuid.NewString()
}
