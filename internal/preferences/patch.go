package preferences

import "bookverse-notifications/internal/models"

// PreferencesPatch is a partial update. Nil fields are left untouched.
type PreferencesPatch struct {
	GlobalEnabled     *bool                             `json:"globalEnabled,omitempty"`
	QuietHours        *TimeWindowPatch                  `json:"quietHours,omitempty"`
	Categories        map[models.Category]CategoryPatch `json:"categories,omitempty"`
	DefaultDelivery   *models.DeliveryPreference        `json:"defaultDelivery,omitempty"`
	DefaultTimeWindow *TimeWindowPatch                  `json:"defaultTimeWindow,omitempty"`
	DeviceTokens      *[]string                         `json:"deviceTokens,omitempty"`
	EmailSettings     *EmailSettingsPatch               `json:"emailSettings,omitempty"`
}

// CategoryPatch touches one category. Delivery and TimeWindows replace the
// stored value wholesale.
type CategoryPatch struct {
	Enabled     *bool                      `json:"enabled,omitempty"`
	Priority    *models.Priority           `json:"priority,omitempty"`
	Delivery    *models.DeliveryPreference `json:"delivery,omitempty"`
	TimeWindows *[]models.TimeWindow       `json:"timeWindows,omitempty"`
	Vibration   *bool                      `json:"vibration,omitempty"`
	Grouping    *bool                      `json:"grouping,omitempty"`
}

// DeliveryPatch flips individual channels of one category.
type DeliveryPatch struct {
	InApp       *bool `json:"inApp,omitempty"`
	Push        *bool `json:"push,omitempty"`
	Email       *bool `json:"email,omitempty"`
	EmailDigest *bool `json:"emailDigest,omitempty"`
}

type TimeWindowPatch struct {
	Enabled   *bool             `json:"enabled,omitempty"`
	StartTime *string           `json:"startTime,omitempty"`
	EndTime   *string           `json:"endTime,omitempty"`
	Days      *[]models.Weekday `json:"days,omitempty"`
}

type EmailSettingsPatch struct {
	DigestFrequency *models.DigestFrequency `json:"digestFrequency,omitempty"`
	DigestTime      *string                 `json:"digestTime,omitempty"`
	DigestDays      *[]models.Weekday       `json:"digestDays,omitempty"`
}

// Apply returns a merged copy of current. current is never modified.
func Apply(current *models.NotificationPreferences, patch PreferencesPatch) *models.NotificationPreferences {
	next := current.Clone()

	if patch.GlobalEnabled != nil {
		next.GlobalEnabled = *patch.GlobalEnabled
	}
	if patch.QuietHours != nil {
		next.QuietHours = patch.QuietHours.applyTo(next.QuietHours)
	}
	if patch.DefaultDelivery != nil {
		next.DefaultDelivery = *patch.DefaultDelivery
	}
	if patch.DefaultTimeWindow != nil {
		next.DefaultTimeWindow = patch.DefaultTimeWindow.applyTo(next.DefaultTimeWindow)
	}
	if patch.DeviceTokens != nil {
		next.DeviceTokens = append([]string{}, (*patch.DeviceTokens)...)
	}
	if patch.EmailSettings != nil {
		next.EmailSettings = patch.EmailSettings.applyTo(next.EmailSettings)
	}
	for category, cp := range patch.Categories {
		next.Categories[category] = cp.applyTo(next.Categories[category])
	}
	return next
}

func (p CategoryPatch) applyTo(c models.CategoryPreference) models.CategoryPreference {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Delivery != nil {
		c.Delivery = *p.Delivery
	}
	if p.TimeWindows != nil {
		c.TimeWindows = append([]models.TimeWindow{}, (*p.TimeWindows)...)
	}
	if p.Vibration != nil {
		c.Vibration = *p.Vibration
	}
	if p.Grouping != nil {
		c.Grouping = *p.Grouping
	}
	if c.TimeWindows == nil {
		c.TimeWindows = []models.TimeWindow{}
	}
	return c
}

func (p DeliveryPatch) applyTo(d models.DeliveryPreference) models.DeliveryPreference {
	if p.InApp != nil {
		d.InApp = *p.InApp
	}
	if p.Push != nil {
		d.Push = *p.Push
	}
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.EmailDigest != nil {
		d.EmailDigest = *p.EmailDigest
	}
	return d
}

func (p TimeWindowPatch) applyTo(w models.TimeWindow) models.TimeWindow {
	if p.Enabled != nil {
		w.Enabled = *p.Enabled
	}
	if p.StartTime != nil {
		w.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		w.EndTime = *p.EndTime
	}
	if p.Days != nil {
		w.Days = append([]models.Weekday{}, (*p.Days)...)
	}
	return w
}

func (p EmailSettingsPatch) applyTo(s models.EmailSettings) models.EmailSettings {
	if p.DigestFrequency != nil {
		s.DigestFrequency = *p.DigestFrequency
	}
	if p.DigestTime != nil {
		s.DigestTime = *p.DigestTime
	}
	if p.DigestDays != nil {
		s.DigestDays = append([]models.Weekday{}, (*p.DigestDays)...)
	}
	return s
}
