// internal/models/preferences.go
package models

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// AllWeekdays is ordered monday first.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Weekday) Valid() bool {
	for _, w := range AllWeekdays {
		if w == d {
			return true
		}
	}
	return false
}

type DigestFrequency string

const (
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
	DigestNever  DigestFrequency = "never"
)

func (f DigestFrequency) Valid() bool {
	switch f {
	case DigestDaily, DigestWeekly, DigestNever:
		return true
	}
	return false
}

// TimeWindow is a recurring interval. EndTime before StartTime wraps past
// midnight. Empty Days means every day.
type TimeWindow struct {
	Enabled   bool      `json:"enabled"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Days      []Weekday `json:"days"`
}

type DeliveryPreference struct {
	InApp       bool `json:"inApp"`
	Push        bool `json:"push"`
	Email       bool `json:"email"`
	EmailDigest bool `json:"emailDigest"`
}

type CategoryPreference struct {
	Enabled     bool               `json:"enabled"`
	Priority    Priority           `json:"priority"`
	Delivery    DeliveryPreference `json:"delivery"`
	TimeWindows []TimeWindow       `json:"timeWindows"`
	Vibration   bool               `json:"vibration"`
	Grouping    bool               `json:"grouping"`
}

type EmailSettings struct {
	DigestFrequency  DigestFrequency `json:"digestFrequency"`
	DigestTime       string          `json:"digestTime"`
	DigestDays       []Weekday       `json:"digestDays"`
	UnsubscribeToken string          `json:"unsubscribeToken,omitempty"`
}

// NotificationPreferences is the per-user root document.
type NotificationPreferences struct {
	GlobalEnabled     bool                            `json:"globalEnabled"`
	QuietHours        TimeWindow                      `json:"quietHours"`
	Categories        map[Category]CategoryPreference `json:"categories"`
	DefaultDelivery   DeliveryPreference              `json:"defaultDelivery"`
	DefaultTimeWindow TimeWindow                      `json:"defaultTimeWindow"`
	DeviceTokens      []string                        `json:"deviceTokens"`
	EmailSettings     EmailSettings                   `json:"emailSettings"`
}

// Clone returns a deep copy so callers never share maps or slices with the
// stored document.
func (p *NotificationPreferences) Clone() *NotificationPreferences {
	if p == nil {
		return nil
	}
	out := *p
	out.QuietHours = p.QuietHours.clone()
	out.DefaultTimeWindow = p.DefaultTimeWindow.clone()
	out.DeviceTokens = make([]string, len(p.DeviceTokens))
	copy(out.DeviceTokens, p.DeviceTokens)
	out.EmailSettings.DigestDays = copyDays(p.EmailSettings.DigestDays)
	out.Categories = make(map[Category]CategoryPreference, len(p.Categories))
	for k, v := range p.Categories {
		out.Categories[k] = v.Clone()
	}
	return &out
}

func (c CategoryPreference) Clone() CategoryPreference {
	out := c
	out.TimeWindows = make([]TimeWindow, len(c.TimeWindows))
	for i, w := range c.TimeWindows {
		out.TimeWindows[i] = w.clone()
	}
	return out
}

func (w TimeWindow) clone() TimeWindow {
	out := w
	out.Days = copyDays(w.Days)
	return out
}

// copyDays never returns nil so documents serialize "days": [].
func copyDays(days []Weekday) []Weekday {
	out := make([]Weekday, len(days))
	copy(out, days)
	return out
}

// HasDeviceToken reports token membership.
func (p *NotificationPreferences) HasDeviceToken(token string) bool {
	for _, t := range p.DeviceTokens {
		if t == token {
			return true
		}
	}
	return false
}
