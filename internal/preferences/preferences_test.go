package preferences

import (
	"encoding/json"
	"testing"
	"time"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/common/validation"
	"bookverse-notifications/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func at(s string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return ts
}

// ==========================
// Defaults
// ==========================

func TestDefaults(t *testing.T) {
	d := Defaults()

	assert.True(t, d.GlobalEnabled)
	assert.Len(t, d.Categories, len(models.AllCategories))
	for _, c := range models.AllCategories {
		cp := d.Categories[c]
		assert.True(t, cp.Enabled, c)
		assert.Equal(t, models.PriorityNormal, cp.Priority, c)
		assert.True(t, cp.Delivery.InApp)
		assert.True(t, cp.Delivery.Push)
		assert.True(t, cp.Delivery.Email)
		assert.False(t, cp.Delivery.EmailDigest)
		assert.Empty(t, cp.TimeWindows)
	}

	assert.False(t, d.QuietHours.Enabled)
	assert.Equal(t, "22:00", d.QuietHours.StartTime)
	assert.Equal(t, "07:00", d.QuietHours.EndTime)
	assert.Equal(t, models.DigestDaily, d.EmailSettings.DigestFrequency)
	assert.Equal(t, "09:00", d.EmailSettings.DigestTime)
	assert.NotEmpty(t, d.EmailSettings.UnsubscribeToken)
	assert.NotNil(t, d.DeviceTokens)

	require.NoError(t, Validate(d))
}

func TestDefaults_MatchDocumentSchema(t *testing.T) {
	v, err := validation.NewPreferencesValidator()
	require.NoError(t, err)

	raw, err := json.Marshal(Defaults())
	require.NoError(t, err)

	res := v.ValidateJSON(raw)
	assert.True(t, res.Valid, res.Messages())
}

func TestDefaults_FreshTokens(t *testing.T) {
	assert.NotEqual(t, Defaults().EmailSettings.UnsubscribeToken, Defaults().EmailSettings.UnsubscribeToken)
}

// ==========================
// Merge
// ==========================

func TestApply_LeavesUntouchedFields(t *testing.T) {
	cur := Defaults()
	high := models.PriorityHigh

	next := Apply(cur, PreferencesPatch{
		Categories: map[models.Category]CategoryPatch{
			models.CategoryClubInvite: {Priority: &high},
		},
	})

	assert.Equal(t, models.PriorityHigh, next.Categories[models.CategoryClubInvite].Priority)
	assert.True(t, next.Categories[models.CategoryClubInvite].Enabled)
	assert.Equal(t, cur.Categories[models.CategoryNewFollower], next.Categories[models.CategoryNewFollower])
	assert.Equal(t, models.PriorityNormal, cur.Categories[models.CategoryClubInvite].Priority, "input must not change")
}

func TestApply_QuietHoursOverlay(t *testing.T) {
	cur := Defaults()

	next := Apply(cur, PreferencesPatch{QuietHours: &TimeWindowPatch{Enabled: boolPtr(true)}})

	assert.True(t, next.QuietHours.Enabled)
	assert.Equal(t, "22:00", next.QuietHours.StartTime)
	assert.Equal(t, "07:00", next.QuietHours.EndTime)
	assert.Len(t, next.QuietHours.Days, 7)
}

func TestApply_EmailSettingsOverlayKeepsToken(t *testing.T) {
	cur := Defaults()
	weekly := models.DigestWeekly

	next := Apply(cur, PreferencesPatch{EmailSettings: &EmailSettingsPatch{DigestFrequency: &weekly}})

	assert.Equal(t, models.DigestWeekly, next.EmailSettings.DigestFrequency)
	assert.Equal(t, cur.EmailSettings.DigestDays, next.EmailSettings.DigestDays)
	assert.Equal(t, cur.EmailSettings.UnsubscribeToken, next.EmailSettings.UnsubscribeToken)
}

func TestApply_ReplacesSlicesWithoutAliasing(t *testing.T) {
	cur := Defaults()
	tokens := []string{"a", "b"}

	next := Apply(cur, PreferencesPatch{DeviceTokens: &tokens})
	tokens[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, next.DeviceTokens)
	assert.Empty(t, cur.DeviceTokens)
}

func TestDeliveryPatch_OnlyTouchesGivenChannels(t *testing.T) {
	d := models.DeliveryPreference{InApp: true, Push: true, Email: true}
	out := DeliveryPatch{Push: boolPtr(false), EmailDigest: boolPtr(true)}.applyTo(d)

	assert.Equal(t, models.DeliveryPreference{InApp: true, Push: false, Email: true, EmailDigest: true}, out)
}

// ==========================
// Validation
// ==========================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *models.NotificationPreferences)
		wantMsg string
	}{
		{
			name:    "missing category",
			mutate:  func(p *models.NotificationPreferences) { delete(p.Categories, models.CategoryAppUpdate) },
			wantMsg: "categories.appUpdate: missing entry",
		},
		{
			name: "unknown category",
			mutate: func(p *models.NotificationPreferences) {
				p.Categories["pirateMessage"] = DefaultCategoryPreference()
			},
			wantMsg: "categories.pirateMessage: unknown category",
		},
		{
			name:    "bad quiet hours",
			mutate:  func(p *models.NotificationPreferences) { p.QuietHours.StartTime = "25:00" },
			wantMsg: "quietHours.startTime",
		},
		{
			name: "bad category window day",
			mutate: func(p *models.NotificationPreferences) {
				cp := p.Categories[models.CategoryNewEvent]
				cp.TimeWindows = []models.TimeWindow{{Enabled: true, StartTime: "09:00", EndTime: "10:00", Days: []models.Weekday{"funday"}}}
				p.Categories[models.CategoryNewEvent] = cp
			},
			wantMsg: "categories.newEvent.timeWindows[0].days[0]: unknown weekday",
		},
		{
			name:    "duplicate device token",
			mutate:  func(p *models.NotificationPreferences) { p.DeviceTokens = []string{"t1", "t1"} },
			wantMsg: "deviceTokens[1]: duplicate token",
		},
		{
			name:    "bad digest frequency",
			mutate:  func(p *models.NotificationPreferences) { p.EmailSettings.DigestFrequency = "hourly" },
			wantMsg: "emailSettings.digestFrequency",
		},
		{
			name: "weekly digest without days",
			mutate: func(p *models.NotificationPreferences) {
				p.EmailSettings.DigestFrequency = models.DigestWeekly
				p.EmailSettings.DigestDays = []models.Weekday{}
			},
			wantMsg: "weekly digest needs at least one day",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			tt.mutate(p)

			err := Validate(p)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, Validate(nil))
}

// ==========================
// Time windows
// ==========================

func TestParseClock(t *testing.T) {
	m, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 450, m)

	m, err = ParseClock("9:05")
	require.NoError(t, err)
	assert.Equal(t, 545, m)

	for _, bad := range []string{"24:00", "12:60", "noon", ""} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestWindowActive(t *testing.T) {
	overnight := models.TimeWindow{Enabled: true, StartTime: "22:00", EndTime: "07:00"}
	daytime := models.TimeWindow{Enabled: true, StartTime: "09:00", EndTime: "17:00"}

	tests := []struct {
		name   string
		window models.TimeWindow
		at     time.Time
		want   bool
	}{
		{"wrap late evening", overnight, at("2026-10-19 23:30"), true},
		{"wrap early morning", overnight, at("2026-10-20 03:00"), true},
		{"wrap midday", overnight, at("2026-10-19 12:00"), false},
		{"wrap end is exclusive", overnight, at("2026-10-20 07:00"), false},
		{"wrap start is inclusive", overnight, at("2026-10-19 22:00"), true},
		{"plain inside", daytime, at("2026-10-19 12:00"), true},
		{"plain before", daytime, at("2026-10-19 08:59"), false},
		{"plain end exclusive", daytime, at("2026-10-19 17:00"), false},
		{"disabled", models.TimeWindow{StartTime: "00:00", EndTime: "23:59"}, at("2026-10-19 12:00"), false},
		{"empty window", models.TimeWindow{Enabled: true, StartTime: "10:00", EndTime: "10:00"}, at("2026-10-19 10:00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowActive(tt.window, tt.at))
		})
	}
}

func TestWindowActive_DaysFollowWindowStart(t *testing.T) {
	// 2026-10-19 is a Monday
	mondayNight := models.TimeWindow{
		Enabled:   true,
		StartTime: "22:00",
		EndTime:   "02:00",
		Days:      []models.Weekday{models.Monday},
	}

	assert.True(t, WindowActive(mondayNight, at("2026-10-19 23:00")))
	assert.True(t, WindowActive(mondayNight, at("2026-10-20 01:00")), "tuesday 01:00 belongs to monday's window")
	assert.False(t, WindowActive(mondayNight, at("2026-10-19 01:00")), "monday 01:00 belongs to sunday's window")
	assert.False(t, WindowActive(mondayNight, at("2026-10-20 23:00")))
}
