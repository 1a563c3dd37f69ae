package preferences

import (
	"fmt"
	"sort"
	"strings"

	"bookverse-notifications/internal/common/errors"
	"bookverse-notifications/internal/models"
)

// Validate checks the structural invariants of a complete document. The
// returned error is a VALIDATION_FAILED StandardError listing every problem.
func Validate(p *models.NotificationPreferences) error {
	if p == nil {
		return errors.NewValidationError("preferences document is missing")
	}
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, c := range models.AllCategories {
		if _, ok := p.Categories[c]; !ok {
			add("categories.%s: missing entry", c)
		}
	}
	for c, cp := range p.Categories {
		if !c.Valid() {
			add("categories.%s: unknown category", c)
			continue
		}
		if !cp.Priority.Valid() {
			add("categories.%s.priority: invalid value %q", c, cp.Priority)
		}
		for i, w := range cp.TimeWindows {
			for _, msg := range validateWindow(w) {
				add("categories.%s.timeWindows[%d].%s", c, i, msg)
			}
		}
	}

	for _, msg := range validateWindow(p.QuietHours) {
		add("quietHours.%s", msg)
	}
	for _, msg := range validateWindow(p.DefaultTimeWindow) {
		add("defaultTimeWindow.%s", msg)
	}

	seen := make(map[string]bool, len(p.DeviceTokens))
	for i, t := range p.DeviceTokens {
		if strings.TrimSpace(t) == "" {
			add("deviceTokens[%d]: empty token", i)
		}
		if seen[t] {
			add("deviceTokens[%d]: duplicate token", i)
		}
		seen[t] = true
	}

	es := p.EmailSettings
	if !es.DigestFrequency.Valid() {
		add("emailSettings.digestFrequency: invalid value %q", es.DigestFrequency)
	}
	if _, err := ParseClock(es.DigestTime); err != nil {
		add("emailSettings.digestTime: %v", err)
	}
	for _, msg := range validateDays(es.DigestDays) {
		add("emailSettings.digestDays%s", msg)
	}
	if es.DigestFrequency == models.DigestWeekly && len(es.DigestDays) == 0 {
		add("emailSettings.digestDays: weekly digest needs at least one day")
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.NewValidationError(strings.Join(problems, "; "))
}

func validateWindow(w models.TimeWindow) []string {
	var out []string
	if _, err := ParseClock(w.StartTime); err != nil {
		out = append(out, "startTime: "+err.Error())
	}
	if _, err := ParseClock(w.EndTime); err != nil {
		out = append(out, "endTime: "+err.Error())
	}
	for _, msg := range validateDays(w.Days) {
		out = append(out, "days"+msg)
	}
	return out
}

func validateDays(days []models.Weekday) []string {
	var out []string
	seen := make(map[models.Weekday]bool, len(days))
	for i, d := range days {
		if !d.Valid() {
			out = append(out, fmt.Sprintf("[%d]: unknown weekday %q", i, d))
		} else if seen[d] {
			out = append(out, fmt.Sprintf("[%d]: duplicate weekday %q", i, d))
		}
		seen[d] = true
	}
	return out
}
