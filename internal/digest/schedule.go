package digest

import (
	"fmt"
	"strings"
	"time"

	"bookverse-notifications/internal/models"
	"bookverse-notifications/internal/preferences"

	"github.com/teambition/rrule-go"
)

var byDay = map[models.Weekday]string{
	models.Monday:    "MO",
	models.Tuesday:   "TU",
	models.Wednesday: "WE",
	models.Thursday:  "TH",
	models.Friday:    "FR",
	models.Saturday:  "SA",
	models.Sunday:    "SU",
}

// Rule renders the recurrence of the user's digest, e.g.
// "FREQ=WEEKLY;BYDAY=MO,FR;BYHOUR=9;BYMINUTE=0;BYSECOND=0".
func Rule(s models.EmailSettings) (string, error) {
	clock, err := preferences.ParseClock(s.DigestTime)
	if err != nil {
		return "", err
	}
	at := fmt.Sprintf("BYHOUR=%d;BYMINUTE=%d;BYSECOND=0", clock/60, clock%60)

	switch s.DigestFrequency {
	case models.DigestDaily:
		return "FREQ=DAILY;" + at, nil
	case models.DigestWeekly:
		if len(s.DigestDays) == 0 {
			return "", fmt.Errorf("weekly digest has no days")
		}
		days := make([]string, 0, len(s.DigestDays))
		for _, d := range s.DigestDays {
			code, ok := byDay[d]
			if !ok {
				return "", fmt.Errorf("unknown weekday %q", d)
			}
			days = append(days, code)
		}
		return "FREQ=WEEKLY;BYDAY=" + strings.Join(days, ",") + ";" + at, nil
	default:
		return "", fmt.Errorf("digest frequency %q has no schedule", s.DigestFrequency)
	}
}

// NextRun returns the first digest instant strictly after `after`, in loc.
func NextRun(s models.EmailSettings, after time.Time, loc *time.Location) (time.Time, error) {
	rfc, err := Rule(s)
	if err != nil {
		return time.Time{}, err
	}
	rule, err := rrule.StrToRRule(rfc)
	if err != nil {
		return time.Time{}, err
	}
	local := after.In(loc)
	// anchor a week back so the first weekly occurrence is never skipped
	rule.DTStart(time.Date(local.Year(), local.Month(), local.Day()-7, 0, 0, 0, 0, loc))
	next := rule.After(after, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no digest occurrence after %s", after)
	}
	return next, nil
}
