package preferences

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bookverse-notifications/internal/common/validation"
	"bookverse-notifications/internal/models"
)

var clockPattern = regexp.MustCompile(validation.TimePattern)

// ParseClock converts "H:MM"/"HH:MM" into minutes past midnight.
func ParseClock(s string) (int, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m, nil
}

var weekdays = map[time.Weekday]models.Weekday{
	time.Monday:    models.Monday,
	time.Tuesday:   models.Tuesday,
	time.Wednesday: models.Wednesday,
	time.Thursday:  models.Thursday,
	time.Friday:    models.Friday,
	time.Saturday:  models.Saturday,
	time.Sunday:    models.Sunday,
}

// WeekdayOf maps a time.Weekday to its document name.
func WeekdayOf(d time.Weekday) models.Weekday {
	return weekdays[d]
}

// WindowActive reports whether at falls inside w. The interval is
// [start, end); end before start wraps past midnight, and the part after
// midnight counts for the day the window started. start == end is empty.
func WindowActive(w models.TimeWindow, at time.Time) bool {
	if !w.Enabled {
		return false
	}
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.EndTime)
	if err != nil {
		return false
	}
	now := at.Hour()*60 + at.Minute()

	switch {
	case start < end:
		return now >= start && now < end && onDay(w.Days, at.Weekday())
	case end < start:
		if now >= start {
			return onDay(w.Days, at.Weekday())
		}
		if now < end {
			return onDay(w.Days, at.AddDate(0, 0, -1).Weekday())
		}
	}
	return false
}

func onDay(days []models.Weekday, d time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	want := WeekdayOf(d)
	for _, day := range days {
		if day == want {
			return true
		}
	}
	return false
}
