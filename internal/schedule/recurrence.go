package schedule

import (
	"fmt"
	"time"
)

const (
	PatternDaily   = "daily"
	PatternWeekly  = "weekly"
	PatternMonthly = "monthly"
)

// weeklyScanWindow bounds the forward scan for an eligible weekday.
const weeklyScanWindow = 8

// TimeOfDay is a wall-clock time without a date, parsed from "HH:MM:SS".
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM:SS" (seconds optional) into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &tod.Hour, &tod.Minute, &tod.Second); err != nil {
		tod.Second = 0
		if _, err := fmt.Sscanf(s, "%d:%d", &tod.Hour, &tod.Minute); err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
		}
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 || tod.Second < 0 || tod.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return tod, nil
}

// on combines a date with the wall-clock time, in the date's location.
func (t TimeOfDay) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, t.Second, 0, day.Location())
}

// ValidPattern reports whether the recurrence pattern is one of the
// supported values.
func ValidPattern(pattern string) bool {
	switch pattern {
	case PatternDaily, PatternWeekly, PatternMonthly:
		return true
	}
	return false
}

// NextFireTime computes the next recurring fire instant strictly after from.
// Weekday indices follow time.Weekday (Sunday = 0). All instants are compared
// in from's location; no timezone conversion is performed.
func NextFireTime(pattern string, days []int, timeOfDay TimeOfDay, from time.Time) (time.Time, error) {
	switch pattern {
	case PatternDaily:
		next := timeOfDay.on(from)
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case PatternWeekly:
		eligible := make(map[int]bool, len(days))
		for _, d := range days {
			eligible[d] = true
		}
		// An empty day set means every weekday is eligible.
		allDays := len(eligible) == 0

		for offset := 0; offset < weeklyScanWindow; offset++ {
			day := from.AddDate(0, 0, offset)
			if !allDays && !eligible[int(day.Weekday())] {
				continue
			}
			candidate := timeOfDay.on(day)
			if candidate.After(from) {
				return candidate, nil
			}
		}
		return timeOfDay.on(from.AddDate(0, 0, 7)), nil

	case PatternMonthly:
		next := timeOfDay.on(from)
		if !next.After(from) {
			next = next.AddDate(0, 1, 0)
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("unknown recurrence pattern %q", pattern)
	}
}
