// Package timectx renders the one-line temporal context injected into every
// outbound system message, so models can reason about "today", "tonight",
// seasons, and the like.
package timectx

import (
	"fmt"
	"time"
)

// DayPart buckets the local hour into a human label.
func DayPart(hour int) string {
	switch {
	case hour < 5:
		return "late night"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// Season returns the meteorological Northern-hemisphere season.
func Season(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// DayType distinguishes weekdays from weekends.
func DayType(day time.Weekday) string {
	if day == time.Saturday || day == time.Sunday {
		return "weekend"
	}
	return "weekday"
}

// Line formats the temporal context for the given local wall-clock instant.
// Computed once per request and reused across every outbound message; the
// template is fixed so prompts stay stable.
func Line(now time.Time) string {
	zone, _ := now.Zone()
	return fmt.Sprintf("Current date and time: %s, %s, %s %s (%s, %s, %s).",
		now.Weekday().String(),
		now.Format("2006-01-02"),
		now.Format("15:04"),
		zone,
		DayPart(now.Hour()),
		DayType(now.Weekday()),
		Season(now.Month()),
	)
}
