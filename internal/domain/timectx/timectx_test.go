package timectx

import (
	"testing"
	"time"
)

func TestDayPart(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{0, "late night"},
		{4, "late night"},
		{5, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{16, "afternoon"},
		{17, "evening"},
		{20, "evening"},
		{21, "night"},
		{23, "night"},
	}
	for _, tc := range cases {
		if got := DayPart(tc.hour); got != tc.want {
			t.Errorf("DayPart(%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestSeason(t *testing.T) {
	cases := []struct {
		month time.Month
		want  string
	}{
		{time.January, "winter"},
		{time.February, "winter"},
		{time.March, "spring"},
		{time.May, "spring"},
		{time.June, "summer"},
		{time.August, "summer"},
		{time.September, "autumn"},
		{time.November, "autumn"},
		{time.December, "winter"},
	}
	for _, tc := range cases {
		if got := Season(tc.month); got != tc.want {
			t.Errorf("Season(%s) = %q, want %q", tc.month, got, tc.want)
		}
	}
}

func TestDayType(t *testing.T) {
	if got := DayType(time.Saturday); got != "weekend" {
		t.Errorf("Saturday = %q, want weekend", got)
	}
	if got := DayType(time.Sunday); got != "weekend" {
		t.Errorf("Sunday = %q, want weekend", got)
	}
	if got := DayType(time.Wednesday); got != "weekday" {
		t.Errorf("Wednesday = %q, want weekday", got)
	}
}

func TestLine(t *testing.T) {
	now := time.Date(2026, time.March, 7, 22, 30, 0, 0, time.UTC)
	got := Line(now)
	want := "Current date and time: Saturday, 2026-03-07, 22:30 UTC (night, weekend, spring)."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLine_UsesZoneAbbreviation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	now := time.Date(2026, time.July, 4, 9, 0, 0, 0, loc)
	got := Line(now)
	want := "Current date and time: Saturday, 2026-07-04, 09:00 EDT (morning, weekend, summer)."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
