// Package aitime provides the clock and time-context buckets shared by the AI services.
package aitime

import (
	"strings"
	"time"
)

// Clock supplies the current time. Services take a Clock so tests can drive simulated time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// OrSystem returns c, or the wall clock when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}

// TimeOfDay is a coarse bucket of the local hour.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimeOfDayOf buckets an hour (0-23).
func TimeOfDayOf(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Evening
	default:
		return Night
	}
}

// TimeOfDayAt buckets t by its local hour.
func TimeOfDayAt(t time.Time) TimeOfDay {
	return TimeOfDayOf(t.Hour())
}

// DayOfWeek returns the lowercase weekday name of t, e.g. "friday".
func DayOfWeek(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// IsWeekend reports whether t falls on Friday, Saturday or Sunday. Friday counts as a going-out night.
func IsWeekend(t time.Time) bool {
	switch t.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// Describe returns a compact "friday evening" style label.
func Describe(t time.Time) string {
	return DayOfWeek(t) + " " + string(TimeOfDayAt(t))
}

// InHourWindow reports whether hour lies in [start, end). Windows where start > end wrap past midnight.
// start == end denotes an empty window.
func InHourWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
