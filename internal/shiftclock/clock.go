// Package shiftclock maps wall-clock time onto the demo shift cadence: every
// quarter hour is split into three five-minute shifts.
package shiftclock

import (
	"fmt"
	"time"
)

const (
	Shift1 = "Shift 1"
	Shift2 = "Shift 2"
	Shift3 = "Shift 3"

	windowMinutes = 5
)

// Reading is the shift in effect at an instant and the time left in it.
type Reading struct {
	ShiftID   string
	Remaining time.Duration
}

// At computes the shift reading for t. It has no state and no side effects.
func At(t time.Time) Reading {
	return Reading{ShiftID: ShiftID(t), Remaining: Remaining(t)}
}

// ShiftID returns the shift identifier for t.
func ShiftID(t time.Time) string {
	switch minute := t.Minute() % 15; {
	case minute < 5:
		return Shift1
	case minute < 10:
		return Shift2
	default:
		return Shift3
	}
}

// Remaining returns the countdown to the next five-minute boundary. On an exact
// boundary the full window is reported.
func Remaining(t time.Time) time.Duration {
	minute := t.Minute() % 15
	secs := (windowMinutes-(minute%windowMinutes)-1)*60 + (60 - t.Second())
	return time.Duration(secs) * time.Second
}

// Format renders d as MM:SS.
func Format(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// RemainingString is Format(r.Remaining).
func (r Reading) RemainingString() string {
	return Format(r.Remaining)
}
