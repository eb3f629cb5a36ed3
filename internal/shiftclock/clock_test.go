package shiftclock

import (
	"testing"
	"time"
)

func at(min, sec int) time.Time {
	return time.Date(2026, 10, 17, 9, min, sec, 0, time.UTC)
}

func TestShiftID(t *testing.T) {
	cases := []struct {
		min  int
		want string
	}{
		{0, Shift1}, {4, Shift1}, {5, Shift2}, {9, Shift2},
		{10, Shift3}, {14, Shift3}, {15, Shift1}, {29, Shift3}, {59, Shift3},
	}
	for _, c := range cases {
		if got := ShiftID(at(c.min, 30)); got != c.want {
			t.Errorf("minute %d: expected %s got %s", c.min, c.want, got)
		}
	}
}

func TestRemaining(t *testing.T) {
	cases := []struct {
		min, sec int
		want     string
	}{
		{0, 0, "05:00"},
		{0, 1, "04:59"},
		{4, 59, "00:01"},
		{7, 30, "02:30"},
		{14, 0, "01:00"},
		{20, 45, "04:15"},
	}
	for _, c := range cases {
		got := At(at(c.min, c.sec)).RemainingString()
		if got != c.want {
			t.Errorf("%02d:%02d: expected %s got %s", c.min, c.sec, c.want, got)
		}
	}
}

func TestDeterministic(t *testing.T) {
	ts := at(11, 12)
	a, b := At(ts), At(ts)
	if a != b {
		t.Fatalf("readings differ for the same instant: %+v vs %+v", a, b)
	}
}

func TestFormatNegative(t *testing.T) {
	if got := Format(-time.Second); got != "00:00" {
		t.Fatalf("expected 00:00 got %s", got)
	}
}
