package models

import (
	"math"
	"time"
)

// ShiftState is the persisted current-shift record (store key "shift_state").
type ShiftState struct {
	ShiftID  string    `json:"shiftId"`
	Machines []Machine `json:"machines"`
	// Version is bumped on every successful write and used to reject stale writers.
	Version int64 `json:"version"`
}

// ShiftSnapshot is an archived shift, displayed read-only as history.
type ShiftSnapshot struct {
	ShiftID    string    `json:"shiftId"`
	ArchivedAt time.Time `json:"archivedAt"`
	Machines   []Machine `json:"machines"`
}

// AverageEfficiency returns the rounded mean efficiency, 0 for an empty list.
func AverageEfficiency(machines []Machine) int {
	if len(machines) == 0 {
		return 0
	}
	sum := 0
	for _, m := range machines {
		sum += m.Efficiency
	}
	return int(math.Round(float64(sum) / float64(len(machines))))
}
