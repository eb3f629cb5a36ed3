package models

import (
	"math"
	"time"
)

// MachineStatus is the production state of a line machine.
type MachineStatus string

const (
	StatusRunning  MachineStatus = "Running"
	StatusIdle     MachineStatus = "Idle"
	StatusDown     MachineStatus = "Down"
	StatusAchieved MachineStatus = "Achieved"
	// StatusResolved is written by an external repair and absorbed on the next tick.
	StatusResolved MachineStatus = "Resolved"
)

// NoProblem is the problem text of a healthy machine.
const NoProblem = "N/A"

// Machine is the core domain object: one production machine for the active shift.
// Shared between the simulator, the coordinator and storage layers.
type Machine struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Product         string        `json:"product"`
	Target          int           `json:"target"`
	Achievement     int           `json:"achievement"`
	Status          MachineStatus `json:"status"`
	Problem         string        `json:"problem"`
	Efficiency      int           `json:"efficiency"`
	LastUpdate      time.Time     `json:"lastUpdate"`
	RepairRequested bool          `json:"repairRequested"`
}

// Efficiency returns round(achievement/target*100); zero targets yield 0.
func Efficiency(achievement, target int) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(float64(achievement) / float64(target) * 100))
}

// FindMachine returns the index of the machine with the given id, or -1.
func FindMachine(machines []Machine, id int) int {
	for i := range machines {
		if machines[i].ID == id {
			return i
		}
	}
	return -1
}
