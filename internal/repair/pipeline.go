// Package repair implements the repair-ticket pipeline:
// Triage → Repairing → Testing → Resolved.
//
// Functions here are pure: they take the current machine and ticket lists and
// return updated copies. Persisting the result is the caller's job, and on
// error the inputs are returned untouched so callers can treat violations as
// no-ops.
package repair

import (
	"errors"
	"sort"
	"time"

	"github.com/devghori1264/prodmon/internal/models"
)

var (
	ErrMachineNotFound = errors.New("machine not found")
	ErrMachineNotDown  = errors.New("machine is not down")
	ErrRepairPending   = errors.New("repair already requested")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketResolved  = errors.New("ticket already resolved")
)

// StatusForStage derives a ticket status from its stage.
func StatusForStage(s models.Stage) models.TicketStatus {
	switch {
	case s >= models.FinalStage:
		return models.TicketResolved
	case s > models.StageTriage:
		return models.TicketInProgress
	default:
		return models.TicketRequested
	}
}

// OpenTicket returns the index of the non-resolved ticket for machineID, or -1.
func OpenTicket(tickets []models.RepairTicket, machineID int) int {
	for i, t := range tickets {
		if t.MachineID == machineID && t.Open() {
			return i
		}
	}
	return -1
}

// Request opens a ticket for a Down machine that has none. It flags the
// machine and drops any resolved leftovers from the ticket list.
func Request(machines []models.Machine, tickets []models.RepairTicket, machineID int, id string, now time.Time) ([]models.Machine, []models.RepairTicket, models.RepairTicket, error) {
	idx := models.FindMachine(machines, machineID)
	if idx < 0 {
		return machines, tickets, models.RepairTicket{}, ErrMachineNotFound
	}
	m := machines[idx]
	if m.Status != models.StatusDown {
		return machines, tickets, models.RepairTicket{}, ErrMachineNotDown
	}
	if m.RepairRequested || OpenTicket(tickets, machineID) >= 0 {
		return machines, tickets, models.RepairTicket{}, ErrRepairPending
	}

	t := models.RepairTicket{
		ID:            id,
		MachineID:     m.ID,
		MachineName:   m.Name,
		CreatedAt:     now,
		Problem:       m.Problem,
		Status:        models.TicketRequested,
		PipelineStage: models.StageTriage,
	}

	nextMachines := append([]models.Machine(nil), machines...)
	nextMachines[idx].RepairRequested = true

	nextTickets := Active(tickets)
	nextTickets = append(nextTickets, t)
	return nextMachines, nextTickets, t, nil
}

// Advance moves a ticket one stage forward. When it reaches the final stage
// the ticket leaves the active list and its machine returns to Running; the
// resolved ticket is returned with resolved=true.
func Advance(machines []models.Machine, tickets []models.RepairTicket, ticketID string, now time.Time) (nextMachines []models.Machine, nextTickets []models.RepairTicket, ticket models.RepairTicket, resolved bool, err error) {
	ti := -1
	for i := range tickets {
		if tickets[i].ID == ticketID {
			ti = i
			break
		}
	}
	if ti < 0 {
		return machines, tickets, models.RepairTicket{}, false, ErrTicketNotFound
	}
	t := tickets[ti]
	if !t.Open() || t.PipelineStage >= models.FinalStage {
		return machines, tickets, t, false, ErrTicketResolved
	}

	t.PipelineStage++
	t.Status = StatusForStage(t.PipelineStage)

	nextTickets = append([]models.RepairTicket(nil), tickets...)
	if t.PipelineStage < models.FinalStage {
		nextTickets[ti] = t
		return machines, nextTickets, t, false, nil
	}

	resolvedAt := now
	t.ResolvedAt = &resolvedAt
	nextTickets = append(nextTickets[:ti], nextTickets[ti+1:]...)
	return Reinstate(machines, t.MachineID, now), nextTickets, t, true, nil
}

// Reinstate returns machines with machineID back in service after a repair.
// Unknown ids leave the list unchanged.
func Reinstate(machines []models.Machine, machineID int, now time.Time) []models.Machine {
	idx := models.FindMachine(machines, machineID)
	if idx < 0 {
		return machines
	}
	out := append([]models.Machine(nil), machines...)
	m := &out[idx]
	m.Status = models.StatusRunning
	m.Problem = models.NoProblem
	m.RepairRequested = false
	m.Efficiency = 100
	m.LastUpdate = now
	return out
}

// Active returns the non-resolved tickets, oldest first.
func Active(tickets []models.RepairTicket) []models.RepairTicket {
	out := make([]models.RepairTicket, 0, len(tickets))
	for _, t := range tickets {
		if t.Open() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Pending returns the tickets still waiting on engineering, i.e. Requested or In Progress.
func Pending(tickets []models.RepairTicket) []models.RepairTicket {
	out := make([]models.RepairTicket, 0, len(tickets))
	for _, t := range Active(tickets) {
		if t.Status == models.TicketRequested || t.Status == models.TicketInProgress {
			out = append(out, t)
		}
	}
	return out
}

// Progress is the pipeline completion percentage shown on the engineering board.
func Progress(t models.RepairTicket) int {
	if !t.Open() {
		return 100
	}
	return int(t.PipelineStage) * 100 / int(models.FinalStage)
}

// NextStage names the stage an Advance would move the ticket to.
func NextStage(t models.RepairTicket) string {
	if !t.Open() || t.PipelineStage >= models.FinalStage {
		return "Done"
	}
	return (t.PipelineStage + 1).String()
}
