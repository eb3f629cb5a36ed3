package models

import "time"

// TicketStatus is derived from the pipeline stage.
type TicketStatus string

const (
	TicketRequested  TicketStatus = "Requested"
	TicketInProgress TicketStatus = "In Progress"
	TicketResolved   TicketStatus = "Resolved"
)

// Stage indexes the ordered repair pipeline.
type Stage int

const (
	StageTriage Stage = iota
	StageRepairing
	StageTesting
	StageResolved
)

// FinalStage is the last pipeline index; reaching it resolves the ticket.
const FinalStage = StageResolved

var stageNames = [...]string{"Triage", "Repairing", "Testing", "Resolved"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "N/A"
	}
	return stageNames[s]
}

// Stages lists the pipeline in order.
func Stages() []Stage {
	return []Stage{StageTriage, StageRepairing, StageTesting, StageResolved}
}

// RepairTicket tracks one repair request against a machine. The machine is
// referenced by id only; name and problem are snapshots taken at creation.
type RepairTicket struct {
	ID            string       `json:"id"`
	MachineID     int          `json:"machineId"`
	MachineName   string       `json:"machineName"`
	CreatedAt     time.Time    `json:"createdAt"`
	Problem       string       `json:"problem"`
	Status        TicketStatus `json:"status"`
	PipelineStage Stage        `json:"pipelineStage"`
	ResolvedAt    *time.Time   `json:"resolvedAt,omitempty"`
}

// Open reports whether the ticket still counts against its machine.
func (t RepairTicket) Open() bool {
	return t.Status != TicketResolved
}
