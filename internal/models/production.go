package models

// LineStatus classifies a day's production record by achievement ratio.
type LineStatus string

const (
	LineNormal LineStatus = "Normal"
	LineSlow   LineStatus = "Slow"
	LineFault  LineStatus = "Fault"
)

// ProductionRecord is one machine's output for one shift of one day.
type ProductionRecord struct {
	Date        string     `json:"date"`
	Shift       string     `json:"shift"`
	MachineCode string     `json:"machineCode"`
	MachineName string     `json:"machineName"`
	Product     string     `json:"product"`
	Target      int        `json:"target"`
	Actual      int        `json:"actual"`
	Status      LineStatus `json:"status"`
	Problem     string     `json:"problem"`
}
