// Package events publishes board changes (breakdowns, shift changes, ticket
// moves) to an external bus. Publishing is best effort: failures are logged
// and never fail the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Type names an event kind; it is appended to the subject root.
type Type string

const (
	MachineDown     Type = "machine.down"
	ShiftRollover   Type = "shift.rollover"
	TicketRequested Type = "ticket.requested"
	TicketAdvanced  Type = "ticket.advanced"
	TicketResolved  Type = "ticket.resolved"
)

// Event is the JSON payload sent on the bus.
type Event struct {
	Type      Type      `json:"event"`
	ShiftID   string    `json:"shiftId,omitempty"`
	MachineID int       `json:"machineId,omitempty"`
	TicketID  string    `json:"ticketId,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Problem   string    `json:"problem,omitempty"`
	Time      time.Time `json:"time"`
}

// Publisher is a message bus sink (NATS, Kafka).
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Emitter encodes events and hands them to a Publisher. A nil publisher
// turns Emit into a no-op.
type Emitter struct {
	pub  Publisher
	root string
	log  *zap.Logger
}

func NewEmitter(pub Publisher, root string, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	if root == "" {
		root = "prodmon"
	}
	return &Emitter{pub: pub, root: root, log: log}
}

// Subject returns the full subject for t, e.g. "prodmon.ticket.resolved".
func (e *Emitter) Subject(t Type) string {
	return e.root + "." + string(t)
}

func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil || e.pub == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		e.log.Error("encode event", zap.String("event", string(ev.Type)), zap.Error(err))
		return
	}
	if err := e.pub.Publish(ctx, e.Subject(ev.Type), payload); err != nil {
		e.log.Warn("publish failed", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

func (e *Emitter) Close() error {
	if e == nil || e.pub == nil {
		return nil
	}
	return e.pub.Close()
}
