package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

type recorder struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recorder) Publish(_ context.Context, subject string, payload []byte) error {
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, payload)
	return r.err
}

func (r *recorder) Close() error { return nil }

func TestEmitEncodesEvent(t *testing.T) {
	rec := &recorder{}
	e := NewEmitter(rec, "plant", zaptest.NewLogger(t))
	e.Emit(context.Background(), Event{Type: TicketResolved, MachineID: 3, TicketID: "abc"})

	if len(rec.subjects) != 1 || rec.subjects[0] != "plant.ticket.resolved" {
		t.Fatalf("unexpected subjects %v", rec.subjects)
	}
	var ev Event
	if err := json.Unmarshal(rec.payloads[0], &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.MachineID != 3 || ev.TicketID != "abc" || ev.Time.IsZero() {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	rec := &recorder{err: errors.New("bus down")}
	NewEmitter(rec, "", zaptest.NewLogger(t)).Emit(context.Background(), Event{Type: MachineDown})
	if len(rec.subjects) != 1 || rec.subjects[0] != "prodmon.machine.down" {
		t.Fatalf("unexpected subjects %v", rec.subjects)
	}
}

func TestNilEmitterIsNoop(t *testing.T) {
	var e *Emitter
	e.Emit(context.Background(), Event{Type: MachineDown})
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	NewEmitter(nil, "", nil).Emit(context.Background(), Event{Type: MachineDown})
}
