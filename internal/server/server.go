package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/events"
	"github.com/devghori1264/prodmon/internal/metrics"
	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/repair"
	"github.com/devghori1264/prodmon/internal/shiftclock"
	"github.com/devghori1264/prodmon/internal/simulator"
	"github.com/devghori1264/prodmon/internal/storage"
)

var ErrAlreadyDown = errors.New("machine already down")

// Options tunes a Server. Zero values are replaced with defaults.
type Options struct {
	HistoryLimit int
	ArchiveLimit int
	Events       *events.Emitter
	Logger       *zap.Logger
	// Now and NewID exist for tests.
	Now   func() time.Time
	NewID func() string
}

// Board is a consistent read of the shared keys.
type Board struct {
	ShiftID  string                `json:"shiftId"`
	Version  int64                 `json:"version"`
	Machines []models.Machine      `json:"machines"`
	Tickets  []models.RepairTicket `json:"tickets"`
}

// Server owns the shared shift and ticket keys. Every read-modify-write on
// them happens under mu, so the simulator tick and ticket operations never
// interleave within this process.
type Server struct {
	state  *storage.State
	sim    *simulator.Simulator
	events *events.Emitter
	log    *zap.Logger
	tracer trace.Tracer

	now          func() time.Time
	newID        func() string
	historyLimit int
	archiveLimit int

	mu sync.Mutex
}

// New creates a new server instance.
func New(state *storage.State, sim *simulator.Simulator, opts Options) *Server {
	s := &Server{
		state:        state,
		sim:          sim,
		events:       opts.Events,
		log:          opts.Logger,
		tracer:       otel.Tracer("github.com/devghori1264/prodmon/internal/server"),
		now:          opts.Now,
		newID:        opts.NewID,
		historyLimit: opts.HistoryLimit,
		archiveLimit: opts.ArchiveLimit,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.historyLimit <= 0 {
		s.historyLimit = 12
	}
	if s.archiveLimit <= 0 {
		s.archiveLimit = 200
	}
	return s
}

// Tick runs one simulation step at now: a shift rollover when the shift
// changed, otherwise one production step for every machine.
func (s *Server) Tick(ctx context.Context, now time.Time) error {
	ctx, span := s.tracer.Start(ctx, "server.Tick")
	defer span.End()

	return s.locked(ctx, func() ([]events.Event, error) {
		st, err := s.state.ShiftState(ctx)
		if err != nil {
			return nil, err
		}
		shiftID := shiftclock.ShiftID(now)
		span.SetAttributes(attribute.String("shift.id", shiftID))
		if st.ShiftID != shiftID {
			return s.rollover(ctx, st, shiftID, now)
		}

		machines, failed := s.sim.StepAll(st.Machines, now)
		st.Machines = machines
		if err := s.saveShift(ctx, &st); err != nil {
			return nil, err
		}
		var pending []events.Event
		for _, id := range failed {
			m := machines[models.FindMachine(machines, id)]
			metrics.MachineFailures.Inc()
			s.log.Info("machine down", zap.Int("machine", id), zap.String("problem", m.Problem))
			pending = append(pending, events.Event{Type: events.MachineDown, ShiftID: shiftID, MachineID: id, Problem: m.Problem, Time: now})
		}
		metrics.SimulationTicks.Inc()
		observeMachines(machines)
		return pending, nil
	})
}

// rollover archives the finished shift, clears open tickets and starts a
// fresh fleet. Caller holds mu.
func (s *Server) rollover(ctx context.Context, prev models.ShiftState, shiftID string, now time.Time) ([]events.Event, error) {
	if prev.ShiftID != "" && len(prev.Machines) > 0 {
		snap := models.ShiftSnapshot{ShiftID: prev.ShiftID, ArchivedAt: now, Machines: prev.Machines}
		if err := s.state.AppendHistory(ctx, snap, s.historyLimit); err != nil {
			return nil, fmt.Errorf("archive %s: %w", prev.ShiftID, err)
		}
	}
	tickets, err := s.state.Tickets(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.state.SaveTickets(ctx, nil); err != nil {
		return nil, fmt.Errorf("clear tickets: %w", err)
	}
	next := models.ShiftState{ShiftID: shiftID, Machines: s.sim.NewShift(now), Version: prev.Version}
	if err := s.saveShift(ctx, &next); err != nil {
		// the old fleet is still stored with its repair flags
		if rbErr := s.state.SaveTickets(ctx, tickets); rbErr != nil {
			s.log.Error("rollback tickets", zap.Error(rbErr))
		}
		return nil, err
	}

	s.log.Info("shift rollover", zap.String("from", prev.ShiftID), zap.String("to", shiftID))
	metrics.ShiftRollovers.Inc()
	metrics.OpenTickets.Set(0)
	observeMachines(next.Machines)
	return []events.Event{{Type: events.ShiftRollover, ShiftID: shiftID, Time: now}}, nil
}

// RequestRepair opens a ticket for a Down machine. Precondition failures
// return a repair error and leave the store untouched.
func (s *Server) RequestRepair(ctx context.Context, machineID int) (models.RepairTicket, error) {
	ctx, span := s.tracer.Start(ctx, "server.RequestRepair", trace.WithAttributes(attribute.Int("machine.id", machineID)))
	defer span.End()

	var ticket models.RepairTicket
	err := s.locked(ctx, func() ([]events.Event, error) {
		st, tickets, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		machines, nextTickets, t, err := repair.Request(st.Machines, tickets, machineID, s.newID(), now)
		if err != nil {
			return nil, err
		}

		// ticket first: a flagged machine must always have its ticket
		if err := s.state.SaveTickets(ctx, nextTickets); err != nil {
			return nil, fmt.Errorf("save tickets: %w", err)
		}
		st.Machines = machines
		if err := s.saveShift(ctx, &st); err != nil {
			if rbErr := s.state.SaveTickets(ctx, tickets); rbErr != nil {
				s.log.Error("rollback tickets", zap.Error(rbErr))
			}
			return nil, err
		}

		ticket = t
		metrics.RepairRequests.Inc()
		metrics.OpenTickets.Set(float64(len(nextTickets)))
		s.log.Info("repair requested", zap.String("ticket", t.ID), zap.Int("machine", machineID))
		return []events.Event{{Type: events.TicketRequested, ShiftID: st.ShiftID, MachineID: machineID, TicketID: t.ID, Stage: t.PipelineStage.String(), Problem: t.Problem, Time: now}}, nil
	})
	if err != nil {
		return models.RepairTicket{}, err
	}
	return ticket, nil
}

// AdvanceTicket moves a ticket one stage. On resolution the machine is put
// back in service before the ticket leaves the active list.
func (s *Server) AdvanceTicket(ctx context.Context, ticketID string) (models.RepairTicket, bool, error) {
	ctx, span := s.tracer.Start(ctx, "server.AdvanceTicket", trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	var (
		ticket   models.RepairTicket
		resolved bool
	)
	err := s.locked(ctx, func() ([]events.Event, error) {
		st, tickets, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		machines, nextTickets, t, done, err := repair.Advance(st.Machines, tickets, ticketID, now)
		if err != nil {
			return nil, err
		}

		if done {
			st.Machines = machines
			if err := s.saveShift(ctx, &st); err != nil {
				return nil, err
			}
		}
		if err := s.state.SaveTickets(ctx, nextTickets); err != nil {
			return nil, fmt.Errorf("save tickets: %w", err)
		}
		metrics.OpenTickets.Set(float64(len(nextTickets)))
		ticket, resolved = t, done

		ev := events.Event{ShiftID: st.ShiftID, MachineID: t.MachineID, TicketID: t.ID, Stage: t.PipelineStage.String(), Time: now}
		if done {
			if err := s.state.ArchiveTicket(ctx, t, s.archiveLimit); err != nil {
				s.log.Warn("archive resolved ticket", zap.String("ticket", t.ID), zap.Error(err))
			}
			metrics.RepairsResolved.Inc()
			observeMachines(machines)
			ev.Type = events.TicketResolved
			s.log.Info("repair resolved", zap.String("ticket", t.ID), zap.Int("machine", t.MachineID))
		} else {
			ev.Type = events.TicketAdvanced
			s.log.Info("ticket advanced", zap.String("ticket", t.ID), zap.Stringer("stage", t.PipelineStage))
		}
		return []events.Event{ev}, nil
	})
	if err != nil {
		return models.RepairTicket{}, false, err
	}
	return ticket, resolved, nil
}

// InjectFailure forces a machine Down with problem, bypassing the random draw.
func (s *Server) InjectFailure(ctx context.Context, machineID int, problem string) (models.Machine, error) {
	ctx, span := s.tracer.Start(ctx, "server.InjectFailure", trace.WithAttributes(attribute.Int("machine.id", machineID)))
	defer span.End()

	var out models.Machine
	err := s.locked(ctx, func() ([]events.Event, error) {
		st, err := s.state.ShiftState(ctx)
		if err != nil {
			return nil, err
		}
		idx := models.FindMachine(st.Machines, machineID)
		if idx < 0 {
			return nil, repair.ErrMachineNotFound
		}
		m := &st.Machines[idx]
		if m.Status == models.StatusDown {
			out = *m
			return nil, ErrAlreadyDown
		}
		if problem == "" {
			problem = s.sim.Config().Failures[0]
		}
		m.Status = models.StatusDown
		m.Problem = problem
		if err := s.saveShift(ctx, &st); err != nil {
			return nil, err
		}
		out = st.Machines[idx]
		metrics.MachineFailures.Inc()
		observeMachines(st.Machines)
		return []events.Event{{Type: events.MachineDown, ShiftID: st.ShiftID, MachineID: machineID, Problem: problem, Time: s.now()}}, nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyDown) {
		return models.Machine{}, err
	}
	return out, err
}

// locked runs fn under mu. The events fn returns are published after mu is released.
func (s *Server) locked(ctx context.Context, fn func() ([]events.Event, error)) error {
	pending, err := func() ([]events.Event, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn()
	}()
	for _, ev := range pending {
		s.events.Emit(ctx, ev)
	}
	return err
}

// Board returns machines and active tickets read together under the lock.
func (s *Server) Board(ctx context.Context) (Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, tickets, err := s.load(ctx)
	if err != nil {
		return Board{}, err
	}
	return Board{
		ShiftID:  st.ShiftID,
		Version:  st.Version,
		Machines: st.Machines,
		Tickets:  repair.Active(tickets),
	}, nil
}

// History returns archived shifts, oldest first.
func (s *Server) History(ctx context.Context) ([]models.ShiftSnapshot, error) {
	return s.state.History(ctx)
}

// ResolvedTickets returns the resolved-ticket archive, oldest first.
func (s *Server) ResolvedTickets(ctx context.Context) ([]models.RepairTicket, error) {
	return s.state.ResolvedTickets(ctx)
}

func (s *Server) load(ctx context.Context) (models.ShiftState, []models.RepairTicket, error) {
	st, err := s.state.ShiftState(ctx)
	if err != nil {
		return models.ShiftState{}, nil, err
	}
	tickets, err := s.state.Tickets(ctx)
	if err != nil {
		return models.ShiftState{}, nil, err
	}
	return st, tickets, nil
}

func (s *Server) saveShift(ctx context.Context, st *models.ShiftState) error {
	if err := s.state.SaveShiftState(ctx, st); err != nil {
		if errors.Is(err, storage.ErrStaleWrite) {
			metrics.StaleWrites.Inc()
		}
		return fmt.Errorf("save shift state: %w", err)
	}
	return nil
}

func observeMachines(machines []models.Machine) {
	statuses := make([]string, len(machines))
	for i, m := range machines {
		statuses[i] = string(m.Status)
	}
	metrics.ObserveMachines(statuses)
}
