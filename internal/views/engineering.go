package views

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/repair"
)

// TicketRow is one line of the engineering board.
type TicketRow struct {
	models.RepairTicket
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Next     string `json:"next"`
}

type EngineeringSnapshot struct {
	Tickets  []TicketRow `json:"tickets"`
	SyncedAt time.Time   `json:"syncedAt"`
}

// Engineering is the maintenance team's view of active tickets.
type Engineering struct {
	coord    Coordinator
	log      *zap.Logger
	now      func() time.Time
	interval time.Duration
	loops    loops

	mu   sync.RWMutex
	snap EngineeringSnapshot
}

func NewEngineering(coord Coordinator, syncInterval time.Duration, log *zap.Logger, now func() time.Time) *Engineering {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if syncInterval <= 0 {
		syncInterval = 2 * time.Second
	}
	e := &Engineering{coord: coord, log: log, now: now, interval: syncInterval}
	e.loops.log = log
	return e
}

func (e *Engineering) Start(ctx context.Context) {
	e.loops.start(ctx, map[string]periodic{
		"engineering.sync": {e.interval, e.Sync},
	})
}

func (e *Engineering) Stop() { e.loops.stop() }

func (e *Engineering) Snapshot() EngineeringSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.snap
	s.Tickets = append([]TicketRow(nil), s.Tickets...)
	return s
}

// Sync reloads the active tickets, oldest first.
func (e *Engineering) Sync(ctx context.Context) error {
	board, err := e.coord.Board(ctx)
	if err != nil {
		return err
	}
	active := repair.Active(board.Tickets)
	rows := make([]TicketRow, 0, len(active))
	for _, t := range active {
		rows = append(rows, TicketRow{
			RepairTicket: t,
			Stage:        t.PipelineStage.String(),
			Progress:     repair.Progress(t),
			Next:         repair.NextStage(t),
		})
	}

	e.mu.Lock()
	e.snap = EngineeringSnapshot{Tickets: rows, SyncedAt: e.now()}
	e.mu.Unlock()
	return nil
}

// Advance moves ticketID one stage and refreshes the snapshot.
func (e *Engineering) Advance(ctx context.Context, ticketID string) (models.RepairTicket, bool, error) {
	t, resolved, err := e.coord.AdvanceTicket(ctx, ticketID)
	if err != nil {
		return models.RepairTicket{}, false, err
	}
	if err := e.Sync(ctx); err != nil {
		e.log.Warn("refresh after advance", zap.Error(err))
	}
	return t, resolved, nil
}
