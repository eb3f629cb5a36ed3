package views

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/repair"
	"github.com/devghori1264/prodmon/internal/shiftclock"
)

const recentLogSize = 5

// Stats are the quick counters above the machine grid.
type Stats struct {
	Total    int `json:"total"`
	Achieved int `json:"achieved"`
	Down     int `json:"down"`
	Pending  int `json:"pending"`
}

// LeaderSnapshot is everything the Leader dashboard renders.
type LeaderSnapshot struct {
	ShiftID   string `json:"shiftId"`
	Remaining string `json:"remaining"`

	Machines []models.Machine `json:"machines"`
	Stats    Stats            `json:"stats"`

	Efficiency         int  `json:"efficiency"`
	PreviousEfficiency int  `json:"previousEfficiency"`
	HasPrevious        bool `json:"hasPrevious"`

	// RecentLog holds the newest pending tickets, newest first.
	RecentLog []models.RepairTicket `json:"recentLog"`
	SyncedAt  time.Time             `json:"syncedAt"`
}

// Intervals of the periodic tasks. Zero values select the defaults.
type Intervals struct {
	Tick  time.Duration
	Sync  time.Duration
	Clock time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Tick <= 0 {
		iv.Tick = time.Second
	}
	if iv.Sync <= 0 {
		iv.Sync = 2 * time.Second
	}
	if iv.Clock <= 0 {
		iv.Clock = time.Second
	}
	return iv
}

// Leader is the production leader's view. It drives the simulation tick,
// polls the store and may request repairs.
type Leader struct {
	coord     Coordinator
	log       *zap.Logger
	now       func() time.Time
	intervals Intervals
	loops     loops

	mu   sync.RWMutex
	snap LeaderSnapshot
}

func NewLeader(coord Coordinator, iv Intervals, log *zap.Logger, now func() time.Time) *Leader {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	l := &Leader{coord: coord, log: log, now: now, intervals: iv.withDefaults()}
	l.loops.log = log
	return l
}

// Start launches the tick, sync and clock loops. It is a no-op if already running.
func (l *Leader) Start(ctx context.Context) {
	l.loops.start(ctx, map[string]periodic{
		"leader.tick": {l.intervals.Tick, func(ctx context.Context) error {
			return l.coord.Tick(ctx, l.now())
		}},
		"leader.sync":  {l.intervals.Sync, l.Sync},
		"leader.clock": {l.intervals.Clock, l.updateClock},
	})
}

// Stop halts all loops and waits for them to return.
func (l *Leader) Stop() { l.loops.stop() }

// Snapshot returns a copy of the latest view state.
func (l *Leader) Snapshot() LeaderSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.snap
	s.Machines = append([]models.Machine(nil), s.Machines...)
	s.RecentLog = append([]models.RepairTicket(nil), s.RecentLog...)
	return s
}

// Sync rebuilds the snapshot from the store.
func (l *Leader) Sync(ctx context.Context) error {
	board, err := l.coord.Board(ctx)
	if err != nil {
		return err
	}
	history, err := l.coord.History(ctx)
	if err != nil {
		return err
	}

	now := l.now()
	reading := shiftclock.At(now)
	pending := repair.Pending(board.Tickets)

	next := LeaderSnapshot{
		ShiftID:    board.ShiftID,
		Remaining:  reading.RemainingString(),
		Machines:   board.Machines,
		Stats:      stats(board.Machines, len(pending)),
		Efficiency: models.AverageEfficiency(board.Machines),
		RecentLog:  recent(pending, recentLogSize),
		SyncedAt:   now,
	}
	if next.ShiftID == "" {
		next.ShiftID = reading.ShiftID
	}
	if n := len(history); n > 0 {
		next.PreviousEfficiency = models.AverageEfficiency(history[n-1].Machines)
		next.HasPrevious = true
	}

	l.mu.Lock()
	l.snap = next
	l.mu.Unlock()
	return nil
}

// RequestRepair opens a ticket for machineID and refreshes the snapshot.
func (l *Leader) RequestRepair(ctx context.Context, machineID int) (models.RepairTicket, error) {
	t, err := l.coord.RequestRepair(ctx, machineID)
	if err != nil {
		return models.RepairTicket{}, err
	}
	if err := l.Sync(ctx); err != nil {
		l.log.Warn("refresh after repair request", zap.Error(err))
	}
	return t, nil
}

func (l *Leader) updateClock(context.Context) error {
	r := shiftclock.At(l.now())
	l.mu.Lock()
	l.snap.Remaining = r.RemainingString()
	if l.snap.ShiftID == "" {
		l.snap.ShiftID = r.ShiftID
	}
	l.mu.Unlock()
	return nil
}

func stats(machines []models.Machine, pending int) Stats {
	s := Stats{Total: len(machines), Pending: pending}
	for _, m := range machines {
		switch m.Status {
		case models.StatusAchieved:
			s.Achieved++
		case models.StatusDown:
			s.Down++
		}
	}
	return s
}

// recent returns up to n tickets, newest first.
func recent(tickets []models.RepairTicket, n int) []models.RepairTicket {
	out := append([]models.RepairTicket(nil), tickets...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
