// Package views implements the Leader and Engineering dashboards: periodic
// polling of the shared store into an in-memory snapshot, and the user
// actions each role can take.
package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/metrics"
	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/server"
)

// Coordinator is the part of the server the views drive.
type Coordinator interface {
	Tick(ctx context.Context, now time.Time) error
	Board(ctx context.Context) (server.Board, error)
	History(ctx context.Context) ([]models.ShiftSnapshot, error)
	RequestRepair(ctx context.Context, machineID int) (models.RepairTicket, error)
	AdvanceTicket(ctx context.Context, ticketID string) (models.RepairTicket, bool, error)
}

// loops runs named periodic tasks until stopped.
type loops struct {
	log    *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func (l *loops) start(ctx context.Context, tasks map[string]periodic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	for name, p := range tasks {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.every(ctx, name, p)
		}()
	}
}

func (l *loops) stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
}

type periodic struct {
	interval time.Duration
	run      func(ctx context.Context) error
}

func (l *loops) every(ctx context.Context, name string, p periodic) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := safeRun(ctx, p.run); err != nil {
				metrics.TickErrors.WithLabelValues(name).Inc()
				l.log.Warn("periodic task skipped", zap.String("task", name), zap.Error(err))
			}
		}
	}
}

// safeRun turns a panic in fn into an error.
func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
