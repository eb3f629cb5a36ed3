package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an atomic update keeps losing to concurrent writers.
	ErrConflict = errors.New("update conflict")
)

// Keys shared between the simulator, the views and the repair pipeline.
const (
	KeyShiftState      = "shift_state"
	KeyRepairTickets   = "repair_tickets"
	KeyShiftHistory    = "shift_history"
	KeyResolvedTickets = "repair_tickets_resolved"
)

// UpdateFunc receives the current value (nil when absent) and returns the value to store.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the shared key/value surface (kept minimal, allows swapping implementations).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Update runs fn and writes its result atomically with respect to other writers of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

const maxUpdateAttempts = 5
