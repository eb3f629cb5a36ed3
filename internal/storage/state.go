package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/models"
)

// ErrStaleWrite is returned when a shift_state write is based on an older version than the stored one.
var ErrStaleWrite = errors.New("stale shift state write")

// ReadError reports a stored value that could not be decoded.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// GetJSON decodes the value at key into out. A missing key yields ErrNotFound,
// an undecodable one a *ReadError.
func GetJSON(ctx context.Context, st Store, key string, out any) error {
	b, err := st.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &ReadError{Key: key, Err: err}
	}
	return nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, st Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return st.Put(ctx, key, b)
}

// State gives typed access to the shared keys. Missing or malformed values
// are replaced by empty defaults; only backend failures are returned.
type State struct {
	store Store
	log   *zap.Logger
}

func NewState(store Store, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	return &State{store: store, log: log}
}

// Store returns the underlying key/value store.
func (s *State) Store() Store { return s.store }

// loadValue decodes key into a fresh T; missing or unreadable values yield the zero T.
func loadValue[T any](ctx context.Context, s *State, key string) (T, error) {
	var v T
	err := GetJSON(ctx, s.store, key, &v)
	var re *ReadError
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, ErrNotFound):
		var zero T
		return zero, nil
	case errors.As(err, &re):
		s.log.Warn("discarding unreadable value", zap.String("key", key), zap.Error(err))
		var zero T
		return zero, nil
	default:
		var zero T
		return zero, fmt.Errorf("load %s: %w", key, err)
	}
}

func (s *State) ShiftState(ctx context.Context) (models.ShiftState, error) {
	st, err := loadValue[models.ShiftState](ctx, s, KeyShiftState)
	if err != nil {
		return models.ShiftState{}, err
	}
	if st.Machines == nil {
		st.Machines = []models.Machine{}
	}
	return st, nil
}

// SaveShiftState writes st if no newer version is stored, and advances st.Version.
func (s *State) SaveShiftState(ctx context.Context, st *models.ShiftState) error {
	var written int64
	err := s.store.Update(ctx, KeyShiftState, func(current []byte) ([]byte, error) {
		var stored models.ShiftState
		if len(current) > 0 {
			if err := json.Unmarshal(current, &stored); err != nil {
				stored = models.ShiftState{}
			}
		}
		if stored.Version > st.Version {
			return nil, ErrStaleWrite
		}
		next := *st
		next.Version = max(stored.Version, st.Version) + 1
		if next.Machines == nil {
			next.Machines = []models.Machine{}
		}
		written = next.Version
		return json.Marshal(next)
	})
	if err != nil {
		return err
	}
	st.Version = written
	return nil
}

func (s *State) Tickets(ctx context.Context) ([]models.RepairTicket, error) {
	return loadList[models.RepairTicket](ctx, s, KeyRepairTickets)
}

func (s *State) SaveTickets(ctx context.Context, tickets []models.RepairTicket) error {
	if tickets == nil {
		tickets = []models.RepairTicket{}
	}
	return PutJSON(ctx, s.store, KeyRepairTickets, tickets)
}

func (s *State) History(ctx context.Context) ([]models.ShiftSnapshot, error) {
	return loadList[models.ShiftSnapshot](ctx, s, KeyShiftHistory)
}

// AppendHistory archives snap, keeping at most limit snapshots (oldest dropped).
func (s *State) AppendHistory(ctx context.Context, snap models.ShiftSnapshot, limit int) error {
	history, err := s.History(ctx)
	if err != nil {
		return err
	}
	return PutJSON(ctx, s.store, KeyShiftHistory, appendCapped(history, snap, limit))
}

func (s *State) ResolvedTickets(ctx context.Context) ([]models.RepairTicket, error) {
	return loadList[models.RepairTicket](ctx, s, KeyResolvedTickets)
}

// ArchiveTicket appends a resolved ticket to the capped archive.
func (s *State) ArchiveTicket(ctx context.Context, t models.RepairTicket, limit int) error {
	archive, err := s.ResolvedTickets(ctx)
	if err != nil {
		return err
	}
	return PutJSON(ctx, s.store, KeyResolvedTickets, appendCapped(archive, t, limit))
}

func loadList[T any](ctx context.Context, s *State, key string) ([]T, error) {
	out, err := loadValue[[]T](ctx, s, key)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func appendCapped[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}
