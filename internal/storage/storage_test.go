package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/devghori1264/prodmon/internal/models"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewInMemoryBadgerStore()
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerGetPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badger")
	store, err := NewBadgerStore(path)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if err := store.Put(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("unexpected value %s", got)
	}
}

func TestBadgerUpdate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
		if cur != nil {
			t.Fatalf("expected nil current value, got %s", cur)
		}
		return []byte("1"), nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	boom := errors.New("boom")
	err = store.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
		if string(cur) != "1" {
			t.Fatalf("expected 1 got %s", cur)
		}
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}
	got, _ := store.Get(ctx, "counter")
	if string(got) != "1" {
		t.Fatalf("failed update must not write, got %s", got)
	}
}

func TestStateDefaultsWhenMissing(t *testing.T) {
	st := NewState(openTestStore(t), zaptest.NewLogger(t))
	ctx := context.Background()

	shift, err := st.ShiftState(ctx)
	if err != nil {
		t.Fatalf("shift state: %v", err)
	}
	if shift.ShiftID != "" || len(shift.Machines) != 0 || shift.Machines == nil {
		t.Fatalf("expected empty default, got %+v", shift)
	}
	tickets, err := st.Tickets(ctx)
	if err != nil || tickets == nil || len(tickets) != 0 {
		t.Fatalf("expected empty ticket list, got %v %v", tickets, err)
	}
}

func TestStateRecoversMalformedJSON(t *testing.T) {
	store := openTestStore(t)
	st := NewState(store, zaptest.NewLogger(t))
	ctx := context.Background()

	_ = store.Put(ctx, KeyShiftState, []byte(`{"shiftId": "Shift 1", "machines": [{`))
	_ = store.Put(ctx, KeyRepairTickets, []byte(`not json`))

	shift, err := st.ShiftState(ctx)
	if err != nil {
		t.Fatalf("shift state: %v", err)
	}
	if shift.ShiftID != "" || len(shift.Machines) != 0 {
		t.Fatalf("expected empty default, got %+v", shift)
	}
	tickets, err := st.Tickets(ctx)
	if err != nil || len(tickets) != 0 {
		t.Fatalf("expected empty tickets, got %v %v", tickets, err)
	}

	var out []int
	var re *ReadError
	if err := GetJSON(ctx, store, KeyRepairTickets, &out); !errors.As(err, &re) {
		t.Fatalf("expected ReadError got %v", err)
	}
}

func TestSaveShiftStateRejectsStaleWrites(t *testing.T) {
	st := NewState(openTestStore(t), zaptest.NewLogger(t))
	ctx := context.Background()

	a := models.ShiftState{ShiftID: "Shift 1"}
	if err := st.SaveShiftState(ctx, &a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("expected version 1 got %d", a.Version)
	}
	b, _ := st.ShiftState(ctx)
	if err := st.SaveShiftState(ctx, &b); err != nil {
		t.Fatalf("save b: %v", err)
	}

	// a was read before b's write landed
	a.ShiftID = "Shift 2"
	a.Version = 1
	if err := st.SaveShiftState(ctx, &a); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("expected ErrStaleWrite got %v", err)
	}
	cur, _ := st.ShiftState(ctx)
	if cur.ShiftID != "Shift 1" || cur.Version != 2 {
		t.Fatalf("stale write leaked: %+v", cur)
	}
}

func TestHistoryIsCapped(t *testing.T) {
	st := NewState(openTestStore(t), zaptest.NewLogger(t))
	ctx := context.Background()
	for _, id := range []string{"Shift 1", "Shift 2", "Shift 3", "Shift 1"} {
		if err := st.AppendHistory(ctx, models.ShiftSnapshot{ShiftID: id}, 3); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	h, _ := st.History(ctx)
	if len(h) != 3 || h[0].ShiftID != "Shift 2" || h[2].ShiftID != "Shift 1" {
		t.Fatalf("unexpected history %+v", h)
	}
}
