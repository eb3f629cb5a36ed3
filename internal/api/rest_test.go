package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/devghori1264/prodmon/internal/auth"
	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/seed"
	"github.com/devghori1264/prodmon/internal/server"
	"github.com/devghori1264/prodmon/internal/simulator"
	"github.com/devghori1264/prodmon/internal/storage"
	"github.com/devghori1264/prodmon/internal/views"
)

// stillRand never produces and never fails.
type stillRand struct{}

func (stillRand) Float64() float64 { return 0.99 }
func (stillRand) IntN(n int) int   { return 0 }

var clock = time.Date(2026, 10, 17, 9, 1, 0, 0, time.UTC)

type env struct {
	h     http.Handler
	srv   *server.Server
	token string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := storage.NewInMemoryBadgerStore()
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := zaptest.NewLogger(t)
	now := func() time.Time { return clock }
	srv := server.New(storage.NewState(store, log), simulator.New(simulator.DefaultConfig(), stillRand{}), server.Options{Logger: log, Now: now})
	if err := srv.Tick(context.Background(), clock); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := seed.Run(context.Background(), store, clock, 1, rand.New(rand.NewPCG(1, 1)), log); err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider, err := auth.NewProvider(store, "api-test", time.Hour, log)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if _, err := provider.Register(context.Background(), "leader@plant.io", "pw", auth.RoleLeader, "Leader"); err != nil {
		t.Fatalf("register: %v", err)
	}

	e := &env{srv: srv}
	e.h = NewHTTPHandler(Deps{
		Server:      srv,
		Leader:      views.NewLeader(srv, views.Intervals{}, log, now),
		Engineering: views.NewEngineering(srv, 0, log, now),
		Auth:        provider,
		Store:       store,
		Logger:      log,
		Now:         now,
	})
	return e
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/login", map[string]string{"email": "leader@plant.io", "password": "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token    string `json:"token"`
		Redirect string `json:"redirect"`
	}
	decode(t, rec, &out)
	if out.Redirect != "/leader" || out.Token == "" {
		t.Fatalf("unexpected login reply %+v", out)
	}
	e.token = out.Token
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/ping", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ping: %d", rec.Code)
	}
}

func TestProtectedRoutesRedirect(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/admin", "/leader", "/engineering"} {
		rec := e.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Fatalf("%s: expected redirect to /login got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
	e.token = "garbage"
	if rec := e.do(t, http.MethodGet, "/leader", nil); rec.Code != http.StatusSeeOther {
		t.Fatalf("bad token admitted: %d", rec.Code)
	}
}

func TestLoginRejected(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/login", map[string]string{"email": "leader@plant.io", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	var out map[string]string
	decode(t, rec, &out)
	if out["error"] != "invalid credentials" {
		t.Fatalf("unexpected error body %v", out)
	}
}

func TestAnySessionOpensEveryDashboard(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	for _, path := range []string{"/admin", "/leader", "/engineering", "/leader/history", "/admin/production"} {
		if rec := e.do(t, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRepairFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	if rec := e.do(t, http.MethodPost, "/leader/machines/2/repair", nil); rec.Code != http.StatusConflict {
		t.Fatalf("repair on running machine: expected 409 got %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/leader/machines/77/repair", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("repair on unknown machine: expected 404 got %d", rec.Code)
	}

	rec := e.do(t, http.MethodPost, "/admin/faults", map[string]any{"machineId": 2, "problem": "PLC controller fault."})
	if rec.Code != http.StatusOK {
		t.Fatalf("inject: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/leader/machines/2/repair", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("request: %d %s", rec.Code, rec.Body.String())
	}
	var ticket models.RepairTicket
	decode(t, rec, &ticket)

	var leader views.LeaderSnapshot
	decode(t, e.do(t, http.MethodGet, "/leader", nil), &leader)
	if leader.Stats.Pending != 1 || len(leader.RecentLog) != 1 || leader.RecentLog[0].ID != ticket.ID {
		t.Fatalf("leader view not refreshed: %+v", leader.Stats)
	}

	for i := 0; i < 3; i++ {
		rec = e.do(t, http.MethodPost, "/engineering/tickets/"+ticket.ID+"/advance", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("advance %d: %d %s", i, rec.Code, rec.Body.String())
		}
	}
	var eng views.EngineeringSnapshot
	decode(t, e.do(t, http.MethodGet, "/engineering", nil), &eng)
	if len(eng.Tickets) != 0 {
		t.Fatalf("resolved ticket still on engineering board")
	}
	if rec := e.do(t, http.MethodPost, "/engineering/tickets/"+ticket.ID+"/advance", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("advance resolved: expected 404 got %d", rec.Code)
	}

	var resolved []models.RepairTicket
	decode(t, e.do(t, http.MethodGet, "/engineering/resolved", nil), &resolved)
	if len(resolved) != 1 || resolved[0].ID != ticket.ID {
		t.Fatalf("resolved archive: %+v", resolved)
	}

	b, _ := e.srv.Board(context.Background())
	if b.Machines[1].Status != models.StatusRunning {
		t.Fatalf("machine not back to Running: %+v", b.Machines[1])
	}
}
