// Package api is the HTTP surface of the dashboard: login, the three role
// dashboards and their actions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/devghori1264/prodmon/internal/auth"
	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/repair"
	"github.com/devghori1264/prodmon/internal/seed"
	"github.com/devghori1264/prodmon/internal/server"
	"github.com/devghori1264/prodmon/internal/shiftclock"
	"github.com/devghori1264/prodmon/internal/storage"
	"github.com/devghori1264/prodmon/internal/views"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Server      *server.Server
	Leader      *views.Leader
	Engineering *views.Engineering
	Auth        *auth.Provider
	Store       storage.Store
	Logger      *zap.Logger
	Now         func() time.Time
}

type Handler struct {
	Deps
}

// NewHTTPHandler builds the router with recovery, CORS and access logging.
func NewHTTPHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	h := &Handler{Deps: d}

	r := mux.NewRouter()
	handle(r, "/ping", h.handlePing).Methods(http.MethodGet)
	handle(r, "/login", h.handleLoginPage).Methods(http.MethodGet)
	handle(r, "/login", h.handleLogin).Methods(http.MethodPost)
	handle(r, "/logout", h.handleLogout).Methods(http.MethodPost)

	p := r.NewRoute().Subrouter()
	p.Use(h.requireSession)
	handle(p, "/admin", h.handleAdmin).Methods(http.MethodGet)
	handle(p, "/admin/faults", h.handleInjectFault).Methods(http.MethodPost)
	handle(p, "/admin/production", h.handleProduction).Methods(http.MethodGet)
	handle(p, "/leader", h.handleLeader).Methods(http.MethodGet)
	handle(p, "/leader/history", h.handleHistory).Methods(http.MethodGet)
	handle(p, "/leader/machines/{id:[0-9]+}/repair", h.handleRequestRepair).Methods(http.MethodPost)
	handle(p, "/engineering", h.handleEngineering).Methods(http.MethodGet)
	handle(p, "/engineering/resolved", h.handleResolved).Methods(http.MethodGet)
	handle(p, "/engineering/tickets/{id}/advance", h.handleAdvance).Methods(http.MethodPost)

	access := &zapio.Writer{Log: d.Logger.Named("http"), Level: zap.DebugLevel}
	var out http.Handler = handlers.CombinedLoggingHandler(access, r)
	out = handlers.RecoveryHandler(handlers.RecoveryLogger(zap.NewStdLog(d.Logger)), handlers.PrintRecoveryStack(true))(out)
	out = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)(out)
	return out
}

func (h *Handler) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "pong from prodmon http"})
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "POST email and password to /login",
		"roles":   []auth.Role{auth.RoleAdmin, auth.RoleLeader, auth.RoleEngineering},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	id, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var ae *auth.AuthError
		if errors.As(err, &ae) {
			h.Logger.Info("login rejected", zap.String("email", ae.Email), zap.String("reason", ae.Reason))
			writeError(w, http.StatusUnauthorized, ae.Error())
			return
		}
		h.Logger.Error("login", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	token, exp, err := h.Auth.Issue(id)
	if err != nil {
		h.Logger.Error("issue session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": exp,
		"user":      id,
		"redirect":  auth.HomePath(id.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/login"})
}

type adminSummary struct {
	ShiftID    string                       `json:"shiftId"`
	Remaining  string                       `json:"remaining"`
	Machines   int                          `json:"machines"`
	ByStatus   map[models.MachineStatus]int `json:"byStatus"`
	Open       int                          `json:"openTickets"`
	Production seed.Summary                 `json:"production"`
}

func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	board, err := h.Server.Board(ctx)
	if err != nil {
		h.internalError(w, "admin board", err)
		return
	}
	now := h.Now()
	recs, err := seed.Load(ctx, h.Store, now)
	if err != nil {
		h.internalError(w, "admin production", err)
		return
	}
	reading := shiftclock.At(now)
	sum := adminSummary{
		ShiftID:    reading.ShiftID,
		Remaining:  reading.RemainingString(),
		Machines:   len(board.Machines),
		ByStatus:   map[models.MachineStatus]int{},
		Open:       len(board.Tickets),
		Production: seed.Summarize(now.Format(time.DateOnly), recs),
	}
	for _, m := range board.Machines {
		sum.ByStatus[m.Status]++
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) handleProduction(w http.ResponseWriter, r *http.Request) {
	day := h.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	recs, err := seed.Load(r.Context(), h.Store, day)
	if err != nil {
		h.internalError(w, "production", err)
		return
	}
	if recs == nil {
		recs = []models.ProductionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MachineID int    `json:"machineId"`
		Problem   string `json:"problem"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	m, err := h.Server.InjectFailure(r.Context(), req.MachineID, req.Problem)
	if err != nil {
		h.domainError(w, err)
		return
	}
	if id, ok := IdentityFrom(r.Context()); ok {
		h.Logger.Info("fault injected", zap.Int("machine", m.ID), zap.String("problem", m.Problem),
			zap.String("by", id.Email), zap.String("role", string(id.Role)))
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleLeader(w http.ResponseWriter, r *http.Request) {
	snap := h.Leader.Snapshot()
	if snap.SyncedAt.IsZero() {
		if err := h.Leader.Sync(r.Context()); err != nil {
			h.internalError(w, "leader sync", err)
			return
		}
		snap = h.Leader.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Server.History(r.Context())
	if err != nil {
		h.internalError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleRequestRepair(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid machine id")
		return
	}
	ticket, err := h.Leader.RequestRepair(r.Context(), id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleEngineering(w http.ResponseWriter, r *http.Request) {
	snap := h.Engineering.Snapshot()
	if snap.SyncedAt.IsZero() {
		if err := h.Engineering.Sync(r.Context()); err != nil {
			h.internalError(w, "engineering sync", err)
			return
		}
		snap = h.Engineering.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleResolved(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Server.ResolvedTickets(r.Context())
	if err != nil {
		h.internalError(w, "resolved tickets", err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ticket, resolved, err := h.Engineering.Advance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket, "resolved": resolved})
}

// domainError maps pipeline and lookup errors to HTTP statuses.
func (h *Handler) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repair.ErrMachineNotFound), errors.Is(err, repair.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repair.ErrMachineNotDown), errors.Is(err, repair.ErrRepairPending),
		errors.Is(err, repair.ErrTicketResolved), errors.Is(err, server.ErrAlreadyDown):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "request", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
