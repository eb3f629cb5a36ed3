package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/auth"
)

const sessionCookie = "prodmon_session"

type ctxKey struct{}

// IdentityFrom returns the session identity attached by requireSession.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(auth.Identity)
	return id, ok
}

// requireSession admits any valid session and redirects everyone else to /login.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		id, err := h.Auth.Verify(token)
		if err != nil {
			h.Logger.Debug("session rejected", zap.String("path", r.URL.Path), zap.Error(err))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
