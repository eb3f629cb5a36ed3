package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/devghori1264/prodmon/internal/auth"
)

func TestRequireSessionAttachesIdentity(t *testing.T) {
	provider, err := auth.NewProvider(nil, "session-test", time.Hour, nil)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	want := auth.Identity{UserID: "u-7", Email: "eng@plant.io", Name: "Eng", Role: auth.RoleEngineering}
	token, _, err := provider.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	h := &Handler{Deps: Deps{Auth: provider, Logger: zaptest.NewLogger(t)}}
	var got auth.Identity
	var found bool
	protected := h.requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = IdentityFrom(r.Context())
	}))

	tests := []struct {
		name   string
		setup  func(*http.Request)
		wantID bool
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, true},
		{"session cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookie, Value: token}) }, true},
		{"no session", func(*http.Request) {}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found = auth.Identity{}, false
			req := httptest.NewRequest(http.MethodGet, "/engineering", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if found != tt.wantID {
				t.Fatalf("identity attached = %v, want %v", found, tt.wantID)
			}
			if tt.wantID && got != want {
				t.Fatalf("unexpected identity %+v", got)
			}
			if !tt.wantID && rec.Code != http.StatusSeeOther {
				t.Fatalf("expected redirect got %d", rec.Code)
			}
		})
	}

	if _, ok := IdentityFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()); ok {
		t.Fatalf("identity found on a bare request")
	}
}
