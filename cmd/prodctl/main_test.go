package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func run(t *testing.T, srvURL string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--http", srvURL, "--token", "tok"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGetCommandPrettyPrints(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leader" || r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"error":"unexpected"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"shiftId":"Shift 2"}`))
	}))
	defer ts.Close()

	out, err := run(t, ts.URL, "leader")
	if err != nil {
		t.Fatalf("leader: %v", err)
	}
	if !strings.Contains(out, "\"shiftId\": \"Shift 2\"") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRedirectMeansLoggedOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}))
	defer ts.Close()

	if _, err := run(t, ts.URL, "engineering"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected not logged in error, got %v", err)
	}
}

func TestRequestCommand(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"machine is not down"}`))
	}))
	defer ts.Close()

	_, err := run(t, ts.URL, "request", "3")
	if gotPath != "POST /leader/machines/3/repair" {
		t.Fatalf("unexpected request %q", gotPath)
	}
	if err == nil || !strings.Contains(err.Error(), "machine is not down") {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if _, err := run(t, ts.URL, "request", "abc"); err == nil {
		t.Fatalf("non-numeric machine id accepted")
	}
}
