package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/notewriter/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withAuth(userID string, roles []string) func(*http.Request) {
	return func(req *http.Request) {
		ctx := req.Context()
		ctx = context.WithValue(ctx, auth.UserIDKey, userID)
		ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
		*req = *req.WithContext(ctx)
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_SessionMutation(t *testing.T) {
	id := uuid.NewString()
	c, _ := newTestContext(http.MethodPost, "/api/v1/sessions/"+id+"/mutations", withAuth("u-7", []string{"scribe"}))
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("request_id", "req-1")

	rec := &mockRecorder{}
	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	got := rec.last()
	if got.Action != "update" || got.SessionID != id || got.UserID != "u-7" || got.RequestID != "req-1" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", got.StatusCode)
	}
}

func TestAudit_SkipsOtherPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, p := range []string{"/health", "/api/v1/templates/ros", "/api/v1/ws"} {
		c, _ := newTestContext(http.MethodGet, p)
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatal(err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecordsHandlerErrorStatus(t *testing.T) {
	c, _ := newTestContext(http.MethodDelete, "/api/v1/sessions/x")
	rec := &mockRecorder{}
	handler := func(echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "session not found") }

	err := Audit(zerolog.Nop(), rec)(handler)(c)
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if got := rec.last(); got.StatusCode != http.StatusNotFound || got.Action != "delete" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestAudit_RecorderFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newTestContext(http.MethodGet, "/api/v1/sessions")
	rec := &mockRecorder{err: errors.New("disk full")}

	if err := Audit(zerolog.New(&buf), rec)(okHandler)(c); err != nil {
		t.Fatalf("recorder failure must not fail the request: %v", err)
	}
	if !strings.Contains(buf.String(), "failed to record audit entry") {
		t.Errorf("expected recorder failure in log, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"type":"session_audit"`) {
		t.Errorf("expected audit line in log, got %s", buf.String())
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/sessions", "read"},
		{http.MethodPost, "/api/v1/sessions", "create"},
		{http.MethodPost, "/api/v1/sessions/1/mutations", "update"},
		{http.MethodDelete, "/api/v1/sessions/1", "delete"},
		{http.MethodPatch, "/api/v1/sessions/1", "update"},
	}
	for _, tt := range tests {
		if got := actionFor(tt.method, tt.path); got != tt.want {
			t.Errorf("actionFor(%s, %s) = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error { got = e; return nil })
	f.RecordAccess(AuditEntry{UserID: "x"})
	if got.UserID != "x" {
		t.Errorf("expected adapter to forward entry, got %+v", got)
	}
}
