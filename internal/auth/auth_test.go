package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talentcontrolhr/talentcontrol/internal/session"
)

// --- mock lookup ---

type mockAccountLookup struct {
	accounts map[string]*Principal
}

func (m *mockAccountLookup) LookupAccount(ctx context.Context, id string) (*Principal, error) {
	p, ok := m.accounts[id]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return p, nil
}

type failingLookup struct{}

func (failingLookup) LookupAccount(context.Context, string) (*Principal, error) {
	return nil, errors.New("connection refused")
}

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager("auth-test-secret-auth-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return m
}

// --- Context helpers tests ---

func TestIdentityContext_RoundTrip(t *testing.T) {
	id := &Identity{AccountID: "a1", Role: "admin", CompanyID: "c1"}
	got := IdentityFromContext(ContextWithIdentity(context.Background(), id))
	if got == nil {
		t.Fatal("expected identity from context, got nil")
	}
	if got.AccountID != id.AccountID {
		t.Errorf("expected AccountID %q, got %q", id.AccountID, got.AccountID)
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("expected nil from empty context, got %+v", got)
	}
}

func TestIdentity_HasRole(t *testing.T) {
	id := &Identity{Role: "employee"}
	if !id.HasRole("admin", "employee") {
		t.Error("expected employee to match")
	}
	if id.HasRole("admin") {
		t.Error("expected employee not to match admin")
	}
}

// --- SessionMiddleware tests ---

func TestSessionMiddleware(t *testing.T) {
	mgr := newTestManager(t)
	cookie := session.NewCookie("authToken", false)

	token, _, err := mgr.Issue("acc-1", "employee", session.Extra{CompanyID: "co-1"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || id.AccountID != "acc-1" || id.CompanyID != "co-1" {
			t.Errorf("unexpected identity in handler: %+v", id)
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		cookieValue string
		authHeader  string
		wantStatus  int
		wantReason  string
	}{
		{name: "valid cookie", cookieValue: token, wantStatus: http.StatusOK},
		{name: "valid bearer", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "cookie wins over header", cookieValue: token, authHeader: "Bearer junk", wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized, wantReason: "missing"},
		{name: "malformed header", authHeader: "Token " + token, wantStatus: http.StatusUnauthorized, wantReason: "missing"},
		{name: "invalid token", cookieValue: "junk", wantStatus: http.StatusUnauthorized, wantReason: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: "authToken", Value: tt.cookieValue})
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			var reason string
			handler := SessionMiddleware(mgr, cookie, func(_ *http.Request, why string) { reason = why })(okHandler)
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if reason != tt.wantReason {
				t.Errorf("expected failure reason %q, got %q", tt.wantReason, reason)
			}
			if tt.wantStatus != http.StatusOK {
				assertJSONError(t, rr, "unauthorized")
			}
		})
	}
}

// --- RequireRole tests ---

func TestRequireRole(t *testing.T) {
	lookup := &mockAccountLookup{accounts: map[string]*Principal{
		"admin-1":    {ID: "admin-1", Role: "admin"},
		"employee-1": {ID: "employee-1", Role: "employee"},
		"demoted-1":  {ID: "demoted-1", Role: "employee"},
	}}

	var seen *Identity
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		identity   *Identity
		wantStatus int
		wantCode   string
	}{
		{name: "admin", identity: &Identity{AccountID: "admin-1", Role: "admin"}, wantStatus: http.StatusOK},
		{name: "employee", identity: &Identity{AccountID: "employee-1", Role: "employee"}, wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "stale admin claim", identity: &Identity{AccountID: "demoted-1", Role: "admin"}, wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "deleted account", identity: &Identity{AccountID: "gone", Role: "admin"}, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "no identity", wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.identity != nil {
				req = req.WithContext(ContextWithIdentity(req.Context(), tt.identity))
			}
			rr := httptest.NewRecorder()

			RequireRole(lookup, "admin")(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantCode != "" {
				assertJSONError(t, rr, tt.wantCode)
				return
			}
			if seen == nil || seen.Role != "admin" {
				t.Errorf("expected live admin identity in handler, got %+v", seen)
			}
		})
	}
}

func TestRequireRole_LookupFailure(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), &Identity{AccountID: "admin-1", Role: "admin"}))
	rr := httptest.NewRecorder()

	RequireRole(failingLookup{}, "admin")(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	assertJSONError(t, rr, "storage_unavailable")
	if called {
		t.Error("next handler must not run when the account cannot be loaded")
	}
}

// assertJSONError checks that the response body contains the expected error JSON structure.
func assertJSONError(t *testing.T, rr *httptest.ResponseRecorder, code string) {
	t.Helper()

	ct := rr.Header().Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if resp.Error.Code != code {
		t.Errorf("expected error code %q, got %q", code, resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("expected non-empty error message")
	}
}
