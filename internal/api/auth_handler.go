package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/auth"
	"github.com/talentcontrolhr/talentcontrol/internal/session"
)

// AuthRecorder is an optional interface for counting authentication outcomes.
type AuthRecorder interface {
	IncAuthSuccess(authType string)
	IncAuthFailure(authType string)
}

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	accounts *account.Service
	sessions *session.Manager
	cookie   session.Cookie
	metrics  AuthRecorder
}

func newAuthHandler(accounts *account.Service, sessions *session.Manager, cookie session.Cookie, metrics AuthRecorder) *authHandler {
	return &authHandler{accounts: accounts, sessions: sessions, cookie: cookie, metrics: metrics}
}

func (h *authHandler) record(success bool) {
	if h.metrics == nil {
		return
	}
	if success {
		h.metrics.IncAuthSuccess("login")
	} else {
		h.metrics.IncAuthFailure("login")
	}
}

// Register handles POST /api/auth/register.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	id, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "register", "account", id)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "account registered",
		"user_id": id,
	})
}

// loginRequest accepts the identifier under any of the names clients send.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (req loginRequest) identifier() string {
	for _, v := range []string{req.Identifier, req.Username, req.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Login handles POST /api/auth/login. The session token travels only in the
// HttpOnly cookie.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	a, err := h.accounts.Authenticate(r.Context(), req.identifier(), req.Password)
	if err != nil {
		h.record(false)
		writeDomainError(w, r, err)
		return
	}

	var extra session.Extra
	if a.CompanyID != nil {
		extra.CompanyID = *a.CompanyID
	}
	token, expiresAt, err := h.sessions.Issue(a.ID, a.Role, extra)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.record(true)
	h.cookie.Set(w, token, expiresAt)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "login successful",
		"user":       a,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookie.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "session closed"})
}

// Verify handles GET /api/auth/verify. The claims only identify the caller;
// the returned account is read live.
func (h *authHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	a, err := h.accounts.Get(r.Context(), id.AccountID)
	if errors.Is(err, account.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer exists")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"claims": map[string]string{
			"account_id": id.AccountID,
			"role":       id.Role,
			"company_id": id.CompanyID,
		},
		"user": a,
	})
}
