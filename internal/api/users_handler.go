package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
)

// usersHandler groups account management HTTP handlers.
type usersHandler struct {
	accounts *account.Service
	editor   *company.Editor
	access   access
}

func newUsersHandler(accounts *account.Service, editor *company.Editor, acc access) *usersHandler {
	return &usersHandler{accounts: accounts, editor: editor, access: acc}
}

// ListUsers handles GET /api/users.
func (h *usersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// Me handles GET /api/users/me.
func (h *usersHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := h.access.caller(w, r)
	if id == nil {
		return
	}
	a, err := h.accounts.Get(r.Context(), id.AccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetUser handles GET /api/users/{id}.
func (h *usersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateUser handles POST /api/users (admin).
func (h *usersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req account.CreateInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	a, err := h.accounts.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "create", "account", a.ID, "role", a.Role)
	writeJSON(w, http.StatusCreated, a)
}

// UpdateUser handles PUT /api/users/{id}. Owners may edit their profile;
// role and affiliation changes are reserved to admins.
func (h *usersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller, ok := h.access.adminOrSelf(w, r, id)
	if !ok {
		return
	}

	var input account.UpdateInput
	if err := readJSON(r, &input); err != nil {
		writeBadBody(w)
		return
	}

	privileged := input.Role != nil || input.CompanyID != nil || input.TeamID != nil
	if privileged && !caller.HasRole(account.RoleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden", "only admins can change roles or affiliations")
		return
	}

	a, err := h.accounts.Update(r.Context(), id, input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "update", "account", id)
	writeJSON(w, http.StatusOK, a)
}

// DeleteUser handles DELETE /api/users/{id} (admin). Memberships are purged
// after the account is gone; leftovers are repaired by reconciliation.
func (h *usersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	purged, err := h.editor.PurgeAccount(r.Context(), id)
	if err != nil {
		// The account is already deleted; reconciliation repairs what is left.
		auditLog(r, "delete", "account", id, "purge_error", err.Error())
	} else {
		auditLog(r, "delete", "account", id, "companies_purged", purged)
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword handles PATCH /api/users/{id}/reset-password.
func (h *usersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.access.adminOrSelf(w, r, id); !ok {
		return
	}

	var req struct {
		NewPassword string `json:"new_password"`
		Legacy      string `json:"newPassword"`
	}
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	password := req.NewPassword
	if password == "" {
		password = req.Legacy
	}

	if err := h.accounts.ResetPassword(r.Context(), id, password); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "reset_password", "account", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}
