package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentcontrolhr/talentcontrol/internal/company"
)

// companiesHandler groups company, membership and team HTTP handlers.
type companiesHandler struct {
	editor *company.Editor
	access access
}

func newCompaniesHandler(editor *company.Editor, acc access) *companiesHandler {
	return &companiesHandler{editor: editor, access: acc}
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

// ListCompanies handles GET /api/companies.
func (h *companiesHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.editor.ListCompanies(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"companies": companies})
}

// GetCompany handles GET /api/companies/{id}.
func (h *companiesHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.editor.GetCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCompany handles POST /api/companies (admin).
func (h *companiesHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req company.CreateInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	c, err := h.editor.CreateCompany(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "create", "company", c.ID, "name", c.Name)
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCompany handles PUT /api/companies/{id} (manager).
func (h *companiesHandler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.access.manager(w, r, id); !ok {
		return
	}

	var req company.UpdateInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	c, err := h.editor.UpdateCompany(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "update", "company", id)
	writeJSON(w, http.StatusOK, c)
}

// DeleteCompany handles DELETE /api/companies/{id} (admin).
func (h *companiesHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.editor.DeleteCompany(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	auditLog(r, "delete", "company", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/companies/{id}/users.
func (h *companiesHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.editor.CompanyMembers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": members})
}

// AddMember handles PATCH /api/companies/{id}/users/{userId} (manager).
// The body is optional; roles default to employee.
func (h *companiesHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	companyID, accountID := chi.URLParam(r, "id"), chi.URLParam(r, "userId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	var req rolesRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadBody(w)
		return
	}

	if err := h.editor.AddCompanyMember(r.Context(), companyID, accountID, req.Roles); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "add_member", "company", companyID, "member_id", accountID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "member added"})
}

// UpdateMemberRoles handles PUT /api/companies/{id}/users/{userId}/roles (manager).
func (h *companiesHandler) UpdateMemberRoles(w http.ResponseWriter, r *http.Request) {
	companyID, accountID := chi.URLParam(r, "id"), chi.URLParam(r, "userId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	var req rolesRequest
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	if err := h.editor.UpdateMemberRoles(r.Context(), companyID, accountID, req.Roles); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "update_roles", "company", companyID, "member_id", accountID, "roles", req.Roles)
	writeJSON(w, http.StatusOK, map[string]string{"message": "roles updated"})
}

// RemoveMember handles DELETE /api/companies/{id}/users/{userId} (manager).
func (h *companiesHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	companyID, accountID := chi.URLParam(r, "id"), chi.URLParam(r, "userId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	if err := h.editor.RemoveCompanyMember(r.Context(), companyID, accountID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "remove_member", "company", companyID, "member_id", accountID)
	w.WriteHeader(http.StatusNoContent)
}

// ListTeams handles GET /api/companies/{id}/teams.
func (h *companiesHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.editor.ListTeams(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// GetTeam handles GET /api/companies/{id}/teams/{teamId}.
func (h *companiesHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.editor.GetTeam(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "teamId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AddTeam handles POST /api/companies/{id}/teams (manager).
func (h *companiesHandler) AddTeam(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "id")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	var req company.TeamInput
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadBody(w)
		return
	}

	t, err := h.editor.AddTeam(r.Context(), companyID, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "add_team", "company", companyID, "team_id", t.ID)
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTeam handles PUT /api/companies/{id}/teams/{teamId} (manager).
func (h *companiesHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	companyID, teamID := chi.URLParam(r, "id"), chi.URLParam(r, "teamId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	var req company.TeamInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	t, err := h.editor.UpdateTeam(r.Context(), companyID, teamID, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "update_team", "company", companyID, "team_id", teamID)
	writeJSON(w, http.StatusOK, t)
}

// RemoveTeam handles DELETE /api/companies/{id}/teams/{teamId} (manager).
func (h *companiesHandler) RemoveTeam(w http.ResponseWriter, r *http.Request) {
	companyID, teamID := chi.URLParam(r, "id"), chi.URLParam(r, "teamId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	if err := h.editor.RemoveTeam(r.Context(), companyID, teamID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "remove_team", "company", companyID, "team_id", teamID)
	w.WriteHeader(http.StatusNoContent)
}

// ListTeamMembers handles GET /api/companies/{id}/teams/{teamId}/users.
func (h *companiesHandler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	users, err := h.editor.TeamMembers(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "teamId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// AddTeamMember handles PATCH /api/companies/{id}/teams/{teamId}/users/{userId} (manager).
func (h *companiesHandler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	companyID, teamID, accountID := chi.URLParam(r, "id"), chi.URLParam(r, "teamId"), chi.URLParam(r, "userId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	if err := h.editor.AddTeamMember(r.Context(), companyID, teamID, accountID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "add_team_member", "company", companyID, "team_id", teamID, "member_id", accountID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "team member added"})
}

// RemoveTeamMember handles DELETE /api/companies/{id}/teams/{teamId}/users/{userId} (manager).
func (h *companiesHandler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	companyID, teamID, accountID := chi.URLParam(r, "id"), chi.URLParam(r, "teamId"), chi.URLParam(r, "userId")
	if _, ok := h.access.manager(w, r, companyID); !ok {
		return
	}

	if err := h.editor.RemoveTeamMember(r.Context(), companyID, teamID, accountID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "remove_team_member", "company", companyID, "team_id", teamID, "member_id", accountID)
	w.WriteHeader(http.StatusNoContent)
}
