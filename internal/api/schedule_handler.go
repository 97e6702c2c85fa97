package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/auth"
	"github.com/talentcontrolhr/talentcontrol/internal/schedule"
)

// scheduleHandler groups shift and vacation HTTP handlers. Employees act on
// their own records; company managers act on everyone in their company.
type scheduleHandler struct {
	schedule *schedule.Service
	access   access
}

func newScheduleHandler(svc *schedule.Service, acc access) *scheduleHandler {
	return &scheduleHandler{schedule: svc, access: acc}
}

// ownerOrManager admits the owner of a record and managers of its company.
func (h *scheduleHandler) ownerOrManager(w http.ResponseWriter, r *http.Request, companyID, ownerID string) (*auth.Identity, bool) {
	id := h.access.caller(w, r)
	if id == nil {
		return nil, false
	}
	if id.AccountID == ownerID || id.HasRole(account.RoleAdmin) {
		return id, true
	}
	return h.access.manager(w, r, companyID)
}

// ListShifts handles GET /api/shifts?company_id=&account_id=.
func (h *scheduleHandler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shifts, err := h.schedule.ListShifts(r.Context(), schedule.ShiftFilter{
		CompanyID: q.Get("company_id"),
		AccountID: q.Get("account_id"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"shifts": shifts})
}

// GetShift handles GET /api/shifts/{id}.
func (h *scheduleHandler) GetShift(w http.ResponseWriter, r *http.Request) {
	sh, err := h.schedule.GetShift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// CreateShift handles POST /api/shifts. account_id defaults to the caller.
func (h *scheduleHandler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req schedule.ShiftInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	caller := auth.IdentityFromContext(r.Context())
	if req.AccountID == "" && caller != nil {
		req.AccountID = caller.AccountID
	}
	if _, ok := h.ownerOrManager(w, r, req.CompanyID, req.AccountID); !ok {
		return
	}

	sh, err := h.schedule.CreateShift(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "create", "shift", sh.ID, "company_id", sh.CompanyID, "owner_id", sh.AccountID)
	writeJSON(w, http.StatusCreated, sh)
}

// UpdateShift handles PUT /api/shifts/{id}.
func (h *scheduleHandler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.schedule.GetShift(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if _, ok := h.ownerOrManager(w, r, existing.CompanyID, existing.AccountID); !ok {
		return
	}

	var req schedule.ShiftUpdate
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	sh, err := h.schedule.UpdateShift(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "update", "shift", id)
	writeJSON(w, http.StatusOK, sh)
}

// DeleteShift handles DELETE /api/shifts/{id}.
func (h *scheduleHandler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.schedule.GetShift(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if _, ok := h.ownerOrManager(w, r, existing.CompanyID, existing.AccountID); !ok {
		return
	}

	if err := h.schedule.DeleteShift(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "delete", "shift", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListVacations handles GET /api/vacations?company_id=&account_id=&status=.
func (h *scheduleHandler) ListVacations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vacations, err := h.schedule.ListVacations(r.Context(), schedule.VacationFilter{
		CompanyID: q.Get("company_id"),
		AccountID: q.Get("account_id"),
		Status:    q.Get("status"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vacations": vacations})
}

// RequestVacation handles POST /api/vacations. account_id defaults to the caller.
func (h *scheduleHandler) RequestVacation(w http.ResponseWriter, r *http.Request) {
	var req schedule.VacationInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	caller := auth.IdentityFromContext(r.Context())
	if req.AccountID == "" && caller != nil {
		req.AccountID = caller.AccountID
	}
	if _, ok := h.ownerOrManager(w, r, req.CompanyID, req.AccountID); !ok {
		return
	}

	v, err := h.schedule.RequestVacation(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "request", "vacation", v.ID, "company_id", v.CompanyID, "owner_id", v.AccountID)
	writeJSON(w, http.StatusCreated, v)
}

// UpdateVacationStatus handles PATCH /api/vacations/{id}/status. Only company
// managers decide, including on their own requests.
func (h *scheduleHandler) UpdateVacationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.schedule.GetVacation(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if _, ok := h.access.manager(w, r, existing.CompanyID); !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	v, err := h.schedule.UpdateVacationStatus(r.Context(), id, req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	auditLog(r, "update_status", "vacation", id, "status", v.Status)
	writeJSON(w, http.StatusOK, v)
}
