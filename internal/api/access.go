package api

import (
	"errors"
	"net/http"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/auth"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
)

// access answers authorization questions that depend on the resource, such as
// "admin or self" and "company manager". Roles are always read live.
type access struct {
	lookup auth.AccountLookup
	editor *company.Editor
}

// caller returns the live identity of the session owner. It writes the error
// response and returns nil when there is none or the lookup fails.
func (a access) caller(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return nil
	}
	p, err := a.lookup.LookupAccount(r.Context(), id.AccountID)
	switch {
	case errors.Is(err, auth.ErrUnknownAccount), err == nil && p == nil:
		writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer exists")
		return nil
	case err != nil:
		writeDomainError(w, r, err)
		return nil
	}
	return &auth.Identity{AccountID: p.ID, Role: p.Role, CompanyID: p.CompanyID}
}

// adminOrSelf admits global admins and the owner of accountID.
func (a access) adminOrSelf(w http.ResponseWriter, r *http.Request, accountID string) (*auth.Identity, bool) {
	id := a.caller(w, r)
	if id == nil {
		return nil, false
	}
	if id.HasRole(account.RoleAdmin) || id.AccountID == accountID {
		return id, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
	return nil, false
}

// manager admits global admins and members holding a manager company role.
// A missing company is reported as not found before any role check.
func (a access) manager(w http.ResponseWriter, r *http.Request, companyID string) (*auth.Identity, bool) {
	id := a.caller(w, r)
	if id == nil {
		return nil, false
	}
	ok, err := a.editor.IsManager(r.Context(), companyID, id.AccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	if ok || id.HasRole(account.RoleAdmin) {
		return id, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "company manager role required")
	return nil, false
}
