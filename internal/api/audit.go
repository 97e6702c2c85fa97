package api

import (
	"log/slog"
	"net/http"

	"github.com/talentcontrolhr/talentcontrol/internal/auth"
	"github.com/talentcontrolhr/talentcontrol/internal/ratelimit"
)

// auditLog emits a structured audit log entry for a mutating action.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ratelimit.ClientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if id := auth.IdentityFromContext(r.Context()); id != nil {
		attrs = append(attrs, "account_id", id.AccountID, "account_role", id.Role)
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}
