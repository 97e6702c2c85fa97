package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
	"github.com/talentcontrolhr/talentcontrol/internal/schedule"
	"github.com/talentcontrolhr/talentcontrol/internal/session"
	"github.com/talentcontrolhr/talentcontrol/internal/storage"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// errorMapping pairs domain sentinels with the response they produce.
type errorMapping struct {
	targets []error
	status  int
	code    string
}

var errorTable = []errorMapping{
	{[]error{account.ErrMissingFields, company.ErrNameRequired, schedule.ErrMissingFields}, http.StatusBadRequest, "missing_fields"},
	{[]error{account.ErrWeakPassword}, http.StatusBadRequest, "weak_password"},
	{[]error{account.ErrDuplicateIdentity, company.ErrDuplicateName}, http.StatusConflict, "duplicate"},
	{[]error{
		account.ErrNotFound, company.ErrNotFound, company.ErrTeamNotFound,
		company.ErrMemberNotFound, company.ErrAccountNotFound, schedule.ErrNotFound,
	}, http.StatusNotFound, "not_found"},
	{[]error{account.ErrInvalidCredential}, http.StatusUnauthorized, "invalid_credentials"},
	{[]error{session.ErrInvalidOrExpiredToken}, http.StatusUnauthorized, "unauthorized"},
	{[]error{company.ErrAlreadyMember}, http.StatusConflict, "already_member"},
	{[]error{company.ErrConflict}, http.StatusConflict, "conflict"},
	{[]error{
		account.ErrInvalidRole, company.ErrInvalidRoles,
		schedule.ErrInvalidRange, schedule.ErrInvalidStatus,
	}, http.StatusUnprocessableEntity, "validation_error"},
	{[]error{storage.ErrUnavailable}, http.StatusServiceUnavailable, "storage_unavailable"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, m := range errorTable {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				return m.status, m.code
			}
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeDomainError translates err into the error envelope. Unclassified and
// storage failures are logged; their messages are not echoed to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		msg = http.StatusText(status)
	}
	writeError(w, status, code, msg)
}

// writeBadBody reports an unparseable request body.
func writeBadBody(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
}
