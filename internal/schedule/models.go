// Package schedule stores work shifts and vacation requests for company
// members.
package schedule

import (
	"context"
	"errors"
	"time"
)

// Vacation request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether status is a known vacation status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrNotFound      = errors.New("not found")
	ErrInvalidRange  = errors.New("start must be before end")
	ErrInvalidStatus = errors.New("status must be one of: pending, approved, rejected")
)

// Shift is a block of scheduled work for one account.
type Shift struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	AccountID string    `json:"account_id"`
	TeamID    *string   `json:"team_id,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShiftInput holds the fields of a new shift.
type ShiftInput struct {
	CompanyID string    `json:"company_id"`
	AccountID string    `json:"account_id"`
	TeamID    *string   `json:"team_id,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Notes     string    `json:"notes"`
}

// ShiftUpdate holds optional fields for a partial shift update. An empty
// TeamID detaches the shift from its team.
type ShiftUpdate struct {
	TeamID   *string    `json:"team_id,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

// ShiftFilter narrows ListShifts. Zero fields match everything.
type ShiftFilter struct {
	CompanyID string
	AccountID string
}

// Vacation is a request for time off.
type Vacation struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	AccountID string    `json:"account_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VacationInput holds the fields of a vacation request.
type VacationInput struct {
	CompanyID string    `json:"company_id"`
	AccountID string    `json:"account_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// VacationFilter narrows ListVacations. Zero fields match everything.
type VacationFilter struct {
	CompanyID string
	AccountID string
	Status    string
}

// Membership confirms that an account belongs to a company. It returns the
// company package's not-found errors when the company or the membership is
// missing.
type Membership interface {
	RequireMember(ctx context.Context, companyID, accountID string) error
}

// Repository is the persistence port for shifts and vacations.
type Repository interface {
	CreateShift(ctx context.Context, s *Shift) error
	GetShift(ctx context.Context, id string) (*Shift, error)
	ListShifts(ctx context.Context, f ShiftFilter) ([]*Shift, error)
	UpdateShift(ctx context.Context, s *Shift) error
	DeleteShift(ctx context.Context, id string) error

	CreateVacation(ctx context.Context, v *Vacation) error
	GetVacation(ctx context.Context, id string) (*Vacation, error)
	ListVacations(ctx context.Context, f VacationFilter) ([]*Vacation, error)
	SetVacationStatus(ctx context.Context, id, status string) (*Vacation, error)
}
