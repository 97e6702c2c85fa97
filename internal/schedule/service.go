package schedule

import (
	"context"
	"log/slog"
	"strings"
)

// Service validates and persists shifts and vacation requests.
type Service struct {
	repo    Repository
	members Membership
	logger  *slog.Logger
}

// NewService creates a Service. Shifts and vacations can only be filed for
// accounts that members reports as belonging to the company.
func NewService(repo Repository, members Membership, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, members: members, logger: logger}
}

// CreateShift validates in and stores a new shift.
func (s *Service) CreateShift(ctx context.Context, in ShiftInput) (*Shift, error) {
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.AccountID = strings.TrimSpace(in.AccountID)
	if in.CompanyID == "" || in.AccountID == "" || in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		return nil, ErrMissingFields
	}
	if !in.StartsAt.Before(in.EndsAt) {
		return nil, ErrInvalidRange
	}
	if err := s.members.RequireMember(ctx, in.CompanyID, in.AccountID); err != nil {
		return nil, err
	}

	sh := &Shift{
		CompanyID: in.CompanyID,
		AccountID: in.AccountID,
		TeamID:    nonEmpty(in.TeamID),
		StartsAt:  in.StartsAt.UTC(),
		EndsAt:    in.EndsAt.UTC(),
		Notes:     in.Notes,
	}
	if err := s.repo.CreateShift(ctx, sh); err != nil {
		return nil, err
	}
	s.logger.Info("shift created", "shift_id", sh.ID, "company_id", sh.CompanyID, "account_id", sh.AccountID)
	return sh, nil
}

// GetShift returns the shift with id.
func (s *Service) GetShift(ctx context.Context, id string) (*Shift, error) {
	return s.repo.GetShift(ctx, id)
}

// ListShifts returns shifts matching f ordered by start time.
func (s *Service) ListShifts(ctx context.Context, f ShiftFilter) ([]*Shift, error) {
	return s.repo.ListShifts(ctx, f)
}

// UpdateShift applies a partial update and re-validates the time range.
func (s *Service) UpdateShift(ctx context.Context, id string, in ShiftUpdate) (*Shift, error) {
	sh, err := s.repo.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.TeamID != nil {
		sh.TeamID = nonEmpty(in.TeamID)
	}
	if in.StartsAt != nil {
		sh.StartsAt = in.StartsAt.UTC()
	}
	if in.EndsAt != nil {
		sh.EndsAt = in.EndsAt.UTC()
	}
	if in.Notes != nil {
		sh.Notes = *in.Notes
	}
	if !sh.StartsAt.Before(sh.EndsAt) {
		return nil, ErrInvalidRange
	}
	if err := s.repo.UpdateShift(ctx, sh); err != nil {
		return nil, err
	}
	s.logger.Info("shift updated", "shift_id", id)
	return sh, nil
}

// DeleteShift removes the shift with id.
func (s *Service) DeleteShift(ctx context.Context, id string) error {
	if err := s.repo.DeleteShift(ctx, id); err != nil {
		return err
	}
	s.logger.Info("shift deleted", "shift_id", id)
	return nil
}

// RequestVacation stores a pending vacation request.
func (s *Service) RequestVacation(ctx context.Context, in VacationInput) (*Vacation, error) {
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.AccountID = strings.TrimSpace(in.AccountID)
	if in.CompanyID == "" || in.AccountID == "" || in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, ErrMissingFields
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, ErrInvalidRange
	}
	if err := s.members.RequireMember(ctx, in.CompanyID, in.AccountID); err != nil {
		return nil, err
	}

	v := &Vacation{
		CompanyID: in.CompanyID,
		AccountID: in.AccountID,
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		Reason:    strings.TrimSpace(in.Reason),
		Status:    StatusPending,
	}
	if err := s.repo.CreateVacation(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info("vacation requested", "vacation_id", v.ID, "company_id", v.CompanyID, "account_id", v.AccountID)
	return v, nil
}

// GetVacation returns the vacation request with id.
func (s *Service) GetVacation(ctx context.Context, id string) (*Vacation, error) {
	return s.repo.GetVacation(ctx, id)
}

// ListVacations returns vacation requests matching f, newest first.
func (s *Service) ListVacations(ctx context.Context, f VacationFilter) ([]*Vacation, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListVacations(ctx, f)
}

// UpdateVacationStatus moves a request to status.
func (s *Service) UpdateVacationStatus(ctx context.Context, id, status string) (*Vacation, error) {
	status = strings.TrimSpace(status)
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	v, err := s.repo.SetVacationStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vacation status updated", "vacation_id", id, "status", status)
	return v, nil
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
