package company

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/ids"
)

// Accounts is the view of the credential store the editor needs.
type Accounts interface {
	Exists(ctx context.Context, id string) (bool, error)
	ListByIDs(ctx context.Context, ids []string) ([]*account.Account, error)
}

// MutationRecorder is an optional interface for counting graph mutations.
type MutationRecorder interface {
	IncMembershipMutation(op, result string)
}

// Editor applies membership changes to companies while keeping the graph
// invariants: one entry per account in a company, one per account in a team,
// and team members drawn from company members.
type Editor struct {
	repo     Repository
	accounts Accounts
	logger   *slog.Logger
	metrics  MutationRecorder
	newID    func() string
}

// NewEditor creates an Editor. metrics may be nil.
func NewEditor(repo Repository, accounts Accounts, logger *slog.Logger, metrics MutationRecorder) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		repo:     repo,
		accounts: accounts,
		logger:   logger,
		metrics:  metrics,
		newID:    ids.New,
	}
}

func (e *Editor) record(op string, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncMembershipMutation(op, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTeamNotFound),
		errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidRoles):
		return "invalid"
	default:
		return "error"
	}
}

// CreateCompany persists a new company with no teams or members.
func (e *Editor) CreateCompany(ctx context.Context, in CreateInput) (*Company, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	c := &Company{
		Name:        name,
		Description: in.Description,
		Industry:    in.Industry,
		Image:       in.Image,
		Teams:       []Team{},
		Users:       []Member{},
	}
	if err := e.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	e.logger.Info("company created", "company_id", c.ID)
	return c, nil
}

// GetCompany returns the company with id.
func (e *Editor) GetCompany(ctx context.Context, id string) (*Company, error) {
	return e.repo.Get(ctx, id)
}

// ListCompanies returns all companies.
func (e *Editor) ListCompanies(ctx context.Context) ([]*Company, error) {
	return e.repo.List(ctx)
}

// UpdateCompany applies a partial update to the company's own fields.
func (e *Editor) UpdateCompany(ctx context.Context, id string, in UpdateInput) (*Company, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		in.Name = &name
	}
	c, err := e.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	e.logger.Info("company updated", "company_id", id)
	return c, nil
}

// DeleteCompany removes the company together with its teams and memberships.
func (e *Editor) DeleteCompany(ctx context.Context, id string) error {
	if err := e.repo.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("company deleted", "company_id", id)
	return nil
}

// AddCompanyMember adds an existing account to the company. Roles default to
// the employee role.
func (e *Editor) AddCompanyMember(ctx context.Context, companyID, accountID string, roles []string) (err error) {
	defer func() { e.record("add_member", err) }()

	roles, err = NormalizeRoles(roles)
	if err != nil {
		return err
	}
	if _, err := e.repo.Get(ctx, companyID); err != nil {
		return err
	}
	ok, err := e.accounts.Exists(ctx, accountID)
	if err != nil {
		return fmt.Errorf("checking account %s: %w", accountID, err)
	}
	if !ok {
		return ErrAccountNotFound
	}

	if err := e.repo.AddMember(ctx, companyID, Member{AccountID: accountID, Roles: roles}); err != nil {
		return err
	}
	e.logger.Info("member added", "company_id", companyID, "account_id", accountID, "roles", roles)
	return nil
}

// RemoveCompanyMember removes the account from the company and every team.
func (e *Editor) RemoveCompanyMember(ctx context.Context, companyID, accountID string) (err error) {
	defer func() { e.record("remove_member", err) }()

	if err := e.repo.RemoveMember(ctx, companyID, accountID); err != nil {
		return err
	}
	e.logger.Info("member removed", "company_id", companyID, "account_id", accountID)
	return nil
}

// UpdateMemberRoles replaces the roles of an existing member.
func (e *Editor) UpdateMemberRoles(ctx context.Context, companyID, accountID string, roles []string) (err error) {
	defer func() { e.record("set_roles", err) }()

	roles, err = NormalizeRoles(roles)
	if err != nil {
		return err
	}
	if err := e.repo.SetMemberRoles(ctx, companyID, accountID, roles); err != nil {
		return err
	}
	e.logger.Info("member roles updated", "company_id", companyID, "account_id", accountID, "roles", roles)
	return nil
}

// ListTeams returns the teams of a company.
func (e *Editor) ListTeams(ctx context.Context, companyID string) ([]Team, error) {
	c, err := e.repo.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return c.Teams, nil
}

// GetTeam returns one team of a company.
func (e *Editor) GetTeam(ctx context.Context, companyID, teamID string) (*Team, error) {
	c, err := e.repo.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	t, ok := c.Team(teamID)
	if !ok {
		return nil, ErrTeamNotFound
	}
	return &t, nil
}

// AddTeam creates a team with a fresh id.
func (e *Editor) AddTeam(ctx context.Context, companyID string, in TeamInput) (_ *Team, err error) {
	defer func() { e.record("add_team", err) }()

	t := NewTeam(e.newID(), in)
	if err := e.repo.AddTeam(ctx, companyID, t); err != nil {
		return nil, err
	}
	e.logger.Info("team added", "company_id", companyID, "team_id", t.ID)
	return &t, nil
}

// UpdateTeam changes the provided fields of a team; omitted fields keep their
// current values.
func (e *Editor) UpdateTeam(ctx context.Context, companyID, teamID string, in TeamInput) (_ *Team, err error) {
	defer func() { e.record("update_team", err) }()

	t, err := e.repo.UpdateTeam(ctx, companyID, teamID, in)
	if err != nil {
		return nil, err
	}
	e.logger.Info("team updated", "company_id", companyID, "team_id", teamID)
	return t, nil
}

// RemoveTeam deletes a team. Its members stay in the company.
func (e *Editor) RemoveTeam(ctx context.Context, companyID, teamID string) (err error) {
	defer func() { e.record("remove_team", err) }()

	if err := e.repo.RemoveTeam(ctx, companyID, teamID); err != nil {
		return err
	}
	e.logger.Info("team removed", "company_id", companyID, "team_id", teamID)
	return nil
}

// AddTeamMember puts a company member into a team.
func (e *Editor) AddTeamMember(ctx context.Context, companyID, teamID, accountID string) (err error) {
	defer func() { e.record("add_team_member", err) }()

	if err := e.repo.AddTeamMember(ctx, companyID, teamID, accountID); err != nil {
		return err
	}
	e.logger.Info("team member added", "company_id", companyID, "team_id", teamID, "account_id", accountID)
	return nil
}

// RemoveTeamMember takes an account out of a team.
func (e *Editor) RemoveTeamMember(ctx context.Context, companyID, teamID, accountID string) (err error) {
	defer func() { e.record("remove_team_member", err) }()

	if err := e.repo.RemoveTeamMember(ctx, companyID, teamID, accountID); err != nil {
		return err
	}
	e.logger.Info("team member removed", "company_id", companyID, "team_id", teamID, "account_id", accountID)
	return nil
}

// TeamMembers returns the account records of a team's members.
func (e *Editor) TeamMembers(ctx context.Context, companyID, teamID string) ([]*account.Account, error) {
	t, err := e.GetTeam(ctx, companyID, teamID)
	if err != nil {
		return nil, err
	}
	return e.accounts.ListByIDs(ctx, t.Users)
}

// CompanyMembers returns the account records of a company's members with
// their company roles. Members whose account is gone are skipped.
func (e *Editor) CompanyMembers(ctx context.Context, companyID string) ([]MemberView, error) {
	c, err := e.repo.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	memberIDs := make([]string, len(c.Users))
	for i, m := range c.Users {
		memberIDs[i] = m.AccountID
	}
	accounts, err := e.accounts.ListByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*account.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	views := make([]MemberView, 0, len(c.Users))
	for _, m := range c.Users {
		a, ok := byID[m.AccountID]
		if !ok {
			continue
		}
		views = append(views, MemberView{
			ID:       a.ID,
			Username: a.Username,
			Name:     a.Name,
			Surnames: a.Surnames,
			Email:    a.Email,
			Role:     a.Role,
			Roles:    m.Roles,
		})
	}
	return views, nil
}

// IsManager reports whether accountID may manage the company's membership:
// a member holding the manager or admin company role.
func (e *Editor) IsManager(ctx context.Context, companyID, accountID string) (bool, error) {
	c, err := e.repo.Get(ctx, companyID)
	if err != nil {
		return false, err
	}
	m, ok := c.Member(accountID)
	if !ok {
		return false, nil
	}
	return m.HasRole(RoleManager) || m.HasRole(RoleAdmin), nil
}

// RequireMember returns ErrNotFound when the company does not exist and
// ErrMemberNotFound when accountID is not one of its members.
func (e *Editor) RequireMember(ctx context.Context, companyID, accountID string) error {
	c, err := e.repo.Get(ctx, companyID)
	if err != nil {
		return err
	}
	if _, ok := c.Member(accountID); !ok {
		return ErrMemberNotFound
	}
	return nil
}

// PurgeAccount removes every reference to a deleted account and returns the
// number of companies changed.
func (e *Editor) PurgeAccount(ctx context.Context, accountID string) (_ int, err error) {
	defer func() { e.record("purge_account", err) }()

	companyIDs, err := e.repo.CompaniesWithAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range companyIDs {
		var purged bool
		err := e.repo.Apply(ctx, id, func(c *Company) (bool, error) {
			purged = PurgeAccount(c, accountID)
			return purged, nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return changed, err
		}
		if err == nil && purged {
			changed++
		}
	}
	if changed > 0 {
		e.logger.Info("account purged from companies", "account_id", accountID, "companies", changed)
	}
	return changed, nil
}

// Reconcile repairs dangling references in every company: members whose
// account no longer exists and team entries that are not company members.
func (e *Editor) Reconcile(ctx context.Context) (_ *ReconcileReport, err error) {
	defer func() { e.record("reconcile", err) }()

	companies, err := e.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	var lookupErr error
	exists := func(id string) bool {
		if v, ok := known[id]; ok {
			return v
		}
		ok, err := e.accounts.Exists(ctx, id)
		if err != nil {
			// Keep the reference when existence is unknown.
			lookupErr = err
			return true
		}
		known[id] = ok
		return ok
	}

	report := &ReconcileReport{Companies: len(companies)}
	for _, listed := range companies {
		var members, teamRefs int
		err := e.repo.Apply(ctx, listed.ID, func(c *Company) (bool, error) {
			members, teamRefs = Reconcile(c, exists)
			return members+teamRefs > 0, nil
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("reconciling company %s: %w", listed.ID, err)
		}
		if members+teamRefs > 0 {
			report.Changed++
			report.RemovedMembers += members
			report.RemovedTeamRefs += teamRefs
			e.logger.Info("company reconciled", "company_id", listed.ID,
				"removed_members", members, "removed_team_refs", teamRefs)
		}
	}
	if lookupErr != nil {
		return report, fmt.Errorf("checking accounts: %w", lookupErr)
	}
	return report, nil
}
