// Package company maintains companies and the membership graph inside each of
// them: which accounts belong to a company, with which roles, and how those
// members are grouped into teams.
package company

import (
	"context"
	"errors"
	"time"
)

// Defaults applied when a field is omitted.
const (
	DefaultMemberRole = "employee"
	DefaultTeamName   = "Unnamed Team"
	DefaultTeamColor  = "#6b7280"
)

// Member roles that grant management rights over a company.
const (
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

var (
	ErrNotFound        = errors.New("company not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrAlreadyMember   = errors.New("account is already a member")
	ErrDuplicateName   = errors.New("a company with this name already exists")
	ErrNameRequired    = errors.New("company name is required")
	ErrInvalidRoles    = errors.New("roles must be non-empty strings")
	ErrConflict        = errors.New("company was modified concurrently")
)

// Member is an account's membership in a company.
type Member struct {
	AccountID string   `json:"account_id"`
	Roles     []string `json:"roles"`
}

// HasRole reports whether the member holds role.
func (m Member) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Team is a named group of company members.
type Team struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Users       []string `json:"users"`
}

// Company is the aggregate that owns its teams and members.
type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Industry    string    `json:"industry"`
	Image       string    `json:"image"`
	Teams       []Team    `json:"teams"`
	Users       []Member  `json:"users"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInput holds the fields of a new company.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	Image       string `json:"image"`
}

// UpdateInput holds optional fields for a partial company update.
type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Industry    *string `json:"industry,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// TeamInput holds optional team fields. On creation omitted fields take their
// defaults; on update they are left unchanged.
type TeamInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// MemberView is an account record enriched with its company roles.
type MemberView struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Surnames string   `json:"surnames"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Roles    []string `json:"roles"`
}

// ReconcileReport counts the repairs made by a reconciliation pass.
type ReconcileReport struct {
	Companies       int `json:"companies"`
	Changed         int `json:"changed"`
	RemovedMembers  int `json:"removed_members"`
	RemovedTeamRefs int `json:"removed_team_refs"`
}

// Repository is the persistence port of the membership graph. Every graph
// method is atomic with respect to concurrent writers of the same company and
// returns the same errors as the corresponding pure operation in graph.go.
type Repository interface {
	Create(ctx context.Context, c *Company) error
	Get(ctx context.Context, id string) (*Company, error)
	List(ctx context.Context) ([]*Company, error)
	Update(ctx context.Context, id string, in UpdateInput) (*Company, error)
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, companyID string, m Member) error
	RemoveMember(ctx context.Context, companyID, accountID string) error
	SetMemberRoles(ctx context.Context, companyID, accountID string, roles []string) error
	AddTeam(ctx context.Context, companyID string, t Team) error
	UpdateTeam(ctx context.Context, companyID, teamID string, in TeamInput) (*Team, error)
	RemoveTeam(ctx context.Context, companyID, teamID string) error
	AddTeamMember(ctx context.Context, companyID, teamID, accountID string) error
	RemoveTeamMember(ctx context.Context, companyID, teamID, accountID string) error

	// CompaniesWithAccount returns the ids of companies that reference
	// accountID as a member or inside a team.
	CompaniesWithAccount(ctx context.Context, accountID string) ([]string, error)
	// Apply runs fn on the current state of the company and persists the
	// result if fn reports a change, atomically with respect to other writers.
	Apply(ctx context.Context, id string, fn func(*Company) (bool, error)) error
}
