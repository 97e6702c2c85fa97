package account

import (
	"context"
	"time"
)

// Roles an account can hold. The set is closed.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleUser     = "user"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = RoleEmployee

// ValidRole reports whether role is one of the closed set of account roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEmployee, RoleUser:
		return true
	}
	return false
}

// Account is an identity record with credentials and a role.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Surnames     string    `json:"surnames"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CompanyID    *string   `json:"company_id,omitempty"`
	TeamID       *string   `json:"team_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterInput holds the fields of a self-registration.
type RegisterInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Surnames string `json:"surnames"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateInput holds the fields of an administrator-created account.
type CreateInput struct {
	RegisterInput
	Role string `json:"role"`
}

// UpdateInput holds optional fields for a partial account update. An empty
// CompanyID or TeamID clears the affiliation.
type UpdateInput struct {
	Username  *string `json:"username,omitempty"`
	Name      *string `json:"name,omitempty"`
	Surnames  *string `json:"surnames,omitempty"`
	Email     *string `json:"email,omitempty"`
	Role      *string `json:"role,omitempty"`
	CompanyID *string `json:"company_id,omitempty"`
	TeamID    *string `json:"team_id,omitempty"`
}

// Empty reports whether the update carries no fields.
func (in UpdateInput) Empty() bool {
	return in.Username == nil && in.Name == nil && in.Surnames == nil && in.Email == nil &&
		in.Role == nil && in.CompanyID == nil && in.TeamID == nil
}

// Repository is the persistence port of the credential store. Implementations
// return ErrNotFound for ids that do not resolve and ErrDuplicateIdentity when
// a unique index on username or email rejects a write.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	IdentityTaken(ctx context.Context, username, email, excludeID string) (bool, error)
	List(ctx context.Context) ([]*Account, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Account, error)
	Update(ctx context.Context, id string, in UpdateInput) (*Account, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}
