package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/talentcontrolhr/talentcontrol/internal/session"
)

// Identity is the authenticated caller as asserted by a verified session
// token. Role is refreshed from the live account by RequireRole.
type Identity struct {
	AccountID string
	Role      string
	CompanyID string
}

// HasRole reports whether the identity holds one of roles.
func (id *Identity) HasRole(roles ...string) bool {
	return slices.Contains(roles, id.Role)
}

// Principal is the live view of an account used for authorization.
type Principal struct {
	ID        string
	Username  string
	Role      string
	CompanyID string
}

// TokenVerifier validates a session token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// ErrUnknownAccount is returned by an AccountLookup when the account no longer
// exists. Any other lookup error means the store could not answer.
var ErrUnknownAccount = errors.New("account not found")

// AccountLookup resolves an account id to its live principal.
type AccountLookup interface {
	LookupAccount(ctx context.Context, id string) (*Principal, error)
}

// IdentityFromClaims converts verified token claims into an Identity.
func IdentityFromClaims(c *session.Claims) *Identity {
	return &Identity{
		AccountID: c.AccountID,
		Role:      c.Role,
		CompanyID: c.CompanyID,
	}
}
