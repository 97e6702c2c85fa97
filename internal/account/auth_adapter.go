package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/talentcontrolhr/talentcontrol/internal/auth"
)

// AuthAdapter adapts a Repository to the auth.AccountLookup interface.
type AuthAdapter struct {
	repo Repository
}

// NewAuthAdapter creates a new AuthAdapter wrapping the given repository.
func NewAuthAdapter(repo Repository) *AuthAdapter {
	return &AuthAdapter{repo: repo}
}

// LookupAccount returns the live principal for id. A missing account is
// reported as auth.ErrUnknownAccount wrapping ErrNotFound.
func (a *AuthAdapter) LookupAccount(ctx context.Context, id string) (*auth.Principal, error) {
	acc, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", auth.ErrUnknownAccount, err)
	}
	if err != nil {
		return nil, err
	}
	p := &auth.Principal{
		ID:       acc.ID,
		Username: acc.Username,
		Role:     acc.Role,
	}
	if acc.CompanyID != nil {
		p.CompanyID = *acc.CompanyID
	}
	return p, nil
}
