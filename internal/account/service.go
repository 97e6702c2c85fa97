package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Errors returned by the credential store.
var (
	ErrMissingFields     = errors.New("missing required fields")
	ErrDuplicateIdentity = errors.New("the username or email already exists")
	ErrWeakPassword      = errors.New("weak password")
	ErrNotFound          = errors.New("account not found")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrInvalidRole       = errors.New("role must be one of: admin, employee, user")
)

// Service implements registration, authentication and password management on
// top of a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
	cost   int

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service. A non-positive cost selects DefaultCost.
func NewService(repo Repository, logger *slog.Logger, cost int) *Service {
	if cost <= 0 {
		cost = DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, cost: cost}
}

// Register validates a self-registration and persists the account with the
// default role. It returns the new account id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	a, err := s.create(ctx, in, DefaultRole)
	if err != nil {
		return "", err
	}
	s.logger.Info("account registered", "account_id", a.ID)
	return a.ID, nil
}

// Create persists an account on behalf of an administrator, who may choose the
// role. An empty role selects the default role.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = DefaultRole
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}
	a, err := s.create(ctx, in.RegisterInput, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", a.ID, "role", a.Role)
	return a, nil
}

func (s *Service) create(ctx context.Context, in RegisterInput, role string) (*Account, error) {
	in = normalizeRegister(in)
	if in.Username == "" || in.Name == "" || in.Surnames == "" || in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	taken, err := s.repo.IdentityTaken(ctx, in.Username, in.Email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateIdentity
	}

	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}

	a := &Account{
		Username:     in.Username,
		Name:         in.Name,
		Surnames:     in.Surnames,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Authenticate resolves identifier as a username or an email and verifies the
// password. An unknown identifier and a wrong password are indistinguishable
// to the caller: both return ErrInvalidCredential.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrMissingFields
	}

	a, err := s.repo.FindByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		// Spend the same bcrypt work as a real comparison.
		s.compareDummy(password)
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}

	if !CheckPassword(a, password) {
		return nil, ErrInvalidCredential
	}
	return a, nil
}

func (s *Service) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := HashPassword("dummy-password-for-timing", s.cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash == "" {
		return
	}
	_ = CheckPassword(&Account{PasswordHash: s.dummyHash}, password)
}

// ResetPassword replaces the digest of the account with id.
func (s *Service) ResetPassword(ctx context.Context, id, newPassword string) error {
	if err := ValidateResetPassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword, s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPasswordHash(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info("password reset", "account_id", id)
	return nil
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all accounts, newest first.
func (s *Service) List(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

// ListByIDs returns the accounts whose ids are given. Unknown ids are skipped.
func (s *Service) ListByIDs(ctx context.Context, ids []string) ([]*Account, error) {
	if len(ids) == 0 {
		return []*Account{}, nil
	}
	return s.repo.ListByIDs(ctx, ids)
}

// Exists reports whether an account with id exists.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update applies a partial update after validating the provided fields and
// re-checking identity uniqueness.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Account, error) {
	in = normalizeUpdate(in)
	for _, f := range []*string{in.Username, in.Name, in.Surnames, in.Email} {
		if f != nil && *f == "" {
			return nil, ErrMissingFields
		}
	}
	if in.Role != nil && !ValidRole(*in.Role) {
		return nil, ErrInvalidRole
	}

	if in.Username != nil || in.Email != nil {
		var username, email string
		if in.Username != nil {
			username = *in.Username
		}
		if in.Email != nil {
			email = *in.Email
		}
		taken, err := s.repo.IdentityTaken(ctx, username, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicateIdentity
		}
	}

	if in.Empty() {
		return s.repo.GetByID(ctx, id)
	}

	a, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account updated", "account_id", id)
	return a, nil
}

// Delete removes the account with id. Memberships that reference the account
// are not touched here; see company.Editor.PurgeAccount.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	s.logger.Info("account deleted", "account_id", id)
	return nil
}

func normalizeRegister(in RegisterInput) RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Surnames = strings.TrimSpace(in.Surnames)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

func normalizeUpdate(in UpdateInput) UpdateInput {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	in.Username = trim(in.Username)
	in.Name = trim(in.Name)
	in.Surnames = trim(in.Surnames)
	in.Email = trim(in.Email)
	if in.Email != nil {
		v := strings.ToLower(*in.Email)
		in.Email = &v
	}
	in.Role = trim(in.Role)
	in.CompanyID = trim(in.CompanyID)
	in.TeamID = trim(in.TeamID)
	return in
}
