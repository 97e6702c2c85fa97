package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Repository held in process memory. It backs the "memory"
// database driver and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		now:      time.Now,
	}
}

func cloneAccount(a *Account) *Account {
	c := *a
	if a.CompanyID != nil {
		v := *a.CompanyID
		c.CompanyID = &v
	}
	if a.TeamID != nil {
		v := *a.TeamID
		c.TeamID = &v
	}
	return &c
}

// takenLocked must be called with s.mu held.
// A username also collides with an email equal to its lower-case form, and
// the other way round, since FindByIdentifier accepts either.
func (s *MemoryStore) takenLocked(username, email, excludeID string) bool {
	folded := strings.ToLower(username)
	for id, a := range s.accounts {
		if id == excludeID {
			continue
		}
		if username != "" && (a.Username == username || a.Email == folded) {
			return true
		}
		if email != "" && (a.Email == email || strings.ToLower(a.Username) == email) {
			return true
		}
	}
	return false
}

// Create inserts a, assigning its id and timestamps.
func (s *MemoryStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.takenLocked(a.Username, a.Email, "") {
		return ErrDuplicateIdentity
	}
	now := s.now().UTC()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

// GetByID returns the account with id.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(a), nil
}

// FindByIdentifier returns the account whose username or email is identifier.
// A username match wins over an email match.
func (s *MemoryStore) FindByIdentifier(_ context.Context, identifier string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Username == identifier {
			return cloneAccount(a), nil
		}
	}
	email := strings.ToLower(identifier)
	for _, a := range s.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

// IdentityTaken reports whether another account uses username or email.
func (s *MemoryStore) IdentityTaken(_ context.Context, username, email, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.takenLocked(username, email, excludeID), nil
}

// List returns all accounts, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	sortNewestFirst(out)
	return out, nil
}

// ListByIDs returns the accounts with the given ids, skipping unknown ids.
func (s *MemoryStore) ListByIDs(_ context.Context, ids []string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Account, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := s.accounts[id]; ok {
			out = append(out, cloneAccount(a))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Update applies the non-nil fields of in.
func (s *MemoryStore) Update(_ context.Context, id string, in UpdateInput) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}

	var username, email string
	if in.Username != nil {
		username = *in.Username
	}
	if in.Email != nil {
		email = *in.Email
	}
	if s.takenLocked(username, email, id) {
		return nil, ErrDuplicateIdentity
	}

	if in.Username != nil {
		a.Username = *in.Username
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Surnames != nil {
		a.Surnames = *in.Surnames
	}
	if in.Email != nil {
		a.Email = *in.Email
	}
	if in.Role != nil {
		a.Role = *in.Role
	}
	if in.CompanyID != nil {
		a.CompanyID = nullable(*in.CompanyID)
	}
	if in.TeamID != nil {
		a.TeamID = nullable(*in.TeamID)
	}
	a.UpdatedAt = s.now().UTC()
	return cloneAccount(a), nil
}

// SetPasswordHash replaces the digest of the account with id.
func (s *MemoryStore) SetPasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = s.now().UTC()
	return nil
}

// Delete removes the account with id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func sortNewestFirst(accounts []*Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
}

// nullable maps an empty affiliation to nil.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
