package company

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Repository held in process memory. A single mutex makes
// every graph operation atomic.
type MemoryStore struct {
	mu        sync.Mutex
	companies map[string]*Company
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{companies: make(map[string]*Company), now: time.Now}
}

func (s *MemoryStore) nameTakenLocked(name, excludeID string) bool {
	for id, c := range s.companies {
		if id != excludeID && c.Name == name {
			return true
		}
	}
	return false
}

// Create inserts c, assigning its id and timestamps.
func (s *MemoryStore) Create(_ context.Context, c *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTakenLocked(c.Name, "") {
		return ErrDuplicateName
	}
	now := s.now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Teams == nil {
		c.Teams = []Team{}
	}
	if c.Users == nil {
		c.Users = []Member{}
	}
	s.companies[c.ID] = c.Clone()
	return nil
}

// Get returns the company with id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// List returns all companies ordered by name.
func (s *MemoryStore) List(_ context.Context) ([]*Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update applies the non-nil fields of in.
func (s *MemoryStore) Update(_ context.Context, id string, in UpdateInput) (*Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.Name != nil {
		if s.nameTakenLocked(*in.Name, id) {
			return nil, ErrDuplicateName
		}
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Industry != nil {
		c.Industry = *in.Industry
	}
	if in.Image != nil {
		c.Image = *in.Image
	}
	c.UpdatedAt = s.now().UTC()
	return c.Clone(), nil
}

// Delete removes the company with id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[id]; !ok {
		return ErrNotFound
	}
	delete(s.companies, id)
	return nil
}

// mutate runs fn on the stored company under the lock. The stored value is
// only replaced when fn succeeds.
func (s *MemoryStore) mutate(id string, fn func(*Company) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return ErrNotFound
	}
	work := c.Clone()
	if err := fn(work); err != nil {
		return err
	}
	work.UpdatedAt = s.now().UTC()
	s.companies[id] = work
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, companyID string, m Member) error {
	return s.mutate(companyID, func(c *Company) error { return AddMember(c, m) })
}

func (s *MemoryStore) RemoveMember(_ context.Context, companyID, accountID string) error {
	return s.mutate(companyID, func(c *Company) error { return RemoveMember(c, accountID) })
}

func (s *MemoryStore) SetMemberRoles(_ context.Context, companyID, accountID string, roles []string) error {
	return s.mutate(companyID, func(c *Company) error { return SetMemberRoles(c, accountID, roles) })
}

func (s *MemoryStore) AddTeam(_ context.Context, companyID string, t Team) error {
	return s.mutate(companyID, func(c *Company) error { return AddTeam(c, t) })
}

func (s *MemoryStore) UpdateTeam(_ context.Context, companyID, teamID string, in TeamInput) (*Team, error) {
	var out *Team
	err := s.mutate(companyID, func(c *Company) error {
		t, err := UpdateTeam(c, teamID, in)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemoryStore) RemoveTeam(_ context.Context, companyID, teamID string) error {
	return s.mutate(companyID, func(c *Company) error { return RemoveTeam(c, teamID) })
}

func (s *MemoryStore) AddTeamMember(_ context.Context, companyID, teamID, accountID string) error {
	return s.mutate(companyID, func(c *Company) error { return AddTeamMember(c, teamID, accountID) })
}

func (s *MemoryStore) RemoveTeamMember(_ context.Context, companyID, teamID, accountID string) error {
	return s.mutate(companyID, func(c *Company) error { return RemoveTeamMember(c, teamID, accountID) })
}

// CompaniesWithAccount returns the ids of companies referencing accountID.
func (s *MemoryStore) CompaniesWithAccount(_ context.Context, accountID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, c := range s.companies {
		for _, ref := range c.AccountIDs() {
			if ref == accountID {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Apply runs fn under the lock and stores the result when fn reports a change.
func (s *MemoryStore) Apply(_ context.Context, id string, fn func(*Company) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok {
		return ErrNotFound
	}
	work := c.Clone()
	changed, err := fn(work)
	if err != nil {
		return err
	}
	if changed {
		work.UpdatedAt = s.now().UTC()
		s.companies[id] = work
	}
	return nil
}
