package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Repository held in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	shifts    map[string]Shift
	vacations map[string]Vacation
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shifts:    make(map[string]Shift),
		vacations: make(map[string]Vacation),
		now:       time.Now,
	}
}

func copyShift(s Shift) *Shift {
	if s.TeamID != nil {
		v := *s.TeamID
		s.TeamID = &v
	}
	return &s
}

func (m *MemoryStore) CreateShift(_ context.Context, s *Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	s.ID = uuid.NewString()
	s.CreatedAt, s.UpdatedAt = now, now
	m.shifts[s.ID] = *copyShift(*s)
	return nil
}

func (m *MemoryStore) GetShift(_ context.Context, id string) (*Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shifts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyShift(s), nil
}

func (m *MemoryStore) ListShifts(_ context.Context, f ShiftFilter) ([]*Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Shift{}
	for _, s := range m.shifts {
		if f.CompanyID != "" && s.CompanyID != f.CompanyID {
			continue
		}
		if f.AccountID != "" && s.AccountID != f.AccountID {
			continue
		}
		out = append(out, copyShift(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *MemoryStore) UpdateShift(_ context.Context, s *Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shifts[s.ID]; !ok {
		return ErrNotFound
	}
	s.UpdatedAt = m.now().UTC()
	m.shifts[s.ID] = *copyShift(*s)
	return nil
}

func (m *MemoryStore) DeleteShift(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shifts[id]; !ok {
		return ErrNotFound
	}
	delete(m.shifts, id)
	return nil
}

func (m *MemoryStore) CreateVacation(_ context.Context, v *Vacation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	v.ID = uuid.NewString()
	v.CreatedAt, v.UpdatedAt = now, now
	m.vacations[v.ID] = *v
	return nil
}

func (m *MemoryStore) GetVacation(_ context.Context, id string) (*Vacation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vacations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *MemoryStore) ListVacations(_ context.Context, f VacationFilter) ([]*Vacation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Vacation{}
	for _, v := range m.vacations {
		if f.CompanyID != "" && v.CompanyID != f.CompanyID {
			continue
		}
		if f.AccountID != "" && v.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetVacationStatus(_ context.Context, id, status string) (*Vacation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vacations[id]
	if !ok {
		return nil, ErrNotFound
	}
	v.Status = status
	v.UpdatedAt = m.now().UTC()
	m.vacations[id] = v
	return &v, nil
}
