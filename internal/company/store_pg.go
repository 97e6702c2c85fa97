package company

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentcontrolhr/talentcontrol/internal/storage"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/postgres"
)

const companyColumns = `id, name, description, industry, image, teams, users, created_at, updated_at`

// PGStore is a Repository backed by the companies table. Teams and members
// are stored as JSONB columns of the company row, so every graph mutation is
// a locked read-modify-write of that single row.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new company store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// scanCompany scans a company row in companyColumns order.
func scanCompany(scan func(dest ...any) error) (*Company, error) {
	c := &Company{}
	var teams, users []byte
	if err := scan(&c.ID, &c.Name, &c.Description, &c.Industry, &c.Image,
		&teams, &users, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeGraph(c, teams, users); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeGraph(c *Company, teams, users []byte) error {
	c.Teams, c.Users = []Team{}, []Member{}
	if len(teams) > 0 {
		if err := json.Unmarshal(teams, &c.Teams); err != nil {
			return fmt.Errorf("decoding teams: %w", err)
		}
	}
	if len(users) > 0 {
		if err := json.Unmarshal(users, &c.Users); err != nil {
			return fmt.Errorf("decoding members: %w", err)
		}
	}
	for i := range c.Teams {
		if c.Teams[i].Users == nil {
			c.Teams[i].Users = []string{}
		}
	}
	return nil
}

func encodeGraph(c *Company) (teams, users string, err error) {
	t, err := json.Marshal(c.Teams)
	if err != nil {
		return "", "", fmt.Errorf("encoding teams: %w", err)
	}
	u, err := json.Marshal(c.Users)
	if err != nil {
		return "", "", fmt.Errorf("encoding members: %w", err)
	}
	return string(t), string(u), nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case postgres.IsUniqueViolation(err, "companies_name_key"):
		return ErrDuplicateName
	default:
		return storage.Unavailable(op, err)
	}
}

// Create inserts c and fills in its id and timestamps.
func (s *PGStore) Create(ctx context.Context, c *Company) error {
	if c.Teams == nil {
		c.Teams = []Team{}
	}
	if c.Users == nil {
		c.Users = []Member{}
	}
	teams, users, err := encodeGraph(c)
	if err != nil {
		return err
	}

	created, err := scanCompany(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO companies (id, name, description, industry, image, teams, users)
			 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb)
			 RETURNING `+companyColumns,
			uuid.NewString(), c.Name, c.Description, c.Industry, c.Image, teams, users,
		).Scan(dest...)
	})
	if err != nil {
		return classify("creating company", err)
	}
	*c = *created
	return nil
}

// Get retrieves a company by id.
func (s *PGStore) Get(ctx context.Context, id string) (*Company, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}
	c, err := scanCompany(func(dest ...any) error {
		return s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, classify("getting company", err)
	}
	return c, nil
}

// List returns all companies ordered by name.
func (s *PGStore) List(ctx context.Context) ([]*Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name`)
	if err != nil {
		return nil, storage.Unavailable("listing companies", err)
	}
	defer rows.Close()

	companies := []*Company{}
	for rows.Next() {
		c, err := scanCompany(rows.Scan)
		if err != nil {
			return nil, storage.Unavailable("scanning company row", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("listing companies", err)
	}
	return companies, nil
}

// Update performs a partial update of the company's scalar fields.
func (s *PGStore) Update(ctx context.Context, id string, in UpdateInput) (*Company, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}

	var setClauses []string
	var args []any
	argIdx := 1

	if in.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *in.Name)
		argIdx++
	}
	if in.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *in.Description)
		argIdx++
	}
	if in.Industry != nil {
		setClauses = append(setClauses, fmt.Sprintf("industry = $%d", argIdx))
		args = append(args, *in.Industry)
		argIdx++
	}
	if in.Image != nil {
		setClauses = append(setClauses, fmt.Sprintf("image = $%d", argIdx))
		args = append(args, *in.Image)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.Get(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	query := fmt.Sprintf(
		`UPDATE companies SET %s WHERE id = $%d RETURNING `+companyColumns,
		strings.Join(setClauses, ", "), argIdx,
	)
	args = append(args, id)

	c, err := scanCompany(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, classify("updating company", err)
	}
	return c, nil
}

// Delete removes a company by id.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	if !postgres.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return storage.Unavailable("deleting company", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mutate locks the company row, applies fn to its graph and writes the graph
// back when fn reports a change. Errors from fn abort the transaction.
func (s *PGStore) mutate(ctx context.Context, id, op string, fn func(*Company) (bool, error)) error {
	if !postgres.ValidID(id) {
		return ErrNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Unavailable(op, err)
	}
	defer tx.Rollback(ctx)

	c, err := scanCompany(func(dest ...any) error {
		return tx.QueryRow(ctx,
			`SELECT `+companyColumns+` FROM companies WHERE id = $1 FOR UPDATE`, id,
		).Scan(dest...)
	})
	if err != nil {
		return classify(op, err)
	}

	changed, err := fn(c)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	teams, users, err := encodeGraph(c)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE companies SET teams = $1::jsonb, users = $2::jsonb, updated_at = now() WHERE id = $3`,
		teams, users, id,
	); err != nil {
		return storage.Unavailable(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.Unavailable(op, err)
	}
	return nil
}

// always adapts a graph operation that changes the company whenever it succeeds.
func always(fn func(*Company) error) func(*Company) (bool, error) {
	return func(c *Company) (bool, error) {
		if err := fn(c); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (s *PGStore) AddMember(ctx context.Context, companyID string, m Member) error {
	return s.mutate(ctx, companyID, "adding member", always(func(c *Company) error {
		return AddMember(c, m)
	}))
}

func (s *PGStore) RemoveMember(ctx context.Context, companyID, accountID string) error {
	return s.mutate(ctx, companyID, "removing member", always(func(c *Company) error {
		return RemoveMember(c, accountID)
	}))
}

func (s *PGStore) SetMemberRoles(ctx context.Context, companyID, accountID string, roles []string) error {
	return s.mutate(ctx, companyID, "setting member roles", always(func(c *Company) error {
		return SetMemberRoles(c, accountID, roles)
	}))
}

func (s *PGStore) AddTeam(ctx context.Context, companyID string, t Team) error {
	return s.mutate(ctx, companyID, "adding team", always(func(c *Company) error {
		return AddTeam(c, t)
	}))
}

func (s *PGStore) UpdateTeam(ctx context.Context, companyID, teamID string, in TeamInput) (*Team, error) {
	var out *Team
	err := s.mutate(ctx, companyID, "updating team", always(func(c *Company) error {
		t, err := UpdateTeam(c, teamID, in)
		out = t
		return err
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) RemoveTeam(ctx context.Context, companyID, teamID string) error {
	return s.mutate(ctx, companyID, "removing team", always(func(c *Company) error {
		return RemoveTeam(c, teamID)
	}))
}

func (s *PGStore) AddTeamMember(ctx context.Context, companyID, teamID, accountID string) error {
	return s.mutate(ctx, companyID, "adding team member", always(func(c *Company) error {
		return AddTeamMember(c, teamID, accountID)
	}))
}

func (s *PGStore) RemoveTeamMember(ctx context.Context, companyID, teamID, accountID string) error {
	return s.mutate(ctx, companyID, "removing team member", always(func(c *Company) error {
		return RemoveTeamMember(c, teamID, accountID)
	}))
}

// CompaniesWithAccount returns the ids of companies whose members or teams
// reference accountID.
func (s *PGStore) CompaniesWithAccount(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM companies
		 WHERE users @> jsonb_build_array(jsonb_build_object('account_id', $1::text))
		    OR EXISTS (SELECT 1 FROM jsonb_array_elements(teams) t WHERE t->'users' ? $1::text)
		 ORDER BY id`, accountID)
	if err != nil {
		return nil, storage.Unavailable("finding companies by account", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storage.Unavailable("scanning company id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("finding companies by account", err)
	}
	return ids, nil
}

// Apply runs fn inside the row-locking transaction.
func (s *PGStore) Apply(ctx context.Context, id string, fn func(*Company) (bool, error)) error {
	return s.mutate(ctx, id, "applying company change", fn)
}
