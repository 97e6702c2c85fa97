package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentcontrolhr/talentcontrol/internal/storage"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/postgres"
)

const accountColumns = `id, username, name, surnames, email, password_hash, role, company_id, team_id, created_at, updated_at`

// PGStore is a Repository backed by the accounts table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new account store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// scanAccount scans an account row in accountColumns order.
func scanAccount(scan func(dest ...any) error) (*Account, error) {
	a := &Account{}
	err := scan(&a.ID, &a.Username, &a.Name, &a.Surnames, &a.Email, &a.PasswordHash,
		&a.Role, &a.CompanyID, &a.TeamID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// classify maps driver errors onto the repository contract.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case postgres.IsUniqueViolation(err, ""):
		return ErrDuplicateIdentity
	default:
		return storage.Unavailable(op, err)
	}
}

// Create inserts a new account and fills in its id and timestamps.
func (s *PGStore) Create(ctx context.Context, a *Account) error {
	created, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO accounts (id, username, name, surnames, email, password_hash, role, company_id, team_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING `+accountColumns,
			uuid.NewString(), a.Username, a.Name, a.Surnames, a.Email, a.PasswordHash, a.Role, a.CompanyID, a.TeamID,
		).Scan(dest...)
	})
	if err != nil {
		return classify("creating account", err)
	}
	*a = *created
	return nil
}

// GetByID retrieves an account by primary key.
func (s *PGStore) GetByID(ctx context.Context, id string) (*Account, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, classify("getting account by id", err)
	}
	return a, nil
}

// FindByIdentifier retrieves the account whose username or email matches.
func (s *PGStore) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts
			 WHERE username = $1 OR email = lower($1)
			 ORDER BY (username = $1) DESC
			 LIMIT 1`, identifier,
		).Scan(dest...)
	})
	if err != nil {
		return nil, classify("finding account by identifier", err)
	}
	return a, nil
}

// IdentityTaken reports whether an account other than excludeID already uses
// username or email. Usernames and emails share one namespace because login
// accepts either. Empty arguments are ignored.
func (s *PGStore) IdentityTaken(ctx context.Context, username, email, excludeID string) (bool, error) {
	var exclude *string
	if postgres.ValidID(excludeID) {
		exclude = &excludeID
	}
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE (($1 <> '' AND (username = $1 OR email = lower($1)))
			    OR ($2 <> '' AND (email = $2 OR lower(username) = $2)))
			  AND ($3::text IS NULL OR id <> $3)
		)`, username, email, exclude,
	).Scan(&taken)
	if err != nil {
		return false, storage.Unavailable("checking identity", err)
	}
	return taken, nil
}

// List returns all accounts ordered by created_at DESC.
func (s *PGStore) List(ctx context.Context) ([]*Account, error) {
	return s.query(ctx, "listing accounts",
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
}

// ListByIDs returns the accounts with the given ids. Ids that are not UUIDs
// are skipped.
func (s *PGStore) ListByIDs(ctx context.Context, ids []string) ([]*Account, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if postgres.ValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*Account{}, nil
	}
	return s.query(ctx, "listing accounts by id",
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1::text[]) ORDER BY created_at DESC`, valid)
}

func (s *PGStore) query(ctx context.Context, op, sql string, args ...any) ([]*Account, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storage.Unavailable(op, err)
	}
	defer rows.Close()

	accounts := []*Account{}
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, storage.Unavailable("scanning account row", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(op, err)
	}
	return accounts, nil
}

// Update performs a partial update on the account with the given id.
func (s *PGStore) Update(ctx context.Context, id string, in UpdateInput) (*Account, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}

	var setClauses []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if in.Username != nil {
		set("username", *in.Username)
	}
	if in.Name != nil {
		set("name", *in.Name)
	}
	if in.Surnames != nil {
		set("surnames", *in.Surnames)
	}
	if in.Email != nil {
		set("email", *in.Email)
	}
	if in.Role != nil {
		set("role", *in.Role)
	}
	if in.CompanyID != nil {
		set("company_id", nullable(*in.CompanyID))
	}
	if in.TeamID != nil {
		set("team_id", nullable(*in.TeamID))
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE accounts SET %s WHERE id = $%d RETURNING `+accountColumns,
		strings.Join(setClauses, ", "), len(args),
	)

	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, classify("updating account", err)
	}
	return a, nil
}

// SetPasswordHash replaces the password digest of the account with id.
func (s *PGStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	if !postgres.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return storage.Unavailable("setting password hash", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account by id.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	if !postgres.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return storage.Unavailable("deleting account", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
