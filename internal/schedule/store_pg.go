package schedule

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

const (
	shiftColumns    = `id, company_id, account_id, team_id, starts_at, ends_at, notes, created_at, updated_at`
	vacationColumns = `id, company_id, account_id, start_date, end_date, reason, status, created_at, updated_at`
)

// PGStore is a Repository backed by the shifts and vacations tables.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new schedule store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func scanShift(scan func(dest ...any) error) (*Shift, error) {
	s := &Shift{}
	err := scan(&s.ID, &s.CompanyID, &s.AccountID, &s.TeamID, &s.StartsAt, &s.EndsAt,
		&s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanVacation(scan func(dest ...any) error) (*Vacation, error) {
	v := &Vacation{}
	err := scan(&v.ID, &v.CompanyID, &v.AccountID, &v.StartDate, &v.EndDate,
		&v.Reason, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return storage.Unavailable(op, err)
}

// where builds a WHERE clause from equality conditions on non-empty values.
func where(conds map[string]string) (string, []any) {
	var clauses []string
	var args []any
	for _, col := range []string{"company_id", "account_id", "status"} {
		v, ok := conds[col]
		if !ok || v == "" {
			continue
		}
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (p *PGStore) CreateShift(ctx context.Context, s *Shift) error {
	created, err := scanShift(func(dest ...any) error {
		return p.pool.QueryRow(ctx,
			`INSERT INTO shifts (id, company_id, account_id, team_id, starts_at, ends_at, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+shiftColumns,
			uuid.NewString(), s.CompanyID, s.AccountID, s.TeamID, s.StartsAt, s.EndsAt, s.Notes,
		).Scan(dest...)
	})
	if err != nil {
		return storage.Unavailable("creating shift", err)
	}
	*s = *created
	return nil
}

func (p *PGStore) GetShift(ctx context.Context, id string) (*Shift, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}
	s, err := scanShift(func(dest ...any) error {
		return p.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, classify("getting shift", err)
	}
	return s, nil
}

func (p *PGStore) ListShifts(ctx context.Context, f ShiftFilter) ([]*Shift, error) {
	clause, args := where(map[string]string{"company_id": f.CompanyID, "account_id": f.AccountID})
	rows, err := p.pool.Query(ctx, `SELECT `+shiftColumns+` FROM shifts`+clause+` ORDER BY starts_at`, args...)
	if err != nil {
		return nil, storage.Unavailable("listing shifts", err)
	}
	defer rows.Close()

	shifts := []*Shift{}
	for rows.Next() {
		s, err := scanShift(rows.Scan)
		if err != nil {
			return nil, storage.Unavailable("scanning shift row", err)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("listing shifts", err)
	}
	return shifts, nil
}

func (p *PGStore) UpdateShift(ctx context.Context, s *Shift) error {
	if !postgres.ValidID(s.ID) {
		return ErrNotFound
	}
	updated, err := scanShift(func(dest ...any) error {
		return p.pool.QueryRow(ctx,
			`UPDATE shifts SET team_id = $1, starts_at = $2, ends_at = $3, notes = $4, updated_at = now()
			 WHERE id = $5
			 RETURNING `+shiftColumns,
			s.TeamID, s.StartsAt, s.EndsAt, s.Notes, s.ID,
		).Scan(dest...)
	})
	if err != nil {
		return classify("updating shift", err)
	}
	*s = *updated
	return nil
}

func (p *PGStore) DeleteShift(ctx context.Context, id string) error {
	if !postgres.ValidID(id) {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return storage.Unavailable("deleting shift", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) CreateVacation(ctx context.Context, v *Vacation) error {
	created, err := scanVacation(func(dest ...any) error {
		return p.pool.QueryRow(ctx,
			`INSERT INTO vacations (id, company_id, account_id, start_date, end_date, reason, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+vacationColumns,
			uuid.NewString(), v.CompanyID, v.AccountID, v.StartDate, v.EndDate, v.Reason, v.Status,
		).Scan(dest...)
	})
	if err != nil {
		return storage.Unavailable("creating vacation", err)
	}
	*v = *created
	return nil
}

func (p *PGStore) GetVacation(ctx context.Context, id string) (*Vacation, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}
	v, err := scanVacation(func(dest ...any) error {
		return p.pool.QueryRow(ctx, `SELECT `+vacationColumns+` FROM vacations WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, classify("getting vacation", err)
	}
	return v, nil
}

func (p *PGStore) ListVacations(ctx context.Context, f VacationFilter) ([]*Vacation, error) {
	clause, args := where(map[string]string{
		"company_id": f.CompanyID,
		"account_id": f.AccountID,
		"status":     f.Status,
	})
	rows, err := p.pool.Query(ctx, `SELECT `+vacationColumns+` FROM vacations`+clause+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, storage.Unavailable("listing vacations", err)
	}
	defer rows.Close()

	vacations := []*Vacation{}
	for rows.Next() {
		v, err := scanVacation(rows.Scan)
		if err != nil {
			return nil, storage.Unavailable("scanning vacation row", err)
		}
		vacations = append(vacations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("listing vacations", err)
	}
	return vacations, nil
}

func (p *PGStore) SetVacationStatus(ctx context.Context, id, status string) (*Vacation, error) {
	if !postgres.ValidID(id) {
		return nil, ErrNotFound
	}
	v, err := scanVacation(func(dest ...any) error {
		return p.pool.QueryRow(ctx,
			`UPDATE vacations SET status = $1, updated_at = now() WHERE id = $2 RETURNING `+vacationColumns,
			status, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, classify("updating vacation status", err)
	}
	return v, nil
}
