package overtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrportal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const claimColumns = `id::text, instructor_id::text, instructor_name, claim_date, designation, branch_name, slots,
  total_minutes, total_hours, salary, verified, notes, created_at, updated_at`

func scanClaim(row pgx.Row) (Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.InstructorID, &c.InstructorName, &c.Date, &c.Designation, &c.BranchName, &c.Slots,
		&c.TotalMinutes, &c.TotalHours, &c.Salary, &c.Verified, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Claim{}, err
	}
	if c.Slots == nil {
		c.Slots = []Slot{}
	}
	return c, nil
}

func collectClaims(rows pgx.Rows) ([]Claim, error) {
	defer rows.Close()
	out := []Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Instructor(ctx context.Context, userID string) (Instructor, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return Instructor{}, ErrUserNotFound
	}
	var in Instructor
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, full_name, designation, branch, salary
    FROM users WHERE id = $1
  `, userID).Scan(&in.ID, &in.FullName, &in.Designation, &in.Branch, &in.Salary)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instructor{}, ErrUserNotFound
	}
	return in, err
}

func (s *Store) Create(ctx context.Context, c Claim) (Claim, error) {
	return scanClaim(s.DB.QueryRow(ctx, `
    INSERT INTO overtime_claims (id, instructor_id, instructor_name, claim_date, designation, branch_name, slots,
      total_minutes, total_hours, salary, verified, notes)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    RETURNING `+claimColumns,
		c.ID, c.InstructorID, c.InstructorName, c.Date, c.Designation, c.BranchName, c.Slots,
		c.TotalMinutes, c.TotalHours, c.Salary, c.Verified, c.Notes))
}

func (s *Store) Get(ctx context.Context, id string) (Claim, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Claim{}, ErrNotFound
	}
	c, err := scanClaim(s.DB.QueryRow(ctx, "SELECT "+claimColumns+" FROM overtime_claims WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Claim{}, ErrNotFound
	}
	return c, err
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Claim, error) {
	where := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.InstructorID != "" {
		add("instructor_id::text = $%d", filter.InstructorID)
	}
	if filter.Day != nil {
		add("claim_date = $%d", *filter.Day)
	}
	if filter.Verified != nil {
		add("verified = $%d", *filter.Verified)
	}
	query := "SELECT " + claimColumns + " FROM overtime_claims"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY claim_date DESC, created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}

func (s *Store) ListPeriod(ctx context.Context, filter PeriodFilter) ([]Claim, error) {
	query := "SELECT " + claimColumns + " FROM overtime_claims WHERE claim_date >= $1 AND claim_date < $2"
	args := []any{filter.Start, filter.End}
	if filter.BranchPrefix != "" {
		args = append(args, escapeLike(filter.BranchPrefix)+"%")
		query += fmt.Sprintf(" AND branch_name ILIKE $%d", len(args))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		query += fmt.Sprintf(" AND verified = $%d", len(args))
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY claim_date, created_at", args...)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}

func (s *Store) Save(ctx context.Context, c Claim) (Claim, error) {
	saved, err := scanClaim(s.DB.QueryRow(ctx, `
    UPDATE overtime_claims SET instructor_name = $2, claim_date = $3, designation = $4, branch_name = $5,
      slots = $6, total_minutes = $7, total_hours = $8, salary = $9, verified = $10, notes = $11, updated_at = now()
    WHERE id = $1
    RETURNING `+claimColumns,
		c.ID, c.InstructorName, c.Date, c.Designation, c.BranchName,
		c.Slots, c.TotalMinutes, c.TotalHours, c.Salary, c.Verified, c.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return Claim{}, ErrNotFound
	}
	return saved, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM overtime_claims WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
