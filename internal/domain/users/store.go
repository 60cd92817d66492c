package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrportal/internal/platform/db"
	"hrportal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userColumns = `id::text, full_name, employee_id, cnic, email, department, branch, city, joining_date,
  role, is_approved, is_team_lead, email_verified, profile_image_url, signature_image_url, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.EmployeeID, &u.CNIC, &u.Email, &u.Department, &u.Branch, &u.City, &u.JoiningDate,
		&u.Role, &u.IsApproved, &u.IsTeamLead, &u.EmailVerified, &u.ProfileImageURL, &u.SignatureImageURL, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) Get(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	u, err := scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) List(ctx context.Context, nameQuery string) ([]User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if q := strings.TrimSpace(nameQuery); q != "" {
		query += " WHERE full_name ILIKE $1"
		args = append(args, "%"+q+"%")
	}
	query += " ORDER BY full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListTeamLeads(ctx context.Context) ([]TeamLead, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, full_name, email, department
    FROM users
    WHERE is_team_lead AND is_approved
    ORDER BY full_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TeamLead{}
	for rows.Next() {
		var lead TeamLead
		if err := rows.Scan(&lead.ID, &lead.FullName, &lead.Email, &lead.Department); err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, id string, patch Patch) (User, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Department != nil {
		add("department", *patch.Department)
	}
	if patch.Branch != nil {
		add("branch", *patch.Branch)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.JoiningDate != nil {
		add("joining_date", *patch.JoiningDate)
	}
	if patch.IsApproved != nil {
		add("is_approved", *patch.IsApproved)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s, updated_at = now() WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

func (s *Store) SetTeamLead(ctx context.Context, id string, isTeamLead bool) (User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `
    UPDATE users SET is_team_lead = $1, updated_at = now()
    WHERE id = $2
    RETURNING `+userColumns, isTeamLead, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
