package fuel

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

const requisitionColumns = `f.id::text, f.user_id::text, f.month, f.year, f.items, f.total_km, f.total_amount,
  f.status, f.remarks, f.version, f.created_at, f.updated_at,
  u.full_name, u.email, u.employee_id, u.department, u.designation, u.branch, u.city`

// withOwner selects requisitions from source, which must expose fuel_requisitions
// rows under the alias f, joined to their owner.
func withOwner(source string) string {
	return "SELECT " + requisitionColumns + " FROM " + source + " JOIN users u ON u.id = f.user_id"
}

func scanRequisition(row pgx.Row) (Requisition, error) {
	var (
		r     Requisition
		owner Owner
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Month, &r.Year, &r.Items, &r.TotalKm, &r.TotalAmount,
		&r.Status, &r.Remarks, &r.Version, &r.CreatedAt, &r.UpdatedAt,
		&owner.FullName, &owner.Email, &owner.EmployeeID, &owner.Department, &owner.Designation, &owner.Branch, &owner.City)
	if err != nil {
		return Requisition{}, err
	}
	owner.ID = r.UserID
	r.User = &owner
	if r.Items == nil {
		r.Items = []LineItem{}
	}
	return r, nil
}

func (s *Store) Create(ctx context.Context, r Requisition) (Requisition, error) {
	saved, err := scanRequisition(s.DB.QueryRow(ctx, `
    WITH f AS (
      INSERT INTO fuel_requisitions (id, user_id, month, year, items, total_km, total_amount, status, remarks)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
      RETURNING *
    ) `+withOwner("f"),
		r.ID, r.UserID, r.Month, r.Year, r.Items, r.TotalKm, r.TotalAmount, string(r.Status), r.Remarks))
	if db.IsUniqueViolation(err) {
		return Requisition{}, ErrPeriodTaken
	}
	return saved, err
}

func (s *Store) Get(ctx context.Context, id string) (Requisition, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Requisition{}, ErrNotFound
	}
	r, err := scanRequisition(s.DB.QueryRow(ctx, withOwner("fuel_requisitions f")+" WHERE f.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Requisition{}, ErrNotFound
	}
	return r, err
}

func (s *Store) FindPeriod(ctx context.Context, userID, month string, year int) (Requisition, error) {
	r, err := scanRequisition(s.DB.QueryRow(ctx,
		withOwner("fuel_requisitions f")+" WHERE f.user_id = $1 AND f.month = $2 AND f.year = $3",
		userID, month, year))
	if errors.Is(err, pgx.ErrNoRows) {
		return Requisition{}, ErrNotFound
	}
	return r, err
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Requisition, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return []Requisition{}, 0, nil
		}
		add("f.user_id = $%d", filter.UserID)
	}
	if filter.Month != "" {
		add("f.month = $%d", filter.Month)
	}
	if filter.Year != 0 {
		add("f.year = $%d", filter.Year)
	}
	if filter.Status != "" {
		add("f.status = $%d", string(filter.Status))
	}
	if filter.Remarks != "" {
		add("f.remarks ILIKE $%d", "%"+escapeLike(filter.Remarks)+"%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT count(*) FROM fuel_requisitions f"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := withOwner("fuel_requisitions f") + clause + " ORDER BY f.created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Requisition{}
	for rows.Next() {
		r, err := scanRequisition(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *Store) Save(ctx context.Context, r Requisition, expectedVersion int) (Requisition, error) {
	saved, err := scanRequisition(s.DB.QueryRow(ctx, `
    WITH f AS (
      UPDATE fuel_requisitions SET
        month = $3, year = $4, items = $5, total_km = $6, total_amount = $7, status = $8, remarks = $9,
        version = version + 1, updated_at = now()
      WHERE id = $1 AND version = $2
      RETURNING *
    ) `+withOwner("f"),
		r.ID, expectedVersion, r.Month, r.Year, r.Items, r.TotalKm, r.TotalAmount, string(r.Status), r.Remarks))
	if db.IsUniqueViolation(err) {
		return Requisition{}, ErrPeriodTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return saved, err
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM fuel_requisitions WHERE id = $1)", r.ID).Scan(&exists); err != nil {
		return Requisition{}, err
	}
	if !exists {
		return Requisition{}, ErrNotFound
	}
	return Requisition{}, ErrVersionConflict
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM fuel_requisitions WHERE id = $1", id)
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
