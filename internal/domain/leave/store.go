package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const requestColumns = `id::text, user_id::text, employee_snapshot, employer_name, designation, contact_number,
  leave_type, leave_category, from_date, to_date, duration_days::float8, duration_hours::float8, short_leave_window,
  half_day_session, leave_reason, tasks_during_absence, backup_staff, applicant_signed_at, status, status_history,
  team_lead_assignee::text, team_lead, hr_section, attachments, created_by::text, updated_by::text, reviewed_by::text,
  version, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var (
		r        Request
		kind     string
		category string
		status   string
		days     float64
		hours    *float64
		window   *Window
		session  string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Employee, &r.EmployerName, &r.Designation, &r.ContactNumber,
		&kind, &category, &r.FromDate, &r.ToDate, &days, &hours, &window,
		&session, &r.Reason, &r.TasksDuringAbsence, &r.BackupStaff, &r.ApplicantSignedAt, &status, &r.StatusHistory,
		&r.TeamLeadAssignee, &r.TeamLead, &r.HR, &r.Attachments, &r.CreatedBy, &r.UpdatedBy, &r.ReviewedBy,
		&r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	r.Category = Category(category)
	r.Status = Status(status)
	r.Duration = durationFromColumns(Kind(kind), days, hours, window, session)
	if r.Attachments == nil {
		r.Attachments = []string{}
	}
	return r, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, r Request) (Request, error) {
	days, hours, window, session := durationColumns(r.Duration)
	sessionValue := ""
	if session != nil {
		sessionValue = string(*session)
	}
	return scanRequest(s.DB.QueryRow(ctx, `
    INSERT INTO leave_requests (id, user_id, employee_snapshot, employer_name, designation, contact_number,
      leave_type, leave_category, from_date, to_date, duration_days, duration_hours, short_leave_window,
      half_day_session, leave_reason, tasks_during_absence, backup_staff, applicant_signed_at, status, status_history,
      team_lead_assignee, team_lead, hr_section, attachments, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
    RETURNING `+requestColumns,
		r.ID, r.UserID, r.Employee, r.EmployerName, r.Designation, r.ContactNumber,
		string(r.Kind()), string(r.Category), r.FromDate, r.ToDate, days, hours, window,
		sessionValue, r.Reason, r.TasksDuringAbsence, r.BackupStaff, r.ApplicantSignedAt, string(r.Status), r.StatusHistory,
		r.TeamLeadAssignee, r.TeamLead, r.HR, r.Attachments, r.CreatedBy))
}

func (s *Store) Get(ctx context.Context, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrNotFound
	}
	r, err := scanRequest(s.DB.QueryRow(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.TeamLeadStatus != "" {
		add("team_lead->>'status' = $%d", string(filter.TeamLeadStatus))
	}
	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return []Request{}, nil
		}
		add("user_id = $%d", filter.UserID)
	}
	if filter.TeamLeadAssignee != "" {
		add("team_lead_assignee = $%d", filter.TeamLeadAssignee)
	}

	query := "SELECT " + requestColumns + " FROM leave_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListInRange returns the user's leaves whose fromDate falls in [start, end).
func (s *Store) ListInRange(ctx context.Context, userID string, start, end time.Time) ([]Request, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+requestColumns+`
    FROM leave_requests
    WHERE user_id = $1 AND from_date >= $2 AND from_date < $3
    ORDER BY from_date, created_at
  `, userID, start, end)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *Store) Save(ctx context.Context, r Request, expectedVersion int) (Request, error) {
	return saveRequest(ctx, s.DB, r, expectedVersion)
}

// SaveStatus persists a status transition and, when given, the override
// write in one transaction. Either both land or neither does.
func (s *Store) SaveStatus(ctx context.Context, r Request, expectedVersion int, override *OverrideWrite) (Request, error) {
	var saved Request
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		saved, err = saveRequest(ctx, tx, r, expectedVersion)
		if err != nil {
			return err
		}
		if override != nil {
			if _, err := upsertOverride(ctx, tx, *override); err != nil {
				return err
			}
		}
		return nil
	})
	return saved, err
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func saveRequest(ctx context.Context, db execer, r Request, expectedVersion int) (Request, error) {
	saved, err := scanRequest(db.QueryRow(ctx, `
    UPDATE leave_requests SET
      employer_name = $3, designation = $4, contact_number = $5, tasks_during_absence = $6,
      backup_staff = $7, applicant_signed_at = $8, status = $9, status_history = $10,
      team_lead_assignee = $11, team_lead = $12, hr_section = $13, attachments = $14,
      updated_by = $15, reviewed_by = $16, version = version + 1, updated_at = now()
    WHERE id = $1 AND version = $2
    RETURNING `+requestColumns,
		r.ID, expectedVersion,
		r.EmployerName, r.Designation, r.ContactNumber, r.TasksDuringAbsence,
		r.BackupStaff, r.ApplicantSignedAt, string(r.Status), r.StatusHistory,
		r.TeamLeadAssignee, r.TeamLead, r.HR, r.Attachments,
		r.UpdatedBy, r.ReviewedBy))
	if !errors.Is(err, pgx.ErrNoRows) {
		return saved, err
	}
	var exists bool
	if err := db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM leave_requests WHERE id = $1)", r.ID).Scan(&exists); err != nil {
		return Request{}, err
	}
	if !exists {
		return Request{}, ErrNotFound
	}
	return Request{}, ErrVersionConflict
}

func (s *Store) AcceptedDays(ctx context.Context, userID string, year int, excludeIDs ...string) (float64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	var total float64
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(
      CASE
        WHEN duration_days > 0 THEN duration_days
        WHEN duration_hours > 0 THEN ROUND(duration_hours / 8, 2)
        ELSE 1
      END), 0)::float8
    FROM leave_requests
    WHERE user_id = $1 AND status = 'accepted' AND from_date >= $2 AND from_date < $3
      AND NOT (id::text = ANY($4))
  `, userID, start, end, excludeIDs).Scan(&total)
	return total, err
}

func (s *Store) GetOverride(ctx context.Context, userID string, year int) (*Override, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	o, err := scanOverride(s.DB.QueryRow(ctx, "SELECT "+overrideColumns+" FROM leave_allowances WHERE user_id = $1 AND year = $2", userID, year))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) UpsertOverride(ctx context.Context, w OverrideWrite) (Override, error) {
	return upsertOverride(ctx, s.DB, w)
}

const overrideColumns = `user_id::text, year, allowed::float8, used::float8, remaining::float8, updated_by::text, updated_at, version`

func scanOverride(row pgx.Row) (Override, error) {
	var o Override
	err := row.Scan(&o.UserID, &o.Year, &o.Allowed, &o.Used, &o.Remaining, &o.UpdatedBy, &o.UpdatedAt, &o.Version)
	return o, err
}

func upsertOverride(ctx context.Context, db execer, w OverrideWrite) (Override, error) {
	o, err := scanOverride(db.QueryRow(ctx, `
    INSERT INTO leave_allowances (user_id, year, allowed, used, remaining, updated_by)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (user_id, year) DO UPDATE SET
      allowed = EXCLUDED.allowed,
      used = EXCLUDED.used,
      remaining = EXCLUDED.remaining,
      updated_by = EXCLUDED.updated_by,
      version = leave_allowances.version + 1,
      updated_at = now()
    WHERE $7::int IS NULL OR leave_allowances.version = $7::int
    RETURNING `+overrideColumns,
		w.UserID, w.Year, w.Allowed, w.Used, w.Remaining, w.UpdatedBy, w.ExpectedVersion))
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, ErrVersionConflict
	}
	return o, err
}
