package attendance

import (
	"context"
	"errors"
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

const recordColumns = `id::text, user_id::text, work_date, status, marked_by::text, note, check_in, check_out,
  worked_hours, created_at, updated_at`

const upsertRecord = `
    INSERT INTO attendance_records (user_id, work_date, status, marked_by, note, check_in, check_out, worked_hours)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (user_id, work_date) DO UPDATE SET
      status = EXCLUDED.status,
      marked_by = EXCLUDED.marked_by,
      note = EXCLUDED.note,
      check_in = EXCLUDED.check_in,
      check_out = EXCLUDED.check_out,
      worked_hours = EXCLUDED.worked_hours,
      updated_at = now()
    RETURNING ` + recordColumns

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r      Record
		status string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Date, &status, &r.MarkedBy, &r.Note, &r.CheckIn, &r.CheckOut,
		&r.WorkedHours, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	r.Date = dayOf(r.Date)
	return r, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func upsertArgs(r Record) []any {
	return []any{r.UserID, r.Date, string(r.Status), r.MarkedBy, r.Note, r.CheckIn, r.CheckOut, r.WorkedHours}
}

func (s *Store) Upsert(ctx context.Context, r Record) (Record, error) {
	return scanRecord(s.DB.QueryRow(ctx, upsertRecord, upsertArgs(r)...))
}

func (s *Store) UpsertMany(ctx context.Context, records []Record) (int, error) {
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(upsertRecord, upsertArgs(r)...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Store) Get(ctx context.Context, userID string, day time.Time) (Record, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return Record{}, ErrNotFound
	}
	r, err := scanRecord(s.DB.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM attendance_records WHERE user_id = $1 AND work_date = $2", userID, day))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (s *Store) ListByDate(ctx context.Context, day time.Time, userID string) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM attendance_records WHERE work_date = $1"
	args := []any{day}
	if userID != "" {
		query += " AND user_id::text = $2"
		args = append(args, userID)
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY created_at", args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *Store) ListRange(ctx context.Context, userID string, start, end time.Time) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+recordColumns+`
    FROM attendance_records
    WHERE user_id::text = $1 AND work_date >= $2 AND work_date < $3
    ORDER BY work_date
  `, userID, start, end)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *Store) BranchTotals(ctx context.Context, branch string, start, end time.Time) ([]BranchRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id::text, u.full_name, u.employee_id, u.department, u.branch,
      COUNT(a.id) FILTER (WHERE a.status = 'present'),
      COUNT(a.id) FILTER (WHERE a.status = 'absent'),
      COUNT(a.id) FILTER (WHERE a.status = 'leave'),
      COUNT(a.id) FILTER (WHERE a.status = 'late'),
      COUNT(a.id) FILTER (WHERE a.status = 'official_off'),
      COUNT(a.id) FILTER (WHERE a.status = 'short_leave')
    FROM users u
    LEFT JOIN attendance_records a
      ON a.user_id = u.id AND a.work_date >= $2 AND a.work_date < $3
    WHERE u.is_approved AND ($1 = '' OR u.branch = $1)
    GROUP BY u.id
    ORDER BY u.department, u.full_name
  `, branch, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BranchRow{}
	for rows.Next() {
		var row BranchRow
		if err := rows.Scan(&row.UserID, &row.FullName, &row.EmployeeID, &row.Department, &row.Branch,
			&row.Present, &row.Absent, &row.Leave, &row.Late, &row.OfficialOff, &row.ShortLeave); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
