package attendance

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
)

type Directory interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// Emitter pushes a realtime event to the user's open sockets.
type Emitter interface {
	Emit(userID, event string, data any) bool
}

type Service struct {
	store  StoreAPI
	users  Directory
	events Emitter
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(store StoreAPI, directory Directory, events Emitter) *Service {
	return &Service{
		store:  store,
		users:  directory,
		events: events,
		tracer: otel.Tracer("hrportal/internal/domain/attendance"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Mark records one user's attendance for a day on their behalf. A second
// mark for the same day replaces the first.
func (s *Service) Mark(ctx context.Context, actor auth.UserContext, in MarkInput) (Record, error) {
	status := NormalizeStatus(in.Status)
	if !status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	if err := s.requireApproved(ctx, strings.TrimSpace(in.UserID)); err != nil {
		return Record{}, err
	}
	day, ok := parseDay(in.Date)
	if !ok {
		return Record{}, ErrInvalidDate
	}
	record, err := buildRecord(day, strings.TrimSpace(in.UserID), status, in.Note, in.CheckIn, in.CheckOut, actor.UserID)
	if err != nil {
		return Record{}, err
	}
	saved, err := s.store.Upsert(ctx, record)
	if err != nil {
		return Record{}, err
	}
	s.emit(saved)
	return saved, nil
}

// Bulk marks many users for one day. Every row is validated before any is
// written, and the write is all or nothing.
func (s *Service) Bulk(ctx context.Context, actor auth.UserContext, in BulkInput) (BulkResult, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.Bulk", trace.WithAttributes(attribute.Int("attendance.rows", len(in.Records))))
	defer span.End()

	if len(in.Records) == 0 {
		return BulkResult{}, ErrNoRecords
	}
	day, ok := parseDay(in.Date)
	if !ok {
		return BulkResult{}, ErrInvalidDate
	}

	records := make([]Record, 0, len(in.Records))
	for _, row := range in.Records {
		userID := strings.TrimSpace(row.UserID)
		status := NormalizeStatus(row.Status)
		if !status.Valid() {
			return BulkResult{}, apperror.Validation("Invalid status for user " + userID)
		}
		record, err := buildRecord(day, userID, status, row.Note, row.CheckIn, row.CheckOut, actor.UserID)
		if err != nil {
			if appErr, ok := apperror.As(err); ok {
				return BulkResult{}, apperror.Validation("User " + userID + ": " + appErr.Message)
			}
			return BulkResult{}, err
		}
		records = append(records, record)
	}

	written, err := s.store.UpsertMany(ctx, records)
	if err != nil {
		span.RecordError(err)
		return BulkResult{}, err
	}
	for _, r := range records {
		s.emit(r)
	}
	return BulkResult{Date: day.Format(dayLayout), Upserted: written}, nil
}

// SelfMark clocks the caller in or out for today.
func (s *Service) SelfMark(ctx context.Context, actor auth.UserContext, in SelfMarkInput) (Record, error) {
	now := s.now()
	day := dayOf(now)
	existing, err := s.store.Get(ctx, actor.UserID, day)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	switch strings.TrimSpace(in.Action) {
	case ActionCheckIn:
		if found {
			if existing.Status.Off() {
				return Record{}, ErrDayClosed
			}
			if existing.CheckIn != nil {
				return Record{}, ErrAlreadyChecked
			}
		}
		status := StatusPresent
		if strings.TrimSpace(in.Status) != "" {
			status = NormalizeStatus(in.Status)
		}
		if status != StatusPresent && status != StatusLate {
			return Record{}, apperror.Validation("status must be present or late")
		}
		saved, err := s.store.Upsert(ctx, Record{
			UserID:   actor.UserID,
			Date:     day,
			Status:   status,
			MarkedBy: actor.UserID,
			Note:     strings.TrimSpace(in.Note),
			CheckIn:  &now,
		})
		if err != nil {
			return Record{}, err
		}
		s.emit(saved)
		return saved, nil
	case ActionCheckOut:
		if !found || existing.CheckIn == nil {
			return Record{}, ErrNotCheckedIn
		}
		if existing.CheckOut != nil {
			return Record{}, ErrDayClosed
		}
		existing.CheckOut = &now
		existing.WorkedHours = workedHours(existing.CheckIn, existing.CheckOut)
		existing.MarkedBy = actor.UserID
		if note := strings.TrimSpace(in.Note); note != "" {
			existing.Note = note
		}
		saved, err := s.store.Upsert(ctx, existing)
		if err != nil {
			return Record{}, err
		}
		s.emit(saved)
		return saved, nil
	default:
		return Record{}, apperror.Validation("action must be check_in or check_out")
	}
}

// ByMonth lists a user's marks for a month. Employees only ever see their own.
func (s *Service) ByMonth(ctx context.Context, actor auth.UserContext, userID, year, month string) (MonthView, error) {
	y, m, err := parseYearMonth(year, month)
	if err != nil {
		return MonthView{}, err
	}
	target := s.visibleUser(actor, userID)
	rng := monthRange(y, m)
	days, err := s.store.ListRange(ctx, target, rng.Start, rng.End)
	if err != nil {
		return MonthView{}, err
	}
	return MonthView{UserID: target, Year: y, Month: m, Days: days}, nil
}

// ByDate lists the marks of one day. Callers without admin rights get only
// their own row.
func (s *Service) ByDate(ctx context.Context, actor auth.UserContext, date string) ([]Record, error) {
	if strings.TrimSpace(date) == "" {
		return nil, apperror.Validation("Missing date")
	}
	day, ok := parseDay(date)
	if !ok {
		return nil, ErrInvalidDate
	}
	userID := ""
	if !actor.IsAdmin() {
		userID = actor.UserID
	}
	return s.store.ListByDate(ctx, day, userID)
}

// BranchReport counts each approved user's statuses for a month. Branch
// "all" or empty covers every branch.
func (s *Service) BranchReport(ctx context.Context, branch, year, month string) (BranchReport, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.BranchReport")
	defer span.End()

	y, m, err := parseYearMonth(year, month)
	if err != nil {
		return BranchReport{}, err
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		branch = "all"
	}
	filter := branch
	if filter == "all" {
		filter = ""
	}
	rng := monthRange(y, m)
	rows, err := s.store.BranchTotals(ctx, filter, rng.Start, rng.End)
	if err != nil {
		span.RecordError(err)
		return BranchReport{}, err
	}
	for i := range rows {
		rows[i].Department = orUnknown(rows[i].Department)
		rows[i].Branch = orUnknown(rows[i].Branch)
	}
	return BranchReport{Year: y, Month: m, Branch: branch, Rows: rows}, nil
}

// UserMonthReport summarises one user's month with per-status totals and
// worked hours. Present and late days count as productive for the average.
func (s *Service) UserMonthReport(ctx context.Context, actor auth.UserContext, userID, year, month string) (UserMonthReport, error) {
	if strings.TrimSpace(year) == "" || strings.TrimSpace(month) == "" {
		return UserMonthReport{}, apperror.Validation("year/month required")
	}
	target := s.visibleUser(actor, userID)
	user, err := s.users.Get(ctx, target)
	if err != nil {
		return UserMonthReport{}, err
	}
	if !user.IsApproved && !actor.IsAdmin() {
		return UserMonthReport{}, apperror.Forbidden("User not approved")
	}
	y, m, err := parseYearMonth(year, month)
	if err != nil {
		return UserMonthReport{}, err
	}
	rng := monthRange(y, m)
	records, err := s.store.ListRange(ctx, target, rng.Start, rng.End)
	if err != nil {
		return UserMonthReport{}, err
	}

	var totals StatusTotals
	worked := decimal.Zero
	days := make([]ReportDay, 0, len(records))
	for _, r := range records {
		totals.Add(r.Status, 1)
		if r.WorkedHours != nil {
			worked = worked.Add(*r.WorkedHours)
		}
		days = append(days, ReportDay{
			ID:          r.ID,
			Date:        r.Date.Format(dayLayout),
			Status:      r.Status,
			Note:        r.Note,
			CheckIn:     clockLabel(r.CheckIn),
			CheckOut:    clockLabel(r.CheckOut),
			WorkedHours: r.WorkedHours,
		})
	}
	avg := decimal.Zero
	if productive := totals.Productive(); productive > 0 {
		avg = worked.Div(decimal.NewFromInt(int64(productive))).Round(2)
	}

	return UserMonthReport{
		Meta: ReportMeta{
			User: ReportUser{
				ID:         target,
				FullName:   user.FullName,
				EmployeeID: user.EmployeeID,
				Department: orUnknown(user.Department),
				Branch:     orUnknown(user.Branch),
			},
			Year:  y,
			Month: m,
			Range: rng,
		},
		Summary: MonthSummary{
			Totals:      totals,
			DaysMarked:  len(records),
			WorkedHours: worked.Round(2),
			AvgHours:    avg,
		},
		Days: days,
	}, nil
}

func (s *Service) requireApproved(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnknownUser
	}
	target, err := s.users.Get(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return ErrUnknownUser
	}
	if err != nil {
		return err
	}
	if !target.IsApproved {
		return ErrUnknownUser
	}
	return nil
}

func (s *Service) visibleUser(actor auth.UserContext, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" || !actor.IsAdmin() {
		return actor.UserID
	}
	return requested
}

func (s *Service) emit(r Record) {
	if s.events == nil {
		return
	}
	s.events.Emit(r.UserID, EventMarked, map[string]any{
		"date":   r.Date.Format(dayLayout),
		"status": r.Status,
	})
}

// buildRecord resolves clock values against day. Off statuses never carry
// times or worked hours.
func buildRecord(day time.Time, userID string, status Status, note, rawIn, rawOut, markedBy string) (Record, error) {
	record := Record{
		UserID:   userID,
		Date:     day,
		Status:   status,
		MarkedBy: markedBy,
		Note:     strings.TrimSpace(note),
	}
	if status.Off() {
		return record, nil
	}
	checkIn, okIn := parseClock(day, rawIn)
	checkOut, okOut := parseClock(day, rawOut)
	if !okIn {
		return Record{}, apperror.Validation("Invalid checkIn")
	}
	if !okOut {
		return Record{}, apperror.Validation("Invalid checkOut")
	}
	if err := checkTimes(day, checkIn, checkOut); err != nil {
		return Record{}, err
	}
	record.CheckIn = checkIn
	record.CheckOut = checkOut
	record.WorkedHours = workedHours(checkIn, checkOut)
	return record, nil
}

func parseYearMonth(year, month string) (int, int, error) {
	y, errY := strconv.Atoi(strings.TrimSpace(year))
	m, errM := strconv.Atoi(strings.TrimSpace(month))
	if errY != nil || errM != nil || y < 1970 || y > 9999 || m < 1 || m > 12 {
		return 0, 0, apperror.Validation("Invalid year/month")
	}
	return y, m, nil
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return unknownLabel
	}
	return value
}
