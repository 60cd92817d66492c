package attendance

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
)

const (
	employeeID = "11111111-1111-4111-8111-111111111111"
	pendingID  = "22222222-2222-4222-8222-222222222222"
	hrID       = "33333333-3333-4333-8333-333333333333"
)

type recordKey struct {
	userID string
	day    string
}

type memoryStore struct {
	mu      sync.Mutex
	records map[recordKey]Record
	seq     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[recordKey]Record{}}
}

func (m *memoryStore) upsertLocked(r Record) Record {
	key := recordKey{userID: r.UserID, day: r.Date.Format(dayLayout)}
	if existing, ok := m.records[key]; ok {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	} else {
		m.seq++
		r.ID = "rec-" + strconv.Itoa(m.seq)
		r.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	}
	r.UpdatedAt = r.CreatedAt
	m.records[key] = r
	return r
}

func (m *memoryStore) Upsert(_ context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(r), nil
}

func (m *memoryStore) UpsertMany(_ context.Context, records []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.upsertLocked(r)
	}
	return len(records), nil
}

func (m *memoryStore) Get(_ context.Context, userID string, day time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordKey{userID: userID, day: day.Format(dayLayout)}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) ListByDate(_ context.Context, day time.Time, userID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Record{}
	for key, r := range m.records {
		if key.day == day.Format(dayLayout) && (userID == "" || r.UserID == userID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) ListRange(_ context.Context, userID string, start, end time.Time) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Record{}
	for _, r := range m.records {
		if r.UserID == userID && !r.Date.Before(start) && r.Date.Before(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memoryStore) BranchTotals(_ context.Context, branch string, start, end time.Time) ([]BranchRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := BranchRow{UserID: employeeID, FullName: "Sara Malik", Branch: branch}
	for _, r := range m.records {
		if r.UserID == employeeID && !r.Date.Before(start) && r.Date.Before(end) {
			row.Add(r.Status, 1)
		}
	}
	return []BranchRow{row}, nil
}

type directory map[string]users.User

func (d directory) Get(_ context.Context, id string) (users.User, error) {
	u, ok := d[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type emitted struct {
	userID string
	event  string
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(userID, event string, _ any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{userID: userID, event: event})
	return true
}

var (
	employee = auth.UserContext{UserID: employeeID, RoleName: auth.RoleEmployee}
	hr       = auth.UserContext{UserID: hrID, RoleName: auth.RoleHR}
)

type fixture struct {
	svc    *Service
	store  *memoryStore
	events *recordingEmitter
}

func newFixture(now time.Time) *fixture {
	dir := directory{
		employeeID: {ID: employeeID, FullName: "Sara Malik", EmployeeID: 101, Department: "Ops", IsApproved: true},
		pendingID:  {ID: pendingID, FullName: "New Hire", EmployeeID: 102},
		hrID:       {ID: hrID, FullName: "HR", EmployeeID: 1, Role: auth.RoleHR, IsApproved: true},
	}
	store := newMemoryStore()
	events := &recordingEmitter{}
	svc := NewService(store, dir, events)
	svc.now = func() time.Time { return now }
	return &fixture{svc: svc, store: store, events: events}
}

func hours(t *testing.T, d *decimal.Decimal) string {
	t.Helper()
	require.NotNil(t, d)
	return d.StringFixed(2)
}

func TestNormalizeStatusAcceptsLegacyLabels(t *testing.T) {
	assert.Equal(t, StatusOfficialOff, NormalizeStatus("official off"))
	assert.Equal(t, StatusShortLeave, NormalizeStatus("Short leave"))
	assert.Equal(t, StatusPresent, NormalizeStatus(" PRESENT "))
	assert.False(t, NormalizeStatus("holiday").Valid())
}

func TestMarkComputesWorkedHours(t *testing.T) {
	f := newFixture(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
	r, err := f.svc.Mark(context.Background(), hr, MarkInput{
		UserID: employeeID, Date: "2025-03-03", Status: "present", CheckIn: "09:00", CheckOut: "17:20",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), *r.CheckIn)
	assert.Equal(t, "8.33", hours(t, r.WorkedHours))
	assert.Equal(t, hrID, r.MarkedBy)
	assert.Equal(t, []emitted{{userID: employeeID, event: EventMarked}}, f.events.events)
}

func TestMarkOffStatusDropsTimes(t *testing.T) {
	f := newFixture(time.Now())
	r, err := f.svc.Mark(context.Background(), hr, MarkInput{
		UserID: employeeID, Date: "2025-03-03", Status: "official off", CheckIn: "09:00", CheckOut: "17:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOfficialOff, r.Status)
	assert.Nil(t, r.CheckIn)
	assert.Nil(t, r.CheckOut)
	assert.Nil(t, r.WorkedHours)
}

func TestMarkReplacesEarlierMark(t *testing.T) {
	f := newFixture(time.Now())
	ctx := context.Background()
	first, err := f.svc.Mark(ctx, hr, MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "absent"})
	require.NoError(t, err)
	second, err := f.svc.Mark(ctx, hr, MarkInput{UserID: employeeID, Date: "2025-03-03T15:00:00Z", Status: "late", CheckIn: "10:15"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusLate, second.Status)
	assert.Nil(t, second.WorkedHours)
	assert.Len(t, f.store.records, 1)
}

func TestMarkValidation(t *testing.T) {
	cases := []struct {
		name string
		in   MarkInput
		want string
	}{
		{"bad status", MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "holiday"}, "Invalid status"},
		{"unapproved user", MarkInput{UserID: pendingID, Date: "2025-03-03", Status: "present"}, ErrUnknownUser.Message},
		{"unknown user", MarkInput{UserID: "nobody", Date: "2025-03-03", Status: "present"}, ErrUnknownUser.Message},
		{"bad date", MarkInput{UserID: employeeID, Date: "03/03/2025", Status: "present"}, "Invalid date"},
		{"bad clock", MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "present", CheckIn: "9am"}, "Invalid checkIn"},
		{"out before in", MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "present", CheckIn: "17:00", CheckOut: "09:00"}, "checkOut cannot be earlier than checkIn"},
		{"other day", MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "present", CheckIn: "2025-03-04T09:00:00Z"}, "checkIn must be on the same calendar day as date (UTC)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(time.Now())
			_, err := f.svc.Mark(context.Background(), hr, tc.in)
			appErr, ok := apperror.As(err)
			require.True(t, ok, "expected app error, got %v", err)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.Equal(t, tc.want, appErr.Message)
			assert.Empty(t, f.store.records)
		})
	}
}

func TestBulkValidatesEveryRowFirst(t *testing.T) {
	f := newFixture(time.Now())
	_, err := f.svc.Bulk(context.Background(), hr, BulkInput{
		Date: "2025-03-03",
		Records: []BulkRecord{
			{UserID: employeeID, Status: "present", CheckIn: "09:00"},
			{UserID: hrID, Status: "present", CheckIn: "18:00", CheckOut: "08:00"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, "User "+hrID+": checkOut cannot be earlier than checkIn", err.Error())
	assert.Empty(t, f.store.records)
}

func TestBulkWritesAllRows(t *testing.T) {
	f := newFixture(time.Now())
	res, err := f.svc.Bulk(context.Background(), hr, BulkInput{
		Date: "2025-03-03",
		Records: []BulkRecord{
			{UserID: employeeID, Status: "present", CheckIn: "09:00", CheckOut: "13:30"},
			{UserID: hrID, Status: "leave"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Date: "2025-03-03", Upserted: 2}, res)
	assert.Len(t, f.events.events, 2)

	_, err = f.svc.Bulk(context.Background(), hr, BulkInput{Date: "2025-03-03"})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestSelfMarkCheckInThenOut(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	in, err := f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckIn})
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, in.Status)
	assert.Equal(t, now, *in.CheckIn)

	_, err = f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckIn})
	assert.ErrorIs(t, err, ErrAlreadyChecked)

	f.svc.now = func() time.Time { return now.Add(7*time.Hour + 45*time.Minute) }
	out, err := f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckOut, Note: "left early"})
	require.NoError(t, err)
	assert.Equal(t, "7.75", hours(t, out.WorkedHours))
	assert.Equal(t, "left early", out.Note)

	_, err = f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckOut})
	assert.ErrorIs(t, err, ErrDayClosed)
}

func TestSelfMarkRules(t *testing.T) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	_, err := f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckOut})
	assert.ErrorIs(t, err, ErrNotCheckedIn)

	_, err = f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckIn, Status: "absent"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: "lunch"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = f.svc.Mark(ctx, hr, MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "leave"})
	require.NoError(t, err)
	_, err = f.svc.SelfMark(ctx, employee, SelfMarkInput{Action: ActionCheckIn})
	assert.ErrorIs(t, err, ErrDayClosed)
}

func TestByDateScopesEmployeesToThemselves(t *testing.T) {
	f := newFixture(time.Now())
	ctx := context.Background()
	_, err := f.svc.Bulk(ctx, hr, BulkInput{Date: "2025-03-03", Records: []BulkRecord{
		{UserID: employeeID, Status: "present"},
		{UserID: hrID, Status: "present"},
	}})
	require.NoError(t, err)

	all, err := f.svc.ByDate(ctx, hr, "2025-03-03")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.svc.ByDate(ctx, employee, "2025-03-03")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, employeeID, own[0].UserID)

	_, err = f.svc.ByDate(ctx, hr, "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestByMonthIgnoresUserIDForEmployees(t *testing.T) {
	f := newFixture(time.Now())
	ctx := context.Background()
	_, err := f.svc.Mark(ctx, hr, MarkInput{UserID: hrID, Date: "2025-03-03", Status: "present"})
	require.NoError(t, err)

	view, err := f.svc.ByMonth(ctx, employee, hrID, "2025", "3")
	require.NoError(t, err)
	assert.Equal(t, employeeID, view.UserID)
	assert.Empty(t, view.Days)

	view, err = f.svc.ByMonth(ctx, hr, hrID, "2025", "3")
	require.NoError(t, err)
	assert.Len(t, view.Days, 1)

	_, err = f.svc.ByMonth(ctx, hr, "", "2025", "13")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestUserMonthReportSummary(t *testing.T) {
	f := newFixture(time.Now())
	ctx := context.Background()
	marks := []MarkInput{
		{UserID: employeeID, Date: "2025-03-03", Status: "present", CheckIn: "09:00", CheckOut: "17:00"},
		{UserID: employeeID, Date: "2025-03-04", Status: "late", CheckIn: "10:00", CheckOut: "17:00"},
		{UserID: employeeID, Date: "2025-03-05", Status: "absent"},
		{UserID: employeeID, Date: "2025-04-01", Status: "present", CheckIn: "09:00", CheckOut: "17:00"},
	}
	for _, m := range marks {
		_, err := f.svc.Mark(ctx, hr, m)
		require.NoError(t, err)
	}

	report, err := f.svc.UserMonthReport(ctx, employee, hrID, "2025", "3")
	require.NoError(t, err)
	assert.Equal(t, employeeID, report.Meta.User.ID)
	assert.Equal(t, unknownLabel, report.Meta.User.Branch)
	assert.Equal(t, StatusTotals{Present: 1, Late: 1, Absent: 1}, report.Summary.Totals)
	assert.Equal(t, 3, report.Summary.DaysMarked)
	assert.Equal(t, "15.00", report.Summary.WorkedHours.StringFixed(2))
	assert.Equal(t, "7.50", report.Summary.AvgHours.StringFixed(2))
	require.Len(t, report.Days, 3)
	assert.Equal(t, "2025-03-04", report.Days[1].Date)
	assert.Equal(t, "10:00", report.Days[1].CheckIn)
	assert.Equal(t, "", report.Days[2].CheckIn)
}

func TestUserMonthReportHidesUnapprovedFromEmployees(t *testing.T) {
	f := newFixture(time.Now())
	pending := auth.UserContext{UserID: pendingID, RoleName: auth.RoleEmployee}
	_, err := f.svc.UserMonthReport(context.Background(), pending, "", "2025", "3")
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = f.svc.UserMonthReport(context.Background(), hr, pendingID, "2025", "3")
	assert.NoError(t, err)
}

func TestBranchReportDefaultsToAll(t *testing.T) {
	f := newFixture(time.Now())
	_, err := f.svc.Mark(context.Background(), hr, MarkInput{UserID: employeeID, Date: "2025-03-03", Status: "present"})
	require.NoError(t, err)

	report, err := f.svc.BranchReport(context.Background(), "", "2025", "3")
	require.NoError(t, err)
	assert.Equal(t, "all", report.Branch)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, 1, report.Rows[0].Present)
	assert.Equal(t, unknownLabel, report.Rows[0].Branch)
	assert.Equal(t, unknownLabel, report.Rows[0].Department)
}
