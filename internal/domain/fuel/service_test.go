package fuel

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrportal/internal/domain/auth"
)

const (
	driverID = "11111111-1111-4111-8111-111111111111"
	otherID  = "22222222-2222-4222-8222-222222222222"
	adminID  = "33333333-3333-4333-8333-333333333333"
)

var (
	driver = auth.UserContext{UserID: driverID, RoleName: auth.RoleEmployee}
	other  = auth.UserContext{UserID: otherID, RoleName: auth.RoleEmployee}
	admin  = auth.UserContext{UserID: adminID, RoleName: auth.RoleHR}
)

type memoryStore struct {
	mu   sync.Mutex
	rows map[string]Requisition
	seq  int
	// hideOnce makes the next FindPeriod miss, as if a concurrent insert
	// had not committed yet.
	hideOnce bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]Requisition{}}
}

func clone(r Requisition) Requisition {
	r.Items = slices.Clone(r.Items)
	return r
}

func (m *memoryStore) Create(_ context.Context, r Requisition) (Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.UserID == r.UserID && row.Month == r.Month && row.Year == r.Year {
			return Requisition{}, ErrPeriodTaken
		}
	}
	m.seq++
	r.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	r.UpdatedAt = r.CreatedAt
	m.rows[r.ID] = clone(r)
	return clone(r), nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Requisition{}, ErrNotFound
	}
	return clone(r), nil
}

func (m *memoryStore) FindPeriod(_ context.Context, userID, month string, year int) (Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideOnce {
		m.hideOnce = false
		return Requisition{}, ErrNotFound
	}
	for _, r := range m.rows {
		if r.UserID == userID && r.Month == month && r.Year == year {
			return clone(r), nil
		}
	}
	return Requisition{}, ErrNotFound
}

func (m *memoryStore) List(_ context.Context, f ListFilter) ([]Requisition, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []Requisition{}
	for _, r := range m.rows {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Month != "" && r.Month != f.Month {
			continue
		}
		if f.Year != 0 && r.Year != f.Year {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, clone(r))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if f.Offset >= total {
		return []Requisition{}, total, nil
	}
	end := total
	if f.Limit > 0 {
		end = min(total, f.Offset+f.Limit)
	}
	return matched[f.Offset:end], total, nil
}

func (m *memoryStore) Save(_ context.Context, r Requisition, expectedVersion int) (Requisition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[r.ID]
	if !ok {
		return Requisition{}, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return Requisition{}, ErrVersionConflict
	}
	r.Version = stored.Version + 1
	m.rows[r.ID] = clone(r)
	return clone(r), nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type notice struct {
	userID string
	event  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) Notify(_ context.Context, userID, event, _, _ string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{userID: userID, event: event})
}

func newService() (*Service, *memoryStore, *recordingNotifier) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier)
	seq := 0
	svc.newID = func() string {
		seq++
		return "req-" + strconv.Itoa(seq)
	}
	return svc, store, notifier
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func trip(description, km, rate string) ItemInput {
	return ItemInput{Description: description, Km: dec(km), Rate: dec(rate)}
}

func TestCreateComputesAmountsAndTotals(t *testing.T) {
	svc, _, _ := newService()
	r, err := svc.Create(context.Background(), driver, CreateInput{
		Month: "sep",
		Year:  2025,
		Items: []ItemInput{
			trip("Head office to Gulberg", "10", "25.5"),
			{Description: "Bank visit", Km: dec("4"), Rate: dec("30"), Amount: ptr(dec("100")), Date: "2025-09-03"},
		},
		Remarks: ptr("  September trips "),
	})
	require.NoError(t, err)

	assert.Equal(t, "September", r.Month)
	assert.Equal(t, StatusSubmitted, r.Status)
	assert.Equal(t, "September trips", r.Remarks)
	require.Len(t, r.Items, 2)
	assert.Equal(t, 1, r.Items[0].SrNo)
	assert.Equal(t, 2, r.Items[1].SrNo)
	assert.Equal(t, "255", r.Items[0].Amount.String())
	assert.Equal(t, "100", r.Items[1].Amount.String())
	assert.Equal(t, time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC), *r.Items[1].Date)
	assert.Equal(t, "14", r.TotalKm.String())
	assert.Equal(t, "355", r.TotalAmount.String())
}

func TestCreateAppendsToExistingPeriod(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	first, err := svc.Create(ctx, driver, CreateInput{Month: "September", Year: 2025, Items: []ItemInput{trip("A", "5", "10")}})
	require.NoError(t, err)

	second, err := svc.Create(ctx, driver, CreateInput{Month: "9", Year: 2025, Items: []ItemInput{trip("B", "2", "10"), trip("C", "1", "10")}, Status: ptr("draft")})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.rows, 1)
	assert.Equal(t, StatusDraft, second.Status)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, []int{1, 2, 3}, []int{second.Items[0].SrNo, second.Items[1].SrNo, second.Items[2].SrNo})
	assert.Equal(t, "80", second.TotalAmount.String())

	appended, err := svc.Create(ctx, driver, CreateInput{Month: "September", Year: 2025})
	require.NoError(t, err)
	assert.Len(t, appended.Items, 3)
}

func TestCreateAppendsAfterLosingInsertRace(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	_, err := svc.Create(ctx, driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "5", "10")}})
	require.NoError(t, err)

	store.hideOnce = true
	r, err := svc.Create(ctx, driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("B", "5", "10")}})
	require.NoError(t, err)
	assert.Len(t, store.rows, 1)
	assert.Len(t, r.Items, 2)
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		actor auth.UserContext
		in    CreateInput
		want  string
	}{
		{"missing month", driver, CreateInput{Year: 2025, Items: []ItemInput{trip("A", "1", "1")}}, "month and year are required"},
		{"missing year", driver, CreateInput{Month: "May", Items: []ItemInput{trip("A", "1", "1")}}, "month and year are required"},
		{"unknown month", driver, CreateInput{Month: "Smarch", Year: 2025, Items: []ItemInput{trip("A", "1", "1")}}, "Invalid month"},
		{"no items", driver, CreateInput{Month: "May", Year: 2025}, "At least one line item is required"},
		{"blank description", driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "1"), trip(" ", "1", "1")}}, "Line item 2: description is required"},
		{"negative km", driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "-1", "1")}}, "Line item 1: km and rate must be non-negative"},
		{"bad date", driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{{Description: "A", Date: "03/05/2025"}}}, "Line item 1: date is invalid"},
		{"bad status", driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "1")}, Status: ptr("paid")}, "Invalid status value"},
		{"employee approves", driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "1")}, Status: ptr("approved")}, "Only admin roles can approve or reject requisitions"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _ := newService()
			_, err := svc.Create(context.Background(), tc.actor, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.Empty(t, store.rows)
		})
	}
}

func TestListScopesAndPaginates(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	for _, month := range []string{"January", "February", "March"} {
		_, err := svc.Create(ctx, driver, CreateInput{Month: month, Year: 2025, Items: []ItemInput{trip("A", "1", "1")}})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, other, CreateInput{Month: "January", Year: 2025, Items: []ItemInput{trip("A", "1", "1")}})
	require.NoError(t, err)

	own, err := svc.List(ctx, other, ListQuery{UserID: driverID})
	require.NoError(t, err)
	assert.Equal(t, 1, own.Total)
	assert.Equal(t, otherID, own.Data[0].UserID)

	page, err := svc.List(ctx, admin, ListQuery{UserID: driverID, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "January", page.Data[0].Month)

	byMonth, err := svc.List(ctx, admin, ListQuery{Month: "jan", Year: "2025"})
	require.NoError(t, err)
	assert.Equal(t, 2, byMonth.Total)
	assert.Equal(t, defaultLimit, byMonth.Limit)

	empty, err := svc.List(ctx, admin, ListQuery{Status: "approved", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Equal(t, maxLimit, empty.Limit)

	_, err = svc.List(ctx, admin, ListQuery{Year: "twenty"})
	assert.ErrorIs(t, err, ErrInvalidYear)
	_, err = svc.List(ctx, admin, ListQuery{Status: "paid"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateRules(t *testing.T) {
	svc, _, notifier := newService()
	ctx := context.Background()
	r, err := svc.Create(ctx, driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "1")}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, other, r.ID, UpdateInput{Remarks: ptr("mine now")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, driver, r.ID, UpdateInput{Status: ptr("approved")})
	assert.ErrorIs(t, err, ErrAdminOnlyReview)
	_, err = svc.Update(ctx, driver, r.ID, UpdateInput{Items: []ItemInput{}})
	assert.ErrorIs(t, err, ErrItemsRequired)
	_, err = svc.Update(ctx, driver, r.ID, UpdateInput{Version: ptr(7)})
	assert.ErrorIs(t, err, ErrVersionConflict)

	updated, err := svc.Update(ctx, driver, r.ID, UpdateInput{
		Items:   []ItemInput{trip("B", "12.5", "20"), trip("C", "3", "20")},
		Remarks: ptr("revised"),
		Version: ptr(r.Version),
	})
	require.NoError(t, err)
	assert.Equal(t, driverID, updated.UserID)
	assert.Equal(t, "15.5", updated.TotalKm.String())
	assert.Equal(t, "310", updated.TotalAmount.String())
	assert.Equal(t, "revised", updated.Remarks)

	approved, err := svc.Update(ctx, admin, r.ID, UpdateInput{Status: ptr("Approved")})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	_, err = svc.Update(ctx, admin, r.ID, UpdateInput{Status: ptr("approved")})
	require.NoError(t, err)
	assert.Equal(t, []notice{{userID: driverID, event: EventReviewed}}, notifier.notices)
}

func TestLineItems(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	r, err := svc.Create(ctx, driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "10"), trip("B", "2", "10")}})
	require.NoError(t, err)

	added, err := svc.AddItem(ctx, driver, r.ID, ItemInput{Description: "C", Km: dec("3"), Rate: dec("10"), Verified: true})
	require.NoError(t, err)
	require.Len(t, added.Items, 3)
	assert.Equal(t, 3, added.Items[2].SrNo)
	assert.False(t, added.Items[2].Verified)
	assert.Equal(t, "60", added.TotalAmount.String())

	_, err = svc.AddItem(ctx, other, r.ID, trip("D", "1", "1"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.RemoveItem(ctx, driver, r.ID, 9)
	assert.ErrorIs(t, err, ErrItemNotFound)

	removed, err := svc.RemoveItem(ctx, driver, r.ID, 1)
	require.NoError(t, err)
	require.Len(t, removed.Items, 2)
	assert.Equal(t, "B", removed.Items[0].Description)
	assert.Equal(t, 1, removed.Items[0].SrNo)
	assert.Equal(t, "50", removed.TotalAmount.String())

	_, err = svc.RemoveItem(ctx, driver, r.ID, 1)
	require.NoError(t, err)
	_, err = svc.RemoveItem(ctx, driver, r.ID, 1)
	assert.ErrorIs(t, err, ErrItemsRequired)
}

func TestSetItemVerification(t *testing.T) {
	svc, _, notifier := newService()
	ctx := context.Background()
	r, err := svc.Create(ctx, driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "10"), trip("B", "2", "10")}})
	require.NoError(t, err)

	_, err = svc.SetItemVerification(ctx, driver, r.ID, 1, true)
	assert.ErrorIs(t, err, ErrAdminOnlyVerify)
	_, err = svc.SetItemVerification(ctx, admin, r.ID, 5, true)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = svc.SetItemVerification(ctx, admin, "missing", 1, true)
	assert.ErrorIs(t, err, ErrNotFound)

	verified, err := svc.SetItemVerification(ctx, admin, r.ID, 2, true)
	require.NoError(t, err)
	assert.False(t, verified.Items[0].Verified)
	assert.True(t, verified.Items[1].Verified)

	_, err = svc.SetItemVerification(ctx, admin, r.ID, 2, true)
	require.NoError(t, err)
	cleared, err := svc.SetItemVerification(ctx, admin, r.ID, 2, false)
	require.NoError(t, err)
	assert.False(t, cleared.Items[1].Verified)
	assert.Equal(t, []notice{{userID: driverID, event: EventVerified}}, notifier.notices)
}

func TestDeleteRules(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	r, err := svc.Create(ctx, driver, CreateInput{Month: "May", Year: 2025, Items: []ItemInput{trip("A", "1", "10")}})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, other, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	deleted, err := svc.Delete(ctx, admin, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, deleted.ID)
	assert.Empty(t, store.rows)
}

func TestFlagDecoding(t *testing.T) {
	cases := map[string]bool{
		`{"verified": true}`:    true,
		`{"verified": false}`:   false,
		`{"verified": "TRUE"}`:  true,
		`{"verified": "yes"}`:   false,
		`{"verified": 1}`:       true,
		`{"verified": 0}`:       false,
		`{"verified": null}`:    false,
		`{"verified": {"a":1}}`: true,
		`{}`:                    false,
	}
	for body, want := range cases {
		var in VerificationInput
		require.NoError(t, json.Unmarshal([]byte(body), &in), body)
		assert.Equal(t, want, bool(in.Verified), body)
	}
}
