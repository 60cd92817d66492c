package leavehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/transport/http/middleware"
)

type stubWorkflow struct {
	mu        sync.Mutex
	applied   int
	listQuery leave.ListQuery
	statusIn  leave.StatusInput
	status    leave.Status
	statusErr error
	allowErr  error
	allowYear int
}

func (s *stubWorkflow) Apply(_ context.Context, actor auth.UserContext, in leave.ApplyInput) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied++
	return leave.Request{ID: "leave-1", UserID: actor.UserID, Status: leave.StatusPending, Version: 1}, nil
}

func (s *stubWorkflow) List(_ context.Context, _ auth.UserContext, q leave.ListQuery) ([]leave.Request, error) {
	s.listQuery = q
	return []leave.Request{}, nil
}

func (s *stubWorkflow) Get(_ context.Context, _ auth.UserContext, id string) (leave.Request, error) {
	if id != "leave-1" {
		return leave.Request{}, leave.ErrNotFound
	}
	status := s.status
	if status == "" {
		status = leave.StatusPending
	}
	return leave.Request{ID: id, Status: status, Version: 1}, nil
}

func (s *stubWorkflow) Update(_ context.Context, _ auth.UserContext, id string, _ leave.EditInput) (leave.Request, error) {
	return leave.Request{ID: id, Version: 2}, nil
}

func (s *stubWorkflow) UpdateTeamLead(_ context.Context, _ auth.UserContext, id string, _ leave.TeamLeadEditInput) (leave.Request, error) {
	return leave.Request{}, leave.ErrNotAssigned
}

func (s *stubWorkflow) UpdateStatus(_ context.Context, _ auth.UserContext, id string, in leave.StatusInput) (leave.Request, error) {
	s.statusIn = in
	if s.statusErr != nil {
		return leave.Request{}, s.statusErr
	}
	return leave.Request{ID: id, Status: leave.Status(in.Status), Version: 2}, nil
}

func (s *stubWorkflow) MonthlyReport(_ context.Context, _ auth.UserContext, _, year, month string) (leave.MonthlyReport, error) {
	if year == "" || month == "" {
		return leave.MonthlyReport{}, apperror.Validation("year and month are required")
	}
	return leave.MonthlyReport{
		User:   leave.ReportUser{ID: "emp", FullName: "Bilal Ahmed", EmployeeID: 7},
		Period: leave.Period{Year: 2025, Month: 3},
	}, nil
}

func (s *stubWorkflow) YearlyReport(_ context.Context, _ auth.UserContext, _, _ string) (leave.YearlyReport, error) {
	return leave.YearlyReport{Year: 2025}, nil
}

func (s *stubWorkflow) SetAllowance(_ context.Context, _ auth.UserContext, in leave.AllowanceInput) (leave.AllowanceResult, error) {
	if s.allowErr != nil {
		return leave.AllowanceResult{}, s.allowErr
	}
	return leave.AllowanceResult{UserID: in.UserID, Year: in.Year, Allowed: *in.Allowed, Remaining: *in.Remaining}, nil
}

func (s *stubWorkflow) GetAllowance(_ context.Context, _ auth.UserContext, _ string, year int) (leave.Allowance, error) {
	s.allowYear = year
	return leave.DefaultAllowance(), nil
}

type auditLog struct {
	events []recorded
}

type recorded struct {
	action string
	before any
	after  any
}

func (a *auditLog) Record(_ context.Context, _, action, _, _, _, _ string, before, after any) error {
	a.events = append(a.events, recorded{action: action, before: before, after: after})
	return nil
}

type memoryKeys struct {
	mu   sync.Mutex
	hash map[string]string
	resp map[string]middleware.StoredResponse
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{hash: map[string]string{}, resp: map[string]middleware.StoredResponse{}}
}

func (m *memoryKeys) Check(_ context.Context, userID, endpoint, key, requestHash string) (*middleware.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := userID + endpoint + key
	stored, ok := m.resp[id]
	if !ok {
		return nil, nil
	}
	if m.hash[id] != requestHash {
		return nil, middleware.ErrIdempotencyConflict
	}
	return &stored, nil
}

func (m *memoryKeys) Save(_ context.Context, userID, endpoint, key, requestHash string, resp middleware.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := userID + endpoint + key
	m.hash[id] = requestHash
	m.resp[id] = resp
	return nil
}

var (
	employee = auth.UserContext{UserID: "emp", RoleName: auth.RoleEmployee}
	hr       = auth.UserContext{UserID: "hr", RoleName: auth.RoleHR}
)

type fixture struct {
	workflow *stubWorkflow
	audit    *auditLog
	router   func(caller auth.UserContext) http.Handler
}

func newFixture() fixture {
	wf := &stubWorkflow{}
	log := &auditLog{}
	h := NewHandler(wf, auth.StaticPermissions{}, log, newMemoryKeys())
	h.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return fixture{
		workflow: wf,
		audit:    log,
		router: func(caller auth.UserContext) http.Handler {
			r := chi.NewRouter()
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), caller)))
				})
			})
			h.RegisterRoutes(r)
			return r
		},
	}
}

func do(handler http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestApplyReturnsCreated(t *testing.T) {
	f := newFixture()
	rec := do(f.router(employee), http.MethodPost, "/leaves", `{"leaveType":"full"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestApplyReplaysIdempotencyKey(t *testing.T) {
	f := newFixture()
	router := f.router(employee)
	body := `{"leaveType":"full","fromDate":"2025-03-10","toDate":"2025-03-12"}`

	first := do(router, http.MethodPost, "/leaves", body, middleware.IdempotencyHeader, "k-1")
	second := do(router, http.MethodPost, "/leaves", body, middleware.IdempotencyHeader, "k-1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected both 201, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed response")
	}
	if f.workflow.applied != 1 {
		t.Fatalf("expected one apply, got %d", f.workflow.applied)
	}

	conflict := do(router, http.MethodPost, "/leaves", `{"leaveType":"half"}`, middleware.IdempotencyHeader, "k-1")
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", conflict.Code)
	}
}

func TestListForwardsFilters(t *testing.T) {
	f := newFixture()
	rec := do(f.router(hr), http.MethodGet, "/leaves?status=pending&teamLeadStatus=approved&userId=emp&scope=team_lead&limit=500&offset=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	q := f.workflow.listQuery
	if q.Status != "pending" || q.TeamLeadStatus != "approved" || q.UserID != "emp" || q.Scope != leave.ScopeTeamLead {
		t.Fatalf("filters not forwarded: %+v", q)
	}
	if q.Limit != maxListLimit || q.Offset != 10 {
		t.Fatalf("pagination not clamped: %+v", q)
	}
}

func TestGetUnknownLeave(t *testing.T) {
	f := newFixture()
	rec := do(f.router(employee), http.MethodGet, "/leaves/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReviewRoutesRequireReviewPermission(t *testing.T) {
	f := newFixture()
	router := f.router(employee)
	cases := []struct {
		method, target, body string
	}{
		{http.MethodPatch, "/leaves/leave-1/status", `{"status":"accepted"}`},
		{http.MethodPatch, "/leaves/leave-1", `{"employerName":"x"}`},
		{http.MethodPut, "/leaves/allowance", `{"userId":"emp","year":2025,"allowed":12,"remaining":12}`},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			if rec := do(router, tc.method, tc.target, tc.body); rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
	if len(f.audit.events) != 0 {
		t.Fatalf("forbidden calls must not be audited")
	}
}

func TestUpdateStatusAudited(t *testing.T) {
	f := newFixture()
	rec := do(f.router(hr), http.MethodPatch, "/leaves/leave-1/status", `{"status":"accepted","remark":"ok","version":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.workflow.statusIn.Version == nil || *f.workflow.statusIn.Version != 1 {
		t.Fatalf("version not forwarded")
	}
	if len(f.audit.events) != 1 || f.audit.events[0].action != audit.ActionLeaveStatus {
		t.Fatalf("expected status audit, got %+v", f.audit.events)
	}
	before := f.audit.events[0].before.(statusState)
	after := f.audit.events[0].after.(statusState)
	if before.Status != leave.StatusPending || after.Status != leave.StatusAccepted {
		t.Fatalf("unexpected audit states %+v -> %+v", before, after)
	}
}

func TestUpdateStatusCapExceeded(t *testing.T) {
	f := newFixture()
	f.workflow.statusErr = leave.AllowanceExceededError(0.5)
	rec := do(f.router(hr), http.MethodPatch, "/leaves/leave-1/status", `{"status":"accepted"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Error == nil || env.Error.Code != "allowance_exceeded" {
		t.Fatalf("expected allowance_exceeded, got %+v", env.Error)
	}
	if env.Error.Message != "Annual leave limit exceeded. Remaining leaves: 0.50" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
	if env.Error.Details["remaining"] != 0.5 {
		t.Fatalf("expected remaining detail, got %+v", env.Error.Details)
	}
	if len(f.audit.events) != 0 {
		t.Fatalf("failed transition must not be audited")
	}
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	f := newFixture()
	f.workflow.statusErr = leave.ErrVersionConflict
	rec := do(f.router(hr), http.MethodPatch, "/leaves/leave-1/status", `{"status":"rejected","version":3}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Error.Code != "version_conflict" {
		t.Fatalf("expected version_conflict, got %s", env.Error.Code)
	}
}

func TestTeamLeadEditNotAssigned(t *testing.T) {
	f := newFixture()
	rec := do(f.router(employee), http.MethodPatch, "/leaves/leave-1/team-lead", `{"teamLead":{"status":"approved"}}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSetAllowanceRejectsBelowUsage(t *testing.T) {
	f := newFixture()
	f.workflow.allowErr = apperror.Validation("Remaining balance cannot exceed 6.75 day(s) because 3.25 day(s) have already been approved this year.").
		WithCode("allowance_below_usage").
		WithDetails(map[string]any{"actualUsed": 3.25, "maxRemaining": 6.75})
	rec := do(f.router(hr), http.MethodPut, "/leaves/allowance", `{"userId":"emp","year":2025,"allowed":10,"remaining":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Error.Details["maxRemaining"] != 6.75 || env.Error.Details["actualUsed"] != 3.25 {
		t.Fatalf("unexpected details %+v", env.Error.Details)
	}
}

func TestSetAllowanceAudited(t *testing.T) {
	f := newFixture()
	rec := do(f.router(hr), http.MethodPut, "/leaves/allowance", `{"userId":"emp","year":2025,"allowed":15,"remaining":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.audit.events) != 1 || f.audit.events[0].action != audit.ActionAllowanceUpdate {
		t.Fatalf("expected allowance audit, got %+v", f.audit.events)
	}
}

func TestGetAllowanceYear(t *testing.T) {
	f := newFixture()
	router := f.router(employee)

	if rec := do(router, http.MethodGet, "/leaves/allowance", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.workflow.allowYear != 2025 {
		t.Fatalf("expected current year default, got %d", f.workflow.allowYear)
	}
	if rec := do(router, http.MethodGet, "/leaves/allowance?year=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad year, got %d", rec.Code)
	}
}

func TestMonthlyReportRequiresPeriod(t *testing.T) {
	f := newFixture()
	if rec := do(f.router(employee), http.MethodGet, "/leaves/report/monthly?year=2025", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(f.router(employee), http.MethodGet, "/leaves/report/yearly?year=2025", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMonthlyPDF(t *testing.T) {
	f := newFixture()
	rec := do(f.router(employee), http.MethodGet, "/leaves/report/monthly.pdf?year=2025&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "leave-statement-2025-03.pdf") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a pdf")
	}
}
