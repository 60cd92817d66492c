package attendancehandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/attendance"
	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Tracker interface {
	Mark(ctx context.Context, actor auth.UserContext, in attendance.MarkInput) (attendance.Record, error)
	Bulk(ctx context.Context, actor auth.UserContext, in attendance.BulkInput) (attendance.BulkResult, error)
	SelfMark(ctx context.Context, actor auth.UserContext, in attendance.SelfMarkInput) (attendance.Record, error)
	ByMonth(ctx context.Context, actor auth.UserContext, userID, year, month string) (attendance.MonthView, error)
	ByDate(ctx context.Context, actor auth.UserContext, date string) ([]attendance.Record, error)
	BranchReport(ctx context.Context, branch, year, month string) (attendance.BranchReport, error)
	UserMonthReport(ctx context.Context, actor auth.UserContext, userID, year, month string) (attendance.UserMonthReport, error)
}

type Handler struct {
	Service    Tracker
	Perms      middleware.PermissionStore
	Audit      shared.Auditor
	AllowedIPs []string
}

func NewHandler(service Tracker, perms middleware.PermissionStore, auditor shared.Auditor, allowedIPs []string) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, AllowedIPs: allowedIPs}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)
	mark := middleware.RequirePermission(auth.PermAttendanceMark, h.Perms)

	r.Route("/attendance", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(mark).Post("/mark", h.handleMark)
		r.With(mark).Post("/bulk", h.handleBulk)
		r.With(middleware.RequirePermission(auth.PermAttendanceSelf, h.Perms), middleware.AttendanceIPGuard(h.AllowedIPs)).
			Post("/self/mark", h.handleSelfMark)
		r.With(middleware.RequirePermission(auth.PermAttendanceReport, h.Perms)).Get("/report/monthly", h.handleBranchReport)
		r.With(read).Get("/report/user-month", h.handleUserMonthReport)
		r.With(read).Get("/by-month", h.handleByMonth)
		r.With(read).Get("/by-date", h.handleByDate)
	})
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload attendance.MarkInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	record, err := h.Service.Mark(r.Context(), actor, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionAttendanceMark, "attendance", record.ID, nil, record)
	api.Success(w, record, requestID)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload attendance.BulkInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	result, err := h.Service.Bulk(r.Context(), actor, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionAttendanceBulk, "attendance", result.Date, nil, payload)
	api.Success(w, result, requestID)
}

func (h *Handler) handleSelfMark(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload attendance.SelfMarkInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	record, err := h.Service.SelfMark(r.Context(), actor, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, record, requestID)
}

func (h *Handler) handleBranchReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	report, err := h.Service.BranchReport(r.Context(), query.Get("branch"), query.Get("year"), query.Get("month"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, report, requestID)
}

func (h *Handler) handleUserMonthReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	report, err := h.Service.UserMonthReport(r.Context(), actor, query.Get("userId"), query.Get("year"), query.Get("month"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, report, requestID)
}

func (h *Handler) handleByMonth(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	view, err := h.Service.ByMonth(r.Context(), actor, query.Get("userId"), query.Get("year"), query.Get("month"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, view, requestID)
}

func (h *Handler) handleByDate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	records, err := h.Service.ByDate(r.Context(), actor, r.URL.Query().Get("date"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]any{"records": records}, requestID)
}
