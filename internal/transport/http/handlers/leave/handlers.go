package leavehandler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Workflow interface {
	Apply(ctx context.Context, actor auth.UserContext, in leave.ApplyInput) (leave.Request, error)
	List(ctx context.Context, actor auth.UserContext, q leave.ListQuery) ([]leave.Request, error)
	Get(ctx context.Context, actor auth.UserContext, id string) (leave.Request, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in leave.EditInput) (leave.Request, error)
	UpdateTeamLead(ctx context.Context, actor auth.UserContext, id string, in leave.TeamLeadEditInput) (leave.Request, error)
	UpdateStatus(ctx context.Context, actor auth.UserContext, id string, in leave.StatusInput) (leave.Request, error)
	MonthlyReport(ctx context.Context, actor auth.UserContext, userID, year, month string) (leave.MonthlyReport, error)
	YearlyReport(ctx context.Context, actor auth.UserContext, userID, year string) (leave.YearlyReport, error)
	SetAllowance(ctx context.Context, actor auth.UserContext, in leave.AllowanceInput) (leave.AllowanceResult, error)
	GetAllowance(ctx context.Context, actor auth.UserContext, userID string, year int) (leave.Allowance, error)
}

type Handler struct {
	Service     Workflow
	Perms       middleware.PermissionStore
	Audit       shared.Auditor
	Idempotency middleware.IdempotencyKeys
	now         func() time.Time
}

func NewHandler(service Workflow, perms middleware.PermissionStore, auditor shared.Auditor, keys middleware.IdempotencyKeys) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, Idempotency: keys, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermLeaveRead, h.Perms)
	review := middleware.RequirePermission(auth.PermLeaveReview, h.Perms)

	r.Route("/leaves", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(middleware.RequirePermission(auth.PermLeaveApply, h.Perms), middleware.Idempotent(h.Idempotency)).Post("/", h.handleApply)
		r.With(read).Get("/", h.handleList)
		r.With(read).Get("/report/monthly", h.handleMonthlyReport)
		r.With(read).Get("/report/monthly.pdf", h.handleMonthlyPDF)
		r.With(read).Get("/report/yearly", h.handleYearlyReport)
		r.With(read).Get("/allowance", h.handleGetAllowance)
		r.With(middleware.RequirePermission(auth.PermLeaveAllocate, h.Perms)).Put("/allowance", h.handleSetAllowance)
		r.With(read).Get("/{leaveID}", h.handleGet)
		r.With(review).Patch("/{leaveID}", h.handleUpdate)
		r.With(read).Patch("/{leaveID}/team-lead", h.handleTeamLeadUpdate)
		r.With(review).Patch("/{leaveID}/status", h.handleUpdateStatus)
	})
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload leave.ApplyInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	created, err := h.Service.Apply(r.Context(), actor, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()
	page := shared.ParsePagination(r, defaultListLimit, maxListLimit)

	leaves, err := h.Service.List(r.Context(), actor, leave.ListQuery{
		Status:         strings.TrimSpace(query.Get("status")),
		TeamLeadStatus: strings.TrimSpace(query.Get("teamLeadStatus")),
		UserID:         strings.TrimSpace(query.Get("userId")),
		Scope:          strings.TrimSpace(query.Get("scope")),
		Limit:          page.Limit,
		Offset:         page.Offset,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, leaves, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	found, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "leaveID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, found, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "leaveID")

	var payload leave.EditInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	before, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	updated, err := h.Service.Update(r.Context(), actor, id, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionLeaveEdit, "leave", id, before, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleTeamLeadUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "leaveID")

	var payload leave.TeamLeadEditInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	updated, err := h.Service.UpdateTeamLead(r.Context(), actor, id, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionLeaveReview, "leave", id, nil, updated.TeamLead)
	api.Success(w, updated, requestID)
}

type statusState struct {
	Status  leave.Status `json:"status"`
	Version int          `json:"version"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "leaveID")

	var payload leave.StatusInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	before, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	updated, err := h.Service.UpdateStatus(r.Context(), actor, id, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionLeaveStatus, "leave", id,
		statusState{Status: before.Status, Version: before.Version},
		statusState{Status: updated.Status, Version: updated.Version})
	api.Success(w, updated, requestID)
}

func (h *Handler) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	report, err := h.Service.MonthlyReport(r.Context(), actor, query.Get("userId"), query.Get("year"), query.Get("month"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, report, requestID)
}

func (h *Handler) handleMonthlyPDF(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	report, err := h.Service.MonthlyReport(r.Context(), actor, query.Get("userId"), query.Get("year"), query.Get("month"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	doc, err := leave.RenderMonthlyPDF(report)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	filename := fmt.Sprintf("leave-statement-%d-%02d.pdf", report.Period.Year, report.Period.Month)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *Handler) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	report, err := h.Service.YearlyReport(r.Context(), actor, query.Get("userId"), query.Get("year"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, report, requestID)
}

func (h *Handler) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	validator := shared.NewValidator()
	year, ok := validator.Int("year", query.Get("year"), 1970, 9999)
	if validator.Reject(w, requestID) {
		return
	}
	if !ok {
		year = h.now().UTC().Year()
	}
	allowance, err := h.Service.GetAllowance(r.Context(), actor, query.Get("userId"), year)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, allowance, requestID)
}

func (h *Handler) handleSetAllowance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload leave.AllowanceInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	result, err := h.Service.SetAllowance(r.Context(), actor, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionAllowanceUpdate, "leave_allowance",
		fmt.Sprintf("%s:%d", result.UserID, result.Year), nil, result)
	api.Success(w, result, requestID)
}
