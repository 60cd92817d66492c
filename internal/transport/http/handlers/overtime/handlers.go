package overtimehandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/overtime"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Claims interface {
	Create(ctx context.Context, actor auth.UserContext, in overtime.CreateInput) (overtime.Claim, error)
	List(ctx context.Context, actor auth.UserContext, q overtime.ListQuery) ([]overtime.Claim, error)
	Get(ctx context.Context, actor auth.UserContext, id string) (overtime.Claim, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in overtime.UpdateInput) (overtime.Claim, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) (overtime.Claim, error)
	MonthlyReport(ctx context.Context, actor auth.UserContext, q overtime.ReportQuery) (overtime.MonthlyReport, error)
}

type Handler struct {
	Service Claims
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
}

func NewHandler(service Claims, perms middleware.PermissionStore, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	claim := middleware.RequirePermission(auth.PermOvertimeClaim, h.Perms)

	r.Route("/instructor-overtime", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(claim).Post("/", h.handleCreate)
		r.With(claim).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermOvertimeReport, h.Perms)).Get("/reports/monthly", h.handleMonthlyReport)
		r.With(claim).Get("/{claimID}", h.handleGet)
		r.With(claim).Patch("/{claimID}", h.handleUpdate)
		r.With(claim).Delete("/{claimID}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload overtime.CreateInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	created, err := h.Service.Create(r.Context(), actor, payload)
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

	claims, err := h.Service.List(r.Context(), actor, overtime.ListQuery{
		UserID:   query.Get("userId"),
		Date:     query.Get("date"),
		Verified: query.Get("verified"),
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, claims, requestID)
}

func (h *Handler) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	report, err := h.Service.MonthlyReport(r.Context(), actor, overtime.ReportQuery{
		Year:         query.Get("year"),
		Month:        query.Get("month"),
		InstructorID: query.Get("instructorId"),
		BranchName:   query.Get("branchName"),
		Verified:     query.Get("verified"),
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, report, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	found, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "claimID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, found, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "claimID")

	var payload overtime.UpdateInput
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
	shared.RecordAudit(r, h.Audit, actor, audit.ActionOvertimeUpdate, "overtime_claim", id, before, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "claimID")

	deleted, err := h.Service.Delete(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionOvertimeDelete, "overtime_claim", id, deleted, nil)
	api.Success(w, map[string]string{"message": "Overtime claim deleted"}, requestID)
}
