package fuelhandler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/fuel"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Requisitions interface {
	Create(ctx context.Context, actor auth.UserContext, in fuel.CreateInput) (fuel.Requisition, error)
	List(ctx context.Context, actor auth.UserContext, q fuel.ListQuery) (fuel.Page, error)
	Get(ctx context.Context, actor auth.UserContext, id string) (fuel.Requisition, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in fuel.UpdateInput) (fuel.Requisition, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) (fuel.Requisition, error)
	AddItem(ctx context.Context, actor auth.UserContext, id string, in fuel.ItemInput) (fuel.Requisition, error)
	RemoveItem(ctx context.Context, actor auth.UserContext, id string, srNo int) (fuel.Requisition, error)
	SetItemVerification(ctx context.Context, actor auth.UserContext, id string, srNo int, verified bool) (fuel.Requisition, error)
}

type Handler struct {
	Service Requisitions
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
}

func NewHandler(service Requisitions, perms middleware.PermissionStore, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	claim := middleware.RequirePermission(auth.PermFuelClaim, h.Perms)

	r.Route("/fuel-requisitions", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(claim).Post("/", h.handleCreate)
		r.With(claim).Get("/", h.handleList)
		r.With(claim).Get("/{requisitionID}", h.handleGet)
		r.With(claim).Patch("/{requisitionID}", h.handleUpdate)
		r.With(claim).Delete("/{requisitionID}", h.handleDelete)
		r.With(claim).Post("/{requisitionID}/items", h.handleAddItem)
		r.With(claim).Delete("/{requisitionID}/items/{srNo}", h.handleRemoveItem)
		r.With(middleware.RequirePermission(auth.PermFuelVerify, h.Perms)).
			Patch("/{requisitionID}/items/{srNo}/verification", h.handleVerification)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload fuel.CreateInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	saved, err := h.Service.Create(r.Context(), actor, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, saved, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	query := r.URL.Query()

	page, err := h.Service.List(r.Context(), actor, fuel.ListQuery{
		UserID: query.Get("user"),
		Month:  query.Get("month"),
		Year:   query.Get("year"),
		Status: query.Get("status"),
		Q:      query.Get("q"),
		Page:   atoi(query.Get("page")),
		Limit:  atoi(query.Get("limit")),
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, page, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	found, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "requisitionID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, found, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requisitionID")

	var payload fuel.UpdateInput
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
	shared.RecordAudit(r, h.Audit, actor, audit.ActionFuelUpdate, "fuel_requisition", id, before, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requisitionID")

	deleted, err := h.Service.Delete(r.Context(), actor, id)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionFuelDelete, "fuel_requisition", id, deleted, nil)
	api.Success(w, map[string]bool{"ok": true}, requestID)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requisitionID")

	var payload fuel.ItemInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	updated, err := h.Service.AddItem(r.Context(), actor, id, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionFuelUpdate, "fuel_requisition", id, nil, updated.Items)
	api.Created(w, updated, requestID)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requisitionID")

	srNo, ok := parseSrNo(r)
	if !ok {
		api.FailError(w, fuel.ErrItemNotFound, requestID)
		return
	}
	updated, err := h.Service.RemoveItem(r.Context(), actor, id, srNo)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionFuelUpdate, "fuel_requisition", id, nil, updated.Items)
	api.Success(w, updated, requestID)
}

type verificationState struct {
	SrNo     int  `json:"srNo"`
	Verified bool `json:"verified"`
}

func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requisitionID")

	srNo, ok := parseSrNo(r)
	if !ok {
		api.FailError(w, fuel.ErrItemNotFound, requestID)
		return
	}
	var payload fuel.VerificationInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	updated, err := h.Service.SetItemVerification(r.Context(), actor, id, srNo, bool(payload.Verified))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionFuelItemVerify, "fuel_requisition", id, nil,
		verificationState{SrNo: srNo, Verified: bool(payload.Verified)})
	api.Success(w, updated, requestID)
}

func parseSrNo(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "srNo"))
	return n, err == nil && n > 0
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}
