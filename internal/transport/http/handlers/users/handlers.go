package usershandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Directory interface {
	Get(ctx context.Context, id string) (users.User, error)
	List(ctx context.Context, nameQuery string) ([]users.User, error)
	ListTeamLeads(ctx context.Context) ([]users.TeamLead, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in users.UpdateInput) (users.User, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) error
	SetSelfTeamLead(ctx context.Context, actor auth.UserContext, isTeamLead bool) (users.User, error)
}

type Handler struct {
	Service Directory
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
}

func NewHandler(service Directory, perms middleware.PermissionStore, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/", h.handleList)
		r.Get("/team-leads", h.handleListTeamLeads)
		r.Patch("/me/team-lead", h.handleSelfTeamLead)
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/{userID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Patch("/{userID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Delete("/{userID}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	list, err := h.Service.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, list, requestID)
}

func (h *Handler) handleListTeamLeads(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	leads, err := h.Service.ListTeamLeads(r.Context())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, leads, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, err := h.Service.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, user, requestID)
}

type teamLeadToggle struct {
	IsTeamLead *bool `json:"isTeamLead"`
}

func (h *Handler) handleSelfTeamLead(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload teamLeadToggle
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	if payload.IsTeamLead == nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "isTeamLead must be a boolean", requestID)
		return
	}
	updated, err := h.Service.SetSelfTeamLead(r.Context(), actor, *payload.IsTeamLead)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionUserTeamLeadSelf, "user", actor.UserID, nil, map[string]bool{"isTeamLead": updated.IsTeamLead})
	api.Success(w, updated, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "userID")

	var payload users.UpdateInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	before, err := h.Service.Get(r.Context(), id)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	updated, err := h.Service.Update(r.Context(), actor, id, payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionUserUpdate, "user", id, before, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "userID")

	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, actor, audit.ActionUserDelete, "user", id, nil, nil)
	api.Success(w, map[string]string{"id": id}, requestID)
}
