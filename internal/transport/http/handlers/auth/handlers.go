package authhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.RegisterResult, error)
	VerifyEmail(ctx context.Context, email, code string) (string, error)
	ResendOTP(ctx context.Context, email string) (string, error)
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
}

type Profiles interface {
	Get(ctx context.Context, id string) (users.User, error)
}

type Handler struct {
	Service      AuthService
	Users        Profiles
	SecureCookie bool
}

func NewHandler(service AuthService, profiles Profiles, secureCookie bool) *Handler {
	return &Handler{Service: service, Users: profiles, SecureCookie: secureCookie}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/verify-otp", h.HandleVerifyOTP)
		r.Post("/resend-otp", h.HandleResendOTP)
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.With(middleware.RequireAuth).Get("/me", h.HandleMe)
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload auth.RegisterInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	result, err := h.Service.Register(r.Context(), payload)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, result, requestID)
}

func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload otpRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	message, err := h.Service.VerifyEmail(r.Context(), payload.Email, payload.Code)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, messageResponse{Message: message}, requestID)
}

func (h *Handler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload otpRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	message, err := h.Service.ResendOTP(r.Context(), payload.Email)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, messageResponse{Message: message}, requestID)
}

// HandleLogin returns the token in the body and also sets it as an HttpOnly
// cookie for browser clients.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	result, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	api.Success(w, result, requestID)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	api.Success(w, messageResponse{Message: "Logged out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "Not authorized", requestID)
		return
	}
	profile, err := h.Users.Get(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, profile, requestID)
}
