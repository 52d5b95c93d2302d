package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/BradenHooton/donorguard/internal/middleware"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/services"
	pkgauth "github.com/BradenHooton/donorguard/pkg/auth"
	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.LoginResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required"`
}

// LoginErrorResponse is an error envelope that also carries the defense decision
type LoginErrorResponse struct {
	pkghttp.ErrorResponse
	Decision *services.LoginDecision `json:"decision,omitempty"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} LoginErrorResponse
// @Failure 403 {object} LoginErrorResponse
// @Failure 423 {object} LoginErrorResponse
// @Failure 503 {object} LoginErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if len(req.Password) > pkgauth.MaxPasswordLen {
		pkghttp.WriteBadRequest(w, "validation failed: Password: too long")
		return
	}

	ip := middleware.ClientIPFromContext(r.Context())
	if ip == "" {
		ip = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, services.ClientInfo{
		IP:        ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		var decision *services.LoginDecision
		if result != nil {
			decision = result.Decision
		}
		writeLoginError(w, err, decision)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

func writeLoginError(w http.ResponseWriter, err error, decision *services.LoginDecision) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"

	switch {
	case errors.Is(err, models.ErrBadRequest):
		status, code, message = http.StatusBadRequest, "bad_request", "Invalid login request"
	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrAccountDisabled):
		// One message for every credential failure to prevent user enumeration
		status, code, message = http.StatusUnauthorized, "unauthorized", "Authentication failed"
	case errors.Is(err, models.ErrAccountLockedBySystem),
		errors.Is(err, models.ErrRateLimitExceeded):
		status, code, message = http.StatusLocked, "account_locked", "Too many failed login attempts. Please try again later."
		if errors.Is(err, models.ErrRateLimitExceeded) {
			code = "too_many_attempts"
		}
		if decision != nil && decision.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
		}
	case errors.Is(err, models.ErrIPBlacklisted):
		status, code, message = http.StatusForbidden, "forbidden", "Access denied"
	case errors.Is(err, models.ErrDefenseUnavailable):
		status, code, message = http.StatusServiceUnavailable, "service_unavailable", "Login is temporarily unavailable"
	}

	if status == http.StatusInternalServerError || status == http.StatusBadRequest {
		decision = nil
	}

	pkghttp.WriteJSON(w, status, LoginErrorResponse{
		ErrorResponse: pkghttp.ErrorResponse{Error: code, Message: message},
		Decision:      decision,
	})
}
