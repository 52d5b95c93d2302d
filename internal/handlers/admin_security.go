package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/donorguard/internal/middleware"
	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/services"
	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SecurityAdminServiceInterface defines the admin security contract
type SecurityAdminServiceInterface interface {
	Overview(ctx context.Context) (*services.SecurityOverview, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, int, error)
	UnreadAlertCount(ctx context.Context) (int, error)
	MarkAlertRead(ctx context.Context, id uuid.UUID, adminID string) error
	ListLockouts(ctx context.Context, limit, offset int) ([]*models.AccountLockout, error)
	Unlock(ctx context.Context, scope models.LockoutScope, key, adminID string) error
	ListBlacklist(ctx context.Context, limit, offset int) ([]*models.IPBlacklistEntry, error)
	AddBlacklist(ctx context.Context, in services.ManualBlacklistInput) (*models.IPBlacklistEntry, error)
	RemoveBlacklist(ctx context.Context, ip, adminID string) error
}

// AdminSecurityHandler serves /admin/security
type AdminSecurityHandler struct {
	service SecurityAdminServiceInterface
}

// NewAdminSecurityHandler creates a new AdminSecurityHandler
func NewAdminSecurityHandler(service SecurityAdminServiceInterface) *AdminSecurityHandler {
	return &AdminSecurityHandler{service: service}
}

// AlertListParams are the validated filters of an alert listing
type AlertListParams struct {
	Type     string `validate:"omitempty,oneof=ip_blacklisted multiple_failed_attempts suspicious_activity rate_limit_exceeded account_locked"`
	Severity string `validate:"omitempty,oneof=low medium high critical"`
}

// UnlockRequest represents the request body for clearing a lockout
type UnlockRequest struct {
	Scope string `json:"scope" validate:"required,oneof=user email ip"`
	Key   string `json:"key" validate:"required,max=320"`
}

// BlacklistRequest represents the request body for a manual blacklist entry
type BlacklistRequest struct {
	IP             string `json:"ip" validate:"required,ip"`
	Reason         string `json:"reason" validate:"omitempty,oneof=malicious brute_force spam geographic manual"`
	Severity       string `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Description    string `json:"description" validate:"max=500"`
	ExpiresInHours *int   `json:"expires_in_hours" validate:"omitempty,gt=0,lte=8760"`
}

// Overview handles GET /admin/security/overview
func (h *AdminSecurityHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load security overview")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, overview)
}

// ListAlerts handles GET /admin/security/alerts?type=&severity=&unread=&limit=&offset=
func (h *AdminSecurityHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := AlertListParams{Type: q.Get("type"), Severity: q.Get("severity")}
	if err := ValidateRequest(params); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	filter := models.AlertFilter{
		Type:     models.AlertType(params.Type),
		Severity: models.Severity(params.Severity),
	}
	if unread := q.Get("unread"); unread != "" {
		v, err := strconv.ParseBool(unread)
		if err != nil {
			pkghttp.WriteBadRequest(w, "unread must be a boolean")
			return
		}
		filter.UnreadOnly = v
	}
	limit, offset := parsePagination(r)

	alerts, total, err := h.service.ListAlerts(r.Context(), filter, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list alerts")
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// UnreadCount handles GET /admin/security/alerts/unread-count
func (h *AdminSecurityHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadAlertCount(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to count alerts")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkAlertRead handles POST /admin/security/alerts/{id}/read
func (h *AdminSecurityHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid alert id")
		return
	}

	if err := h.service.MarkAlertRead(r.Context(), id, middleware.AdminIDFromContext(r.Context())); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Alert not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to mark alert read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLockouts handles GET /admin/security/lockouts
func (h *AdminSecurityHandler) ListLockouts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	lockouts, err := h.service.ListLockouts(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list lockouts")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lockouts": lockouts,
		"limit":    limit,
		"offset":   offset,
	})
}

// Unlock handles POST /admin/security/lockouts/unlock
func (h *AdminSecurityHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.Unlock(r.Context(), models.LockoutScope(req.Scope), req.Key, middleware.AdminIDFromContext(r.Context()))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "No active lockout for that key")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, "Failed to unlock")
	}
}

// ListBlacklist handles GET /admin/security/blacklist
func (h *AdminSecurityHandler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	entries, err := h.service.ListBlacklist(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list blacklist")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// AddBlacklist handles POST /admin/security/blacklist
func (h *AdminSecurityHandler) AddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	in := services.ManualBlacklistInput{
		IP:          req.IP,
		Reason:      models.BlacklistReason(req.Reason),
		Severity:    models.Severity(req.Severity),
		Description: req.Description,
		AddedBy:     middleware.AdminIDFromContext(r.Context()),
	}
	if req.ExpiresInHours != nil {
		ttl := time.Duration(*req.ExpiresInHours) * time.Hour
		in.TTL = &ttl
	}

	entry, err := h.service.AddBlacklist(r.Context(), in)
	switch {
	case err == nil:
		pkghttp.WriteJSON(w, http.StatusCreated, entry)
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "IP address is already blacklisted")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, "Failed to blacklist IP address")
	}
}

// RemoveBlacklist handles DELETE /admin/security/blacklist/{ip}
func (h *AdminSecurityHandler) RemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		pkghttp.WriteBadRequest(w, "ip is required")
		return
	}

	err := h.service.RemoveBlacklist(r.Context(), ip, middleware.AdminIDFromContext(r.Context()))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "IP address is not blacklisted")
	default:
		pkghttp.WriteInternalError(w, "Failed to remove blacklist entry")
	}
}
