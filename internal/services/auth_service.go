package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/donorguard/internal/models"
	pkgauth "github.com/BradenHooton/donorguard/pkg/auth"
	pkglogger "github.com/BradenHooton/donorguard/pkg/logger"
)

// UserRepository is the credential lookup used by the login flow
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// suspiciousFailureThreshold is the failure count before a success that raises an alert.
const suspiciousFailureThreshold = 2

// AuthService runs the defense pipeline in front of credential verification
type AuthService struct {
	repo        UserRepository
	defense     *LoginDefenseService
	alerts      *AlertService
	clock       Clock
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, defense *LoginDefenseService, alerts *AlertService, clock Clock, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		defense:     defense,
		alerts:      alerts,
		clock:       clock,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ClientInfo identifies where a login came from
type ClientInfo struct {
	IP        string
	UserAgent string
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResult carries the defense decision and, on success, the user.
type LoginResult struct {
	User     *UserResponse  `json:"user,omitempty"`
	Decision *LoginDecision `json:"decision"`
}

// Login checks the defense pipeline, verifies credentials and records the
// attempt. The result is non-nil whenever a decision was reached, including
// for denied and failed logins.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrBadRequest
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	identity := LoginIdentity{Email: email, IP: client.IP}
	if user != nil {
		identity.UserID = &user.ID
		identity.IsAdmin = user.IsAdmin()
	}

	decision, err := s.defense.CheckLoginAllowed(ctx, identity)
	if err != nil {
		if decision == nil {
			return nil, err
		}
		s.recordFailure(ctx, identity, client, decision.Reason)
		return &LoginResult{Decision: decision}, err
	}
	s.alerts.DispatchAsync(decision.Alerts...)

	if !decision.Allowed {
		s.recordFailure(ctx, identity, client, decision.Reason)
		return &LoginResult{Decision: decision}, deniedError(decision.Reason)
	}

	if user == nil {
		pkgauth.CompareDummy(password)
		s.defense.ApplyFailure(decision)
		s.recordFailure(ctx, identity, client, models.FailureReasonInvalidCredentials)
		return &LoginResult{Decision: decision}, models.ErrUnauthorized
	}

	if user.Status != models.StatusActive {
		s.defense.ApplyFailure(decision)
		s.recordFailure(ctx, identity, client, models.FailureReasonAccountDisabled)
		return &LoginResult{Decision: decision}, models.ErrAccountDisabled
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, pkgauth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable", slog.String("user_id", user.ID.String()), slog.Any("error", err))
		}
		s.defense.ApplyFailure(decision)
		s.recordFailure(ctx, identity, client, models.FailureReasonInvalidCredentials)
		return &LoginResult{Decision: decision}, models.ErrUnauthorized
	}

	if err := s.defense.RecordLoginAttempt(ctx, AttemptInput{
		Email:     email,
		UserID:    &user.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Success:   true,
	}); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}

	if failures := decision.Failures(); failures >= suspiciousFailureThreshold {
		riskScore := failures * 20
		if riskScore > 100 {
			riskScore = 100
		}
		s.alerts.DispatchAsync(NewSuspiciousActivityAlert(client.IP, email, riskScore,
			"successful login after repeated failures", s.clock.Now()))
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID.String()))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID.String(),
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Success:   true,
	})

	return &LoginResult{User: userModelToResponse(user), Decision: decision}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, identity LoginIdentity, client ClientInfo, reason string) {
	if err := s.defense.RecordLoginAttempt(ctx, AttemptInput{
		Email:         identity.Email,
		UserID:        identity.UserID,
		IP:            client.IP,
		UserAgent:     client.UserAgent,
		Success:       false,
		FailureReason: reason,
	}); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		Email:         identity.Email,
		IPAddress:     client.IP,
		UserAgent:     client.UserAgent,
		FailureReason: reason,
		Success:       false,
	}
	if identity.UserID != nil {
		event.UserID = identity.UserID.String()
	}
	s.auditLogger.LogAuthAttempt(event)
}

func deniedError(reason string) error {
	switch reason {
	case ReasonIPBlacklisted:
		return models.ErrIPBlacklisted
	case ReasonAccountLocked:
		return models.ErrAccountLockedBySystem
	case ReasonTooManyAttempts:
		return models.ErrRateLimitExceeded
	default:
		return models.ErrDefenseUnavailable
	}
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
