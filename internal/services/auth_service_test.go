package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/services"
	pkgauth "github.com/BradenHooton/donorguard/pkg/auth"
	pkglogger "github.com/BradenHooton/donorguard/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery"

type authFixture struct {
	*defenseFixture
	alerts *services.AlertService
	auth   *services.AuthService
	user   *models.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	hash, err := pkgauth.HashPasswordWithCost(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Email:        testEmail,
		PasswordHash: hash,
		Name:         "Test Donor",
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}

	f := newDefenseFixture()
	logger := testLogger()
	alerts := newAlertService(f.store, nil, f.clock)
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
	}

	return &authFixture{
		defenseFixture: f,
		alerts:         alerts,
		auth:           services.NewAuthService(repo, f.defense, alerts, f.clock, logger, pkglogger.NewAuditLogger(logger)),
		user:           user,
	}
}

var testClient = services.ClientInfo{IP: testIP, UserAgent: "Mozilla/5.0"}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.auth.Login(context.Background(), " Donor@Example.com ", testPassword, testClient)

	require.NoError(t, err)
	require.NotNil(t, result.User)
	assert.Equal(t, f.user.ID.String(), result.User.ID)
	assert.Equal(t, models.RoleUser, result.User.Role)
	assert.True(t, result.Decision.Allowed)

	require.Len(t, f.store.attempts, 1)
	assert.True(t, f.store.attempts[0].Success)
	assert.Equal(t, f.user.ID, *f.store.attempts[0].UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.auth.Login(context.Background(), testEmail, "wrong", testClient)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	require.NotNil(t, result)
	assert.Nil(t, result.User)
	assert.Equal(t, 4, *result.Decision.AttemptsRemaining)

	require.Len(t, f.store.attempts, 1)
	assert.False(t, f.store.attempts[0].Success)
	assert.Equal(t, models.FailureReasonInvalidCredentials, *f.store.attempts[0].FailureReason)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, testEmail, "wrong", testClient)
		require.ErrorIs(t, err, models.ErrUnauthorized)
	}

	result, err := f.auth.Login(ctx, testEmail, testPassword, testClient)
	f.alerts.Wait()

	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
	require.NotNil(t, result)
	assert.False(t, result.Decision.Allowed)
	assert.Equal(t, services.ReasonTooManyAttempts, result.Decision.Reason)
	assert.Equal(t, 900, result.Decision.RetryAfterSeconds)
	assert.Nil(t, result.User)

	lockouts := f.store.activeLockouts()
	require.Len(t, lockouts, 1)
	assert.Equal(t, models.LockoutScopeUser, lockouts[0].Scope)

	var locked int
	for _, a := range f.store.storedAlerts() {
		if a.Type == models.AlertTypeAccountLocked {
			locked++
		}
	}
	assert.Equal(t, 1, locked)

	// the denied attempt is recorded too
	assert.Len(t, f.store.attempts, 6)

	again, err := f.auth.Login(ctx, testEmail, testPassword, testClient)
	assert.ErrorIs(t, err, models.ErrAccountLockedBySystem)
	assert.Equal(t, services.ReasonAccountLocked, again.Decision.Reason)
}

func TestLogin_SuspiciousSuccessAlert(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = f.auth.Login(ctx, testEmail, "wrong", testClient)
	}

	_, err := f.auth.Login(ctx, testEmail, testPassword, testClient)
	f.alerts.Wait()

	require.NoError(t, err)
	alerts := f.store.storedAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeSuspiciousActivity, alerts[0].Type)
	assert.Equal(t, 60, alerts[0].Details.RiskScore)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
}

func TestLogin_NoSuspiciousAlertAfterSingleFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, _ = f.auth.Login(ctx, testEmail, "wrong", testClient)
	_, err := f.auth.Login(ctx, testEmail, testPassword, testClient)
	f.alerts.Wait()

	require.NoError(t, err)
	assert.Empty(t, f.store.storedAlerts())
}

func TestLogin_UnknownUserCountsAsFailure(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.auth.Login(context.Background(), "nobody@example.com", "whatever", testClient)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	require.NotNil(t, result)
	require.Len(t, f.store.attempts, 1)
	assert.Nil(t, f.store.attempts[0].UserID)
	assert.Equal(t, "nobody@example.com", *f.store.attempts[0].Email)
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.user.Status = models.StatusDisabled

	_, err := f.auth.Login(context.Background(), testEmail, testPassword, testClient)

	assert.ErrorIs(t, err, models.ErrAccountDisabled)
	assert.Equal(t, models.FailureReasonAccountDisabled, *f.store.attempts[0].FailureReason)
}

func TestLogin_BlacklistedIP(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.defense.BlacklistIP(context.Background(), services.ManualBlacklistInput{IP: testIP, AddedBy: "admin-1"})
	require.NoError(t, err)

	result, err := f.auth.Login(context.Background(), testEmail, testPassword, testClient)

	assert.ErrorIs(t, err, models.ErrIPBlacklisted)
	assert.Equal(t, services.ReasonIPBlacklisted, result.Decision.Reason)
	assert.Equal(t, models.FailureReasonIPBlacklisted, *f.store.attempts[0].FailureReason)
}

func TestLogin_FailsClosed(t *testing.T) {
	f := newAuthFixture(t)
	f.store.countErr = errors.New("connection reset")

	result, err := f.auth.Login(context.Background(), testEmail, testPassword, testClient)

	assert.ErrorIs(t, err, models.ErrDefenseUnavailable)
	require.NotNil(t, result)
	assert.False(t, result.Decision.Allowed)
	assert.Nil(t, result.User)
}

func TestLogin_RepositoryError(t *testing.T) {
	f := newDefenseFixture()
	logger := testLogger()
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, errors.New("pool exhausted")
		},
	}
	auth := services.NewAuthService(repo, f.defense, newAlertService(f.store, nil, f.clock), f.clock, logger, pkglogger.NewAuditLogger(logger))

	result, err := auth.Login(context.Background(), testEmail, testPassword, testClient)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Empty(t, f.store.attempts)
}

func TestLogin_EmptyEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), "   ", testPassword, testClient)

	assert.ErrorIs(t, err, models.ErrBadRequest)
}
