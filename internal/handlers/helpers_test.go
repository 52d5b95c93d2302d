package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/donorguard/internal/models"
	"github.com/BradenHooton/donorguard/internal/services"
	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithURLParams attaches chi route params to the request
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password string, client services.ClientInfo) (*services.LoginResult, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, client)
}

// MockDonorSearchService implements DonorSearchServiceInterface for testing
type MockDonorSearchService struct {
	SearchFunc func(ctx context.Context, q services.DonorSearchQuery) (*services.DonorSearchResult, error)
}

func (m *MockDonorSearchService) Search(ctx context.Context, q services.DonorSearchQuery) (*services.DonorSearchResult, error) {
	if m.SearchFunc == nil {
		return &services.DonorSearchResult{}, nil
	}
	return m.SearchFunc(ctx, q)
}

// MockSecurityAdminService implements SecurityAdminServiceInterface for testing
type MockSecurityAdminService struct {
	OverviewFunc         func(ctx context.Context) (*services.SecurityOverview, error)
	ListAlertsFunc       func(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, int, error)
	UnreadAlertCountFunc func(ctx context.Context) (int, error)
	MarkAlertReadFunc    func(ctx context.Context, id uuid.UUID, adminID string) error
	ListLockoutsFunc     func(ctx context.Context, limit, offset int) ([]*models.AccountLockout, error)
	UnlockFunc           func(ctx context.Context, scope models.LockoutScope, key, adminID string) error
	ListBlacklistFunc    func(ctx context.Context, limit, offset int) ([]*models.IPBlacklistEntry, error)
	AddBlacklistFunc     func(ctx context.Context, in services.ManualBlacklistInput) (*models.IPBlacklistEntry, error)
	RemoveBlacklistFunc  func(ctx context.Context, ip, adminID string) error
}

func (m *MockSecurityAdminService) Overview(ctx context.Context) (*services.SecurityOverview, error) {
	if m.OverviewFunc == nil {
		return &services.SecurityOverview{}, nil
	}
	return m.OverviewFunc(ctx)
}

func (m *MockSecurityAdminService) ListAlerts(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.AdminAlert, int, error) {
	if m.ListAlertsFunc == nil {
		return []*models.AdminAlert{}, 0, nil
	}
	return m.ListAlertsFunc(ctx, filter, limit, offset)
}

func (m *MockSecurityAdminService) UnreadAlertCount(ctx context.Context) (int, error) {
	if m.UnreadAlertCountFunc == nil {
		return 0, nil
	}
	return m.UnreadAlertCountFunc(ctx)
}

func (m *MockSecurityAdminService) MarkAlertRead(ctx context.Context, id uuid.UUID, adminID string) error {
	if m.MarkAlertReadFunc == nil {
		return nil
	}
	return m.MarkAlertReadFunc(ctx, id, adminID)
}

func (m *MockSecurityAdminService) ListLockouts(ctx context.Context, limit, offset int) ([]*models.AccountLockout, error) {
	if m.ListLockoutsFunc == nil {
		return []*models.AccountLockout{}, nil
	}
	return m.ListLockoutsFunc(ctx, limit, offset)
}

func (m *MockSecurityAdminService) Unlock(ctx context.Context, scope models.LockoutScope, key, adminID string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, scope, key, adminID)
}

func (m *MockSecurityAdminService) ListBlacklist(ctx context.Context, limit, offset int) ([]*models.IPBlacklistEntry, error) {
	if m.ListBlacklistFunc == nil {
		return []*models.IPBlacklistEntry{}, nil
	}
	return m.ListBlacklistFunc(ctx, limit, offset)
}

func (m *MockSecurityAdminService) AddBlacklist(ctx context.Context, in services.ManualBlacklistInput) (*models.IPBlacklistEntry, error) {
	if m.AddBlacklistFunc == nil {
		return &models.IPBlacklistEntry{IPAddress: in.IP}, nil
	}
	return m.AddBlacklistFunc(ctx, in)
}

func (m *MockSecurityAdminService) RemoveBlacklist(ctx context.Context, ip, adminID string) error {
	if m.RemoveBlacklistFunc == nil {
		return nil
	}
	return m.RemoveBlacklistFunc(ctx, ip, adminID)
}
