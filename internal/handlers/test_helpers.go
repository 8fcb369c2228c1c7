package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/models"
	"github.com/tbarroso/cerbero/internal/services"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
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

// WithAuthContext adds access-token claims to the request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, username string) *http.Request {
	claims := &models.TokenClaims{
		Kind:     models.TokenKindAccess,
		Username: username,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "application/json"), "Content-Type should be application/json")

	if target != nil {
		if err := json.NewDecoder(w.Body).Decode(target); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockOrchestrator implements AuthOrchestrator for testing
type mockOrchestrator struct {
	AuthenticateFunc       func(ctx context.Context, email, password, sessionID, ipAddress, userAgent string) *services.LoginResult
	VerifySecondFactorFunc func(ctx context.Context, email, code, pendingToken, ipAddress, userAgent string) *services.LoginResult
}

func (m *mockOrchestrator) Authenticate(ctx context.Context, email, password, sessionID, ipAddress, userAgent string) *services.LoginResult {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password, sessionID, ipAddress, userAgent)
	}
	return &services.LoginResult{Message: "invalid credentials"}
}

func (m *mockOrchestrator) VerifySecondFactor(ctx context.Context, email, code, pendingToken, ipAddress, userAgent string) *services.LoginResult {
	if m.VerifySecondFactorFunc != nil {
		return m.VerifySecondFactorFunc(ctx, email, code, pendingToken, ipAddress, userAgent)
	}
	return &services.LoginResult{Message: "invalid credentials"}
}

// mockChallengeVerifier implements ChallengeVerifier for testing
type mockChallengeVerifier struct {
	IssueChallengeFunc func(ctx context.Context, sessionID string) (string, error)
	VerifyFunc         func(ctx context.Context, email, sessionID, answer, ipAddress, userAgent string) error
}

func (m *mockChallengeVerifier) IssueChallenge(ctx context.Context, sessionID string) (string, error) {
	if m.IssueChallengeFunc != nil {
		return m.IssueChallengeFunc(ctx, sessionID)
	}
	return "aW1hZ2U=", nil
}

func (m *mockChallengeVerifier) Verify(ctx context.Context, email, sessionID, answer, ipAddress, userAgent string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, sessionID, answer, ipAddress, userAgent)
	}
	return nil
}

// mockRegistrar implements AccountRegistrar for testing
type mockRegistrar struct {
	RegisterFunc func(ctx context.Context, username, email, password, ipAddress, userAgent string) (*models.User, error)
}

func (m *mockRegistrar) Register(ctx context.Context, username, email, password, ipAddress, userAgent string) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, username, email, password, ipAddress, userAgent)
	}
	return nil, models.ErrInternalServer
}

// mockHistorian implements AttemptHistorian for testing
type mockHistorian struct {
	HistoryFunc func(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error)
}

func (m *mockHistorian) History(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, identifier, limit)
	}
	return []*models.LoginAttempt{}, nil
}

// mockUserLookup implements UserLookup for testing
type mockUserLookup struct {
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
}

func (m *mockUserLookup) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}
