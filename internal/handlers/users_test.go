package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbarroso/cerbero/internal/models"
	"github.com/tbarroso/cerbero/internal/services"
)

func newUserHandler(registrar AccountRegistrar, attempts AttemptHistorian, users UserLookup) *UserHandler {
	if registrar == nil {
		registrar = &mockRegistrar{}
	}
	if attempts == nil {
		attempts = &mockHistorian{}
	}
	if users == nil {
		users = &mockUserLookup{}
	}
	return NewUserHandler(registrar, attempts, users, testLogger())
}

func TestUserHandler_Register_Success(t *testing.T) {
	registrar := &mockRegistrar{
		RegisterFunc: func(ctx context.Context, username, email, password, ipAddress, userAgent string) (*models.User, error) {
			return &models.User{
				ID:        "user_123",
				Username:  username,
				Email:     email,
				CreatedAt: time.Now(),
			}, nil
		},
	}
	handler := newUserHandler(registrar, nil, nil)

	req := NewTestRequest(t, "POST", "/api/users/register", RegisterRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Password: "SecureP@ss123",
	})
	w := httptest.NewRecorder()

	handler.Register(w, req)

	var resp RegisterResponse
	AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "user_123", resp.ID)
	assert.Equal(t, "jdoe", resp.Username)
}

func TestUserHandler_Register_Duplicate(t *testing.T) {
	registrar := &mockRegistrar{
		RegisterFunc: func(ctx context.Context, username, email, password, ipAddress, userAgent string) (*models.User, error) {
			return nil, services.ErrDuplicateUser
		},
	}
	handler := newUserHandler(registrar, nil, nil)

	req := NewTestRequest(t, "POST", "/api/users/register", RegisterRequest{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Password: "SecureP@ss123",
	})
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUserHandler_Register_ShortUsername(t *testing.T) {
	handler := newUserHandler(nil, nil, nil)

	req := NewTestRequest(t, "POST", "/api/users/register", RegisterRequest{
		Username: "ab",
		Email:    "jdoe@example.com",
		Password: "SecureP@ss123",
	})
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_ListAttempts_Success(t *testing.T) {
	reason := "invalid password"
	attempts := &mockHistorian{
		HistoryFunc: func(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
			assert.Equal(t, "jdoe@example.com", identifier)
			return []*models.LoginAttempt{
				{AttemptTime: time.Now(), IPAddress: "1.2.3.4", Success: true},
				{AttemptTime: time.Now(), IPAddress: "1.2.3.4", Success: false, FailureReason: &reason},
			}, nil
		},
	}
	users := &mockUserLookup{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return &models.User{Username: username, Email: "jdoe@example.com"}, nil
		},
	}
	handler := newUserHandler(nil, attempts, users)

	req := WithAuthContext(NewTestRequest(t, "GET", "/api/users/attempts", nil), "jdoe")
	w := httptest.NewRecorder()

	handler.ListAttempts(w, req)

	var views []AttemptView
	AssertJSONResponse(t, w, http.StatusOK, &views)
	require.Len(t, views, 2)
	assert.True(t, views[0].Success)
	assert.Equal(t, "invalid password", views[1].FailureReason)
}

func TestUserHandler_ListAttempts_Unauthenticated(t *testing.T) {
	handler := newUserHandler(nil, nil, nil)

	req := NewTestRequest(t, "GET", "/api/users/attempts", nil)
	w := httptest.NewRecorder()

	handler.ListAttempts(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_ListAttempts_BadLimit(t *testing.T) {
	users := &mockUserLookup{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return &models.User{Username: username, Email: "jdoe@example.com"}, nil
		},
	}
	handler := newUserHandler(nil, nil, users)

	req := WithAuthContext(NewTestRequest(t, "GET", "/api/users/attempts?limit=banana", nil), "jdoe")
	w := httptest.NewRecorder()

	handler.ListAttempts(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
