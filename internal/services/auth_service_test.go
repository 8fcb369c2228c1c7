package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbarroso/cerbero/internal/config"
	"github.com/tbarroso/cerbero/internal/models"
)

// authHarness wires an AuthService around shared mocks so each test can
// override only the collaborators it cares about.
type authHarness struct {
	svc      *AuthService
	users    *MockUserRepository
	attempts *MockAttemptRepository
	mailer   *MockEmailSender
	store    *MockChallengeStore
}

func newAuthHarness(cfg config.SecurityConfig) *authHarness {
	h := &authHarness{
		users:    &MockUserRepository{},
		attempts: &MockAttemptRepository{},
		mailer:   &MockEmailSender{},
		store:    &MockChallengeStore{},
	}

	logger := testLogger()
	audit := testAudit()
	tokens := newTestTokenManager()

	lockout := NewLockoutService(h.users, cfg, audit, logger)
	twoFactor := NewTwoFactorService(h.users, h.mailer, NewLocalEmailService(logger), tokens, cfg, audit, logger)
	captcha := NewCaptchaService(h.users, h.store, &MockChallengeGenerator{}, audit, logger)
	attempts := NewLoginAttemptService(h.attempts, 24*time.Hour, logger)

	h.svc = NewAuthService(h.users, plaintextVerifier{}, lockout, twoFactor, captcha, attempts, tokens, audit, cfg, logger)
	return h
}

func (h *authHarness) withUser(user *models.User) *authHarness {
	h.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		if email == user.Email {
			return user, nil
		}
		return nil, models.ErrNotFound
	}
	return h
}

func (h *authHarness) lastAttempt(t *testing.T) *models.LoginAttempt {
	t.Helper()
	require.NotEmpty(t, h.attempts.Recorded)
	return h.attempts.Recorded[len(h.attempts.Recorded)-1]
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	user := testUser()
	h := newAuthHarness(testSecurityConfig()).withUser(user)

	result := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")

	assert.True(t, result.Success)
	assert.Equal(t, "login successful", result.Message)
	assert.NotEmpty(t, result.Token)
	assert.Empty(t, result.PendingToken)
	assert.False(t, result.RequiresTwoFactor)
	assert.Equal(t, user.Username, result.Username)

	// the issued token is a full access token
	assert.True(t, newTestTokenManager().IsOfKind(result.Token, models.TokenKindAccess))

	require.Len(t, h.attempts.Recorded, 1)
	attempt := h.lastAttempt(t)
	assert.True(t, attempt.Success)
	assert.Nil(t, attempt.FailureReason)
}

func TestAuthService_Authenticate_EmailNormalized(t *testing.T) {
	user := testUser()
	h := newAuthHarness(testSecurityConfig()).withUser(user)

	result := h.svc.Authenticate(context.Background(), "  JDoe@Example.COM ", "s3cret!", "sess_1", "1.2.3.4", "test-agent")

	assert.True(t, result.Success)
}

func TestAuthService_Authenticate_UnknownUser(t *testing.T) {
	h := newAuthHarness(testSecurityConfig())

	result := h.svc.Authenticate(context.Background(), "ghost@example.com", "whatever", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "invalid credentials", result.Message)
	assert.Empty(t, result.Token)

	attempt := h.lastAttempt(t)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, "user not found", *attempt.FailureReason)
}

func TestAuthService_Authenticate_WrongPassword(t *testing.T) {
	user := testUser()
	h := newAuthHarness(testSecurityConfig()).withUser(user)

	result := h.svc.Authenticate(context.Background(), user.Email, "wrong", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "invalid credentials", result.Message)

	attempt := h.lastAttempt(t)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, "invalid password", *attempt.FailureReason)
}

func TestAuthService_Authenticate_IndistinguishableFailures(t *testing.T) {
	// unknown account and wrong password produce byte-identical outcomes
	user := testUser()
	h := newAuthHarness(testSecurityConfig()).withUser(user)

	unknown := h.svc.Authenticate(context.Background(), "ghost@example.com", "wrong", "sess_1", "1.2.3.4", "test-agent")
	wrongPwd := h.svc.Authenticate(context.Background(), user.Email, "wrong", "sess_1", "1.2.3.4", "test-agent")

	assert.Equal(t, unknown, wrongPwd)
}

func TestAuthService_Authenticate_LockTriggeredNoChallenge(t *testing.T) {
	user := testUser()
	h := newAuthHarness(testSecurityConfig()).withUser(user)
	h.users.IncrementFailedAttemptsFunc = func(ctx context.Context, username string) (int, error) {
		return 3, nil
	}

	result := h.svc.Authenticate(context.Background(), user.Email, "wrong", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "account temporarily locked", result.Message)
	assert.Empty(t, result.CaptchaImage)

	attempt := h.lastAttempt(t)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, "account locked", *attempt.FailureReason)
}

func TestAuthService_Authenticate_LockTriggeredIssuesChallenge(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.CaptchaEnabled = true

	user := testUser()
	h := newAuthHarness(cfg).withUser(user)
	h.users.IncrementFailedAttemptsFunc = func(ctx context.Context, username string) (int, error) {
		return 3, nil
	}
	var boundSession string
	h.store.PutFunc = func(ctx context.Context, sessionID, answer string) error {
		boundSession = sessionID
		return nil
	}

	result := h.svc.Authenticate(context.Background(), user.Email, "wrong", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "solve the challenge to retry", result.Message)
	assert.NotEmpty(t, result.CaptchaImage)
	assert.True(t, result.CaptchaEnabled)
	assert.Equal(t, "sess_1", boundSession)
}

func TestAuthService_Authenticate_LockedAccountShortCircuits(t *testing.T) {
	until := time.Now().Add(10 * time.Minute)
	user := testUser()
	user.AccountLocked = true
	user.LockExpiresAt = &until

	h := newAuthHarness(testSecurityConfig()).withUser(user)

	// even the correct password is rejected while the lock holds
	result := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "account temporarily locked", result.Message)
}

func TestAuthService_Authenticate_ExpiredLockRecovers(t *testing.T) {
	until := time.Now().Add(-1 * time.Minute)
	user := testUser()
	user.AccountLocked = true
	user.LockExpiresAt = &until
	user.FailedAttempts = 3

	h := newAuthHarness(testSecurityConfig()).withUser(user)

	result := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")

	assert.True(t, result.Success, "an expired lock reopens on the next attempt")
	assert.Equal(t, "login successful", result.Message)
}

func TestAuthService_Authenticate_SecondFactorBranch(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.TwoFactorEnabled = true

	user := testUser()
	h := newAuthHarness(cfg).withUser(user)

	result := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success, "password alone does not complete the login")
	assert.True(t, result.RequiresTwoFactor)
	assert.Equal(t, "verification code sent to your email", result.Message)
	assert.Empty(t, result.Token)
	assert.NotEmpty(t, result.PendingToken)
	assert.True(t, newTestTokenManager().IsOfKind(result.PendingToken, models.TokenKindPending))
	require.Len(t, h.mailer.SentCodes, 1)

	attempt := h.lastAttempt(t)
	assert.False(t, attempt.Success)
	assert.True(t, attempt.TwoFactorRequired)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, "awaiting second factor", *attempt.FailureReason)
}

func TestAuthService_Authenticate_RepoFaultStaysGeneric(t *testing.T) {
	h := newAuthHarness(testSecurityConfig())
	h.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return nil, errors.New("connection refused")
	}

	result := h.svc.Authenticate(context.Background(), "jdoe@example.com", "s3cret!", "sess_1", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "internal server error", result.Message)

	attempt := h.lastAttempt(t)
	require.NotNil(t, attempt.FailureReason)
	assert.Equal(t, "internal error", *attempt.FailureReason)
}

func TestAuthService_Authenticate_OneAttemptPerCall(t *testing.T) {
	user := testUser()
	h := newAuthHarness(testSecurityConfig()).withUser(user)

	h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")
	h.svc.Authenticate(context.Background(), user.Email, "wrong", "sess_1", "1.2.3.4", "test-agent")
	h.svc.Authenticate(context.Background(), "ghost@example.com", "wrong", "sess_1", "1.2.3.4", "test-agent")

	assert.Len(t, h.attempts.Recorded, 3, "exactly one attempt row per call")
}

func TestAuthService_VerifySecondFactor_Success(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.TwoFactorEnabled = true

	user := testUser()
	h := newAuthHarness(cfg).withUser(user)

	login := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")
	require.True(t, login.RequiresTwoFactor)
	require.NotNil(t, user.TwoFactorCode)
	code := *user.TwoFactorCode

	result := h.svc.VerifySecondFactor(context.Background(), user.Email, code, login.PendingToken, "1.2.3.4", "test-agent")

	assert.True(t, result.Success)
	assert.Equal(t, "login successful", result.Message)
	assert.NotEmpty(t, result.Token)
	assert.True(t, newTestTokenManager().IsOfKind(result.Token, models.TokenKindAccess))

	attempt := h.lastAttempt(t)
	assert.True(t, attempt.Success)
	assert.True(t, attempt.TwoFactorRequired)
}

func TestAuthService_VerifySecondFactor_WrongCode(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.TwoFactorEnabled = true

	user := testUser()
	h := newAuthHarness(cfg).withUser(user)

	login := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")
	wrong := "000000"
	if *user.TwoFactorCode == wrong {
		wrong = "000001"
	}

	result := h.svc.VerifySecondFactor(context.Background(), user.Email, wrong, login.PendingToken, "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, models.TwoFactorMsgCodeMismatch, result.Message)
	assert.Empty(t, result.Token)
}

func TestAuthService_VerifySecondFactor_PendingTokenRequired(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.TwoFactorEnabled = true

	user := testUser()
	h := newAuthHarness(cfg).withUser(user)

	login := h.svc.Authenticate(context.Background(), user.Email, "s3cret!", "sess_1", "1.2.3.4", "test-agent")
	require.True(t, login.RequiresTwoFactor)
	code := *user.TwoFactorCode

	accessToken, err := newTestTokenManager().GenerateAccessToken(user.Username)
	require.NoError(t, err)

	result := h.svc.VerifySecondFactor(context.Background(), user.Email, code, accessToken, "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, models.TwoFactorMsgInvalidToken, result.Message)
}

func TestAuthService_VerifySecondFactor_UnknownUser(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.TwoFactorEnabled = true
	h := newAuthHarness(cfg)

	result := h.svc.VerifySecondFactor(context.Background(), "ghost@example.com", "123456", "token", "1.2.3.4", "test-agent")

	assert.False(t, result.Success)
	assert.Equal(t, "invalid credentials", result.Message)
}
