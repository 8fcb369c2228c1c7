package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/models"
)

const testJWTSecret = "test-secret-key-that-is-long-enough-0123456789"

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testJWTSecret, 15*time.Minute, 5*time.Minute)
}

func newTwoFactorService(repo UserRepository, mailer EmailSender) *TwoFactorService {
	cfg := testSecurityConfig()
	cfg.TwoFactorEnabled = true
	return NewTwoFactorService(repo, mailer, NewLocalEmailService(testLogger()), newTestTokenManager(), cfg, testAudit(), testLogger())
}

func TestTwoFactorService_IssueCode_StoresAndSends(t *testing.T) {
	user := testUser()

	var storedCode string
	var storedExpiry time.Time
	repo := &MockUserRepository{
		UpdateTwoFactorCodeFunc: func(ctx context.Context, username, code string, expiresAt time.Time) error {
			storedCode = code
			storedExpiry = expiresAt
			return nil
		},
	}
	mailer := &MockEmailSender{}
	svc := newTwoFactorService(repo, mailer)

	pendingToken, err := svc.IssueCode(context.Background(), user)

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), storedCode, "code must be six zero-padded digits")
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), storedExpiry, 5*time.Second)
	require.Len(t, mailer.SentCodes, 1)
	assert.Equal(t, storedCode, mailer.SentCodes[0])

	// the returned token is a pending-session token, not an access token
	tm := newTestTokenManager()
	assert.True(t, tm.IsOfKind(pendingToken, models.TokenKindPending))
	assert.False(t, tm.IsOfKind(pendingToken, models.TokenKindAccess))
}

func TestTwoFactorService_IssueCode_DeliveryFailureFallsBack(t *testing.T) {
	user := testUser()
	mailer := &MockEmailSender{
		SendTwoFactorCodeFunc: func(ctx context.Context, email, username, code string) error {
			return errors.New("ses unavailable")
		},
	}
	svc := newTwoFactorService(&MockUserRepository{}, mailer)

	pendingToken, err := svc.IssueCode(context.Background(), user)

	require.NoError(t, err, "delivery failure must not abort the login")
	assert.NotEmpty(t, pendingToken)
}

func TestTwoFactorService_IssueCode_ReplacesPreviousCode(t *testing.T) {
	user := testUser()
	codes := make([]string, 0, 2)
	repo := &MockUserRepository{
		UpdateTwoFactorCodeFunc: func(ctx context.Context, username, code string, expiresAt time.Time) error {
			codes = append(codes, code)
			return nil
		},
	}
	svc := newTwoFactorService(repo, &MockEmailSender{})

	_, err := svc.IssueCode(context.Background(), user)
	require.NoError(t, err)
	_, err = svc.IssueCode(context.Background(), user)
	require.NoError(t, err)

	require.Len(t, codes, 2)
	assert.Equal(t, codes[1], *user.TwoFactorCode, "only the latest code is live")
}

func issuedUserAndToken(t *testing.T, svc *TwoFactorService) (*models.User, string) {
	t.Helper()
	user := testUser()
	token, err := svc.IssueCode(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, user.TwoFactorCode)
	return user, token
}

func TestTwoFactorService_VerifyCode_Success(t *testing.T) {
	cleared := false
	repo := &MockUserRepository{
		ClearTwoFactorCodeFunc: func(ctx context.Context, username string) error {
			cleared = true
			return nil
		},
	}
	svc := newTwoFactorService(repo, &MockEmailSender{})
	user, token := issuedUserAndToken(t, svc)
	code := *user.TwoFactorCode

	err := svc.VerifyCode(context.Background(), user, code, token)

	require.NoError(t, err)
	assert.True(t, cleared, "a used code must not survive for replay")
	assert.Nil(t, user.TwoFactorCode)
}

func TestTwoFactorService_VerifyCode_InvalidToken(t *testing.T) {
	svc := newTwoFactorService(&MockUserRepository{}, &MockEmailSender{})
	user, _ := issuedUserAndToken(t, svc)

	err := svc.VerifyCode(context.Background(), user, *user.TwoFactorCode, "not-a-token")

	tfe, ok := models.AsTwoFactorError(err)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgInvalidToken, tfe.Message)
	assert.NotNil(t, user.TwoFactorCode, "token-stage failures leave the code intact")
}

func TestTwoFactorService_VerifyCode_AccessTokenRejected(t *testing.T) {
	svc := newTwoFactorService(&MockUserRepository{}, &MockEmailSender{})
	user, _ := issuedUserAndToken(t, svc)

	accessToken, err := newTestTokenManager().GenerateAccessToken(user.Username)
	require.NoError(t, err)

	verr := svc.VerifyCode(context.Background(), user, *user.TwoFactorCode, accessToken)

	tfe, ok := models.AsTwoFactorError(verr)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgInvalidToken, tfe.Message)
}

func TestTwoFactorService_VerifyCode_SubjectMismatch(t *testing.T) {
	svc := newTwoFactorService(&MockUserRepository{}, &MockEmailSender{})
	user, _ := issuedUserAndToken(t, svc)

	otherToken, err := newTestTokenManager().GeneratePendingToken("someone_else")
	require.NoError(t, err)

	verr := svc.VerifyCode(context.Background(), user, *user.TwoFactorCode, otherToken)

	tfe, ok := models.AsTwoFactorError(verr)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgSubjectMismatch, tfe.Message)
}

func TestTwoFactorService_VerifyCode_NoStoredCode(t *testing.T) {
	svc := newTwoFactorService(&MockUserRepository{}, &MockEmailSender{})
	user, token := issuedUserAndToken(t, svc)
	user.TwoFactorCode = nil
	user.TwoFactorExpiresAt = nil

	err := svc.VerifyCode(context.Background(), user, "123456", token)

	tfe, ok := models.AsTwoFactorError(err)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgCodeNotFound, tfe.Message)
}

func TestTwoFactorService_VerifyCode_Expired(t *testing.T) {
	cleared := false
	repo := &MockUserRepository{
		ClearTwoFactorCodeFunc: func(ctx context.Context, username string) error {
			cleared = true
			return nil
		},
	}
	svc := newTwoFactorService(repo, &MockEmailSender{})
	user, token := issuedUserAndToken(t, svc)
	code := *user.TwoFactorCode
	past := time.Now().Add(-1 * time.Minute)
	user.TwoFactorExpiresAt = &past

	err := svc.VerifyCode(context.Background(), user, code, token)

	tfe, ok := models.AsTwoFactorError(err)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgCodeExpired, tfe.Message)
	assert.True(t, cleared)
}

func TestTwoFactorService_VerifyCode_Mismatch(t *testing.T) {
	cleared := false
	repo := &MockUserRepository{
		ClearTwoFactorCodeFunc: func(ctx context.Context, username string) error {
			cleared = true
			return nil
		},
	}
	svc := newTwoFactorService(repo, &MockEmailSender{})
	user, token := issuedUserAndToken(t, svc)
	wrong := "000000"
	if *user.TwoFactorCode == wrong {
		wrong = "000001"
	}

	err := svc.VerifyCode(context.Background(), user, wrong, token)

	tfe, ok := models.AsTwoFactorError(err)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgCodeMismatch, tfe.Message)
	assert.True(t, cleared, "a wrong guess burns the code")
}

func TestTwoFactorService_VerifyCode_SingleUse(t *testing.T) {
	svc := newTwoFactorService(&MockUserRepository{}, &MockEmailSender{})
	user, token := issuedUserAndToken(t, svc)
	code := *user.TwoFactorCode

	require.NoError(t, svc.VerifyCode(context.Background(), user, code, token))

	err := svc.VerifyCode(context.Background(), user, code, token)
	tfe, ok := models.AsTwoFactorError(err)
	require.True(t, ok)
	assert.Equal(t, models.TwoFactorMsgCodeNotFound, tfe.Message)
}
