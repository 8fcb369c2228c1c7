package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tbarroso/cerbero/internal/challenge"
	"github.com/tbarroso/cerbero/internal/config"
	"github.com/tbarroso/cerbero/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc              func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc           func(ctx context.Context, username string) (*models.User, error)
	CreateFunc                  func(ctx context.Context, user *models.User) (*models.User, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, username string) (int, error)
	LockFunc                    func(ctx context.Context, username string, until time.Time) error
	UnlockFunc                  func(ctx context.Context, username string) error
	ResetFailedAttemptsFunc     func(ctx context.Context, username string) error
	UpdateTwoFactorCodeFunc     func(ctx context.Context, username, code string, expiresAt time.Time) error
	ClearTwoFactorCodeFunc      func(ctx context.Context, username string) error
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) IncrementFailedAttempts(ctx context.Context, username string) (int, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, username)
	}
	return 1, nil
}

func (m *MockUserRepository) Lock(ctx context.Context, username string, until time.Time) error {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, username, until)
	}
	return nil
}

func (m *MockUserRepository) Unlock(ctx context.Context, username string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, username)
	}
	return nil
}

func (m *MockUserRepository) ResetFailedAttempts(ctx context.Context, username string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, username)
	}
	return nil
}

func (m *MockUserRepository) UpdateTwoFactorCode(ctx context.Context, username, code string, expiresAt time.Time) error {
	if m.UpdateTwoFactorCodeFunc != nil {
		return m.UpdateTwoFactorCodeFunc(ctx, username, code, expiresAt)
	}
	return nil
}

func (m *MockUserRepository) ClearTwoFactorCode(ctx context.Context, username string) error {
	if m.ClearTwoFactorCodeFunc != nil {
		return m.ClearTwoFactorCodeFunc(ctx, username)
	}
	return nil
}

// MockAttemptRepository implements AttemptRepository for testing
type MockAttemptRepository struct {
	RecordAttemptFunc         func(ctx context.Context, attempt *models.LoginAttempt) error
	ListByIdentifierFunc      func(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error)
	DeleteExpiredAttemptsFunc func(ctx context.Context) (int64, error)
	Recorded                  []*models.LoginAttempt
}

func (m *MockAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.Recorded = append(m.Recorded, attempt)
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptRepository) ListByIdentifier(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
	if m.ListByIdentifierFunc != nil {
		return m.ListByIdentifierFunc(ctx, identifier, limit)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockAttemptRepository) DeleteExpiredAttempts(ctx context.Context) (int64, error) {
	if m.DeleteExpiredAttemptsFunc != nil {
		return m.DeleteExpiredAttemptsFunc(ctx)
	}
	return 0, nil
}

// MockEventRepository implements EventRepository for testing
type MockEventRepository struct {
	InsertFunc func(ctx context.Context, event *models.AuditEvent) error
}

func (m *MockEventRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, event)
	}
	return nil
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendTwoFactorCodeFunc func(ctx context.Context, email, username, code string) error
	SentCodes             []string
}

func (m *MockEmailSender) SendTwoFactorCode(ctx context.Context, email, username, code string) error {
	m.SentCodes = append(m.SentCodes, code)
	if m.SendTwoFactorCodeFunc != nil {
		return m.SendTwoFactorCodeFunc(ctx, email, username, code)
	}
	return nil
}

// MockChallengeStore implements ChallengeStore for testing
type MockChallengeStore struct {
	PutFunc    func(ctx context.Context, sessionID, answer string) error
	GetFunc    func(ctx context.Context, sessionID string) (string, error)
	DeleteFunc func(ctx context.Context, sessionID string) error
}

func (m *MockChallengeStore) Put(ctx context.Context, sessionID, answer string) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, sessionID, answer)
	}
	return nil
}

func (m *MockChallengeStore) Get(ctx context.Context, sessionID string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sessionID)
	}
	return "", challenge.ErrNoChallenge
}

func (m *MockChallengeStore) Delete(ctx context.Context, sessionID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, sessionID)
	}
	return nil
}

// MockChallengeGenerator implements ChallengeGenerator for testing
type MockChallengeGenerator struct {
	GenerateFunc func() (*challenge.Challenge, error)
}

func (m *MockChallengeGenerator) Generate() (*challenge.Challenge, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	return &challenge.Challenge{Answer: "ABC123", Image: "aW1hZ2U="}, nil
}

// plaintextVerifier treats the stored hash as the plaintext itself, so tests
// can skip bcrypt.
type plaintextVerifier struct{}

func (plaintextVerifier) Matches(plaintext, hash string) bool {
	return plaintext == hash
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAudit() *AuditService {
	return NewAuditService(&MockEventRepository{}, testLogger())
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		LockoutEnabled:     true,
		LockoutMaxAttempts: 3,
		LockoutDuration:    15 * time.Minute,
		TwoFactorEnabled:   false,
		TwoFactorCodeTTL:   5 * time.Minute,
		CaptchaEnabled:     false,
		CaptchaTTL:         5 * time.Minute,
	}
}

func testUser() *models.User {
	return &models.User{
		ID:           "user_123",
		Username:     "jdoe",
		Email:        "jdoe@example.com",
		PasswordHash: "s3cret!",
	}
}
