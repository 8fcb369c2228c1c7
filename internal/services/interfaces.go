package services

import (
	"context"
	"time"

	"github.com/tbarroso/cerbero/internal/challenge"
	"github.com/tbarroso/cerbero/internal/models"
)

// UserRepository is the credential store consumed by the pipeline. Per-call
// atomicity is the store's responsibility; counter increments serialize at
// the account row.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	IncrementFailedAttempts(ctx context.Context, username string) (int, error)
	Lock(ctx context.Context, username string, until time.Time) error
	Unlock(ctx context.Context, username string) error
	ResetFailedAttempts(ctx context.Context, username string) error
	UpdateTwoFactorCode(ctx context.Context, username, code string, expiresAt time.Time) error
	ClearTwoFactorCode(ctx context.Context, username string) error
}

// AttemptRepository persists immutable login attempt rows.
type AttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	ListByIdentifier(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error)
	DeleteExpiredAttempts(ctx context.Context) (int64, error)
}

// EventRepository persists security audit events.
type EventRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

// EmailSender delivers second-factor codes. Send may fail; callers fall back
// to a local sender that cannot.
type EmailSender interface {
	SendTwoFactorCode(ctx context.Context, email, username, code string) error
}

// ChallengeStore keeps expected challenge answers per session.
type ChallengeStore interface {
	Put(ctx context.Context, sessionID, answer string) error
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// ChallengeGenerator produces human-verification challenges.
type ChallengeGenerator interface {
	Generate() (*challenge.Challenge, error)
}

// PasswordVerifier is the one-way password check. No hashing logic lives in
// the pipeline itself.
type PasswordVerifier interface {
	Matches(plaintext, hash string) bool
}
