package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tbarroso/cerbero/internal/challenge"
	"github.com/tbarroso/cerbero/internal/models"
)

// Challenge verification outcomes callers must distinguish: a missing
// session means "restart the challenge", a wrong answer means "retry".
var (
	ErrChallengeSessionMissing = errors.New("challenge session expired or not found")
	ErrChallengeIncorrect      = errors.New("incorrect challenge answer")
)

// CaptchaService guards the only recovery path out of an account lock other
// than waiting it out: answer a human-verification challenge correctly and
// the lock is cleared.
type CaptchaService struct {
	users     UserRepository
	store     ChallengeStore
	generator ChallengeGenerator
	audit     *AuditService
	logger    *slog.Logger
}

func NewCaptchaService(users UserRepository, store ChallengeStore, generator ChallengeGenerator, audit *AuditService, logger *slog.Logger) *CaptchaService {
	return &CaptchaService{
		users:     users,
		store:     store,
		generator: generator,
		audit:     audit,
		logger:    logger,
	}
}

// IssueChallenge generates a challenge, binds its answer to the caller's
// session and returns the image to present.
func (s *CaptchaService) IssueChallenge(ctx context.Context, sessionID string) (string, error) {
	c, err := s.generator.Generate()
	if err != nil {
		return "", err
	}

	if err := s.store.Put(ctx, sessionID, c.Answer); err != nil {
		return "", err
	}

	s.audit.Emit("", models.AuditEventChallengeIssued, models.AuditLevelInfo, "", "", map[string]string{
		"session_id": sessionID,
	})

	return c.Image, nil
}

// Verify checks the answer for the caller's session. On success the
// challenge is consumed and the account is unlocked with its failure counter
// reset. A wrong answer leaves the lock untouched.
func (s *CaptchaService) Verify(ctx context.Context, email, sessionID, answer, ipAddress, userAgent string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.Emit(email, models.AuditEventChallengeFailure, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
				"reason": "user_not_found",
			})
			return models.ErrNotFound
		}
		return err
	}

	expected, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, challenge.ErrNoChallenge) {
			s.audit.Emit(email, models.AuditEventChallengeMissing, models.AuditLevelWarn, ipAddress, userAgent, nil)
			s.logger.Warn("challenge session missing", slog.String("username", user.Username))
			return ErrChallengeSessionMissing
		}
		return err
	}

	if !strings.EqualFold(strings.TrimSpace(answer), expected) {
		s.audit.Emit(email, models.AuditEventChallengeFailure, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
			"reason": "wrong_answer",
		})
		s.logger.Warn("incorrect challenge answer", slog.String("username", user.Username))
		return ErrChallengeIncorrect
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to clear challenge state", slog.Any("error", err))
	}

	if err := s.users.Unlock(ctx, user.Username); err != nil {
		return err
	}
	user.AccountLocked = false
	user.LockExpiresAt = nil
	user.FailedAttempts = 0

	s.audit.Emit(email, models.AuditEventChallengeSuccess, models.AuditLevelInfo, ipAddress, userAgent, map[string]string{
		"action": "account_unlocked",
	})
	s.logger.Info("challenge verified, account unlocked", slog.String("username", user.Username))

	return nil
}
