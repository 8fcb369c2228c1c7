package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tbarroso/cerbero/internal/models"
)

const maxAttemptHistory = 100

// LoginAttemptService appends one immutable attempt row per authentication
// call. Recording never fails the caller: a persistence error is logged and
// swallowed so audit-trail unavailability cannot block logins.
type LoginAttemptService struct {
	repo      AttemptRepository
	retention time.Duration
	logger    *slog.Logger
}

func NewLoginAttemptService(repo AttemptRepository, retention time.Duration, logger *slog.Logger) *LoginAttemptService {
	return &LoginAttemptService{
		repo:      repo,
		retention: retention,
		logger:    logger,
	}
}

// Record persists one attempt. failureReason must be empty iff success.
func (s *LoginAttemptService) Record(ctx context.Context, identifier, ipAddress, userAgent string, success bool, failureReason string, twoFactorRequired bool) {
	now := time.Now()

	var reason *string
	if !success && failureReason != "" {
		reason = &failureReason
	}

	attempt := &models.LoginAttempt{
		Identifier:        identifier,
		IPAddress:         ipAddress,
		UserAgent:         userAgent,
		AttemptTime:       now,
		Success:           success,
		FailureReason:     reason,
		TwoFactorRequired: twoFactorRequired,
		ExpiresAt:         now.Add(s.retention),
	}

	if err := s.repo.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("identifier", identifier),
			slog.Any("error", err))
		return
	}

	if success {
		s.logger.Info("login attempt recorded",
			slog.String("identifier", identifier),
			slog.String("ip_address", ipAddress),
			slog.Bool("two_factor", twoFactorRequired))
	} else {
		s.logger.Warn("login attempt recorded",
			slog.String("identifier", identifier),
			slog.String("ip_address", ipAddress),
			slog.String("reason", failureReason),
			slog.Bool("two_factor", twoFactorRequired))
	}
}

// History returns the most recent attempts recorded against an identifier,
// newest first.
func (s *LoginAttemptService) History(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 || limit > maxAttemptHistory {
		limit = maxAttemptHistory
	}
	return s.repo.ListByIdentifier(ctx, identifier, limit)
}

// PurgeExpired removes attempt rows past their retention deadline and
// returns how many were deleted.
func (s *LoginAttemptService) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpiredAttempts(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired login attempts purged", slog.Int64("count", count))
	}
	return count, nil
}
