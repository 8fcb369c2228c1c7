package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tbarroso/cerbero/internal/config"
	"github.com/tbarroso/cerbero/internal/models"
)

// LockoutService owns failed-attempt counting and the OPEN/LOCKED state of
// each account. Lock expiry is lazy: a lock whose deadline has passed is
// cleared on the next status check rather than by a background timer.
type LockoutService struct {
	repo   UserRepository
	cfg    config.SecurityConfig
	audit  *AuditService
	logger *slog.Logger
}

func NewLockoutService(repo UserRepository, cfg config.SecurityConfig, audit *AuditService, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		cfg:    cfg,
		audit:  audit,
		logger: logger,
	}
}

// CheckStatus fails with ErrAccountLocked while a lock is active. An expired
// lock transitions the account back to OPEN (and zeroes the failure counter)
// before the attempt proceeds.
func (s *LockoutService) CheckStatus(ctx context.Context, user *models.User, ipAddress, userAgent string) error {
	if !user.AccountLocked || user.LockExpiresAt == nil {
		return nil
	}

	if user.LockActive(time.Now()) {
		s.audit.Emit(user.Email, models.AuditEventAccountLocked, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
			"failed_attempts": fmt.Sprintf("%d", user.FailedAttempts),
		})
		s.logger.Warn("login attempt on locked account", slog.String("username", user.Username))
		return models.ErrAccountLocked
	}

	// lock expired, reopen lazily
	if err := s.repo.Unlock(ctx, user.Username); err != nil {
		return err
	}
	user.AccountLocked = false
	user.LockExpiresAt = nil
	user.FailedAttempts = 0

	s.audit.Emit(user.Email, models.AuditEventAccountUnlocked, models.AuditLevelInfo, ipAddress, userAgent, map[string]string{
		"reason": "lock_expired",
	})
	s.logger.Info("account unlocked after expiry", slog.String("username", user.Username))

	return nil
}

// RecordFailure increments the failure counter and applies the lock policy.
// It returns ErrAccountLocked when this failure triggered a lock, and
// ErrInvalidCredentials for a normal rejection.
func (s *LockoutService) RecordFailure(ctx context.Context, user *models.User, ipAddress, userAgent, reason string) error {
	count, err := s.repo.IncrementFailedAttempts(ctx, user.Username)
	if err != nil {
		return err
	}
	user.FailedAttempts = count

	if s.cfg.UnlimitedAttempts || !s.cfg.LockoutEnabled {
		s.emitFailure(user, ipAddress, userAgent, reason)
		return models.ErrInvalidCredentials
	}

	if count >= s.cfg.LockoutMaxAttempts {
		until := time.Now().Add(s.cfg.LockoutDuration)
		if err := s.repo.Lock(ctx, user.Username, until); err != nil {
			return err
		}
		user.AccountLocked = true
		user.LockExpiresAt = &until

		s.audit.Emit(user.Email, models.AuditEventAccountLocked, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
			"failed_attempts": fmt.Sprintf("%d", count),
			"locked_until":    until.Format(time.RFC3339),
		})
		s.logger.Warn("account locked after repeated failures",
			slog.String("username", user.Username),
			slog.Int("failed_attempts", count))
		return models.ErrAccountLocked
	}

	s.emitFailure(user, ipAddress, userAgent, reason)
	return models.ErrInvalidCredentials
}

// RecordSuccess resets the counter after a successful password check. A zero
// counter is left alone to avoid a redundant write.
func (s *LockoutService) RecordSuccess(ctx context.Context, user *models.User) error {
	if user.FailedAttempts == 0 {
		return nil
	}

	if err := s.repo.ResetFailedAttempts(ctx, user.Username); err != nil {
		return err
	}
	user.FailedAttempts = 0

	return nil
}

func (s *LockoutService) emitFailure(user *models.User, ipAddress, userAgent, reason string) {
	s.audit.Emit(user.Email, models.AuditEventLoginFailure, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
		"reason":          reason,
		"failed_attempts": fmt.Sprintf("%d", user.FailedAttempts),
	})
	s.logger.Warn("login attempt failed",
		slog.String("username", user.Username),
		slog.String("reason", reason),
		slog.Int("failed_attempts", user.FailedAttempts))
}
