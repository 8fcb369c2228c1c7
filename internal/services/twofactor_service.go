package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/config"
	"github.com/tbarroso/cerbero/internal/models"
)

// TwoFactorService owns the one-time-code lifecycle: issuance, delivery,
// expiry and single-use validation, plus the pending-session token that ties
// a code back to the login that requested it.
type TwoFactorService struct {
	repo     UserRepository
	mailer   EmailSender
	fallback EmailSender // must not fail; used when the primary channel does
	tokens   *auth.TokenManager
	cfg      config.SecurityConfig
	audit    *AuditService
	logger   *slog.Logger
}

func NewTwoFactorService(repo UserRepository, mailer, fallback EmailSender, tokens *auth.TokenManager, cfg config.SecurityConfig, audit *AuditService, logger *slog.Logger) *TwoFactorService {
	return &TwoFactorService{
		repo:     repo,
		mailer:   mailer,
		fallback: fallback,
		tokens:   tokens,
		cfg:      cfg,
		audit:    audit,
		logger:   logger,
	}
}

// Enabled reports whether the second factor is required for this deployment.
func (s *TwoFactorService) Enabled() bool {
	return s.cfg.TwoFactorEnabled
}

// IssueCode generates and stores a fresh code, dispatches it, and returns a
// pending-session token bound to the account. A delivery failure degrades to
// the fallback channel instead of aborting the login.
func (s *TwoFactorService) IssueCode(ctx context.Context, user *models.User) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(s.cfg.TwoFactorCodeTTL)
	if err := s.repo.UpdateTwoFactorCode(ctx, user.Username, code, expiresAt); err != nil {
		return "", err
	}
	user.TwoFactorCode = &code
	user.TwoFactorExpiresAt = &expiresAt

	if err := s.mailer.SendTwoFactorCode(ctx, user.Email, user.Username, code); err != nil {
		s.logger.Error("two-factor code delivery failed, using fallback",
			slog.String("username", user.Username),
			slog.Any("error", err))
		// fallback sender is local and cannot fail
		_ = s.fallback.SendTwoFactorCode(ctx, user.Email, user.Username, code)
	}

	s.audit.Emit(user.Email, models.AuditEventTwoFactorIssued, models.AuditLevelInfo, "", "", nil)

	return s.tokens.GeneratePendingToken(user.Username)
}

// VerifyCode checks the pending token and the provided code in order. Any
// mismatch returns a *models.TwoFactorError whose message is safe to return
// verbatim. The stored code is single-use: it is cleared on success, on
// expiry and on a wrong code, so nothing survives for replay.
func (s *TwoFactorService) VerifyCode(ctx context.Context, user *models.User, providedCode, pendingToken string) error {
	if !s.tokens.IsOfKind(pendingToken, models.TokenKindPending) {
		s.logger.Warn("invalid pending-session token", slog.String("username", user.Username))
		return models.NewTwoFactorError(models.TwoFactorMsgInvalidToken)
	}

	subject, err := s.tokens.ExtractSubject(pendingToken)
	if err != nil || subject != user.Username {
		s.logger.Warn("pending-session token subject mismatch", slog.String("username", user.Username))
		return models.NewTwoFactorError(models.TwoFactorMsgSubjectMismatch)
	}

	if user.TwoFactorCode == nil || user.TwoFactorExpiresAt == nil {
		s.logger.Warn("no stored two-factor code", slog.String("username", user.Username))
		return models.NewTwoFactorError(models.TwoFactorMsgCodeNotFound)
	}

	if user.TwoFactorExpiresAt.Before(time.Now()) {
		s.clearCode(ctx, user)
		s.logger.Warn("two-factor code expired", slog.String("username", user.Username))
		return models.NewTwoFactorError(models.TwoFactorMsgCodeExpired)
	}

	if *user.TwoFactorCode != providedCode {
		s.clearCode(ctx, user)
		s.logger.Warn("two-factor code mismatch", slog.String("username", user.Username))
		return models.NewTwoFactorError(models.TwoFactorMsgCodeMismatch)
	}

	s.clearCode(ctx, user)
	s.logger.Info("two-factor code verified", slog.String("username", user.Username))

	return nil
}

func (s *TwoFactorService) clearCode(ctx context.Context, user *models.User) {
	if err := s.repo.ClearTwoFactorCode(ctx, user.Username); err != nil {
		s.logger.Error("failed to clear two-factor code",
			slog.String("username", user.Username),
			slog.Any("error", err))
		return
	}
	user.TwoFactorCode = nil
	user.TwoFactorExpiresAt = nil
}

// generateCode draws a uniformly random 6-digit code, zero-padded.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate two-factor code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
