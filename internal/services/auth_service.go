package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/config"
	"github.com/tbarroso/cerbero/internal/models"
)

// Failure reasons recorded against login attempts.
const (
	reasonUserNotFound    = "user not found"
	reasonInvalidPassword = "invalid password"
	reasonAccountLocked   = "account locked"
	reasonAwaitingCode    = "awaiting second factor"
	reasonInternalError   = "internal error"
)

// User-facing messages. Password-stage failures are deliberately generic so
// the response never reveals whether an email exists or how close an
// attacker is to a lock.
const (
	msgInvalidCredentials = "invalid credentials"
	msgSolveChallenge     = "solve the challenge to retry"
	msgAccountLocked      = "account temporarily locked"
	msgCodeSent           = "verification code sent to your email"
	msgLoginSuccess       = "login successful"
	msgInternalError      = "internal server error"
)

// LoginResult is the outcome of an authentication call. It is always
// well-formed: the two top-level operations never return an error to their
// caller, every internal fault is reduced to a generic failure here.
type LoginResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	Token             string `json:"token,omitempty"`
	PendingToken      string `json:"sessionToken,omitempty"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	Username          string `json:"username,omitempty"`
	CaptchaImage      string `json:"captchaImage,omitempty"`
	CaptchaEnabled    bool   `json:"captchaEnabled"`
	TwoFactorEnabled  bool   `json:"twoFactorEnabled"`
}

// AuthService composes the authentication pipeline: identity lookup, lockout
// check, password check, lockout policy, the second-factor branch and token
// issuance, with one attempt record per terminal branch.
type AuthService struct {
	users     UserRepository
	passwords PasswordVerifier
	lockout   *LockoutService
	twoFactor *TwoFactorService
	captcha   *CaptchaService
	attempts  *LoginAttemptService
	tokens    *auth.TokenManager
	audit     *AuditService
	cfg       config.SecurityConfig
	logger    *slog.Logger
}

func NewAuthService(
	users UserRepository,
	passwords PasswordVerifier,
	lockout *LockoutService,
	twoFactor *TwoFactorService,
	captcha *CaptchaService,
	attempts *LoginAttemptService,
	tokens *auth.TokenManager,
	audit *AuditService,
	cfg config.SecurityConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		lockout:   lockout,
		twoFactor: twoFactor,
		captcha:   captcha,
		attempts:  attempts,
		tokens:    tokens,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *AuthService) baseResult() *LoginResult {
	return &LoginResult{
		CaptchaEnabled:   s.cfg.CaptchaEnabled,
		TwoFactorEnabled: s.cfg.TwoFactorEnabled,
	}
}

// Authenticate runs the login state machine. sessionID scopes any challenge
// issued for a locked account to the caller's session.
func (s *AuthService) Authenticate(ctx context.Context, email, password, sessionID, ipAddress, userAgent string) *LoginResult {
	email = strings.ToLower(strings.TrimSpace(email))

	s.logger.Info("authentication attempt",
		slog.String("ip_address", ipAddress))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.attempts.Record(ctx, email, ipAddress, userAgent, false, reasonUserNotFound, false)
			s.audit.Emit(email, models.AuditEventLoginFailure, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
				"reason": reasonUserNotFound,
			})
			return s.failure(msgInvalidCredentials)
		}
		return s.internalFault(ctx, email, ipAddress, userAgent, err)
	}

	if err := s.lockout.CheckStatus(ctx, user, ipAddress, userAgent); err != nil {
		if errors.Is(err, models.ErrAccountLocked) {
			return s.lockedResult(ctx, email, sessionID, ipAddress, userAgent)
		}
		return s.internalFault(ctx, email, ipAddress, userAgent, err)
	}

	if !s.passwords.Matches(password, user.PasswordHash) {
		err := s.lockout.RecordFailure(ctx, user, ipAddress, userAgent, reasonInvalidPassword)
		switch {
		case errors.Is(err, models.ErrAccountLocked):
			return s.lockedResult(ctx, email, sessionID, ipAddress, userAgent)
		case errors.Is(err, models.ErrInvalidCredentials):
			s.attempts.Record(ctx, email, ipAddress, userAgent, false, reasonInvalidPassword, false)
			return s.failure(msgInvalidCredentials)
		default:
			return s.internalFault(ctx, email, ipAddress, userAgent, err)
		}
	}

	if err := s.lockout.RecordSuccess(ctx, user); err != nil {
		return s.internalFault(ctx, email, ipAddress, userAgent, err)
	}

	if s.twoFactor.Enabled() {
		pendingToken, err := s.twoFactor.IssueCode(ctx, user)
		if err != nil {
			return s.internalFault(ctx, email, ipAddress, userAgent, err)
		}

		s.attempts.Record(ctx, email, ipAddress, userAgent, false, reasonAwaitingCode, true)
		s.logger.Info("second factor required", slog.String("username", user.Username))

		result := s.baseResult()
		result.Message = msgCodeSent
		result.RequiresTwoFactor = true
		result.PendingToken = pendingToken
		result.Username = user.Username
		return result
	}

	return s.completeLogin(ctx, user, email, ipAddress, userAgent, false)
}

// VerifySecondFactor runs the second state machine: it exchanges a valid
// pending token plus the emailed code for a full access token.
func (s *AuthService) VerifySecondFactor(ctx context.Context, email, code, pendingToken, ipAddress, userAgent string) *LoginResult {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.attempts.Record(ctx, email, ipAddress, userAgent, false, reasonUserNotFound, false)
			return s.failure(msgInvalidCredentials)
		}
		return s.internalFault(ctx, email, ipAddress, userAgent, err)
	}

	if err := s.twoFactor.VerifyCode(ctx, user, code, pendingToken); err != nil {
		if tfe, ok := models.AsTwoFactorError(err); ok {
			s.attempts.Record(ctx, email, ipAddress, userAgent, false, tfe.Message, false)
			s.audit.Emit(email, models.AuditEventTwoFactorFailure, models.AuditLevelWarn, ipAddress, userAgent, map[string]string{
				"reason": tfe.Message,
			})
			// the caller already proved password knowledge, so the
			// specific reason is returned verbatim
			return s.failure(tfe.Message)
		}
		return s.internalFault(ctx, email, ipAddress, userAgent, err)
	}

	return s.completeLogin(ctx, user, email, ipAddress, userAgent, true)
}

func (s *AuthService) completeLogin(ctx context.Context, user *models.User, email, ipAddress, userAgent string, viaTwoFactor bool) *LoginResult {
	token, err := s.tokens.GenerateAccessToken(user.Username)
	if err != nil {
		return s.internalFault(ctx, email, ipAddress, userAgent, err)
	}

	s.attempts.Record(ctx, email, ipAddress, userAgent, true, "", viaTwoFactor)
	s.audit.Emit(email, models.AuditEventLoginSuccess, models.AuditLevelInfo, ipAddress, userAgent, map[string]string{
		"two_factor": boolString(viaTwoFactor),
	})
	s.logger.Info("login successful",
		slog.String("username", user.Username),
		slog.Bool("two_factor", viaTwoFactor))

	result := s.baseResult()
	result.Success = true
	result.Message = msgLoginSuccess
	result.Token = token
	result.Username = user.Username
	return result
}

// lockedResult terminates a login against a locked account: with the captcha
// feature enabled the caller gets a challenge to solve, otherwise a generic
// lock message. Neither branch consumes a password check.
func (s *AuthService) lockedResult(ctx context.Context, email, sessionID, ipAddress, userAgent string) *LoginResult {
	s.attempts.Record(ctx, email, ipAddress, userAgent, false, reasonAccountLocked, false)

	if !s.cfg.CaptchaEnabled {
		return s.failure(msgAccountLocked)
	}

	image, err := s.captcha.IssueChallenge(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to issue challenge", slog.Any("error", err))
		return s.failure(msgInternalError)
	}

	result := s.failure(msgSolveChallenge)
	result.CaptchaImage = image
	return result
}

// internalFault is the single funnel for unexpected collaborator errors:
// full detail server-side, one generic message outward, one attempt record.
func (s *AuthService) internalFault(ctx context.Context, email, ipAddress, userAgent string, err error) *LoginResult {
	s.logger.Error("unexpected error during authentication", slog.Any("error", err))
	s.attempts.Record(ctx, email, ipAddress, userAgent, false, reasonInternalError, false)
	return s.failure(msgInternalError)
}

func (s *AuthService) failure(message string) *LoginResult {
	result := s.baseResult()
	result.Message = message
	return result
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
