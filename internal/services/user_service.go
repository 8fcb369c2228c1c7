package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbarroso/cerbero/internal/models"
	"github.com/tbarroso/cerbero/pkg/auth"
)

var ErrDuplicateUser = errors.New("username or email already registered")

// UserService handles account registration.
type UserService struct {
	users  UserRepository
	audit  *AuditService
	logger *slog.Logger
}

func NewUserService(users UserRepository, audit *AuditService, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

// Register creates a new account. Passwords are validated before hashing and
// the plaintext is never stored or logged. New accounts start with a zero
// failure counter and no lock.
func (s *UserService) Register(ctx context.Context, username, email, password, ipAddress, userAgent string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUser
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateUser
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		// a concurrent registration can still lose the race to the
		// unique constraint
		if errors.Is(err, models.ErrConflict) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.Emit(email, models.AuditEventUserRegistered, models.AuditLevelInfo, ipAddress, userAgent, map[string]string{
		"username": username,
	})
	s.logger.Info("user registered", slog.String("username", username))

	return created, nil
}
