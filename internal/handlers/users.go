package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/models"
	"github.com/tbarroso/cerbero/internal/services"
	pkgauth "github.com/tbarroso/cerbero/pkg/auth"
	pkghttp "github.com/tbarroso/cerbero/pkg/http"
)

// AccountRegistrar creates new accounts.
type AccountRegistrar interface {
	Register(ctx context.Context, username, email, password, ipAddress, userAgent string) (*models.User, error)
}

// AttemptHistorian lists recorded login attempts.
type AttemptHistorian interface {
	History(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error)
}

// UserLookup resolves the authenticated principal back to an account.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// UserHandler handles registration and account-scoped queries
type UserHandler struct {
	registrar AccountRegistrar
	attempts  AttemptHistorian
	users     UserLookup
	logger    *slog.Logger
}

func NewUserHandler(registrar AccountRegistrar, attempts AttemptHistorian, users UserLookup, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		registrar: registrar,
		attempts:  attempts,
		users:     users,
		logger:    logger,
	}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse returns the created account without sensitive fields.
type RegisterResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// AttemptView is the outward shape of one recorded login attempt.
type AttemptView struct {
	AttemptTime       time.Time `json:"attemptTime"`
	IPAddress         string    `json:"ipAddress"`
	Success           bool      `json:"success"`
	FailureReason     string    `json:"failureReason,omitempty"`
	TwoFactorRequired bool      `json:"twoFactorRequired"`
}

// Register creates a new account.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	user, err := h.registrar.Register(r.Context(), req.Username, req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		var pve *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &pve):
			pkghttp.WriteBadRequest(w, pve.Error())
		case errors.Is(err, services.ErrDuplicateUser):
			pkghttp.WriteConflict(w, "Username or email already registered")
		default:
			h.logger.Error("registration failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// ListAttempts returns the authenticated account's recent login attempts,
// newest first.
func (h *UserHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), claims.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		h.logger.Error("failed to resolve account", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	attempts, err := h.attempts.History(r.Context(), user.Email, limit)
	if err != nil {
		h.logger.Error("failed to list login attempts", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		view := AttemptView{
			AttemptTime:       attempt.AttemptTime,
			IPAddress:         attempt.IPAddress,
			Success:           attempt.Success,
			TwoFactorRequired: attempt.TwoFactorRequired,
		}
		if attempt.FailureReason != nil {
			view.FailureReason = *attempt.FailureReason
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, views)
}
