package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tbarroso/cerbero/internal/models"
	"github.com/tbarroso/cerbero/internal/services"
	pkghttp "github.com/tbarroso/cerbero/pkg/http"
)

// ChallengeVerifier checks challenge answers and unlocks accounts.
type ChallengeVerifier interface {
	IssueChallenge(ctx context.Context, sessionID string) (string, error)
	Verify(ctx context.Context, email, sessionID, answer, ipAddress, userAgent string) error
}

// CaptchaHandler handles human-verification challenge requests
type CaptchaHandler struct {
	service ChallengeVerifier
	logger  *slog.Logger
}

func NewCaptchaHandler(service ChallengeVerifier, logger *slog.Logger) *CaptchaHandler {
	return &CaptchaHandler{
		service: service,
		logger:  logger,
	}
}

// VerifyCaptchaRequest represents the request body for challenge verification
type VerifyCaptchaRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Answer string `json:"answer" validate:"required"`
}

// CaptchaResponse reports the outcome of a challenge interaction.
type CaptchaResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	CaptchaImage string `json:"captchaImage,omitempty"`
}

// Verify checks a challenge answer. A correct answer clears the account lock
// so the caller can retry their password immediately.
func (h *CaptchaHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCaptchaRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "Missing session identifier")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	err := h.service.Verify(r.Context(), req.Email, sessionID, req.Answer, ipAddress, userAgent)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CaptchaResponse{
			Success: true,
			Message: "challenge solved, account unlocked",
		})
	case errors.Is(err, services.ErrChallengeSessionMissing):
		// session state is gone, issue a fresh challenge for a retry
		image, issueErr := h.service.IssueChallenge(r.Context(), sessionID)
		if issueErr != nil {
			h.logger.Error("failed to reissue challenge", slog.Any("error", issueErr))
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, CaptchaResponse{
			Success:      false,
			Message:      "challenge expired, solve the new one",
			CaptchaImage: image,
		})
	case errors.Is(err, services.ErrChallengeIncorrect):
		writeJSON(w, http.StatusOK, CaptchaResponse{
			Success: false,
			Message: "incorrect answer, try again",
		})
	case errors.Is(err, models.ErrNotFound):
		// same outward shape as a wrong answer, no account enumeration
		writeJSON(w, http.StatusOK, CaptchaResponse{
			Success: false,
			Message: "incorrect answer, try again",
		})
	default:
		h.logger.Error("challenge verification failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
