package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tbarroso/cerbero/internal/services"
	pkghttp "github.com/tbarroso/cerbero/pkg/http"
	pkglogger "github.com/tbarroso/cerbero/pkg/logger"
)

// SessionIDHeader carries the caller's session identifier. Challenges issued
// for locked accounts are bound to it, so the caller must present the same
// value when solving one.
const SessionIDHeader = "X-Session-ID"

// AuthOrchestrator runs the credential pipeline. Both calls always produce a
// well-formed result; internal faults surface as generic failures in it.
type AuthOrchestrator interface {
	Authenticate(ctx context.Context, email, password, sessionID, ipAddress, userAgent string) *services.LoginResult
	VerifySecondFactor(ctx context.Context, email, code, pendingToken, ipAddress, userAgent string) *services.LoginResult
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthOrchestrator
	logger  *slog.Logger
}

func NewAuthHandler(service AuthOrchestrator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyTwoFactorRequest carries the emailed code plus the pending-session
// token issued by the first login step.
type VerifyTwoFactorRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Code         string `json:"code" validate:"required,len=6"`
	SessionToken string `json:"sessionToken" validate:"required"`
}

// LogoutResponse is returned for the stateless logout acknowledgement.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Login handles the first authentication step. The outcome always travels in
// the response body; the HTTP status stays 200 for processed requests so the
// status code leaks nothing about why a login failed.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sessionID := resolveSessionID(r)
	ipAddress := pkghttp.ExtractClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	h.logger.Debug("login request",
		slog.String("email", maskedEmail(req.Email)),
		slog.String("client_ip", ipAddress))

	result := h.service.Authenticate(r.Context(), req.Email, req.Password, sessionID, ipAddress, userAgent)

	w.Header().Set(SessionIDHeader, sessionID)
	writeJSON(w, http.StatusOK, result)
}

// VerifyTwoFactor handles the second authentication step.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest

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

	result := h.service.VerifySecondFactor(r.Context(), req.Email, req.Code, req.SessionToken, ipAddress, userAgent)

	writeJSON(w, http.StatusOK, result)
}

// Logout acknowledges a logout. Tokens are stateless, so the server holds no
// session to tear down; the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("logout",
		slog.String("client_ip", pkghttp.ExtractClientIP(r)))

	writeJSON(w, http.StatusOK, LogoutResponse{
		Success: true,
		Message: "logged out",
	})
}

// resolveSessionID reads the caller's session identifier, minting a fresh one
// when the caller has none yet.
func resolveSessionID(r *http.Request) string {
	if id := r.Header.Get(SessionIDHeader); id != "" {
		return id
	}
	return uuid.New().String()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// maskedEmail keeps handler logs free of raw identifiers.
func maskedEmail(email string) string {
	return pkglogger.SanitizedEmail(email)
}
