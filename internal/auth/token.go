package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tbarroso/cerbero/internal/models"
)

// TokenManager mints and validates the two token kinds the gateway issues:
// full access tokens and pending-session tokens scoped to completing a
// second-factor challenge. The kind is an explicit claim, checked on use,
// never inferred from where the token showed up.
type TokenManager struct {
	secret             string
	accessTokenExpiry  time.Duration
	pendingTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, pendingExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             secret,
		accessTokenExpiry:  accessExpiry,
		pendingTokenExpiry: pendingExpiry,
	}
}

// GenerateAccessToken mints a full access token for an authenticated user.
func (tm *TokenManager) GenerateAccessToken(username string) (string, error) {
	return tm.generate(username, models.TokenKindAccess, tm.accessTokenExpiry)
}

// GeneratePendingToken mints a short-lived token good only for completing a
// second-factor challenge.
func (tm *TokenManager) GeneratePendingToken(username string) (string, error) {
	return tm.generate(username, models.TokenKindPending, tm.pendingTokenExpiry)
}

func (tm *TokenManager) generate(username, kind string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Kind:     kind,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return tokenString, nil
}

// ValidateToken verifies signature and liveness and returns the claims.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Kind == "" {
		return nil, fmt.Errorf("invalid token: missing kind")
	}

	return claims, nil
}

// IsOfKind reports whether the token is valid and carries the given kind.
func (tm *TokenManager) IsOfKind(tokenString, kind string) bool {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return false
	}
	return claims.Kind == kind
}

// ExtractSubject returns the username a valid token was issued to.
func (tm *TokenManager) ExtractSubject(tokenString string) (string, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}
