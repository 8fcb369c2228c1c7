package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token kinds. A pending token is only good for completing a second-factor
// challenge and must never be accepted where an access token is expected.
const (
	TokenKindAccess  = "access"
	TokenKindPending = "pending"
)

// TokenClaims are the JWT claims carried by both token kinds.
type TokenClaims struct {
	Kind     string `json:"kind"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
