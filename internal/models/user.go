package models

import (
	"time"
)

// User is the account record guarded by the authentication pipeline.
//
// FailedAttempts and the lock fields are mutated only by the lockout service;
// the two-factor fields are mutated only by the two-factor service. Everything
// else reads them.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string

	FailedAttempts int
	AccountLocked  bool
	LockExpiresAt  *time.Time // non-nil whenever AccountLocked is true

	TwoFactorCode      *string
	TwoFactorExpiresAt *time.Time // non-nil iff TwoFactorCode is non-nil

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockActive reports whether the account is locked and the lock has not yet
// expired at the given instant.
func (u *User) LockActive(now time.Time) bool {
	return u.AccountLocked && u.LockExpiresAt != nil && u.LockExpiresAt.After(now)
}
