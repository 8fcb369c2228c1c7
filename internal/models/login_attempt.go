package models

import "time"

// LoginAttempt is an immutable audit fact: one row per call to the
// authentication or second-factor endpoints. FailureReason is nil iff
// Success is true.
type LoginAttempt struct {
	ID                string
	Identifier        string // username or email as presented by the caller
	IPAddress         string
	UserAgent         string
	AttemptTime       time.Time
	Success           bool
	FailureReason     *string
	TwoFactorRequired bool
	ExpiresAt         time.Time // retention boundary, enforced by background cleanup
}
