package models

import "time"

// Audit severity levels mirrored into the security_events table.
const (
	AuditLevelInfo  = "INFO"
	AuditLevelWarn  = "WARN"
	AuditLevelError = "ERROR"
)

// Audit event types emitted by the authentication pipeline.
const (
	AuditEventLoginSuccess          = "LOGIN_SUCCESS"
	AuditEventLoginFailure          = "LOGIN_FAILURE"
	AuditEventAccountLocked         = "ACCOUNT_LOCKED"
	AuditEventAccountUnlocked       = "ACCOUNT_UNLOCKED"
	AuditEventChallengeIssued       = "CHALLENGE_ISSUED"
	AuditEventChallengeSuccess      = "CHALLENGE_SUCCESS"
	AuditEventChallengeFailure      = "CHALLENGE_FAILURE"
	AuditEventChallengeMissing      = "CHALLENGE_SESSION_MISSING"
	AuditEventTwoFactorIssued       = "TWO_FACTOR_ISSUED"
	AuditEventTwoFactorFailure      = "TWO_FACTOR_FAILURE"
	AuditEventUserRegistered        = "USER_REGISTERED"
)

// AuditEvent is a structured security event. Events are dual-written: to slog
// immediately and to Postgres through an asynchronous dispatcher, so emitting
// one never blocks or fails the authentication path.
type AuditEvent struct {
	ID         string
	Identifier string // email or username the event concerns
	EventType  string
	Level      string
	IPAddress  string
	UserAgent  string
	Detail     map[string]string
	OccurredAt time.Time
}
