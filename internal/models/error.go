package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication pipeline errors
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Two-factor validation failure messages. These are returned verbatim to the
// caller, who has already proven password knowledge.
const (
	TwoFactorMsgInvalidToken    = "invalid or expired session token"
	TwoFactorMsgSubjectMismatch = "invalid credentials"
	TwoFactorMsgCodeNotFound    = "code not found, login again"
	TwoFactorMsgCodeExpired     = "code expired, login again"
	TwoFactorMsgCodeMismatch    = "invalid code"
)

// TwoFactorError reports a failed second-factor verification. The message is
// one of the TwoFactorMsg constants above.
type TwoFactorError struct {
	Message string
}

func (e *TwoFactorError) Error() string {
	return e.Message
}

// NewTwoFactorError wraps one of the TwoFactorMsg constants.
func NewTwoFactorError(message string) *TwoFactorError {
	return &TwoFactorError{Message: message}
}

// AsTwoFactorError unwraps err into a *TwoFactorError if it is one.
func AsTwoFactorError(err error) (*TwoFactorError, bool) {
	var tfe *TwoFactorError
	if errors.As(err, &tfe) {
		return tfe, true
	}
	return nil, false
}
