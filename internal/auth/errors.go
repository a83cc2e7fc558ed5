package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWrongPassword indicates the submitted password does not match.
	ErrWrongPassword = errors.New("wrong password")
	// ErrWrongOTP indicates the submitted one-time code does not match or no
	// code is on record. The two cases are deliberately indistinguishable.
	ErrWrongOTP = errors.New("wrong one-time code")
	// ErrExpiredOTP indicates the one-time code outlived its validity window.
	// Terminal: the caller must request a fresh code.
	ErrExpiredOTP = errors.New("one-time code expired")
	// ErrSessionInvalid indicates the session token is unknown or expired.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrAlreadyRegistered indicates the phone number is already taken.
	ErrAlreadyRegistered = errors.New("phone already registered")
)

// BlockedError rejects credential attempts while the lockout window is active.
type BlockedError struct {
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked: retry after %d seconds", int(e.RetryAfter.Seconds()))
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
