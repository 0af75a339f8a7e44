package services

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors returned by the account lifecycle service. Handlers map these
// onto HTTP status codes; messages that reach clients are deliberately generic
// where existence or validity oracles would otherwise leak.
var (
	// ErrInvalidCredentials covers both "no such account" and "wrong password".
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrExpiredOrInvalid covers expired, consumed, and never-issued one-time
	// tokens alike; the client-facing message never distinguishes them.
	ErrExpiredOrInvalid = errors.New("invalid or expired token")

	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrDuplicateName    = errors.New("username already taken")
	ErrWeakPassword     = errors.New("password must be at least 6 characters long")
	ErrAlreadyVerified  = errors.New("email is already verified")
	ErrAlreadyProvider  = errors.New("account is already a provider")
	ErrNotPending       = errors.New("provider application is not pending")
	ErrProviderNotReady = errors.New("provider email must be verified before approval")
	ErrSelfAction       = errors.New("admins cannot block or demote themselves")
	ErrMailDispatch     = errors.New("could not send email, please try again later")
)

// RateLimitError reports how long the caller must wait before another
// verification email may be requested. Remaining time is safe to disclose.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Message }

func newWindowLimitError(retryAfter time.Duration) *RateLimitError {
	minutes := int(retryAfter.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return &RateLimitError{
		Message:    fmt.Sprintf("too many verification emails requested, try again in %d minutes", minutes),
		RetryAfter: retryAfter,
	}
}

func newCooldownError(retryAfter time.Duration) *RateLimitError {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return &RateLimitError{
		Message:    fmt.Sprintf("please wait %d seconds before requesting another verification email", seconds),
		RetryAfter: retryAfter,
	}
}
