package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Admission errors
	ErrValidation        = errors.New("validation failed")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrBlocked           = errors.New("identifier is blocked")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrCaptchaRequired   = errors.New("captcha verification required")
)

// Rejection codes returned to API clients. Codes are the stability
// contract; the accompanying message text is not.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeBlocked           = "BLOCKED"
	CodeDuplicateEmail    = "DUPLICATE_EMAIL"
	CodeCaptchaRequired   = "CAPTCHA_REQUIRED"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
)
