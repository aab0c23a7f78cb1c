// Package common defines shared constants and sentinel errors used across
// the server packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// Credential errors.
	ErrBadCredentials           = errors.New("bad credentials")
	ErrAccountDisabled          = errors.New("account disabled")
	ErrAccountLocked            = errors.New("account locked")
	ErrIncorrectCurrentPassword = errors.New("incorrect current password")
	ErrPasswordMismatch         = errors.New("passwords do not match")

	// Registration and lookup errors.
	ErrEmailExists   = errors.New("email already exists")
	ErrEmailNotFound = errors.New("email not found")
	ErrRoleNotFound  = errors.New("role not found")
	ErrPhoneRequired = errors.New("phone number required")
	ErrImageNotFound = errors.New("image not found")

	// MFA code errors.
	ErrCodeExpired  = errors.New("mfa code expired")
	ErrCodeInvalid  = errors.New("mfa code invalid")
	ErrCodeNotFound = errors.New("mfa code not found")

	// Password reset link errors.
	ErrResetLinkExpired  = errors.New("password reset link expired")
	ErrResetLinkNotFound = errors.New("password reset link not found")

	// Account verification link errors.
	ErrLinkExpired  = errors.New("verification link expired")
	ErrLinkNotFound = errors.New("verification link not found")

	// Token errors.
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenInvalidClaim     = errors.New("token claim invalid")
	ErrRefreshTokenInvalid   = errors.New("refresh token invalid")

	// Outbound mail.
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
)
