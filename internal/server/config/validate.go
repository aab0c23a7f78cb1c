package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: secret key is required", ErrInvalidConfig)
	}
	if c.SigningKeyID == "" {
		return fmt.Errorf("%w: signing key id is required", ErrInvalidConfig)
	}
	if _, clash := c.VerifyKeys[c.SigningKeyID]; clash {
		return fmt.Errorf("%w: verify key %q shadows the signing key", ErrInvalidConfig, c.SigningKeyID)
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		return fmt.Errorf("%w: token validity must be positive", ErrInvalidConfig)
	}
	if c.MFACodeValidityDuration <= 0 || c.PasswordResetValidityDuration <= 0 {
		return fmt.Errorf("%w: mfa and password reset validity must be positive", ErrInvalidConfig)
	}
	if c.AccountVerificationValidityDuration < 0 {
		return fmt.Errorf("%w: account verification validity cannot be negative", ErrInvalidConfig)
	}
	switch c.MailProvider {
	case "dev", "smtp", "postmark":
	default:
		return fmt.Errorf("%w: unknown mail provider %q", ErrInvalidConfig, c.MailProvider)
	}
	switch c.ImageStore {
	case "local", "s3":
	default:
		return fmt.Errorf("%w: unknown image store %q", ErrInvalidConfig, c.ImageStore)
	}
	return nil
}
