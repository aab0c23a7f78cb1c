package models

import "time"

// Kind distinguishes the verification artifacts sharing one table.
type Kind string

const (
	KindAccount       Kind = "account"
	KindMFA           Kind = "mfa"
	KindPasswordReset Kind = "password_reset"
)

// Verification is a short-lived artifact bound to a user. A nil ExpiresAt
// never expires. UsedAt is set once an account link has been followed.
type Verification struct {
	UserID    int64
	Kind      Kind
	Token     string
	ExpiresAt *time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (v *Verification) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// ExpiryFrom returns now+ttl, or nil for a non-positive ttl.
func ExpiryFrom(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}
