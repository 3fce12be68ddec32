package domain

import "time"

// OneTimeCode is one entry in the append-only code audit trail.
// The most recently created record per identity is the live one.
type OneTimeCode struct {
	ID         string
	UserID     string
	Code       string
	Attempts   int
	IsVerified bool
	CreatedAt  time.Time
}

// Expired reports whether the code is past its validity window at now.
func (c OneTimeCode) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(c.CreatedAt) > window
}
