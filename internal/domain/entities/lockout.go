package entities

import (
	"time"

	"github.com/google/uuid"
)

// AccountLockout tracks failed authentication attempts for a user or a
// source IP. Exactly one of UserID/IPAddress is typically set; the identity
// provider (out of scope) reports failures, and this module decides when to
// lock and for how long.
type AccountLockout struct {
	UserID         *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	IPAddress      *string    `json:"ip_address,omitempty" db:"ip_address"`
	FailedAttempts int        `json:"failed_attempts" db:"failed_attempts"`
	LastAttemptAt  time.Time  `json:"last_attempt_at" db:"last_attempt_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty" db:"locked_until"`
}

// IsLocked reports whether the lockout is currently in effect.
func (l *AccountLockout) IsLocked(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}
