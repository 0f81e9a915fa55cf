package entities

import (
	"time"

	"github.com/google/uuid"
)

// RevocationReason records why a session was invalidated, for audit and for
// informing the client (e.g. "your session ended because your role changed").
type RevocationReason string

const (
	ReasonPasswordChange    RevocationReason = "PASSWORD_CHANGE"
	ReasonRoleChange        RevocationReason = "ROLE_CHANGE"
	ReasonTeamChange        RevocationReason = "TEAM_CHANGE"
	ReasonManualLogout      RevocationReason = "MANUAL_LOGOUT"
	ReasonAccountLock       RevocationReason = "ACCOUNT_LOCK"
	ReasonSecurityIncident  RevocationReason = "SECURITY_INCIDENT"
	ReasonTokenRefresh      RevocationReason = "TOKEN_REFRESH"
	ReasonAdminAction       RevocationReason = "ADMIN_ACTION"
	ReasonSessionExpired    RevocationReason = "SESSION_EXPIRED"
)

// Session is keyed by TokenHash so a compromised store never yields a usable
// bearer token. RevokedAt is set exactly once and is immutable thereafter;
// all revocation operations are idempotent on this field.
type Session struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	UserID           uuid.UUID         `json:"user_id" db:"user_id"`
	TokenHash        string            `json:"-" db:"token_hash"`
	TeamID           *uuid.UUID        `json:"team_id,omitempty" db:"team_id"`
	IPAddress        string            `json:"ip_address" db:"ip_address"`
	UserAgent        string            `json:"user_agent" db:"user_agent"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	LastUsedAt       *time.Time        `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt        *time.Time        `json:"revoked_at,omitempty" db:"revoked_at"`
	RevocationReason *RevocationReason `json:"revocation_reason,omitempty" db:"revocation_reason"`
}

// IsRevoked reports whether the session has been invalidated (I1).
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}
