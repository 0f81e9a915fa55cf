package entities

import (
	"time"

	"github.com/google/uuid"
)

// Role is a team-scoped permission level. Integer weight defines the
// hierarchy used by Authorization.Require: a caller's role must weigh at
// least as much as the role required by the operation.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// roleWeights defines the hierarchy OWNER(4) > ADMIN(3) > MEMBER(2) > VIEWER(1).
var roleWeights = map[Role]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleMember: 2,
	RoleViewer: 1,
}

// Weight returns the role's position in the hierarchy, or 0 for an unknown role.
func (r Role) Weight() int { return roleWeights[r] }

// AtLeast reports whether r's weight meets or exceeds min's.
func (r Role) AtLeast(min Role) bool { return r.Weight() >= min.Weight() }

// TeamMembership is unique on (TeamID, UserID). IsActive=false is soft
// removal; rows are never hard-deleted so audit entries referencing a
// membership remain resolvable.
type TeamMembership struct {
	TeamID    uuid.UUID  `json:"team_id" db:"team_id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Role      Role       `json:"role" db:"role"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty" db:"invited_by"`
}
