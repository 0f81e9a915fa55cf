package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/authorization"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

const ctxKeyMembership = "membership"

// RequireRole resolves :team_id from the route, requires the authenticated
// user to hold at least minRole on it (spec §4.7), and stashes the
// resolved membership for handlers that need the caller's exact role.
func RequireRole(authz *authorization.Service, minRole entities.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID, err := uuid.Parse(c.Param("team_id"))
		if err != nil {
			RespondError(c, errs.New(errs.KindValidation, "invalid team_id"))
			c.Abort()
			return
		}

		userID := CurrentUserID(c)
		membership, err := authz.Require(c.Request.Context(), userID, teamID, minRole)
		if err != nil {
			RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxKeyMembership, membership)
		c.Next()
	}
}

// CurrentMembership returns the membership resolved by RequireRole.
func CurrentMembership(c *gin.Context) *entities.TeamMembership {
	if v, ok := c.Get(ctxKeyMembership); ok {
		if m, ok := v.(*entities.TeamMembership); ok {
			return m
		}
	}
	return nil
}
