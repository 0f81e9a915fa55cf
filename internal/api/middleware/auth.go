package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/session"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

const (
	ctxKeySession = "session"
	ctxKeyUserID  = "user_id"
)

// Authenticate validates the bearer token against the session store
// (spec §4.6) and aborts with 401/401 (revoked) on failure. On success the
// resolved *entities.Session is stashed in the gin context for downstream
// middleware (team-scope, idempotency, audit).
func Authenticate(sessions *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			RespondError(c, errs.New(errs.KindUnauthenticated, "missing bearer token"))
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, prefix)

		sess, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxKeySession, sess)
		c.Set(ctxKeyUserID, sess.UserID)
		c.Next()
	}
}

// CurrentSession returns the session stashed by Authenticate, or nil if the
// route isn't behind it.
func CurrentSession(c *gin.Context) *entities.Session {
	if v, ok := c.Get(ctxKeySession); ok {
		if s, ok := v.(*entities.Session); ok {
			return s
		}
	}
	return nil
}

// CurrentUserID returns the authenticated user's ID, or uuid.Nil if unset.
func CurrentUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
