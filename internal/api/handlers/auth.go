// Package handlers holds the gin handler functions for every SPEC_FULL.md
// HTTP operation. Handlers never write status codes for domain failures
// themselves; they return through middleware.RespondError so the envelope
// mapping stays in one place.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/middleware"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/lockout"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/session"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/security/crypto"
)

// AuthHandler issues and revokes sessions. Credential verification itself
// (password/OTP/WebAuthn) belongs to the identity provider, which is out of
// this module's scope (SPEC_FULL.md §1 Non-goals) — Login trusts that the
// caller has already been authenticated upstream and is asking this module
// to open the session record that session.Service then validates/revokes.
// The lockout counter still lives here: Login refuses to open a session for
// an account the lockout service reports locked, and resets the counter on
// every successful open; ReportFailure is how the identity provider feeds
// its failed-credential notifications into that same counter.
type AuthHandler struct {
	sessions *session.Service
	lockout  *lockout.Service
	db       *store.Store
}

func NewAuthHandler(sessions *session.Service, lockoutSvc *lockout.Service, db *store.Store) *AuthHandler {
	return &AuthHandler{sessions: sessions, lockout: lockoutSvc, db: db}
}

type loginRequest struct {
	UserID uuid.UUID  `json:"user_id" binding:"required"`
	TeamID *uuid.UUID `json:"team_id"`
}

// Login opens a new session for an already-verified identity and returns
// the opaque bearer token. Only the token's hash is ever persisted
// (crypto.TokenHash); the raw value returned here is the only copy. A
// locked account is rejected before any session is opened; a successful
// open resets the account's failure counter.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}

	locked, err := h.lockout.CheckLocked(c.Request.Context(), req.UserID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if locked {
		middleware.RespondError(c, errs.New(errs.KindAccountLocked, "account is temporarily locked"))
		return
	}

	token, err := crypto.RandomToken(32)
	if err != nil {
		middleware.RespondError(c, errs.Wrap(errs.KindInternal, "generate session token", err))
		return
	}

	var sess *entities.Session
	txErr := h.db.Transact(c.Request.Context(), store.ReadCommitted, 0, false, func(ctx context.Context, tx *store.Tx) error {
		var innerErr error
		sess, innerErr = h.sessions.Create(ctx, tx, req.UserID, req.TeamID, token, c.ClientIP(), c.GetHeader("User-Agent"), 0)
		return innerErr
	})
	if txErr != nil {
		middleware.RespondError(c, txErr)
		return
	}

	if err := h.lockout.Reset(c.Request.Context(), req.UserID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": sess.ID,
	})
}

type reportAuthFailureRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// ReportFailure records a failed credential check against the lockout
// counter. This module never sees the credential itself (that's the
// identity provider's job), so the provider calls this after it rejects
// one; crossing the failure threshold locks the account for the
// lockout service's configured duration.
func (h *AuthHandler) ReportFailure(c *gin.Context) {
	var req reportAuthFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}

	if err := h.lockout.RecordFailure(c.Request.Context(), req.UserID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

type logoutQuery struct {
	LogoutAll bool `form:"logout_all"`
}

// Logout revokes the caller's current session, or every session belonging
// to the caller's user when logout_all=true.
func (h *AuthHandler) Logout(c *gin.Context) {
	var q logoutQuery
	_ = c.ShouldBindQuery(&q)

	sess := middleware.CurrentSession(c)
	if sess == nil {
		middleware.RespondError(c, errs.New(errs.KindUnauthenticated, "no active session"))
		return
	}

	txErr := h.db.Transact(c.Request.Context(), store.ReadCommitted, 0, false, func(ctx context.Context, tx *store.Tx) error {
		if q.LogoutAll {
			return h.sessions.RevokeAllForUser(ctx, tx, sess.UserID, entities.ReasonManualLogout, nil)
		}
		return h.sessions.Revoke(ctx, tx, sess.ID, entities.ReasonManualLogout)
	})
	if txErr != nil {
		middleware.RespondError(c, txErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}
