package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/api/middleware"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/services/authorization"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/store"
)

// TeamHandler implements team membership management (spec §4.7): adding,
// promoting/demoting, and removing members. Every role-changing call here
// revokes the affected user's sessions in the same transaction (I4).
type TeamHandler struct {
	authz *authorization.Service
	db    *store.Store
}

func NewTeamHandler(authz *authorization.Service, db *store.Store) *TeamHandler {
	return &TeamHandler{authz: authz, db: db}
}

type addMemberRequest struct {
	UserID uuid.UUID     `json:"user_id" binding:"required"`
	Role   entities.Role `json:"role" binding:"required"`
}

func (h *TeamHandler) AddMember(c *gin.Context) {
	teamID, err := uuid.Parse(c.Param("team_id"))
	if err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid team_id"))
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}

	callerID := middleware.CurrentUserID(c)
	txErr := h.db.Transact(c.Request.Context(), store.ReadCommitted, 0, false, func(ctx context.Context, tx *store.Tx) error {
		return h.authz.AddMember(ctx, tx, callerID, teamID, req.UserID, req.Role)
	})
	if txErr != nil {
		middleware.RespondError(c, txErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": true})
}

type changeRoleRequest struct {
	Role entities.Role `json:"role" binding:"required"`
}

func (h *TeamHandler) ChangeRole(c *gin.Context) {
	teamID, err := uuid.Parse(c.Param("team_id"))
	if err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid team_id"))
		return
	}
	targetUserID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid user_id"))
		return
	}
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid request body"))
		return
	}

	callerID := middleware.CurrentUserID(c)
	txErr := h.db.Transact(c.Request.Context(), store.ReadCommitted, 0, false, func(ctx context.Context, tx *store.Tx) error {
		return h.authz.ChangeRole(ctx, tx, callerID, teamID, targetUserID, req.Role)
	})
	if txErr != nil {
		middleware.RespondError(c, txErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	teamID, err := uuid.Parse(c.Param("team_id"))
	if err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid team_id"))
		return
	}
	targetUserID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		middleware.RespondError(c, errs.New(errs.KindValidation, "invalid user_id"))
		return
	}

	callerID := middleware.CurrentUserID(c)
	txErr := h.db.Transact(c.Request.Context(), store.ReadCommitted, 0, false, func(ctx context.Context, tx *store.Tx) error {
		return h.authz.RemoveMember(ctx, tx, callerID, teamID, targetUserID)
	})
	if txErr != nil {
		middleware.RespondError(c, txErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}
