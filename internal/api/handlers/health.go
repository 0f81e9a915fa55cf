package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/infrastructure/di"
)

// HealthHandler exposes the three standard probe endpoints: /live for the
// process itself, /ready for whether it can serve traffic (dependency
// connectivity), and /health for a breakdown operators can read.
type HealthHandler struct {
	container *di.Container
}

func NewHealthHandler(container *di.Container) *HealthHandler {
	return &HealthHandler{container: container}
}

// Live never touches a dependency; it only proves the process is scheduled
// and answering requests.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "live"})
}

// Ready reports 503 when a dependency the request path needs is down, so a
// load balancer stops routing traffic here rather than accepting requests
// that would fail mid-handler.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.container.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Health reports a per-subsystem breakdown for operator dashboards.
func (h *HealthHandler) Health(c *gin.Context) {
	db := h.container.Store.HealthCheck(c.Request.Context())
	redisErr := h.container.Redis.Ping(c.Request.Context()).Err()

	redisStatus := gin.H{"healthy": redisErr == nil}
	if redisErr != nil {
		redisStatus["error"] = redisErr.Error()
	}

	status := http.StatusOK
	if !db.Healthy || redisErr != nil {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"database": db,
		"redis":    redisStatus,
	})
}
