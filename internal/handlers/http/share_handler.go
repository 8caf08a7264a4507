package http

import (
	"context"
	"net/http"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"
	"sharecast/internal/core/services"
	"sharecast/internal/infrastructure/middleware"
	"sharecast/pkg/errors"
	"sharecast/pkg/validation"

	"github.com/gin-gonic/gin"
)

type ShareHandler struct {
	shareService ports.ScreenShareService
	stats        ports.ShareStatsProvider
	history      ports.ShareHistory
}

func NewShareHandler(
	shareService ports.ScreenShareService,
	stats ports.ShareStatsProvider,
	history ports.ShareHistory,
) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		stats:        stats,
		history:      history,
	}
}

// SetupRoutes registers share routes on an authenticated group.
func (h *ShareHandler) SetupRoutes(api *gin.RouterGroup) {
	share := api.Group("/share")
	{
		share.GET("", h.GetStatus)
		share.GET("/stats", h.GetStats)
		share.GET("/history/:share_id", h.GetHistory)

		control := share.Group("", middleware.RequireRole(services.RoleController))
		control.POST("/toggle", h.Toggle)
		control.POST("/start", h.Start)
		control.POST("/stop", h.Stop)
	}
}

func (h *ShareHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": h.shareService.Status(),
	})
}

func (h *ShareHandler) Toggle(c *gin.Context) {
	h.run(c, h.shareService.Toggle)
}

func (h *ShareHandler) Start(c *gin.Context) {
	h.run(c, h.shareService.Start)
}

func (h *ShareHandler) Stop(c *gin.Context) {
	h.run(c, h.shareService.Stop)
}

// run executes a share command detached from request cancellation and
// replies with the resulting status. A cancelled capture picker is not an
// error for the caller.
func (h *ShareHandler) run(c *gin.Context, command func(ctx context.Context) error) {
	if err := command(context.WithoutCancel(c.Request.Context())); domain.IsSurfaced(err) {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": h.shareService.Status(),
	})
}

func (h *ShareHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats": h.stats.Snapshot(),
	})
}

func (h *ShareHandler) GetHistory(c *gin.Context) {
	shareID := c.Param("share_id")
	if err := validation.ValidateShareID(shareID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.history.History(ctx, domain.ShareID(shareID))
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeServiceUnavailable, "audit log unavailable", http.StatusServiceUnavailable))
		return
	}
	if len(entries) == 0 {
		c.Error(errors.NewNotFoundError("share"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"share_id": shareID,
		"entries":  entries,
	})
}
