package campaign

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leadstack/outreach/common"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/middleware"
)

type CampaignHandler struct {
	service CampaignServiceInterface
}

func NewCampaignHandler(s CampaignServiceInterface) *CampaignHandler {
	return &CampaignHandler{service: s}
}

var _ CampaignHandlerInterface = (*CampaignHandler)(nil)

// Start handles POST /campaigns/:id/start with an optional scheduled_at.
func (h *CampaignHandler) Start(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req dto.CampaignStartDTO
	if c.Request.ContentLength > 0 {
		if !middleware.Bind(c, &req) {
			c.Abort()
			return
		}
	}

	if err := h.service.Start(c.Request.Context(), id, req.ScheduledAt); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Pause handles POST /campaigns/:id/pause.
func (h *CampaignHandler) Pause(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	if err := h.service.Pause(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Trigger handles POST /campaigns/:id/trigger, the manual "process now"
// operation.
func (h *CampaignHandler) Trigger(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	count, err := h.service.Trigger(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enqueued": count})
}

// Stats handles GET /campaigns/:id/stats.
func (h *CampaignHandler) Stats(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func campaignID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid campaign ID"))
		return 0, false
	}
	return uint(id), true
}
