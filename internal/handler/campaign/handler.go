package campaign

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/handler"
	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/service/campaign"
)

type Handler struct {
	service campaign.Service
}

func NewHandler(service campaign.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/campaigns", h.CreateCampaign)
	r.GET("/campaigns/:id", h.GetCampaign)
	r.POST("/campaigns/:id/launch", h.LaunchCampaign)
	r.POST("/campaigns/:id/pause", h.PauseCampaign)
	r.POST("/campaigns/:id/resume", h.ResumeCampaign)
	r.GET("/campaigns/:id/analytics", h.CampaignAnalytics)
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req model.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) GetCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaign))
}

func (h *Handler) LaunchCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	launched, err := h.service.Launch(c.Request.Context(), id)
	if err != nil {
		handler.WriteTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(launched))
}

func (h *Handler) PauseCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Pause(c.Request.Context(), id); err != nil {
		handler.WriteTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id, "status": model.CampaignStatusPaused}))
}

func (h *Handler) ResumeCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Resume(c.Request.Context(), id); err != nil {
		handler.WriteTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id, "status": model.CampaignStatusRunning}))
}

func (h *Handler) CampaignAnalytics(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	analytics, err := h.service.Analytics(c.Request.Context(), id)
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(analytics))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return uuid.Nil, false
	}
	return id, true
}
