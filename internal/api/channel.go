package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/models"
	"go.uber.org/zap"
)

// ChannelHandler serves channel creation, listing and settings.
type ChannelHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewChannelHandler(svc *messaging.Service, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{svc: svc, logger: logger}
}

// createChannelRequest is the body for POST /v1/channels. The slug is
// derived from the name server-side.
type createChannelRequest struct {
	Name        string             `json:"name" binding:"required"`
	Description string             `json:"description"`
	ChannelType models.ChannelType `json:"channel_type"`
	IsDefault   bool               `json:"is_default"`
}

// Create handles POST /v1/channels
func (h *ChannelHandler) Create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ch, err := h.svc.CreateChannel(c.Request.Context(), messaging.CreateChannelInput{
		OrganizationID: middleware.GetOrganizationID(c),
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.ChannelType,
		IsDefault:      req.IsDefault,
		CreatedByID:    middleware.GetUserID(c),
	})
	if err != nil {
		writeError(c, h.logger, "create channel", err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// List handles GET /v1/channels
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.svc.GetUserChannels(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, "list channels", err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetByID handles GET /v1/channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ch, err := h.svc.GetChannel(c.Request.Context(), middleware.GetOrganizationID(c), channelID)
	if err != nil {
		writeError(c, h.logger, "get channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

type updateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update handles PATCH /v1/channels/:id
func (h *ChannelHandler) Update(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ch, err := h.svc.UpdateChannel(c.Request.Context(), middleware.GetOrganizationID(c), channelID, messaging.UpdateChannelInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, h.logger, "update channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Archive handles POST /v1/channels/:id/archive
func (h *ChannelHandler) Archive(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ch, err := h.svc.ArchiveChannel(c.Request.Context(), middleware.GetOrganizationID(c), channelID)
	if err != nil {
		writeError(c, h.logger, "archive channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}
