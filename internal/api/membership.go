package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/models"
	"go.uber.org/zap"
)

// MembershipHandler handles channel membership operations.
type MembershipHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewMembershipHandler(svc *messaging.Service, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{svc: svc, logger: logger}
}

// Join handles POST /v1/channels/:id/join. Joining a private channel
// requires being added by someone else.
func (h *MembershipHandler) Join(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orgID := middleware.GetOrganizationID(c)

	ch, err := h.svc.GetChannel(ctx, orgID, channelID)
	if err != nil {
		writeError(c, h.logger, "join channel", err)
		return
	}
	if ch.Type == models.ChannelPrivate {
		c.JSON(http.StatusForbidden, gin.H{"error": "private channels are invite only"})
		return
	}
	if _, err := h.svc.AddChannelMember(ctx, orgID, channelID, middleware.GetUserID(c), models.RoleMember); err != nil {
		writeError(c, h.logger, "join channel", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave handles POST /v1/channels/:id/leave
func (h *MembershipHandler) Leave(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.RemoveChannelMember(c.Request.Context(), middleware.GetOrganizationID(c), channelID, middleware.GetUserID(c)); err != nil {
		writeError(c, h.logger, "leave channel", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type putMemberRequest struct {
	Role models.MemberRole `json:"role"`
}

// Put handles PUT /v1/channels/:id/members/:user_id. It adds the user or
// changes their role. Role defaults to MEMBER. Private channels and roles
// above MEMBER take an OWNER or ADMIN.
func (h *MembershipHandler) Put(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req putMemberRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	m, err := h.svc.SetChannelMember(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), channelID, userID, req.Role)
	if err != nil {
		writeError(c, h.logger, "add channel member", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Remove handles DELETE /v1/channels/:id/members/:user_id. Removing
// anyone but yourself takes an OWNER or ADMIN.
func (h *MembershipHandler) Remove(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.svc.KickChannelMember(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), channelID, userID); err != nil {
		writeError(c, h.logger, "remove channel member", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers handles GET /v1/channels/:id/members
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.ListChannelMembers(c.Request.Context(), middleware.GetOrganizationID(c), channelID)
	if err != nil {
		writeError(c, h.logger, "list channel members", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

type muteRequest struct {
	Until *time.Time `json:"until"`
}

// Mute handles PUT /v1/channels/:id/mute. A null or missing until unmutes.
func (h *MembershipHandler) Mute(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.MuteChannel(c.Request.Context(), middleware.GetOrganizationID(c), channelID, middleware.GetUserID(c), req.Until); err != nil {
		writeError(c, h.logger, "mute channel", err)
		return
	}
	c.Status(http.StatusNoContent)
}
