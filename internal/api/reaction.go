package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"go.uber.org/zap"
)

// ReactionHandler covers emoji reactions and read receipts.
type ReactionHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewReactionHandler(svc *messaging.Service, logger *zap.Logger) *ReactionHandler {
	return &ReactionHandler{svc: svc, logger: logger}
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Add handles POST /v1/messages/:message_id/reactions
func (h *ReactionHandler) Add(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.AddReaction(c.Request.Context(), middleware.GetOrganizationID(c), id, middleware.GetUserID(c), req.Emoji); err != nil {
		writeError(c, h.logger, "add reaction", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove handles DELETE /v1/messages/:message_id/reactions/:emoji
func (h *ReactionHandler) Remove(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveReaction(c.Request.Context(), middleware.GetOrganizationID(c), id, middleware.GetUserID(c), c.Param("emoji")); err != nil {
		writeError(c, h.logger, "remove reaction", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// List handles GET /v1/messages/:message_id/reactions
func (h *ReactionHandler) List(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	groups, err := h.svc.ListReactions(c.Request.Context(), middleware.GetOrganizationID(c), id, middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, "list reactions", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

type markReadRequest struct {
	MessageIDs []int64 `json:"message_ids" binding:"required"`
}

// MarkRead handles POST /v1/reads
func (h *ReactionHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.MarkMessagesAsRead(c.Request.Context(), middleware.GetOrganizationID(c), req.MessageIDs, middleware.GetUserID(c)); err != nil {
		writeError(c, h.logger, "mark read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkScopeRead returns the handler for POST .../:id/read, which marks
// every message in the channel or conversation as read.
func (h *ReactionHandler) MarkScopeRead(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}
		if err := h.svc.MarkScopeAsRead(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), scope); err != nil {
			writeError(c, h.logger, "mark scope read", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Unread returns the handler for GET .../:id/unread
func (h *ReactionHandler) Unread(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}
		n, err := h.svc.GetUnreadCount(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), scope)
		if err != nil {
			writeError(c, h.logger, "unread count", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	}
}
