package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/models"
	"go.uber.org/zap"
)

const maxPresenceLookup = 200

type PresenceHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewPresenceHandler(svc *messaging.Service, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{svc: svc, logger: logger}
}

// StartTyping returns the handler for PUT .../:id/typing. Clients repeat
// it while the user keeps typing; each call pushes the expiry out.
func (h *PresenceHandler) StartTyping(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}
		if err := h.svc.SetTypingIndicator(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), scope); err != nil {
			writeError(c, h.logger, "set typing", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// StopTyping returns the handler for DELETE .../:id/typing
func (h *PresenceHandler) StopTyping(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}
		if err := h.svc.ClearTypingIndicator(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), scope); err != nil {
			writeError(c, h.logger, "clear typing", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Typing returns the handler for GET .../:id/typing
func (h *PresenceHandler) Typing(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}
		users, err := h.svc.GetTypingUsers(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), scope)
		if err != nil {
			writeError(c, h.logger, "get typing", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_ids": users})
	}
}

type presenceRequest struct {
	Status        models.PresenceStatus `json:"status" binding:"required"`
	StatusMessage string                `json:"status_message"`
}

// Update handles PUT /v1/presence
func (h *PresenceHandler) Update(c *gin.Context) {
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.svc.UpdatePresence(c.Request.Context(), middleware.GetUserID(c), req.Status, req.StatusMessage)
	if err != nil {
		writeError(c, h.logger, "update presence", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Online handles GET /v1/presence?user_ids=a,b,c and returns the subset
// that is currently online.
func (h *PresenceHandler) Online(c *gin.Context) {
	var ids []uuid.UUID
	for _, raw := range strings.Split(c.Query("user_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid 'user_ids' parameter")
			return
		}
		ids = append(ids, id)
	}
	if len(ids) > maxPresenceLookup {
		badRequest(c, "too many user ids")
		return
	}
	online, err := h.svc.GetOnlineUsers(c.Request.Context(), ids)
	if err != nil {
		writeError(c, h.logger, "get presence", err)
		return
	}
	c.JSON(http.StatusOK, online)
}
