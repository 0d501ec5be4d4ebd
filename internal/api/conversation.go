package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/models"
	"go.uber.org/zap"
)

// ConversationHandler serves DMs and group chats.
type ConversationHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewConversationHandler(svc *messaging.Service, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{svc: svc, logger: logger}
}

type directRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// Direct handles POST /v1/conversations/direct. Repeated calls for the same
// pair return the same conversation.
func (h *ConversationHandler) Direct(c *gin.Context) {
	var req directRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	conv, err := h.svc.GetOrCreateDM(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c), req.UserID)
	if err != nil {
		writeError(c, h.logger, "open direct conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type createGroupRequest struct {
	Name           string             `json:"name"`
	ParticipantIDs []uuid.UUID        `json:"participant_ids"`
	EntityType     *models.EntityType `json:"entity_type"`
	EntityID       *uuid.UUID         `json:"entity_id"`
}

// Create handles POST /v1/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	conv, err := h.svc.CreateGroupConversation(c.Request.Context(), messaging.CreateGroupInput{
		OrganizationID: middleware.GetOrganizationID(c),
		CreatedByID:    middleware.GetUserID(c),
		Name:           req.Name,
		ParticipantIDs: req.ParticipantIDs,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
	})
	if err != nil {
		writeError(c, h.logger, "create conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// List handles GET /v1/conversations, most recently active first.
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.svc.GetUserConversations(c.Request.Context(), middleware.GetOrganizationID(c), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

type addParticipantRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// AddParticipant handles POST /v1/conversations/:id/participants. Only an
// active participant may add someone.
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	scope, ok := conversationScope(c)
	if !ok {
		return
	}
	var req addParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	orgID := middleware.GetOrganizationID(c)

	allowed, err := h.svc.CanAccess(ctx, orgID, middleware.GetUserID(c), scope)
	if err != nil {
		writeError(c, h.logger, "add participant", err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err := h.svc.AddConversationParticipant(ctx, orgID, scope.ID(), req.UserID); err != nil {
		writeError(c, h.logger, "add participant", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave handles POST /v1/conversations/:id/leave
func (h *ConversationHandler) Leave(c *gin.Context) {
	scope, ok := conversationScope(c)
	if !ok {
		return
	}
	if err := h.svc.LeaveConversation(c.Request.Context(), middleware.GetOrganizationID(c), scope.ID(), middleware.GetUserID(c)); err != nil {
		writeError(c, h.logger, "leave conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}
