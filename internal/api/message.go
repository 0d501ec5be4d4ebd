package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/models"
	"go.uber.org/zap"
)

type MessageHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewMessageHandler(svc *messaging.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type attachmentRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type"`
	URL      string `json:"url"`
}

type createMessageRequest struct {
	Content     string              `json:"content"`
	ContentType models.ContentType  `json:"content_type"`
	ParentID    *int64              `json:"parent_id"`
	Attachments []attachmentRequest `json:"attachments"`
	MentionIDs  []uuid.UUID         `json:"mention_ids"`
}

func (r createMessageRequest) input(c *gin.Context, scope models.Scope) messaging.SendMessageInput {
	in := messaging.SendMessageInput{
		OrganizationID: middleware.GetOrganizationID(c),
		SenderID:       middleware.GetUserID(c),
		Scope:          scope,
		Content:        r.Content,
		ContentType:    r.ContentType,
		ParentID:       r.ParentID,
		MentionIDs:     r.MentionIDs,
	}
	for _, a := range r.Attachments {
		in.Attachments = append(in.Attachments, models.Attachment{
			FileName: a.FileName,
			FileSize: a.FileSize,
			FileType: a.FileType,
			URL:      a.URL,
		})
	}
	return in
}

// Create returns the handler for POST /v1/channels/:id/messages and
// POST /v1/conversations/:id/messages.
func (h *MessageHandler) Create(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}
		var req createMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		msg, err := h.svc.SendMessage(c.Request.Context(), req.input(c, scope))
		if err != nil {
			writeError(c, h.logger, "send message", err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// List returns the handler for GET .../messages?before=123&limit=50
//
// "before" is the id of the oldest message the client already has; the
// response's next_cursor is the value to send for the following page.
func (h *MessageHandler) List(resolve scopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := resolve(c)
		if !ok {
			return
		}

		var before *int64
		if b := c.Query("before"); b != "" {
			id, err := strconv.ParseInt(b, 10, 64)
			if err != nil || id <= 0 {
				badRequest(c, "invalid 'before' parameter")
				return
			}
			before = &id
		}
		limit, ok := intQuery(c, "limit")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		orgID := middleware.GetOrganizationID(c)
		if !h.authorize(c, orgID, scope) {
			return
		}

		page, err := h.svc.GetMessages(ctx, messaging.GetMessagesInput{
			OrganizationID: orgID,
			Scope:          scope,
			Before:         before,
			Limit:          limit,
		})
		if err != nil {
			writeError(c, h.logger, "list messages", err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// authorize writes the error response itself and reports whether the
// caller may read scope.
func (h *MessageHandler) authorize(c *gin.Context, orgID uuid.UUID, scope models.Scope) bool {
	allowed, err := h.svc.CanAccess(c.Request.Context(), orgID, middleware.GetUserID(c), scope)
	if err != nil {
		writeError(c, h.logger, "check access", err)
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

// readable loads the message at :message_id and checks the caller can see
// its scope.
func (h *MessageHandler) readable(c *gin.Context, op string) (*models.Message, bool) {
	id, ok := messageIDParam(c)
	if !ok {
		return nil, false
	}
	orgID := middleware.GetOrganizationID(c)
	msg, err := h.svc.GetMessage(c.Request.Context(), orgID, id)
	if err != nil {
		writeError(c, h.logger, op, err)
		return nil, false
	}
	if !h.authorize(c, orgID, msg.Scope) {
		return nil, false
	}
	return msg, true
}

// Get handles GET /v1/messages/:message_id
func (h *MessageHandler) Get(c *gin.Context) {
	msg, ok := h.readable(c, "get message")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, msg)
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Edit handles PATCH /v1/messages/:message_id. Only the sender may edit.
func (h *MessageHandler) Edit(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	msg, err := h.svc.EditMessage(c.Request.Context(), middleware.GetOrganizationID(c), id, middleware.GetUserID(c), req.Content)
	if err != nil {
		writeError(c, h.logger, "edit message", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /v1/messages/:message_id. The row stays as a
// tombstone and is returned.
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	msg, err := h.svc.DeleteMessage(c.Request.Context(), middleware.GetOrganizationID(c), id, middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, "delete message", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListReplies handles GET /v1/messages/:message_id/replies?limit=50
func (h *MessageHandler) ListReplies(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	parent, ok := h.readable(c, "list replies")
	if !ok {
		return
	}
	replies, err := h.svc.GetThreadReplies(c.Request.Context(), parent.OrganizationID, parent.ID, limit)
	if err != nil {
		writeError(c, h.logger, "list replies", err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

// Reply handles POST /v1/messages/:message_id/replies. The reply lands in
// the parent's channel or conversation.
func (h *MessageHandler) Reply(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	parent, err := h.svc.GetMessage(c.Request.Context(), middleware.GetOrganizationID(c), id)
	if err != nil {
		writeError(c, h.logger, "reply", err)
		return
	}
	req.ParentID = &parent.ID
	msg, err := h.svc.SendMessage(c.Request.Context(), req.input(c, parent.Scope))
	if err != nil {
		writeError(c, h.logger, "reply", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
