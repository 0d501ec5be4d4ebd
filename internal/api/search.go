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

type SearchHandler struct {
	svc    *messaging.Service
	logger *zap.Logger
}

func NewSearchHandler(svc *messaging.Service, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, logger: logger}
}

// Search handles GET /v1/search?q=escrow&channel_id=...&limit=20
//
// Without a channel_id or conversation_id it searches the caller's whole
// organization.
func (h *SearchHandler) Search(c *gin.Context) {
	var channelID, conversationID *uuid.UUID
	for name, dst := range map[string]**uuid.UUID{"channel_id": &channelID, "conversation_id": &conversationID} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid '"+name+"' parameter")
			return
		}
		*dst = &id
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	orgID := middleware.GetOrganizationID(c)
	in := messaging.SearchInput{
		OrganizationID: orgID,
		Query:          c.Query("q"),
		Limit:          limit,
	}
	if channelID != nil || conversationID != nil {
		scope, err := models.ScopeFrom(channelID, conversationID)
		if err != nil {
			badRequest(c, "pass at most one of channel_id or conversation_id")
			return
		}
		allowed, err := h.svc.CanAccess(c.Request.Context(), orgID, middleware.GetUserID(c), scope)
		if err != nil {
			writeError(c, h.logger, "search", err)
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		in.Scope = &scope
	}

	results, err := h.svc.SearchMessages(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, "search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
