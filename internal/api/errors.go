package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/models"
	"go.uber.org/zap"
)

// writeError maps a service error onto a status code. Client errors carry
// a short message; anything unexpected is logged and returned as a bare 500.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, messaging.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, messaging.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, messaging.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, messaging.ErrDeleted):
		status, msg = http.StatusConflict, "message deleted"
	case errors.Is(err, messaging.ErrArchived):
		status, msg = http.StatusConflict, "channel archived"
	case errors.Is(err, messaging.ErrConflict):
		status, msg = http.StatusConflict, "already exists"
	}

	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func messageIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid message_id")
		return 0, false
	}
	return id, true
}

// intQuery reads an optional positive integer query parameter.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		badRequest(c, "invalid '"+name+"' parameter")
		return 0, false
	}
	return n, true
}

// scopeResolver reads the channel or conversation a route addresses.
type scopeResolver func(c *gin.Context) (models.Scope, bool)

func channelScope(c *gin.Context) (models.Scope, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return models.Scope{}, false
	}
	return models.ChannelScope(id), true
}

func conversationScope(c *gin.Context) (models.Scope, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return models.Scope{}, false
	}
	return models.ConversationScope(id), true
}
