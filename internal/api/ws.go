package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/realtime"
	"go.uber.org/zap"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"

	eventSubscribed   = "subscribed"
	eventUnsubscribed = "unsubscribed"
	eventError        = "error"

	// Frames arrive after the upgrade, so they cannot use the request context.
	wsCallTimeout = 5 * time.Second
)

type subscriptionAck struct {
	Topic string `json:"topic"`
}

type frameError struct {
	Error string `json:"error"`
}

// RealtimeHandler upgrades authenticated requests to WebSocket connections
// and lets each client subscribe to the channels and conversations it can read.
type RealtimeHandler struct {
	svc      *messaging.Service
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewRealtimeHandler(svc *messaging.Service, hub *realtime.Hub, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers send the token as ?access_token=; the JWT is the gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect handles GET /v1/ws
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)
	orgID := middleware.GetOrganizationID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	h.presence(userID, "connected", h.svc.PresenceConnected)
	client := realtime.NewClient(h.hub, conn, userID, orgID)
	client.Serve(h.handleFrame, h.handlePong, h.handleClose)
}

func (h *RealtimeHandler) handleFrame(client *realtime.Client, frame realtime.ClientFrame) {
	scope, err := models.ScopeFrom(frame.ChannelID, frame.ConversationID)
	if err != nil {
		client.Reply(eventError, frameError{Error: "exactly one of channel_id or conversation_id is required"})
		return
	}
	topic := realtime.ScopeTopic(client.OrganizationID, scope)

	switch frame.Action {
	case actionSubscribe:
		ctx, cancel := context.WithTimeout(context.Background(), wsCallTimeout)
		defer cancel()

		allowed, err := h.svc.CanAccess(ctx, client.OrganizationID, client.UserID, scope)
		if err != nil || !allowed {
			h.logger.Debug("ws subscribe refused",
				zap.String("user_id", client.UserID.String()),
				zap.Stringer("scope", scope),
				zap.Error(err),
			)
			client.Reply(eventError, frameError{Error: "forbidden"})
			return
		}
		h.hub.Subscribe(client, topic)
		client.Reply(eventSubscribed, subscriptionAck{Topic: topic})

	case actionUnsubscribe:
		h.hub.Unsubscribe(client, topic)
		client.Reply(eventUnsubscribed, subscriptionAck{Topic: topic})

	default:
		client.Reply(eventError, frameError{Error: "unknown action"})
	}
}

func (h *RealtimeHandler) handlePong(client *realtime.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCallTimeout)
	defer cancel()
	if err := h.svc.TouchPresence(ctx, client.UserID); err != nil {
		h.logger.Warn("touch presence failed", zap.String("user_id", client.UserID.String()), zap.Error(err))
	}
}

// handleClose marks the user offline once their last connection is gone.
func (h *RealtimeHandler) handleClose(client *realtime.Client, left int) {
	if left > 0 {
		return
	}
	h.presence(client.UserID, "disconnected", h.svc.PresenceDisconnected)
}

func (h *RealtimeHandler) presence(userID uuid.UUID, state string, mark func(context.Context, uuid.UUID) error) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCallTimeout)
	defer cancel()
	if err := mark(ctx, userID); err != nil {
		h.logger.Warn("update presence failed",
			zap.String("user_id", userID.String()),
			zap.String("state", state),
			zap.Error(err),
		)
	}
}
