package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/middleware"
	"github.com/lalith-99/brokerchat/internal/realtime"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Service   *messaging.Service
	Hub       *realtime.Hub
	Logger    *zap.Logger
	JWTSecret string

	// Limiter is optional; nil disables per-user rate limiting.
	Limiter *limiter.Limiter

	// HealthChecks are probed by /v1/health, keyed by component name.
	HealthChecks map[string]HealthCheck
}

// NewRouter builds the HTTP surface. /v1/health is public; every other
// route needs a valid JWT.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	svc := cfg.Service

	r := gin.New()
	r.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))

	r.GET("/v1/health", health(cfg.HealthChecks, logger))

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	if cfg.Limiter != nil {
		v1.Use(middleware.RateLimit(cfg.Limiter, logger))
	}

	channels := NewChannelHandler(svc, logger)
	members := NewMembershipHandler(svc, logger)
	conversations := NewConversationHandler(svc, logger)
	messages := NewMessageHandler(svc, logger)
	reactions := NewReactionHandler(svc, logger)
	presence := NewPresenceHandler(svc, logger)
	search := NewSearchHandler(svc, logger)

	v1.POST("/channels", channels.Create)
	v1.GET("/channels", channels.List)
	v1.GET("/channels/:id", channels.GetByID)
	v1.PATCH("/channels/:id", channels.Update)
	v1.POST("/channels/:id/archive", channels.Archive)

	v1.POST("/channels/:id/join", members.Join)
	v1.POST("/channels/:id/leave", members.Leave)
	v1.GET("/channels/:id/members", members.ListMembers)
	v1.PUT("/channels/:id/members/:user_id", members.Put)
	v1.DELETE("/channels/:id/members/:user_id", members.Remove)
	v1.PUT("/channels/:id/mute", members.Mute)

	v1.POST("/conversations/direct", conversations.Direct)
	v1.POST("/conversations", conversations.Create)
	v1.GET("/conversations", conversations.List)
	v1.POST("/conversations/:id/participants", conversations.AddParticipant)
	v1.POST("/conversations/:id/leave", conversations.Leave)

	// Channels and conversations share the message, receipt and typing routes.
	for prefix, resolve := range map[string]scopeResolver{
		"/channels/:id":      channelScope,
		"/conversations/:id": conversationScope,
	} {
		v1.POST(prefix+"/messages", messages.Create(resolve))
		v1.GET(prefix+"/messages", messages.List(resolve))
		v1.POST(prefix+"/read", reactions.MarkScopeRead(resolve))
		v1.GET(prefix+"/unread", reactions.Unread(resolve))
		v1.PUT(prefix+"/typing", presence.StartTyping(resolve))
		v1.DELETE(prefix+"/typing", presence.StopTyping(resolve))
		v1.GET(prefix+"/typing", presence.Typing(resolve))
	}

	v1.GET("/messages/:message_id", messages.Get)
	v1.PATCH("/messages/:message_id", messages.Edit)
	v1.DELETE("/messages/:message_id", messages.Delete)
	v1.GET("/messages/:message_id/replies", messages.ListReplies)
	v1.POST("/messages/:message_id/replies", messages.Reply)
	v1.POST("/messages/:message_id/reactions", reactions.Add)
	v1.GET("/messages/:message_id/reactions", reactions.List)
	v1.DELETE("/messages/:message_id/reactions/:emoji", reactions.Remove)
	v1.POST("/reads", reactions.MarkRead)

	v1.PUT("/presence", presence.Update)
	v1.GET("/presence", presence.Online)
	v1.GET("/search", search.Search)

	if cfg.Hub != nil {
		v1.GET("/ws", NewRealtimeHandler(svc, cfg.Hub, logger).Connect)
	}

	return r
}

func health(checks map[string]HealthCheck, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
				components[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		body := gin.H{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(components) > 0 {
			body["components"] = components
		}
		c.JSON(status, body)
	}
}
