package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Parley/internal/adapters/signal"
	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/domain"
)

// AuthMiddleware resolves a Bearer token through the hub's credential
// validator for the plain HTTP surface. The WebSocket endpoint does its
// own event-based authentication instead.
func AuthMiddleware(hub *app.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := hub.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user_id", string(user))
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ParleySessions", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewController(hub, cfg)
	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	authed := api.Group("", AuthMiddleware(hub))
	authed.GET("/unread", func(c *gin.Context) {
		user := domain.UserID(c.GetString("user_id"))
		ids := lo.Map(c.QueryArray("conversation_id"), func(id string, _ int) domain.ConversationID {
			return domain.ConversationID(id)
		})
		counts, err := hub.UnreadCount(c.Request.Context(), user, ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unread query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": counts})
	})
	authed.GET("/presence/:user_id", func(c *gin.Context) {
		id := domain.UserID(c.Param("user_id"))
		c.JSON(http.StatusOK, gin.H{"user_id": id, "online": hub.IsOnline(id)})
	})

	return r
}
