// Package httpapi is the REST gateway over the discovery, match and chat
// services. The caller is identified by the X-User-ID header, set by the
// identity layer in front of this service.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/service/chat"
	"github.com/oggyb/muzz-connect/internal/service/discovery"
	"github.com/oggyb/muzz-connect/internal/service/match"
)

const (
	UserIDHeader = "X-User-ID"
	userIDKey    = "userId"
)

// Handler holds the services the routes call into.
type Handler struct {
	appCtx    *app.AppContext
	discovery *discovery.Service
	match     *match.Service
	chat      *chat.Service
}

func NewHandler(appCtx *app.AppContext) *Handler {
	return &Handler{
		appCtx:    appCtx,
		discovery: discovery.NewDiscoveryService(appCtx),
		match:     match.NewMatchService(appCtx),
		chat:      chat.NewChatService(appCtx),
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(appCtx *app.AppContext) *gin.Engine {
	if appCtx.Config.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := NewHandler(appCtx)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(appCtx))
	router.Use(cors.New(corsConfig(appCtx.Config.HTTP.CORSOrigins)))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	v1.Use(requireUser())

	v1.GET("/discover", h.Discover)

	v1.POST("/likes", h.Like)
	v1.POST("/passes", h.Pass)
	v1.GET("/likes/received", h.ListLikedYou)
	v1.GET("/likes/received/count", h.CountLikedYou)

	v1.GET("/conversations", h.GetConversations)
	v1.GET("/conversations/:id/messages", h.GetMessages)
	v1.POST("/conversations/:id/messages", h.SendMessage)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", UserIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// requireUser rejects requests without a caller id.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight carries no identity
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + UserIDHeader + " header",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func requestLogger(appCtx *app.AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appCtx.Logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
