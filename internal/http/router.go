// Package http assembles the gin engine serving the public client API and
// the authenticated staff API.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vorahub/keyserver/internal/config"
	"github.com/vorahub/keyserver/internal/http/api/admin"
	"github.com/vorahub/keyserver/internal/http/api/client"
	"github.com/vorahub/keyserver/internal/ratelimit"
	"github.com/vorahub/keyserver/internal/service"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg *config.Config, conn *gorm.DB, svc *service.Service, limiter *ratelimit.Cooldown) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())

	client.RegisterClientRoutes(engine, conn, svc)
	admin.RegisterAdminRoutes(engine, conn, cfg.Auth, svc, limiter)

	return engine
}

// requestLogMiddleware emits one structured log line per request.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Info("request")
	}
}
