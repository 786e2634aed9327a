// Package admin registers the authenticated staff API: login, key
// administration, and whitelist/blacklist management.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vorahub/keyserver/internal/config"
	"github.com/vorahub/keyserver/internal/http/api/admin/handlers"
	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/ratelimit"
	"github.com/vorahub/keyserver/internal/security"
	"github.com/vorahub/keyserver/internal/service"
)

// RegisterAdminRoutes registers the staff routes under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, authCfg config.AuthConfig, svc *service.Service, limiter *ratelimit.Cooldown) {
	if r == nil || db == nil || svc == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, authCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(staffAuthMiddleware(db, authCfg))

	authed.GET("/profile", authHandler.Profile)
	authed.POST("/mfa/totp/prepare", authHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", authHandler.ConfirmTOTP)

	keysHandler := handlers.NewKeysHandler(svc, limiter)
	keys := authed.Group("", requirePermission(PermKeys))
	keys.POST("/keys/generate", keysHandler.Generate)
	keys.POST("/keys/redeem", keysHandler.Redeem)
	keys.POST("/keys/remove", keysHandler.Remove)
	keys.POST("/keys/hwid-limit", keysHandler.SetHWIDLimit)
	keys.GET("/keys/check", keysHandler.Check)
	keys.GET("/keys/search", keysHandler.Search)
	keys.GET("/keys/owned", keysHandler.Owned)
	authed.GET("/stats", keysHandler.Stats)

	listsHandler := handlers.NewListsHandler(svc)
	lists := authed.Group("", requirePermission(PermLists))
	lists.POST("/whitelist", listsHandler.WhitelistAdd)
	lists.DELETE("/whitelist/:user_id", listsHandler.WhitelistRemove)
	lists.GET("/whitelist", listsHandler.WhitelistList)
	lists.POST("/blacklist", listsHandler.BlacklistAdd)
	lists.DELETE("/blacklist/:user_id", listsHandler.BlacklistRemove)
	lists.GET("/blacklist", listsHandler.BlacklistList)
}

// staffAuthMiddleware validates staff JWTs and loads the account into context.
func staffAuthMiddleware(db *gorm.DB, authCfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseStaffToken(authCfg.JWTSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var staff models.Staff
		if errFind := db.WithContext(c.Request.Context()).First(&staff, claims.StaffID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "staff not found"})
			return
		}
		if !staff.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff disabled"})
			return
		}

		c.Set("staffID", staff.ID)
		c.Set("staffUsername", staff.Username)
		c.Set("staffPermissions", ParsePermissions(staff.Permissions))
		c.Next()
	}
}

// requirePermission aborts the request unless the staff account carries the
// given capability or the wildcard.
func requirePermission(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get("staffPermissions")
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		perms, okPerms := value.([]string)
		if !okPerms || !HasPermission(perms, key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
