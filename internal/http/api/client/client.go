// Package client serves the unauthenticated endpoints called by game
// clients: liveness, health, and per-launch key activation.
package client

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vorahub/keyserver/internal/service"
	"github.com/vorahub/keyserver/internal/util"
)

// RegisterClientRoutes registers the public game-client routes.
func RegisterClientRoutes(r *gin.Engine, db *gorm.DB, svc *service.Service) {
	if r == nil || svc == nil {
		return
	}

	handler := NewClientHandler(db, svc)
	r.GET("/", handler.Root)
	r.GET("/healthz", handler.Healthz)
	r.POST("/redeem", handler.Redeem)
}

// ClientHandler serves the game-client endpoints.
type ClientHandler struct {
	db  *gorm.DB
	svc *service.Service
}

// NewClientHandler constructs a ClientHandler.
func NewClientHandler(db *gorm.DB, svc *service.Service) *ClientHandler {
	return &ClientHandler{db: db, svc: svc}
}

// Root reports liveness.
func (h *ClientHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Healthz checks database connectivity and returns status.
func (h *ClientHandler) Healthz(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// redeemRequest defines the launch payload sent by game clients.
type redeemRequest struct {
	Key      string `json:"key"`
	HWID     string `json:"hwid"`
	GameID   int64  `json:"gameId"`
	PlaceID  int64  `json:"placeId"`
	Username string `json:"username"`
}

// Redeem evaluates one launch attempt and returns the access decision.
// Malformed requests are answered as "free" rather than an HTTP error so
// that misbehaving clients degrade to the unpaid tier instead of retrying.
func (h *ClientHandler) Redeem(c *gin.Context) {
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": service.BindStatusFree, "message": "Invalid request"})
		return
	}
	if body.Key == "" || body.HWID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": service.BindStatusFree, "message": "Invalid request"})
		return
	}

	result, errBind := h.svc.Bind(c.Request.Context(), service.BindRequest{
		Key:      body.Key,
		HWID:     body.HWID,
		GameID:   body.GameID,
		PlaceID:  body.PlaceID,
		Username: body.Username,
	})
	if errBind != nil {
		log.WithError(errBind).WithField("key", util.MaskKeyToken(body.Key)).Error("launch decision failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal error"})
		return
	}

	// Kick responses carry reason and limit instead of a message.
	resp := gin.H{"status": result.Status}
	if result.Message != "" {
		resp["message"] = result.Message
	}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	if result.Limit > 0 {
		resp["limit"] = result.Limit
	}
	c.JSON(http.StatusOK, resp)
}
