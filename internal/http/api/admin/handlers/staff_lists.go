package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vorahub/keyserver/internal/service"
)

// defaultListLimit caps whitelist/blacklist listings when unspecified.
const defaultListLimit = 100

// ListsHandler handles whitelist and blacklist administration endpoints.
type ListsHandler struct {
	svc *service.Service
}

// NewListsHandler constructs a ListsHandler.
func NewListsHandler(svc *service.Service) *ListsHandler {
	return &ListsHandler{svc: svc}
}

// listMemberRequest defines the request body for list membership changes.
type listMemberRequest struct {
	UserID     string `json:"user_id"`
	DiscordTag string `json:"discord_tag"`
	Reason     string `json:"reason"`
}

// WhitelistAdd grants permanent entitlement and issues the backing key.
func (h *ListsHandler) WhitelistAdd(c *gin.Context) {
	var body listMemberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	key, errAdd := h.svc.WhitelistAdd(c.Request.Context(), staffUsername(c), userID, strings.TrimSpace(body.DiscordTag))
	if errAdd != nil {
		if errors.Is(errAdd, service.ErrAlreadyWhitelisted) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already whitelisted"})
			return
		}
		log.WithError(errAdd).Error("whitelist add failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "whitelist add failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}

// WhitelistRemove revokes a whitelist membership.
func (h *ListsHandler) WhitelistRemove(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if errRemove := h.svc.WhitelistRemove(c.Request.Context(), staffUsername(c), userID, ""); errRemove != nil {
		if errors.Is(errRemove, service.ErrNotWhitelisted) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not whitelisted"})
			return
		}
		log.WithError(errRemove).Error("whitelist remove failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "whitelist remove failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// WhitelistList returns recent whitelist entries.
func (h *ListsHandler) WhitelistList(c *gin.Context) {
	entries, errList := h.svc.WhitelistEntries(c.Request.Context(), parseLimitQuery(c, defaultListLimit))
	if errList != nil {
		log.WithError(errList).Error("whitelist query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	resp := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, gin.H{
			"user_id":     entry.UserID,
			"discord_tag": entry.DiscordTag,
			"key":         entry.Key,
			"added_by":    entry.AddedBy,
			"added_at":    entry.AddedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"whitelist": resp})
}

// BlacklistAdd bans a user and cascades removal of their keys and
// whitelist membership.
func (h *ListsHandler) BlacklistAdd(c *gin.Context) {
	var body listMemberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	removed, errAdd := h.svc.BlacklistAdd(c.Request.Context(), staffUsername(c), userID, strings.TrimSpace(body.DiscordTag), strings.TrimSpace(body.Reason))
	if errAdd != nil {
		if errors.Is(errAdd, service.ErrAlreadyBlacklisted) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already blacklisted"})
			return
		}
		log.WithError(errAdd).Error("blacklist add failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blacklist add failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed_keys": removed})
}

// BlacklistRemove lifts a ban. Previously removed keys are not restored.
func (h *ListsHandler) BlacklistRemove(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if errRemove := h.svc.BlacklistRemove(c.Request.Context(), staffUsername(c), userID, ""); errRemove != nil {
		if errors.Is(errRemove, service.ErrNotBlacklisted) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not blacklisted"})
			return
		}
		log.WithError(errRemove).Error("blacklist remove failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blacklist remove failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BlacklistList returns recent blacklist entries.
func (h *ListsHandler) BlacklistList(c *gin.Context) {
	entries, errList := h.svc.BlacklistEntries(c.Request.Context(), parseLimitQuery(c, defaultListLimit))
	if errList != nil {
		log.WithError(errList).Error("blacklist query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	resp := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, gin.H{
			"user_id":     entry.UserID,
			"discord_tag": entry.DiscordTag,
			"reason":      entry.Reason,
			"added_by":    entry.AddedBy,
			"added_at":    entry.AddedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"blacklist": resp})
}
