package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/ratelimit"
	"github.com/vorahub/keyserver/internal/service"
	"github.com/vorahub/keyserver/internal/util"
)

// maxGenerateBatch caps a single voucher generation request.
const maxGenerateBatch = 50

// KeysHandler handles staff key administration endpoints.
type KeysHandler struct {
	svc     *service.Service
	limiter *ratelimit.Cooldown
}

// NewKeysHandler constructs a KeysHandler.
func NewKeysHandler(svc *service.Service, limiter *ratelimit.Cooldown) *KeysHandler {
	return &KeysHandler{svc: svc, limiter: limiter}
}

// generateRequest defines the request body for voucher generation.
type generateRequest struct {
	Amount int `json:"amount"`
}

// Generate creates a batch of unredeemed vouchers.
func (h *KeysHandler) Generate(c *gin.Context) {
	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount < 1 || body.Amount > maxGenerateBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be between 1 and 50"})
		return
	}

	tokens, errGenerate := h.svc.Generate(c.Request.Context(), staffUsername(c), body.Amount)
	if errGenerate != nil {
		log.WithError(errGenerate).Error("generate vouchers failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": tokens})
}

// redeemOnBehalfRequest defines the request body for staff-driven redemption.
type redeemOnBehalfRequest struct {
	Key        string `json:"key"`
	UserID     string `json:"user_id"`
	DiscordTag string `json:"discord_tag"`
}

// Redeem redeems a voucher on behalf of a user, subject to the per-user
// cooldown window.
func (h *KeysHandler) Redeem(c *gin.Context) {
	var body redeemOnBehalfRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if body.Key == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key and user_id are required"})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(c.Request.Context(), userID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "redemption cooldown active"})
		return
	}

	key, errRedeem := h.svc.Redeem(c.Request.Context(), body.Key, userID, strings.TrimSpace(body.DiscordTag))
	if errRedeem != nil {
		switch {
		case errors.Is(errRedeem, service.ErrInvalidKey):
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid key"})
		case errors.Is(errRedeem, service.ErrAlreadyUsed):
			c.JSON(http.StatusConflict, gin.H{"error": "key already redeemed"})
		case errors.Is(errRedeem, service.ErrBlacklisted):
			c.JSON(http.StatusForbidden, gin.H{"error": "user is blacklisted"})
		default:
			log.WithError(errRedeem).WithField("key", util.MaskKeyToken(body.Key)).Error("redeem voucher failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": keyDTO(key)})
}

// targetUserRequest identifies the user a bulk key mutation applies to.
type targetUserRequest struct {
	UserID     string `json:"user_id"`
	DiscordTag string `json:"discord_tag"`
}

// Remove deletes all keys owned by the given user.
func (h *KeysHandler) Remove(c *gin.Context) {
	var body targetUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	removed, errRemove := h.svc.RemoveKeys(c.Request.Context(), staffUsername(c), userID, strings.TrimSpace(body.DiscordTag))
	if errRemove != nil {
		log.WithError(errRemove).Error("remove keys failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// hwidLimitRequest defines the request body for device quota updates.
type hwidLimitRequest struct {
	UserID     string `json:"user_id"`
	DiscordTag string `json:"discord_tag"`
	Limit      int    `json:"limit"`
}

// SetHWIDLimit updates the device quota on all keys owned by the user.
func (h *KeysHandler) SetHWIDLimit(c *gin.Context) {
	var body hwidLimitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if body.Limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be at least 1"})
		return
	}

	updated, errSet := h.svc.SetHWIDLimit(c.Request.Context(), staffUsername(c), userID, strings.TrimSpace(body.DiscordTag), body.Limit)
	if errSet != nil {
		log.WithError(errSet).Error("set hwid limit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Check returns full key records for the given user.
func (h *KeysHandler) Check(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	keys, errInspect := h.svc.InspectKeys(c.Request.Context(), userID)
	if errInspect != nil {
		log.WithError(errInspect).Error("inspect keys failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	resp := make([]gin.H, 0, len(keys))
	for i := range keys {
		resp = append(resp, keyDTO(&keys[i]))
	}
	c.JSON(http.StatusOK, gin.H{"keys": resp})
}

// Search returns keys whose ID contains the query fragment.
func (h *KeysHandler) Search(c *gin.Context) {
	fragment := strings.TrimSpace(c.Query("q"))
	if fragment == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	keys, errSearch := h.svc.SearchKeys(c.Request.Context(), fragment, parseLimitQuery(c, defaultListLimit))
	if errSearch != nil {
		log.WithError(errSearch).Error("search keys failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	resp := make([]gin.H, 0, len(keys))
	for i := range keys {
		resp = append(resp, keyDTO(&keys[i]))
	}
	c.JSON(http.StatusOK, gin.H{"keys": resp})
}

// Owned returns the user's currently valid key IDs from the ownership cache.
func (h *KeysHandler) Owned(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	keys := h.svc.OwnedKeys(c.Request.Context(), userID, strings.TrimSpace(c.Query("discord_tag")))
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// Stats returns record counts across all stores.
func (h *KeysHandler) Stats(c *gin.Context) {
	stats, errStats := h.svc.Stats(c.Request.Context())
	if errStats != nil {
		log.WithError(errStats).Error("stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// keyDTO shapes a key record for staff responses.
func keyDTO(k *models.Key) gin.H {
	return gin.H{
		"id":             k.ID,
		"user_id":        k.UserID,
		"discord_tag":    k.DiscordTag,
		"hwids":          k.BoundHWIDs(),
		"hwid_limit":     k.HWIDLimit,
		"feature":        k.Feature,
		"status":         k.Status,
		"expires_at":     k.ExpiresAt,
		"is_whitelisted": k.IsWhitelisted,
		"is_used":        k.IsUsed,
		"used_at":        k.UsedAt,
		"used_by":        k.UsedBy,
		"created_at":     k.CreatedAt,
		"created_by":     k.CreatedBy,
	}
}

// staffUsername returns the acting staff username from context.
func staffUsername(c *gin.Context) string {
	return c.GetString("staffUsername")
}

// parseLimitQuery parses an optional positive "limit" query parameter.
func parseLimitQuery(c *gin.Context, fallback int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return fallback
	}
	parsed, errParse := strconv.Atoi(raw)
	if errParse != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
