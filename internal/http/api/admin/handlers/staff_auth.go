package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/vorahub/keyserver/internal/config"
	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/security"
)

// AuthHandler handles staff authentication endpoints.
type AuthHandler struct {
	db      *gorm.DB
	authCfg config.AuthConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, authCfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{db: db, authCfg: authCfg}
}

// staffLoginRequest defines the request body for staff login.
type staffLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Login authenticates a staff account and issues a JWT. Accounts with TOTP
// enrolled must supply a valid code in the same request.
func (h *AuthHandler) Login(c *gin.Context) {
	var body staffLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var staff models.Staff
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&staff).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if !staff.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "staff disabled"})
		return
	}
	if !security.CheckPassword(staff.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if strings.TrimSpace(staff.TOTPSecret) != "" {
		code := strings.TrimSpace(body.Code)
		if code == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "totp code required"})
			return
		}
		if !totp.Validate(code, staff.TOTPSecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
			return
		}
	}

	ttl := time.Duration(h.authCfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, errToken := security.GenerateStaffToken(h.authCfg.JWTSecret, staff.ID, staff.Username, ttl)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"username":   staff.Username,
		"expires_in": int64(ttl.Seconds()),
	})
}

// Profile returns the authenticated staff account.
func (h *AuthHandler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username":    c.GetString("staffUsername"),
		"permissions": c.MustGet("staffPermissions"),
	})
}

// PrepareTOTP generates a fresh TOTP secret for enrollment. Nothing is
// persisted until the secret is confirmed with a valid code.
func (h *AuthHandler) PrepareTOTP(c *gin.Context) {
	username := c.GetString("staffUsername")
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      "keyserver",
		AccountName: username,
	})
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": key.Secret(), "url": key.URL()})
}

// confirmTOTPRequest defines the request body for TOTP confirmation.
type confirmTOTPRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ConfirmTOTP verifies the code against the prepared secret and enrolls it.
func (h *AuthHandler) ConfirmTOTP(c *gin.Context) {
	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	secret := strings.TrimSpace(body.Secret)
	code := strings.TrimSpace(body.Code)
	if secret == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing secret or code"})
		return
	}
	if !totp.Validate(code, secret) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid totp code"})
		return
	}

	staffID := c.MustGet("staffID").(uint64)
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Staff{}).
		Where("id = ?", staffID).
		Update("totp_secret", secret).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enroll totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
