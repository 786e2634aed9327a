package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vorahub/keyserver/internal/config"
	"github.com/vorahub/keyserver/internal/keylock"
	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/ownercache"
	"github.com/vorahub/keyserver/internal/security"
	"github.com/vorahub/keyserver/internal/service"
	"github.com/vorahub/keyserver/internal/store"
)

const testJWTSecret = "admin-api-test-secret"

func setupAdminRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:adminapi_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.AutoMigrate(&models.Key{}, &models.GeneratedKey{}, &models.Whitelist{}, &models.Blacklist{}, &models.Staff{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	keys := store.NewKeyStore(db)
	svc := service.New(service.Dependencies{
		Keys:      keys,
		Vouchers:  store.NewVoucherStore(db),
		Whitelist: store.NewWhitelistStore(db),
		Blacklist: store.NewBlacklistStore(db),
		Cache:     ownercache.New(keys, ownercache.DefaultCapacity, ownercache.DefaultTTL),
		Locks:     keylock.New(),
	})

	router := gin.New()
	RegisterAdminRoutes(router, db, config.AuthConfig{JWTSecret: testJWTSecret, TokenTTLHours: 1}, svc, nil)
	return router, db
}

func seedStaffAccount(t *testing.T, db *gorm.DB, username, password string, perms string) {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	staff := models.Staff{
		Username:    username,
		Password:    hash,
		Active:      true,
		Permissions: datatypes.JSON(perms),
	}
	if errCreate := db.Create(&staff).Error; errCreate != nil {
		t.Fatalf("create staff: %v", errCreate)
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token, payload string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if payload != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginStaff(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()
	payload := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	w := doJSON(t, router, http.MethodPost, "/v0/admin/login", "", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode login response: %v", errDecode)
	}
	if body.Token == "" {
		t.Fatal("expected non-empty token")
	}
	return body.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, db := setupAdminRouter(t)
	seedStaffAccount(t, db, "root", "correct-horse", `["*"]`)

	w := doJSON(t, router, http.MethodPost, "/v0/admin/login", "", `{"username":"root","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/v0/admin/login", "", `{"username":"ghost","password":"whatever"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for unknown user, got %d", w.Code)
	}
}

func TestStaffRoutesRequireToken(t *testing.T) {
	router, _ := setupAdminRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v0/admin/stats", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/v0/admin/stats", "garbage-token", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for bad token, got %d", w.Code)
	}
}

func TestPermissionEnforcement(t *testing.T) {
	router, db := setupAdminRouter(t)
	seedStaffAccount(t, db, "viewer", "viewer-pass", `["lists"]`)
	token := loginStaff(t, router, "viewer", "viewer-pass")

	// lists capability does not grant key generation.
	w := doJSON(t, router, http.MethodPost, "/v0/admin/keys/generate", token, `{"amount":1}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}

	// but list reads work.
	w = doJSON(t, router, http.MethodGet, "/v0/admin/whitelist", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGenerateRedeemCheckFlow(t *testing.T) {
	router, db := setupAdminRouter(t)
	seedStaffAccount(t, db, "root", "root-pass", `["*"]`)
	token := loginStaff(t, router, "root", "root-pass")

	w := doJSON(t, router, http.MethodPost, "/v0/admin/keys/generate", token, `{"amount":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("generate: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var generated struct {
		Keys []string `json:"keys"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &generated); errDecode != nil {
		t.Fatalf("decode generate response: %v", errDecode)
	}
	if len(generated.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(generated.Keys))
	}

	payload := fmt.Sprintf(`{"key":%q,"user_id":"user-9","discord_tag":"user#9"}`, generated.Keys[0])
	w = doJSON(t, router, http.MethodPost, "/v0/admin/keys/redeem", token, payload)
	if w.Code != http.StatusOK {
		t.Fatalf("redeem: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// The voucher is consumed, so a second redemption no longer finds it.
	w = doJSON(t, router, http.MethodPost, "/v0/admin/keys/redeem", token, payload)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second redeem: expected status 404, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v0/admin/keys/check?user_id=user-9", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("check: expected status 200, got %d", w.Code)
	}
	var checked struct {
		Keys []map[string]any `json:"keys"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &checked); errDecode != nil {
		t.Fatalf("decode check response: %v", errDecode)
	}
	if len(checked.Keys) != 1 || checked.Keys[0]["id"] != generated.Keys[0] {
		t.Fatalf("unexpected check response %v", checked.Keys)
	}

	// Case-insensitive token search finds the redeemed key.
	fragment := strings.ToLower(generated.Keys[0][:10])
	w = doJSON(t, router, http.MethodGet, "/v0/admin/keys/search?q="+url.QueryEscape(fragment), token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("search: expected status 200, got %d", w.Code)
	}
	var found struct {
		Keys []map[string]any `json:"keys"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &found); errDecode != nil {
		t.Fatalf("decode search response: %v", errDecode)
	}
	if len(found.Keys) != 1 || found.Keys[0]["id"] != generated.Keys[0] {
		t.Fatalf("unexpected search response %v", found.Keys)
	}

	w = doJSON(t, router, http.MethodGet, "/v0/admin/stats", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected status 200, got %d", w.Code)
	}
}

func TestWhitelistAndBlacklistEndpoints(t *testing.T) {
	router, db := setupAdminRouter(t)
	seedStaffAccount(t, db, "root", "root-pass", `["*"]`)
	token := loginStaff(t, router, "root", "root-pass")

	w := doJSON(t, router, http.MethodPost, "/v0/admin/whitelist", token, `{"user_id":"user-1","discord_tag":"user#1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("whitelist add: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var added struct {
		Key string `json:"key"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &added); errDecode != nil {
		t.Fatalf("decode whitelist response: %v", errDecode)
	}
	if added.Key == "" {
		t.Fatal("expected issued key in whitelist response")
	}

	w = doJSON(t, router, http.MethodPost, "/v0/admin/whitelist", token, `{"user_id":"user-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate whitelist add: expected status 409, got %d", w.Code)
	}

	// Banning the user cascades removal of the issued key.
	w = doJSON(t, router, http.MethodPost, "/v0/admin/blacklist", token, `{"user_id":"user-1","reason":"abuse"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("blacklist add: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var banned struct {
		RemovedKeys int64 `json:"removed_keys"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &banned); errDecode != nil {
		t.Fatalf("decode blacklist response: %v", errDecode)
	}
	if banned.RemovedKeys != 1 {
		t.Fatalf("expected 1 removed key, got %d", banned.RemovedKeys)
	}

	var count int64
	if errCount := db.Model(&models.Key{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count keys: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no keys after cascade, got %d", count)
	}

	w = doJSON(t, router, http.MethodDelete, "/v0/admin/blacklist/user-1", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("blacklist remove: expected status 200, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/v0/admin/blacklist/user-1", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second blacklist remove: expected status 404, got %d", w.Code)
	}
}
