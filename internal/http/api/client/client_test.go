package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vorahub/keyserver/internal/keylock"
	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/ownercache"
	"github.com/vorahub/keyserver/internal/service"
	"github.com/vorahub/keyserver/internal/store"
)

func setupClientRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:clientapi_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.AutoMigrate(&models.Key{}, &models.GeneratedKey{}, &models.Whitelist{}, &models.Blacklist{}); errMigrate != nil {
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
	RegisterClientRoutes(router, db, svc)
	return router, db
}

func postRedeem(t *testing.T, router *gin.Engine, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/redeem", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	return body
}

func TestRedeemRejectsMissingFields(t *testing.T) {
	router, _ := setupClientRouter(t)

	for _, payload := range []string{`{}`, `{"key":"K"}`, `{"hwid":"H"}`, `not json`} {
		w := postRedeem(t, router, payload)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected status 400, got %d", payload, w.Code)
		}
		body := decodeBody(t, w)
		if body["status"] != "free" || body["message"] != "Invalid request" {
			t.Fatalf("payload %q: unexpected body %v", payload, body)
		}
	}
}

func TestRedeemUnknownKeyIsFree(t *testing.T) {
	router, _ := setupClientRouter(t)

	w := postRedeem(t, router, `{"key":"NOPE-000000-ABCDEF-123456","hwid":"HW-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "free" {
		t.Fatalf("expected free status, got %v", body)
	}
}

func TestRedeemActivatesThenKicksBeyondQuota(t *testing.T) {
	router, db := setupClientRouter(t)

	key := models.Key{
		ID:        "VORAHUB-AAAAAA-BBBBBB-CCCCCC",
		UserID:    "user-1",
		HWIDLimit: 1,
		Status:    models.KeyStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if errCreate := db.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}

	w := postRedeem(t, router, `{"key":"VORAHUB-AAAAAA-BBBBBB-CCCCCC","hwid":"HW-1","username":"player1","gameId":7,"placeId":9}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "premium" || body["message"] != "Key activated" {
		t.Fatalf("unexpected activation body %v", body)
	}

	// Same device comes back in.
	w = postRedeem(t, router, `{"key":"VORAHUB-AAAAAA-BBBBBB-CCCCCC","hwid":"HW-1"}`)
	if body := decodeBody(t, w); body["status"] != "premium" || body["message"] != "Welcome back" {
		t.Fatalf("unexpected welcome-back body %v", body)
	}

	// A second device exceeds the quota.
	w = postRedeem(t, router, `{"key":"VORAHUB-AAAAAA-BBBBBB-CCCCCC","hwid":"HW-2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "kick" || body["reason"] != "HWID_LIMIT" {
		t.Fatalf("unexpected kick body %v", body)
	}
	if limit, ok := body["limit"].(float64); !ok || int(limit) != 1 {
		t.Fatalf("unexpected kick limit %v", body["limit"])
	}
	if _, ok := body["message"]; ok {
		t.Fatalf("kick body must not carry a message, got %v", body)
	}
}

func TestRedeemLowercaseKeyIsNormalized(t *testing.T) {
	router, db := setupClientRouter(t)

	key := models.Key{
		ID:        "VORAHUB-AAAAAA-BBBBBB-DDDDDD",
		UserID:    "user-2",
		HWIDLimit: 1,
		Status:    models.KeyStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if errCreate := db.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}

	w := postRedeem(t, router, `{"key":"vorahub-aaaaaa-bbbbbb-dddddd","hwid":"HW-1"}`)
	if body := decodeBody(t, w); body["status"] != "premium" {
		t.Fatalf("expected premium for normalized key, got %v", body)
	}
}

func TestHealthzReportsOK(t *testing.T) {
	router, _ := setupClientRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
