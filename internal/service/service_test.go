package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vorahub/keyserver/internal/audit"
	"github.com/vorahub/keyserver/internal/keylock"
	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/ownercache"
	"github.com/vorahub/keyserver/internal/store"
	"gorm.io/gorm"
)

type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *captureAuditor) Log(event audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *captureAuditor) titles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Title)
	}
	return out
}

func setupTestService(t *testing.T) (*Service, *gorm.DB, *captureAuditor) {
	t.Helper()
	dsn := fmt.Sprintf("file:keyservice_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	// A single connection keeps the in-memory database alive and avoids
	// SQLITE_BUSY under concurrent test writers.
	sqlDB.SetMaxOpenConns(1)

	if errMigrate := db.AutoMigrate(
		&models.Key{}, &models.GeneratedKey{}, &models.Whitelist{}, &models.Blacklist{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	keys := store.NewKeyStore(db)
	auditor := &captureAuditor{}
	svc := New(Dependencies{
		Keys:      keys,
		Vouchers:  store.NewVoucherStore(db),
		Whitelist: store.NewWhitelistStore(db),
		Blacklist: store.NewBlacklistStore(db),
		Cache:     ownercache.New(keys, 100, time.Minute),
		Locks:     keylock.New(),
		Audit:     auditor,
	})
	return svc, db, auditor
}

func createVoucher(t *testing.T, db *gorm.DB, id string, expiresInDays *int) {
	t.Helper()
	voucher := models.GeneratedKey{
		ID:        id,
		CreatedBy: "staff#1",
		CreatedAt: time.Now().UTC(),
		Status:    models.GeneratedKeyStatusPending,
	}
	voucher.ExpiresInDays = expiresInDays
	if errCreate := db.Create(&voucher).Error; errCreate != nil {
		t.Fatalf("create voucher: %v", errCreate)
	}
}

func createKey(t *testing.T, db *gorm.DB, key models.Key) {
	t.Helper()
	if key.Status == "" {
		key.Status = models.KeyStatusActive
	}
	if key.HWIDLimit == 0 {
		key.HWIDLimit = 1
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	if errCreate := db.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}
}

func fetchKey(t *testing.T, db *gorm.DB, id string) models.Key {
	t.Helper()
	var key models.Key
	if errFind := db.First(&key, "id = ?", id).Error; errFind != nil {
		t.Fatalf("fetch key %s: %v", id, errFind)
	}
	return key
}
