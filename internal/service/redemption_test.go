package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vorahub/keyserver/internal/models"
)

func TestRedeemSuccess(t *testing.T) {
	svc, db, auditor := setupTestService(t)
	createVoucher(t, db, "VORAHUB-AAAAAA-111111-222222", nil)

	key, errRedeem := svc.Redeem(context.Background(), "VORAHUB-AAAAAA-111111-222222", "u1", "user#1")
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}
	if key.UserID != "u1" || key.DiscordTag != "user#1" {
		t.Fatalf("key not bound to redeeming user: %+v", key)
	}
	if key.IsUsed {
		t.Fatal("redeemed key must not be device-activated yet")
	}
	if key.ExpiresAt != nil {
		t.Fatalf("voucher without expiresInDays must never expire, got %v", key.ExpiresAt)
	}

	var voucherCount int64
	db.Model(&models.GeneratedKey{}).Count(&voucherCount)
	if voucherCount != 0 {
		t.Fatalf("voucher not consumed, %d remaining", voucherCount)
	}

	titles := auditor.titles()
	if len(titles) != 1 || titles[0] != "REDEEM" {
		t.Fatalf("expected REDEEM audit event, got %v", titles)
	}
}

func TestRedeemAppliesExpiryDays(t *testing.T) {
	svc, db, _ := setupTestService(t)
	days := 7
	createVoucher(t, db, "VORAHUB-BBBBBB-111111-222222", &days)

	before := time.Now().UTC()
	key, errRedeem := svc.Redeem(context.Background(), "VORAHUB-BBBBBB-111111-222222", "u1", "user#1")
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}
	if key.ExpiresAt == nil {
		t.Fatal("expected expiry to be set")
	}
	want := before.Add(7 * 24 * time.Hour)
	if key.ExpiresAt.Before(want.Add(-time.Minute)) || key.ExpiresAt.After(want.Add(time.Minute)) {
		t.Fatalf("expiry not ~7 days out: %v", key.ExpiresAt)
	}
}

func TestRedeemNormalizesToken(t *testing.T) {
	svc, db, _ := setupTestService(t)
	createVoucher(t, db, "VORAHUB-CCCCCC-111111-222222", nil)

	if _, errRedeem := svc.Redeem(context.Background(), "  vorahub-cccccc-111111-222222 ", "u1", "user#1"); errRedeem != nil {
		t.Fatalf("redeem with unnormalized token: %v", errRedeem)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, errRedeem := svc.Redeem(context.Background(), "VORAHUB-ZZZZZZ-000000-000000", "u1", "user#1")
	if !errors.Is(errRedeem, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", errRedeem)
	}
}

func TestRedeemBlacklistedUser(t *testing.T) {
	svc, db, _ := setupTestService(t)
	createVoucher(t, db, "VORAHUB-DDDDDD-111111-222222", nil)
	if errCreate := db.Create(&models.Blacklist{UserID: "u1", DiscordTag: "user#1", AddedBy: "staff#1", AddedAt: time.Now().UTC()}).Error; errCreate != nil {
		t.Fatalf("create blacklist entry: %v", errCreate)
	}

	_, errRedeem := svc.Redeem(context.Background(), "VORAHUB-DDDDDD-111111-222222", "u1", "user#1")
	if !errors.Is(errRedeem, ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted, got %v", errRedeem)
	}

	var voucherCount int64
	db.Model(&models.GeneratedKey{}).Count(&voucherCount)
	if voucherCount != 1 {
		t.Fatal("voucher must survive a rejected redemption")
	}
}

func TestRedeemExistingKeyID(t *testing.T) {
	svc, db, _ := setupTestService(t)
	createVoucher(t, db, "VORAHUB-EEEEEE-111111-222222", nil)
	createKey(t, db, models.Key{ID: "VORAHUB-EEEEEE-111111-222222", UserID: "other", IsUsed: true})

	_, errRedeem := svc.Redeem(context.Background(), "VORAHUB-EEEEEE-111111-222222", "u1", "user#1")
	if !errors.Is(errRedeem, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", errRedeem)
	}
}

func TestRedeemConcurrentExactlyOnce(t *testing.T) {
	svc, db, _ := setupTestService(t)
	createVoucher(t, db, "VORAHUB-FFFFFF-111111-222222", nil)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errRedeem := svc.Redeem(context.Background(), "VORAHUB-FFFFFF-111111-222222", "u1", "user#1")
			results <- errRedeem
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for errRedeem := range results {
		if errRedeem == nil {
			successes++
			continue
		}
		if !errors.Is(errRedeem, ErrInvalidKey) && !errors.Is(errRedeem, ErrAlreadyUsed) {
			t.Fatalf("unexpected loser error: %v", errRedeem)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", successes)
	}

	var keyCount, voucherCount int64
	db.Model(&models.Key{}).Count(&keyCount)
	db.Model(&models.GeneratedKey{}).Count(&voucherCount)
	if keyCount != 1 || voucherCount != 0 {
		t.Fatalf("expected 1 key and 0 vouchers, got %d and %d", keyCount, voucherCount)
	}
}
