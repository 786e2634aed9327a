package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/security"
	"github.com/vorahub/keyserver/internal/store"
)

// Redeem converts a pending voucher into an active, user-bound key record.
// The voucher is consumed exactly once: concurrent redemptions of the same
// token serialize on the per-token lock and the loser observes ErrInvalidKey
// or ErrAlreadyUsed.
func (s *Service) Redeem(ctx context.Context, token, userID, discordTag string) (*models.Key, error) {
	token = security.NormalizeKeyToken(token)
	if token == "" {
		return nil, ErrInvalidKey
	}

	banned, errBanned := s.blacklist.Exists(ctx, userID)
	if errBanned != nil {
		return nil, fmt.Errorf("redeem: %w", errBanned)
	}
	if banned {
		return nil, ErrBlacklisted
	}

	unlock := s.locks.Lock(token)
	defer unlock()

	voucher, errVoucher := s.vouchers.Get(ctx, token)
	if errVoucher != nil {
		if errors.Is(errVoucher, store.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("redeem: %w", errVoucher)
	}

	// Secondary guard: a key record under the same ID means the token was
	// already converted, regardless of voucher state.
	if _, errExisting := s.keys.Get(ctx, token); errExisting == nil {
		return nil, ErrAlreadyUsed
	} else if !errors.Is(errExisting, store.ErrNotFound) {
		return nil, fmt.Errorf("redeem: %w", errExisting)
	}

	deleted, errDelete := s.vouchers.Delete(ctx, token)
	if errDelete != nil {
		return nil, fmt.Errorf("redeem: %w", errDelete)
	}
	if !deleted {
		// Another process consumed the voucher between lookup and delete.
		return nil, ErrInvalidKey
	}

	now := s.now()
	var expiresAt *time.Time
	if voucher.ExpiresInDays != nil {
		expiry := now.Add(time.Duration(*voucher.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &expiry
	}

	key := &models.Key{
		ID:         token,
		UserID:     userID,
		DiscordTag: discordTag,
		Status:     models.KeyStatusActive,
		IsUsed:     false,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		CreatedBy:  voucher.CreatedBy,
	}
	if errCreate := s.keys.Create(ctx, key); errCreate != nil {
		if errors.Is(errCreate, store.ErrDuplicate) {
			return nil, ErrAlreadyUsed
		}
		return nil, fmt.Errorf("redeem: %w", errCreate)
	}

	s.cache.Invalidate(ctx, userID, discordTag)
	s.emit("REDEEM", discordTag, token, "Success", "")
	return key, nil
}
