// Package store implements GORM-backed record stores for the key service.
// All writes are atomic at the single-record level; cross-record invariants
// are enforced by the service layer under per-key locks.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vorahub/keyserver/internal/db"
	"github.com/vorahub/keyserver/internal/models"
	"gorm.io/gorm"
)

// Store errors distinguished from underlying persistence failures.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a record with the same ID already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// KeyStore persists redeemed Key records.
type KeyStore struct {
	db *gorm.DB
}

// NewKeyStore constructs a KeyStore.
func NewKeyStore(db *gorm.DB) *KeyStore {
	return &KeyStore{db: db}
}

// Get returns the key with the given ID, or ErrNotFound.
func (s *KeyStore) Get(ctx context.Context, id string) (*models.Key, error) {
	var key models.Key
	if errFind := s.db.WithContext(ctx).First(&key, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get key: %w", errFind)
	}
	return &key, nil
}

// Create inserts a new key record. Returns ErrDuplicate when the ID exists.
// The existence check gives a clean answer under the in-process per-key
// locks; the primary-key constraint catches writers in other processes.
func (s *KeyStore) Create(ctx context.Context, key *models.Key) error {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Key{}).Where("id = ?", key.ID).Count(&count).Error; errCount != nil {
		return fmt.Errorf("store: check key: %w", errCount)
	}
	if count > 0 {
		return ErrDuplicate
	}
	if errCreate := s.db.WithContext(ctx).Create(key).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: create key: %w", errCreate)
	}
	return nil
}

// Update applies partial field updates to a key. Returns ErrNotFound when the
// record is absent.
func (s *KeyStore) Update(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.Key{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("store: update key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateByUser applies partial field updates to every key a user owns and
// reports how many records changed.
func (s *KeyStore) UpdateByUser(ctx context.Context, userID string, fields map[string]any) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Key{}).Where("user_id = ?", userID).Updates(fields)
	if result.Error != nil {
		return 0, fmt.Errorf("store: update keys by user: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes a key record by ID.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	if errDelete := s.db.WithContext(ctx).Delete(&models.Key{}, "id = ?", id).Error; errDelete != nil {
		return fmt.Errorf("store: delete key: %w", errDelete)
	}
	return nil
}

// DeleteByUser removes all keys owned by a user and reports how many.
func (s *KeyStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&models.Key{}, "user_id = ?", userID)
	if result.Error != nil {
		return 0, fmt.Errorf("store: delete keys by user: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FindByOwner returns all activated keys whose owner matches the user ID or
// display tag. Validity filtering (expiry, whitelist) is the caller's concern.
func (s *KeyStore) FindByOwner(ctx context.Context, userID, discordTag string) ([]models.Key, error) {
	var keys []models.Key
	if errFind := s.db.WithContext(ctx).
		Where("(user_id = ? OR discord_tag = ?) AND is_used = ?", userID, discordTag, true).
		Find(&keys).Error; errFind != nil {
		return nil, fmt.Errorf("store: find keys by owner: %w", errFind)
	}
	return keys, nil
}

// ListByUser returns every key owned by the user, activated or not.
func (s *KeyStore) ListByUser(ctx context.Context, userID string) ([]models.Key, error) {
	var keys []models.Key
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&keys).Error; errFind != nil {
		return nil, fmt.Errorf("store: list keys by user: %w", errFind)
	}
	return keys, nil
}

// SearchByToken returns keys whose ID contains the fragment, case-insensitive
// on either dialect.
func (s *KeyStore) SearchByToken(ctx context.Context, fragment string, limit int) ([]models.Key, error) {
	pattern := db.NormalizeLikePattern(s.db, "%"+fragment+"%")
	var keys []models.Key
	if errFind := s.db.WithContext(ctx).
		Where(db.CaseInsensitiveLikeExpr(s.db, "id"), pattern).
		Limit(limit).
		Find(&keys).Error; errFind != nil {
		return nil, fmt.Errorf("store: search keys: %w", errFind)
	}
	return keys, nil
}

// Count returns the total number of key records.
func (s *KeyStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Key{}).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("store: count keys: %w", errCount)
	}
	return count, nil
}
