package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vorahub/keyserver/internal/models"
	"gorm.io/gorm"
)

// WhitelistStore persists whitelist membership records.
type WhitelistStore struct {
	db *gorm.DB
}

// NewWhitelistStore constructs a WhitelistStore.
func NewWhitelistStore(db *gorm.DB) *WhitelistStore {
	return &WhitelistStore{db: db}
}

// Get returns the whitelist entry for a user, or ErrNotFound.
func (s *WhitelistStore) Get(ctx context.Context, userID string) (*models.Whitelist, error) {
	var entry models.Whitelist
	if errFind := s.db.WithContext(ctx).First(&entry, "user_id = ?", userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get whitelist entry: %w", errFind)
	}
	return &entry, nil
}

// Create inserts a whitelist entry.
func (s *WhitelistStore) Create(ctx context.Context, entry *models.Whitelist) error {
	if errCreate := s.db.WithContext(ctx).Create(entry).Error; errCreate != nil {
		return fmt.Errorf("store: create whitelist entry: %w", errCreate)
	}
	return nil
}

// Delete removes a user's whitelist entry and reports whether one existed.
func (s *WhitelistStore) Delete(ctx context.Context, userID string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&models.Whitelist{}, "user_id = ?", userID)
	if result.Error != nil {
		return false, fmt.Errorf("store: delete whitelist entry: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List returns the most recently added entries, newest first.
func (s *WhitelistStore) List(ctx context.Context, limit int) ([]models.Whitelist, error) {
	var entries []models.Whitelist
	if errFind := s.db.WithContext(ctx).Order("added_at DESC").Limit(limit).Find(&entries).Error; errFind != nil {
		return nil, fmt.Errorf("store: list whitelist: %w", errFind)
	}
	return entries, nil
}

// Count returns the number of whitelist entries.
func (s *WhitelistStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Whitelist{}).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("store: count whitelist: %w", errCount)
	}
	return count, nil
}

// BlacklistStore persists blacklist membership records.
type BlacklistStore struct {
	db *gorm.DB
}

// NewBlacklistStore constructs a BlacklistStore.
func NewBlacklistStore(db *gorm.DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Exists reports whether a user is blacklisted.
func (s *BlacklistStore) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Blacklist{}).Where("user_id = ?", userID).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("store: check blacklist: %w", errCount)
	}
	return count > 0, nil
}

// Create inserts a blacklist entry.
func (s *BlacklistStore) Create(ctx context.Context, entry *models.Blacklist) error {
	if errCreate := s.db.WithContext(ctx).Create(entry).Error; errCreate != nil {
		return fmt.Errorf("store: create blacklist entry: %w", errCreate)
	}
	return nil
}

// Delete removes a user's blacklist entry and reports whether one existed.
func (s *BlacklistStore) Delete(ctx context.Context, userID string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&models.Blacklist{}, "user_id = ?", userID)
	if result.Error != nil {
		return false, fmt.Errorf("store: delete blacklist entry: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List returns the most recently added entries, newest first.
func (s *BlacklistStore) List(ctx context.Context, limit int) ([]models.Blacklist, error) {
	var entries []models.Blacklist
	if errFind := s.db.WithContext(ctx).Order("added_at DESC").Limit(limit).Find(&entries).Error; errFind != nil {
		return nil, fmt.Errorf("store: list blacklist: %w", errFind)
	}
	return entries, nil
}

// Count returns the number of blacklist entries.
func (s *BlacklistStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Blacklist{}).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("store: count blacklist: %w", errCount)
	}
	return count, nil
}
