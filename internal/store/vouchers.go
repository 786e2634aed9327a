package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vorahub/keyserver/internal/models"
	"gorm.io/gorm"
)

// VoucherStore persists pending GeneratedKey vouchers.
type VoucherStore struct {
	db *gorm.DB
}

// NewVoucherStore constructs a VoucherStore.
func NewVoucherStore(db *gorm.DB) *VoucherStore {
	return &VoucherStore{db: db}
}

// Get returns the voucher with the given ID, or ErrNotFound.
func (s *VoucherStore) Get(ctx context.Context, id string) (*models.GeneratedKey, error) {
	var voucher models.GeneratedKey
	if errFind := s.db.WithContext(ctx).First(&voucher, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get voucher: %w", errFind)
	}
	return &voucher, nil
}

// CreateBatch inserts vouchers in one statement.
func (s *VoucherStore) CreateBatch(ctx context.Context, vouchers []models.GeneratedKey) error {
	if len(vouchers) == 0 {
		return nil
	}
	if errCreate := s.db.WithContext(ctx).Create(&vouchers).Error; errCreate != nil {
		return fmt.Errorf("store: create vouchers: %w", errCreate)
	}
	return nil
}

// Delete removes a voucher and reports whether a record was deleted.
func (s *VoucherStore) Delete(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&models.GeneratedKey{}, "id = ?", id)
	if result.Error != nil {
		return false, fmt.Errorf("store: delete voucher: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Count returns the total number of pending vouchers.
func (s *VoucherStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.GeneratedKey{}).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("store: count vouchers: %w", errCount)
	}
	return count, nil
}
