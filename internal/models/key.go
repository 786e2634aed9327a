package models

import (
	"strings"
	"time"
)

// Key statuses.
const (
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"
)

// Key represents a redeemed license key bound to a user and its devices.
type Key struct {
	ID string `gorm:"primaryKey;type:text"` // Key token, immutable once created.

	UserID     string `gorm:"index;type:text"` // Owning user ID, empty until redeemed.
	DiscordTag string `gorm:"index;type:text"` // Owner display tag.

	HWID      string `gorm:"column:hwid;type:text"`                // Comma-joined bound device fingerprints.
	HWIDLimit int    `gorm:"column:hwid_limit;not null;default:1"` // Maximum bound devices.
	Feature   string `gorm:"type:text"`                            // Feature or tier tag.
	Status    string `gorm:"not null;default:active"`              // active or revoked.

	ExpiresAt     *time.Time // Expiry instant, nil means never.
	IsWhitelisted bool       `gorm:"not null;default:false"` // Bypasses expiry when true.

	IsUsed  bool       `gorm:"not null;default:false"` // Activated by a device at least once.
	UsedAt  *time.Time // First activation time.
	UsedBy  string     `gorm:"type:text"` // Client-reported username at first activation.
	GameID  int64      // Client-reported game ID at first activation.
	PlaceID int64      // Client-reported place ID at first activation.

	CreatedAt time.Time `gorm:"not null"` // Creation timestamp.
	CreatedBy string    `gorm:"type:text"` // Staff member who issued the key.
}

// BoundHWIDs splits the stored device set, dropping empty fragments.
func (k *Key) BoundHWIDs() []string {
	if k.HWID == "" {
		return nil
	}
	parts := strings.Split(k.HWID, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Expired reports whether the key is past its expiry. Whitelisted keys never expire.
func (k *Key) Expired(now time.Time) bool {
	if k.IsWhitelisted || k.ExpiresAt == nil {
		return false
	}
	return now.After(*k.ExpiresAt)
}
