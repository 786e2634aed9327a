package models

import (
	"time"

	"gorm.io/datatypes"
)

// Staff represents an administrative account allowed to call staff endpoints.
type Staff struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active bool `gorm:"not null;default:true"` // Whether the account can sign in.

	Permissions datatypes.JSON `gorm:"not null;default:'[]'"` // Capability keys in JSON.

	TOTPSecret string `gorm:"type:text"` // TOTP secret when MFA is enrolled.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
