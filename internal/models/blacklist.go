package models

import "time"

// Blacklist records a banned user. Blacklisted users cannot redeem vouchers.
type Blacklist struct {
	UserID     string `gorm:"primaryKey;type:text"` // Banned user ID.
	DiscordTag string `gorm:"type:text"`            // Display tag at add time.

	Reason string `gorm:"type:text"` // Optional ban reason.

	AddedBy string    `gorm:"type:text"` // Staff member who added the entry.
	AddedAt time.Time `gorm:"not null"`  // Add timestamp.
}
