package models

import "time"

// Whitelist records a permanently entitled user and the key issued alongside.
type Whitelist struct {
	UserID     string `gorm:"primaryKey;type:text"` // Whitelisted user ID.
	DiscordTag string `gorm:"type:text"`            // Display tag at add time.

	Key string `gorm:"type:text"` // Key ID created for this membership.

	AddedBy string    `gorm:"type:text"` // Staff member who added the entry.
	AddedAt time.Time `gorm:"not null"`  // Add timestamp.
}
