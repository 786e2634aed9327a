package models

import "time"

// GeneratedKeyStatusPending marks a voucher that has not been redeemed yet.
const GeneratedKeyStatusPending = "pending"

// GeneratedKey is a pending voucher produced by key generation. It is
// consumed (hard deleted) on the first successful redemption and never reused.
type GeneratedKey struct {
	ID string `gorm:"primaryKey;type:text"` // Voucher token.

	CreatedBy string    `gorm:"type:text"` // Staff member who generated it.
	CreatedAt time.Time `gorm:"not null"`  // Generation timestamp.

	ExpiresInDays *int   // Key lifetime in days, applied at redemption. Nil means never expires.
	Status        string `gorm:"not null;default:pending"` // Voucher status.
}
