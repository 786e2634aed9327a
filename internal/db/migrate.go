package db

import (
	"fmt"
	"time"

	"github.com/vorahub/keyserver/internal/models"
	"github.com/vorahub/keyserver/internal/security"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	log "github.com/sirupsen/logrus"
)

// Migrate applies schema migrations for all key service models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Key{},
		&models.GeneratedKey{},
		&models.Whitelist{},
		&models.Blacklist{},
		&models.Staff{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}

// SeedStaff creates the initial staff account when none exists.
// The generated password is printed once so the operator can sign in.
func SeedStaff(conn *gorm.DB, username string) error {
	if username == "" {
		username = "admin"
	}

	var count int64
	if errCount := conn.Model(&models.Staff{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count staff: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	password, errPassword := security.GenerateRandomString(24)
	if errPassword != nil {
		return fmt.Errorf("db: generate staff password: %w", errPassword)
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("db: hash staff password: %w", errHash)
	}

	staff := models.Staff{
		Username:    username,
		Password:    hash,
		Active:      true,
		Permissions: datatypes.JSON(`["*"]`),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if errCreate := conn.Create(&staff).Error; errCreate != nil {
		return fmt.Errorf("db: create staff: %w", errCreate)
	}

	log.WithField("username", username).Warnf("seeded staff account, initial password: %s", password)
	return nil
}
