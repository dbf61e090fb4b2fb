// Package storetest opens throwaway in-memory databases for package tests.
package storetest

import (
	"fmt"
	"testing"

	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database unique to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.LedgerEntry{},
		&models.Auction{},
		&models.Bid{},
		&models.Winner{},
		&models.PointTransfer{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// NewAccount inserts a user with an account holding the given balance.
func NewAccount(t *testing.T, db *gorm.DB, name string, balance int64) *models.Account {
	t.Helper()

	user := models.User{Name: name, Email: name + "@test.local"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create test user: %v", err)
	}
	acc := models.Account{UserID: user.ID, Balance: balance}
	if err := db.Create(&acc).Error; err != nil {
		t.Fatalf("create test account: %v", err)
	}
	return &acc
}
