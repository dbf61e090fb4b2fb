package seed

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/TEESTIMONY/playmarket-api/configs"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	seedPassword = "password123"
	openingCoins = 5000
)

var testUsers = []struct {
	Name  string
	Email string
}{
	{"Test User 1", "user1@test.com"},
	{"Test User 2", "user2@test.com"},
	{"Test User 3", "user3@test.com"},
}

// Run provisions the house account, admin accounts from the allowlist
// and three test players with opening coins. Safe to call on every
// startup.
func Run() {
	db := store.DB
	lgr := ledger.New(db, logger.Log)

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("failed to hash seed password", zap.Error(err))
	}
	hashed := string(hash)

	if _, err := ensureAccount(db, "House", configs.AppConfig.House.Email, hashed, false); err != nil {
		logger.Log.Fatal("failed to seed house account", zap.Error(err))
	}

	for _, email := range configs.AppConfig.Admin.Emails {
		if _, err := ensureAccount(db, "Admin", email, hashed, true); err != nil {
			logger.Log.Fatal("failed to seed admin account", zap.String("email", email), zap.Error(err))
		}
	}

	for _, u := range testUsers {
		acc, err := ensureAccount(db, u.Name, u.Email, hashed, false)
		if err != nil {
			logger.Log.Fatal("failed to seed test user", zap.String("email", u.Email), zap.Error(err))
		}
		if acc == nil {
			continue // already provisioned
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			_, _, err := lgr.CreditIdempotentTx(tx, acc.ID, openingCoins,
				models.CategoryAdminAdjustment, "seed:opening", "opening balance")
			return err
		})
		if err != nil {
			logger.Log.Fatal("failed to credit opening coins", zap.String("email", u.Email), zap.Error(err))
		}
	}

	logger.Log.Info("seed complete", zap.String("password", seedPassword))
}

// ensureAccount creates the user and account if the email is new.
// Returns nil when the user already exists.
func ensureAccount(db *gorm.DB, name, email, passwordHash string, admin bool) (*models.Account, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	var acc models.Account
	err := db.Transaction(func(tx *gorm.DB) error {
		user := models.User{Name: name, Email: email, Password: passwordHash}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		acc = models.Account{UserID: user.ID, IsAdmin: admin}
		return tx.Create(&acc).Error
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
