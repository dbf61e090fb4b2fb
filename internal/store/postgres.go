package store

import (
	"github.com/TEESTIMONY/playmarket-api/configs"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func NewDB() {
	var (
		db  *gorm.DB
		err error
	)
	switch configs.AppConfig.DB.Driver {
	case "sqlite":
		db, err = Open(sqlite.Open(configs.AppConfig.DB.DSN))
	default:
		db, err = Open(postgres.New(postgres.Config{
			DSN:                  configs.AppConfig.DB.DSN,
			PreferSimpleProtocol: false,
		}))
	}
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	DB = db
	logger.Log.Info("connected to the database", zap.String("driver", configs.AppConfig.DB.Driver))
}

// Open opens a gorm DB over the given dialector with the settings shared
// by the postgres and sqlite paths.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{})
}

func DBMigrate() {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.LedgerEntry{},
		&models.Auction{},
		&models.Bid{},
		&models.Winner{},
		&models.PointTransfer{},
	); err != nil {
		logger.Log.Fatal("migrations failed", zap.Error(err))
	}

	// Partial unique indexes gorm tags cannot express: one non-terminal
	// auction system-wide, one accepted bid per (auction, bidder).
	if DB.Dialector.Name() == "postgres" {
		DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_auction
			ON auctions ((status IN ('pending','active')))
			WHERE status IN ('pending','active') AND deleted_at IS NULL`)
		DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_accepted_bid
			ON bids (auction_id, bidder_id)
			WHERE status = 'accepted' AND deleted_at IS NULL`)
	}
	logger.Log.Info("migrations loaded")
}
