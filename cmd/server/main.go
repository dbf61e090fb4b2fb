package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TEESTIMONY/playmarket-api/configs"
	"github.com/TEESTIMONY/playmarket-api/internal/auction"
	"github.com/TEESTIMONY/playmarket-api/internal/authz"
	"github.com/TEESTIMONY/playmarket-api/internal/events"
	"github.com/TEESTIMONY/playmarket-api/internal/handlers"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/logger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/routes"
	"github.com/TEESTIMONY/playmarket-api/internal/seed"
	"github.com/TEESTIMONY/playmarket-api/internal/store"
	"github.com/TEESTIMONY/playmarket-api/internal/transfer"
	"go.uber.org/zap"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	configs.LoadConfig()
	store.NewDB()
	store.DBMigrate()
	seed.Run()

	cfg := configs.AppConfig
	db := store.DB

	houseID := houseAccountID(cfg.House.Email)

	broker := events.NewBroker(logger.Log)
	lgr := ledger.New(db, logger.Log)
	registry := auction.NewRegistry(db, logger.Log, lgr, broker)
	engine := auction.NewBidEngine(db, logger.Log, lgr, broker, auction.BidEngineConfig{
		SnipeThreshold: cfg.SnipeThreshold(),
		SnipeExtension: cfg.SnipeExtension(),
		LockTimeout:    cfg.LockTimeout(),
	})
	settlement := auction.NewSettlement(db, logger.Log, lgr, broker, houseID, cfg.LockTimeout())
	sweeper := auction.NewSweeper(db, logger.Log, registry, settlement, cfg.SweepInterval())

	client := transfer.NewClient(cfg.PlayEngine.TransferURL, cfg.PlayEngine.APIKey,
		time.Duration(cfg.PlayEngine.TimeoutSeconds)*time.Second)
	defer client.Close()
	transfers := transfer.NewService(db, logger.Log, lgr, client)

	auth := authz.New(cfg.Admin.Emails)

	api := &handlers.API{
		Registry:   registry,
		Bids:       engine,
		Settlement: settlement,
		Ledger:     lgr,
		Transfers:  transfers,
		Auth:       auth,
	}
	router := routes.NewRoutes(api, auth)

	bg, stopBg := context.WithCancel(context.Background())
	go sweeper.Run(bg)
	go logAuctionEvents(bg, broker)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info("shutting down server...")
	stopBg()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		logger.Log.Error("db close skipped, reason:", zap.Error(err))
	} else {
		sqlDB.Close()
		logger.Log.Info("db closed")
	}

	logger.Log.Info("server stopped")
}

func houseAccountID(email string) uint {
	var user models.User
	if err := store.DB.Where("email = ?", email).First(&user).Error; err != nil {
		logger.Log.Fatal("house user missing", zap.String("email", email), zap.Error(err))
	}
	var acc models.Account
	if err := store.DB.Where("user_id = ?", user.ID).First(&acc).Error; err != nil {
		logger.Log.Fatal("house account missing", zap.Error(err))
	}
	return acc.ID
}

// logAuctionEvents drains the lifecycle topic so every auction close
// shows up in the server log even with no websocket consumers attached.
func logAuctionEvents(ctx context.Context, broker *events.Broker) {
	ch, cancel := broker.Subscribe(events.TopicAuctionUpdates, 64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			logger.Log.Info("auction event",
				zap.String("type", ev.Type),
				zap.Uint("auction_id", ev.AuctionID),
				zap.Any("payload", ev.Payload))
		}
	}
}
