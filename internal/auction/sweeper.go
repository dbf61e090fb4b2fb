package auction

import (
	"context"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sweeper is the timing backstop: a periodic sweep that activates pending
// auctions whose window has opened and force-ends active auctions whose
// deadline has passed. Auctions with a last-second bid are closed inline
// by the bid engine; the sweep catches the ones nobody bid on.
type Sweeper struct {
	db         *gorm.DB
	log        *zap.Logger
	registry   *Registry
	settlement *Settlement
	interval   time.Duration
	now        func() time.Time
}

func NewSweeper(db *gorm.DB, log *zap.Logger, registry *Registry, settlement *Settlement, interval time.Duration) *Sweeper {
	return &Sweeper{
		db:         db,
		log:        log,
		registry:   registry,
		settlement: settlement,
		interval:   interval,
		now:        time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("auction sweeper running", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("auction sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single sweep. Each auction is handled
// independently; one failure does not abort the sweep for the rest.
// Returns the number of auctions activated and ended.
func (s *Sweeper) SweepOnce(ctx context.Context) (activated, ended int) {
	now := s.now().UTC()

	var due []models.Auction
	if err := s.db.WithContext(ctx).
		Where("status = ? AND starts_at <= ?", models.AuctionPending, now).
		Find(&due).Error; err != nil {
		s.log.Error("sweep: pending query failed", zap.Error(err))
	} else {
		for _, a := range due {
			refreshed, err := s.registry.Refresh(ctx, a.ID)
			if err != nil {
				s.log.Error("sweep: refresh failed", zap.Uint("auction_id", a.ID), zap.Error(err))
				continue
			}
			if refreshed.Status != models.AuctionPending {
				activated++
			}
		}
	}

	var expired []models.Auction
	if err := s.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", models.AuctionActive, now).
		Find(&expired).Error; err != nil {
		s.log.Error("sweep: expired query failed", zap.Error(err))
		return activated, ended
	}
	for _, a := range expired {
		if _, err := s.settlement.EndAuction(ctx, a.ID); err != nil {
			s.log.Error("sweep: end auction failed", zap.Uint("auction_id", a.ID), zap.Error(err))
			continue
		}
		ended++
	}
	return activated, ended
}
