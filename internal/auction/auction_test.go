package auction

import (
	"context"
	"testing"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/events"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store/storetest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// rig wires the auction components over a throwaway database with a
// controllable clock.
type rig struct {
	db         *gorm.DB
	ledger     *ledger.Service
	broker     *events.Broker
	registry   *Registry
	engine     *BidEngine
	settlement *Settlement
	sweeper    *Sweeper
	house      *models.Account
	clock      *fakeClock
}

func newRig(t *testing.T) *rig {
	t.Helper()

	db := storetest.NewDB(t)
	log := zap.NewNop()
	lgr := ledger.New(db, log)
	broker := events.NewBroker(log)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	registry := NewRegistry(db, log, lgr, broker)
	registry.now = clock.Now

	engine := NewBidEngine(db, log, lgr, broker, BidEngineConfig{
		SnipeThreshold: 180 * time.Second,
		SnipeExtension: 180 * time.Second,
	})
	engine.now = clock.Now

	house := storetest.NewAccount(t, db, "house", 0)
	settlement := NewSettlement(db, log, lgr, broker, house.ID, 0)
	settlement.now = clock.Now

	sweeper := NewSweeper(db, log, registry, settlement, time.Second)
	sweeper.now = clock.Now

	return &rig{
		db:         db,
		ledger:     lgr,
		broker:     broker,
		registry:   registry,
		engine:     engine,
		settlement: settlement,
		sweeper:    sweeper,
		house:      house,
		clock:      clock,
	}
}

// openAuction creates an active auction closing after the given duration.
func (r *rig) openAuction(t *testing.T, minimumBid int64, closesIn time.Duration) *models.Auction {
	t.Helper()

	a, err := r.registry.Create(context.Background(), CreateParams{
		Title:       "Golden Console",
		Description: "one careful owner",
		MinimumBid:  minimumBid,
		StartsAt:    r.clock.now.Add(-time.Minute),
		EndsAt:      r.clock.now.Add(closesIn),
		CreatedByID: 1,
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return a
}

func (r *rig) balance(t *testing.T, accountID uint) int64 {
	t.Helper()

	bal, err := r.ledger.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (r *rig) reload(t *testing.T, id uint) *models.Auction {
	t.Helper()

	var a models.Auction
	if err := r.db.First(&a, id).Error; err != nil {
		t.Fatalf("reload auction: %v", err)
	}
	return &a
}
