package auction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/events"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// registryLockKey scopes the postgres advisory lock that serializes
// auction creation.
const registryLockKey = 0x41554354 // "AUCT"

// Registry manages auction lifecycle and enforces the invariant that at
// most one auction is in a non-terminal status at any time.
type Registry struct {
	db     *gorm.DB
	log    *zap.Logger
	ledger *ledger.Service
	broker *events.Broker
	now    func() time.Time
}

func NewRegistry(db *gorm.DB, log *zap.Logger, lgr *ledger.Service, broker *events.Broker) *Registry {
	return &Registry{db: db, log: log, ledger: lgr, broker: broker, now: time.Now}
}

// CreateParams describes a new auction.
type CreateParams struct {
	Title       string
	Description string
	MinimumBid  int64
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedByID uint
	ImageURLs   []string
}

func (p *CreateParams) validate() error {
	if p.Title == "" {
		return &apperrors.Error{Kind: apperrors.KindValidation, Code: "TITLE_REQUIRED", Message: "title is required"}
	}
	if p.MinimumBid <= 0 {
		return apperrors.ErrInvalidAmount
	}
	if !p.EndsAt.After(p.StartsAt) {
		return &apperrors.Error{Kind: apperrors.KindValidation, Code: "INVALID_WINDOW", Message: "ends_at must be after starts_at"}
	}
	return nil
}

// Create inserts a new auction. The check for an existing non-terminal
// auction and the insert happen atomically: creation serializes through a
// transaction-scoped advisory lock on postgres (sqlite's single writer
// gives the same guarantee), and the partial unique index on open
// auctions backstops the invariant at the storage layer.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*models.Auction, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	if !p.EndsAt.After(now) {
		return nil, &apperrors.Error{Kind: apperrors.KindValidation, Code: "INVALID_WINDOW", Message: "ends_at is in the past"}
	}

	var a models.Auction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", registryLockKey).Error; err != nil {
				return err
			}
		}

		var open int64
		if err := tx.Model(&models.Auction{}).
			Where("status IN ?", []string{models.AuctionPending, models.AuctionActive}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperrors.ErrActiveAuctionExists
		}

		status := models.AuctionPending
		if !now.Before(p.StartsAt) {
			status = models.AuctionActive
		}

		a = models.Auction{
			Title:       p.Title,
			Description: p.Description,
			MinimumBid:  p.MinimumBid,
			StartsAt:    p.StartsAt.UTC(),
			EndsAt:      p.EndsAt.UTC(),
			Status:      status,
			CreatedByID: p.CreatedByID,
		}
		if len(p.ImageURLs) > 0 {
			raw, err := json.Marshal(p.ImageURLs)
			if err != nil {
				return err
			}
			a.ImageURLs = datatypes.JSON(raw)
		}
		return tx.Create(&a).Error
	})
	if err != nil {
		return nil, translateLockErr(err)
	}

	r.log.Info("auction created",
		zap.Uint("auction_id", a.ID),
		zap.String("title", a.Title),
		zap.String("status", a.Status),
		zap.Time("ends_at", a.EndsAt))
	r.broker.Publish(events.TopicAuctionUpdates, events.Event{
		Type:      events.TypeAuctionCreated,
		AuctionID: a.ID,
		Payload:   map[string]any{"title": a.Title, "status": a.Status, "ends_at": a.EndsAt},
	})
	return &a, nil
}

// Get returns an auction by id.
func (r *Registry) Get(ctx context.Context, id uint) (*models.Auction, error) {
	var a models.Auction
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAuctionNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetActive returns the single active auction, or nil if there is none.
func (r *Registry) GetActive(ctx context.Context) (*models.Auction, error) {
	var a models.Auction
	err := r.db.WithContext(ctx).Where("status = ?", models.AuctionActive).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns auctions. Admins see everything newest-first; everyone
// else sees started, non-terminal auctions ordered by closing time.
func (r *Registry) List(ctx context.Context, includeAll bool) ([]models.Auction, error) {
	var auctions []models.Auction
	q := r.db.WithContext(ctx)
	if includeAll {
		q = q.Order("created_at DESC")
	} else {
		q = q.Where("status IN ? AND starts_at <= ?",
			[]string{models.AuctionPending, models.AuctionActive}, r.now().UTC()).
			Order("ends_at ASC")
	}
	err := q.Find(&auctions).Error
	return auctions, err
}

// legal admin-driven transitions. active→ended is reserved for the
// settlement engine so a winner is always recorded.
var adminTransitions = map[string][]string{
	models.AuctionPending: {models.AuctionActive, models.AuctionCancelled},
	models.AuctionActive:  {models.AuctionCancelled},
}

// SetStatus applies an admin-driven transition under the auction row
// lock, the same lock the bid engine takes, so a status flip can never
// race a bid. Cancelling refunds the standing accepted bid.
func (r *Registry) SetStatus(ctx context.Context, id uint, target string) (*models.Auction, error) {
	var (
		a   *models.Auction
		old string
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		a, err = lockAuction(tx, id)
		if err != nil {
			return err
		}
		old = a.Status

		allowed := false
		for _, s := range adminTransitions[a.Status] {
			if s == target {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperrors.ErrInvalidTransition
		}

		if target == models.AuctionCancelled {
			if err := r.refundAcceptedTx(tx, a, models.BidCancelled); err != nil {
				return err
			}
		}

		a.Status = target
		return tx.Model(&models.Auction{}).Where("id = ?", a.ID).
			Update("status", target).Error
	})
	if err != nil {
		return nil, translateLockErr(err)
	}

	r.log.Info("auction status changed",
		zap.Uint("auction_id", a.ID),
		zap.String("old", old),
		zap.String("new", target))
	r.broker.Publish(events.AuctionTopic(a.ID), events.Event{
		Type:      events.TypeStatusChanged,
		AuctionID: a.ID,
		Payload:   map[string]any{"old_status": old, "new_status": target},
	})
	return a, nil
}

// Refresh applies wall-clock status recomputation to one auction under
// its row lock. The sweep uses it to activate pending auctions.
func (r *Registry) Refresh(ctx context.Context, id uint) (*models.Auction, error) {
	var (
		a       *models.Auction
		old     string
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		a, err = lockAuction(tx, id)
		if err != nil {
			return err
		}
		old = a.Status
		changed = SyncStatus(r.now().UTC(), a)
		if !changed {
			return nil
		}
		return tx.Model(&models.Auction{}).Where("id = ?", a.ID).
			Update("status", a.Status).Error
	})
	if err != nil {
		return nil, translateLockErr(err)
	}
	if changed {
		r.broker.Publish(events.AuctionTopic(a.ID), events.Event{
			Type:      events.TypeStatusChanged,
			AuctionID: a.ID,
			Payload:   map[string]any{"old_status": old, "new_status": a.Status},
		})
	}
	return a, nil
}

// Delete removes a terminal auction. Open auctions must be cancelled
// first so the standing coin reservation is refunded, never orphaned.
func (r *Registry) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockAuction(tx, id)
		if err != nil {
			return err
		}
		if !a.Terminal() {
			return apperrors.ErrInvalidTransition
		}
		return tx.Delete(&models.Auction{}, id).Error
	})
	if err != nil {
		return translateLockErr(err)
	}

	r.log.Info("auction deleted", zap.Uint("auction_id", id))
	r.broker.Publish(events.TopicAuctionUpdates, events.Event{
		Type:      events.TypeAuctionDeleted,
		AuctionID: id,
	})
	return nil
}

// refundAcceptedTx returns the reserved coins of the auction's standing
// accepted bid, if any, and retires the bid to the given status.
func (r *Registry) refundAcceptedTx(tx *gorm.DB, a *models.Auction, bidStatus string) error {
	var prior models.Bid
	err := tx.Where("auction_id = ? AND status = ?", a.ID, models.BidAccepted).First(&prior).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := r.ledger.CreditTx(tx, prior.BidderID, prior.Amount,
		models.CategoryBidRefund, refBid(prior.ID), "refund: auction cancelled"); err != nil {
		return err
	}
	return tx.Model(&models.Bid{}).Where("id = ?", prior.ID).
		Update("status", bidStatus).Error
}
