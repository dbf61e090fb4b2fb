package auction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/events"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BidEngine accepts bids. Acceptance serializes per auction through the
// auction row lock; the account row locks nest inside it.
type BidEngine struct {
	db             *gorm.DB
	log            *zap.Logger
	ledger         *ledger.Service
	broker         *events.Broker
	snipeThreshold time.Duration
	snipeExtension time.Duration
	lockTimeout    time.Duration
	now            func() time.Time
}

type BidEngineConfig struct {
	SnipeThreshold time.Duration
	SnipeExtension time.Duration
	LockTimeout    time.Duration
}

func NewBidEngine(db *gorm.DB, log *zap.Logger, lgr *ledger.Service, broker *events.Broker, cfg BidEngineConfig) *BidEngine {
	return &BidEngine{
		db:             db,
		log:            log,
		ledger:         lgr,
		broker:         broker,
		snipeThreshold: cfg.SnipeThreshold,
		snipeExtension: cfg.SnipeExtension,
		lockTimeout:    cfg.LockTimeout,
		now:            time.Now,
	}
}

// BidResult is the outcome of an accepted bid.
type BidResult struct {
	Bid        *models.Bid
	NewBalance int64
	Extended   bool
	EndsAt     time.Time
	BidCount   int
}

// PlaceBid validates and atomically records a bid:
//
//  1. lock the auction row, then the bidder's account row
//  2. recompute status from the wall clock; a dead auction settles
//     inline and the bid is rejected with AUCTION_ENDED
//  3. amount must reach current_highest+1, or minimum_bid if no bids yet
//  4. balance must cover the full amount
//  5. the prior accepted bid (any holder, including the bidder) is
//     retired to outbid and its full reservation refunded
//  6. the full amount is debited as a fresh reservation and the auction
//     highest-bid pointer updated
//  7. a bid landing at exactly the anti-snipe threshold (whole seconds
//     remaining) pushes ends_at out by the configured extension
//
// Everything commits or rolls back as one unit; events publish only
// after commit.
func (e *BidEngine) PlaceBid(ctx context.Context, auctionID, bidderAccountID uint, amount int64) (*BidResult, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var (
		res     BidResult
		pending []publishReq
		reject  error
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applyLockTimeout(tx, e.lockTimeout)

		a, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}
		now := e.now().UTC()

		// Status may lag real time; recompute before validating.
		if a.Status == models.AuctionPending && SyncStatus(now, a) {
			if err := tx.Model(&models.Auction{}).Where("id = ?", a.ID).
				Update("status", a.Status).Error; err != nil {
				return err
			}
			if a.Status == models.AuctionEnded {
				// The whole window passed while pending. No bid was
				// ever accepted, so there is no winner to record;
				// commit the flip and reject after.
				pending = append(pending, endedEvents(a, nil)...)
				reject = apperrors.ErrAuctionEnded
				return nil
			}
		}
		if a.Status == models.AuctionActive && !now.Before(a.EndsAt) {
			// The deadline passed before the sweep noticed. Settle
			// inline, commit the flip, and reject this bid.
			winner, err := settleTx(tx, a)
			if err != nil {
				return err
			}
			pending = append(pending, endedEvents(a, winner)...)
			reject = apperrors.ErrAuctionEnded
			return nil
		}

		switch a.Status {
		case models.AuctionActive:
		case models.AuctionEnded:
			return apperrors.ErrAuctionEnded
		case models.AuctionPending:
			return apperrors.ErrAuctionNotStarted
		default:
			return apperrors.ErrAuctionNotActive
		}

		minimum := a.MinimumBid
		if a.CurrentHighestBid > 0 {
			minimum = a.CurrentHighestBid + 1
		}
		if amount < minimum {
			return apperrors.BidTooLow(minimum)
		}

		// Lock order: auction row first, then the bidder's account.
		acc, err := ledger.LockAccount(tx, bidderAccountID)
		if err != nil {
			return err
		}
		if acc.Balance < amount {
			return apperrors.ErrInsufficientFunds
		}

		if err := e.retireStandingBidTx(tx, a); err != nil {
			return err
		}

		bid := models.Bid{
			AuctionID:       a.ID,
			BidderID:        bidderAccountID,
			Amount:          amount,
			Status:          models.BidAccepted,
			MinimumRequired: minimum,
			PreviousHighest: a.CurrentHighestBid,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return err
		}

		newBalance, err := e.ledger.DebitTx(tx, bidderAccountID, amount,
			models.CategoryBidReserve, refBid(bid.ID),
			fmt.Sprintf("bid reservation on %q", a.Title))
		if err != nil {
			return err
		}

		extended := false
		remaining := int64(math.Round(a.EndsAt.Sub(now).Seconds()))
		if e.snipeThreshold > 0 && remaining == int64(e.snipeThreshold.Seconds()) {
			a.EndsAt = a.EndsAt.Add(e.snipeExtension)
			extended = true
		}

		a.CurrentHighestBid = amount
		a.CurrentHighestBidderID = &bidderAccountID
		a.TotalBidCount++
		updates := map[string]any{
			"current_highest_bid":       a.CurrentHighestBid,
			"current_highest_bidder_id": bidderAccountID,
			"total_bid_count":           a.TotalBidCount,
		}
		if extended {
			updates["ends_at"] = a.EndsAt
		}
		if err := tx.Model(&models.Auction{}).Where("id = ?", a.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		res = BidResult{
			Bid:        &bid,
			NewBalance: newBalance,
			Extended:   extended,
			EndsAt:     a.EndsAt,
			BidCount:   a.TotalBidCount,
		}
		pending = append(pending, bidEvents(a, &bid, extended)...)
		return nil
	})
	if err != nil {
		return nil, translateLockErr(err)
	}

	for _, p := range pending {
		e.broker.Publish(p.topic, p.event)
	}
	if reject != nil {
		return nil, reject
	}

	e.log.Info("bid accepted",
		zap.Uint("auction_id", auctionID),
		zap.Uint("bidder_account_id", bidderAccountID),
		zap.Int64("amount", amount),
		zap.Bool("extended", res.Extended))
	return &res, nil
}

// retireStandingBidTx refunds and outbids the auction's single standing
// accepted bid, if any. Refunding the bidder's own prior reservation too
// keeps exactly one reservation outstanding per bidder per auction.
func (e *BidEngine) retireStandingBidTx(tx *gorm.DB, a *models.Auction) error {
	var prior models.Bid
	err := tx.Where("auction_id = ? AND status = ?", a.ID, models.BidAccepted).First(&prior).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := e.ledger.CreditTx(tx, prior.BidderID, prior.Amount,
		models.CategoryBidRefund, refBid(prior.ID),
		fmt.Sprintf("refund: outbid on %q", a.Title)); err != nil {
		return err
	}
	return tx.Model(&models.Bid{}).Where("id = ?", prior.ID).
		Update("status", models.BidOutbid).Error
}

type publishReq struct {
	topic string
	event events.Event
}

func bidEvents(a *models.Auction, bid *models.Bid, extended bool) []publishReq {
	payload := map[string]any{
		"bidder_account_id":   bid.BidderID,
		"amount":              bid.Amount,
		"current_highest_bid": a.CurrentHighestBid,
		"bid_count":           a.TotalBidCount,
		"auction_extended":    extended,
	}
	if extended {
		payload["new_end_time"] = a.EndsAt
	}
	ev := events.Event{Type: events.TypeNewBid, AuctionID: a.ID, Payload: payload}
	return []publishReq{
		{topic: events.AuctionTopic(a.ID), event: ev},
		{topic: events.LeaderboardTopic(a.ID), event: ev},
	}
}

func endedEvents(a *models.Auction, winner *models.Winner) []publishReq {
	payload := map[string]any{}
	if winner != nil {
		payload["winner_account_id"] = winner.WinnerID
		payload["winning_bid"] = winner.WinningAmount
	}
	ev := events.Event{Type: events.TypeAuctionEnded, AuctionID: a.ID, Payload: payload}
	return []publishReq{
		{topic: events.AuctionTopic(a.ID), event: ev},
		{topic: events.TopicAuctionUpdates, event: ev},
	}
}
