// Package auction implements the auction lifecycle: the registry that
// enforces the single-open-auction invariant, the bid engine, winner
// settlement and the deadline sweeper. All multi-step mutations run in a
// single transaction with the auction row locked first and account rows
// second, so bids and settlement can never deadlock against each other.
package auction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockAuction fetches an auction under an exclusive row lock. Every bid
// acceptance and status flip on one auction serializes through this lock.
func lockAuction(tx *gorm.DB, id uint) (*models.Auction, error) {
	var a models.Auction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAuctionNotFound
		}
		return nil, err
	}
	return &a, nil
}

// applyLockTimeout bounds row-lock waits for the current transaction so a
// bid storm fails fast with a retryable error instead of queueing.
// sqlite has a single writer and needs no per-transaction setting.
func applyLockTimeout(tx *gorm.DB, d time.Duration) {
	if d > 0 && tx.Dialector.Name() == "postgres" {
		tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds()))
	}
}

// translateLockErr converts a lock-wait timeout into the retryable busy
// error; anything else passes through.
func translateLockErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	// 55P03 is postgres lock_not_available; sqlite reports SQLITE_BUSY as
	// "database is locked" and SQLITE_LOCKED as "table is locked".
	if strings.Contains(msg, "55p03") || strings.Contains(msg, "lock timeout") || strings.Contains(msg, "is locked") {
		return apperrors.ErrBusy
	}
	return err
}

// SyncStatus recomputes an auction's status from the wall clock. This is
// the explicit recomputation path: it runs only at defined trigger points
// (bid placement, the sweep, registry refresh), never as a save hook.
// Returns true if the status changed. The caller persists the change.
func SyncStatus(now time.Time, a *models.Auction) bool {
	switch a.Status {
	case models.AuctionPending:
		if !now.Before(a.EndsAt) {
			a.Status = models.AuctionEnded
			return true
		}
		if !now.Before(a.StartsAt) {
			a.Status = models.AuctionActive
			return true
		}
	case models.AuctionActive:
		if !now.Before(a.EndsAt) {
			a.Status = models.AuctionEnded
			return true
		}
	}
	return false
}

// refBid formats a bid id as a ledger reference.
func refBid(id uint) string {
	return fmt.Sprintf("bid:%d", id)
}

// refAuction formats an auction id as a ledger reference.
func refAuction(id uint) string {
	return fmt.Sprintf("auction:%d", id)
}

// settleTx determines the winner of a locked, active auction and moves it
// to ended. The highest accepted bid wins (amount desc, earliest first on
// ties). Returns nil when the auction had no bids. Caller owns the
// transaction and the auction row lock.
func settleTx(tx *gorm.DB, a *models.Auction) (*models.Winner, error) {
	var top models.Bid
	err := tx.Where("auction_id = ? AND status = ?", a.ID, models.BidAccepted).
		Order("amount DESC, created_at ASC, id ASC").
		First(&top).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var winner *models.Winner
	if err == nil {
		winner = &models.Winner{
			AuctionID:     a.ID,
			WinnerID:      top.BidderID,
			WinningAmount: top.Amount,
		}
		if err := tx.Create(winner).Error; err != nil {
			return nil, err
		}
	}

	a.Status = models.AuctionEnded
	if err := tx.Model(&models.Auction{}).Where("id = ?", a.ID).
		Update("status", models.AuctionEnded).Error; err != nil {
		return nil, err
	}
	return winner, nil
}
