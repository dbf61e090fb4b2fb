package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/events"
	"github.com/TEESTIMONY/playmarket-api/internal/ledger"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settlement ends auctions and finalizes the winner's coin transfer to
// the house. Ending and transferring are separate operations so a failed
// transfer can never block an auction from closing.
type Settlement struct {
	db             *gorm.DB
	log            *zap.Logger
	ledger         *ledger.Service
	broker         *events.Broker
	houseAccountID uint
	lockTimeout    time.Duration
	now            func() time.Time
}

func NewSettlement(db *gorm.DB, log *zap.Logger, lgr *ledger.Service, broker *events.Broker, houseAccountID uint, lockTimeout time.Duration) *Settlement {
	return &Settlement{
		db:             db,
		log:            log,
		ledger:         lgr,
		broker:         broker,
		houseAccountID: houseAccountID,
		lockTimeout:    lockTimeout,
		now:            time.Now,
	}
}

// EndAuction closes an active auction and records its winner. Calling it
// on an already-ended auction is an idempotent no-op returning the
// existing winner (nil if the auction closed without bids), so timer
// retries are safe. Pending or cancelled auctions fail AUCTION_NOT_ACTIVE.
func (s *Settlement) EndAuction(ctx context.Context, auctionID uint) (*models.Winner, error) {
	var (
		winner  *models.Winner
		pending []publishReq
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applyLockTimeout(tx, s.lockTimeout)

		a, err := lockAuction(tx, auctionID)
		if err != nil {
			return err
		}

		if a.Status == models.AuctionEnded {
			var existing models.Winner
			err := tx.Where("auction_id = ?", a.ID).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			winner = &existing
			return nil
		}
		if a.Status != models.AuctionActive {
			return apperrors.ErrAuctionNotActive
		}

		winner, err = settleTx(tx, a)
		if err != nil {
			return err
		}
		pending = endedEvents(a, winner)
		return nil
	})
	if err != nil {
		return nil, translateLockErr(err)
	}

	for _, p := range pending {
		s.broker.Publish(p.topic, p.event)
	}
	if len(pending) > 0 {
		fields := []zap.Field{zap.Uint("auction_id", auctionID)}
		if winner != nil {
			fields = append(fields,
				zap.Uint("winner_account_id", winner.WinnerID),
				zap.Int64("winning_amount", winner.WinningAmount))
		}
		s.log.Info("auction ended", fields...)
	}
	return winner, nil
}

// CompleteTransfer debits the winning amount from the winner's account
// and credits the house. If the winner's balance has since dropped below
// the winning amount the transfer fails with INSUFFICIENT_FUNDS and
// coins_transferred stays false for manual reconciliation.
func (s *Settlement) CompleteTransfer(ctx context.Context, winnerID uint) (*models.Winner, error) {
	var w models.Winner
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applyLockTimeout(tx, s.lockTimeout)

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, winnerID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrWinnerNotFound
			}
			return err
		}
		if w.CoinsTransferred {
			return apperrors.ErrAlreadySettled
		}

		// Winner's account first, house second, everywhere.
		if _, err := s.ledger.DebitTx(tx, w.WinnerID, w.WinningAmount,
			models.CategoryAuctionPayment, refAuction(w.AuctionID),
			fmt.Sprintf("payment for winning auction %d", w.AuctionID)); err != nil {
			return err
		}
		if _, err := s.ledger.CreditTx(tx, s.houseAccountID, w.WinningAmount,
			models.CategoryAuctionPayment, refAuction(w.AuctionID),
			fmt.Sprintf("proceeds of auction %d", w.AuctionID)); err != nil {
			return err
		}

		completedAt := s.now().UTC()
		w.CoinsTransferred = true
		w.TransferCompletedAt = &completedAt
		return tx.Model(&models.Winner{}).Where("id = ?", w.ID).Updates(map[string]any{
			"coins_transferred":     true,
			"transfer_completed_at": completedAt,
		}).Error
	})
	if err != nil {
		return nil, translateLockErr(err)
	}

	s.log.Info("winner transfer completed",
		zap.Uint("winner_id", w.ID),
		zap.Uint("auction_id", w.AuctionID),
		zap.Int64("amount", w.WinningAmount))
	return &w, nil
}
