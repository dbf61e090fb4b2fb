package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

// retryBusy runs fn until it stops failing with the retryable busy
// rejection, the way a client is expected to.
func retryBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < 500; attempt++ {
		err = fn()
		if !errors.Is(err, apperrors.ErrBusy) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return err
}

func TestConcurrentBidsKeepOneAcceptedBid(t *testing.T) {
	r := newRig(t)
	a := r.openAuction(t, 100, time.Hour)

	const (
		bidders = 6
		rounds  = 3
		opening = int64(100_000)
	)
	accounts := make([]*models.Account, bidders)
	for i := range accounts {
		accounts[i] = storetest.NewAccount(t, r.db, fmt.Sprintf("bidder%d", i), opening)
	}

	// Every goroutine bids a schedule of globally distinct amounts; which
	// ones land as too low depends entirely on interleaving.
	var wg sync.WaitGroup
	for i, acc := range accounts {
		wg.Add(1)
		go func(i int, acc *models.Account) {
			defer wg.Done()
			for k := 0; k < rounds; k++ {
				amount := int64(101 + i + k*bidders)
				err := retryBusy(func() error {
					_, err := r.engine.PlaceBid(context.Background(), a.ID, acc.ID, amount)
					return err
				})
				if err != nil && !errors.Is(err, apperrors.ErrBidTooLow) {
					t.Errorf("bid of %d: %v", amount, err)
				}
			}
		}(i, acc)
	}
	wg.Wait()

	// Exactly one accepted bid survives, and the auction points at it.
	var accepted []models.Bid
	require.NoError(t, r.db.Where("auction_id = ? AND status = ?", a.ID, models.BidAccepted).Find(&accepted).Error)
	require.Len(t, accepted, 1)

	got := r.reload(t, a.ID)
	require.Equal(t, accepted[0].Amount, got.CurrentHighestBid)
	require.Equal(t, accepted[0].BidderID, *got.CurrentHighestBidderID)

	// Recorded bids (accepted or outbid) match the counter; rejected
	// attempts left no rows behind.
	var recorded int64
	require.NoError(t, r.db.Model(&models.Bid{}).Where("auction_id = ?", a.ID).Count(&recorded).Error)
	require.EqualValues(t, got.TotalBidCount, recorded)

	// The standing reservation is the only coin movement left: the
	// accepted bidder is down by exactly their bid, everyone else whole,
	// and every balance equals the sum of its ledger entries.
	for _, acc := range accounts {
		want := opening
		if acc.ID == accepted[0].BidderID {
			want -= accepted[0].Amount
		}
		require.Equal(t, want, r.balance(t, acc.ID), "account %d", acc.ID)

		var sum int64
		require.NoError(t, r.db.Model(&models.LedgerEntry{}).
			Where("account_id = ?", acc.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error)
		require.Equal(t, want, opening+sum, "ledger drift on account %d", acc.ID)
	}
}

func TestConcurrentCreateAdmitsExactlyOne(t *testing.T) {
	r := newRig(t)

	const racers = 4
	start := make(chan struct{})
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			<-start
			results <- retryBusy(func() error {
				_, err := r.registry.Create(context.Background(), CreateParams{
					Title:      fmt.Sprintf("Console %d", i),
					MinimumBid: 100,
					StartsAt:   r.clock.now.Add(-time.Minute),
					EndsAt:     r.clock.now.Add(time.Hour),
				})
				return err
			})
		}(i)
	}
	close(start)

	var created, rejected int
	for i := 0; i < racers; i++ {
		switch err := <-results; {
		case err == nil:
			created++
		case errors.Is(err, apperrors.ErrActiveAuctionExists):
			rejected++
		default:
			t.Errorf("unexpected create error: %v", err)
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, racers-1, rejected)

	var open int64
	require.NoError(t, r.db.Model(&models.Auction{}).
		Where("status IN ?", []string{models.AuctionPending, models.AuctionActive}).
		Count(&open).Error)
	require.EqualValues(t, 1, open)
}
