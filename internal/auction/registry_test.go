package auction

import (
	"context"
	"testing"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestCreateDerivesInitialStatus(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a := r.openAuction(t, 100, time.Hour)
	require.Equal(t, models.AuctionActive, a.Status)

	_, err := r.settlement.EndAuction(ctx, a.ID)
	require.NoError(t, err)

	upcoming, err := r.registry.Create(ctx, CreateParams{
		Title:      "Next Week",
		MinimumBid: 50,
		StartsAt:   r.clock.now.Add(24 * time.Hour),
		EndsAt:     r.clock.now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, models.AuctionPending, upcoming.Status)
}

func TestCreateRejectsSecondOpenAuction(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	first := r.openAuction(t, 100, time.Hour)

	_, err := r.registry.Create(ctx, CreateParams{
		Title:      "Too Soon",
		MinimumBid: 100,
		StartsAt:   r.clock.now,
		EndsAt:     r.clock.now.Add(time.Hour),
	})
	require.ErrorIs(t, err, apperrors.ErrActiveAuctionExists)

	// A terminal auction frees the slot.
	_, err = r.registry.SetStatus(ctx, first.ID, models.AuctionCancelled)
	require.NoError(t, err)

	_, err = r.registry.Create(ctx, CreateParams{
		Title:      "Now Fine",
		MinimumBid: 100,
		StartsAt:   r.clock.now,
		EndsAt:     r.clock.now.Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateParams
		code   string
	}{
		{
			name:   "missing title",
			params: CreateParams{MinimumBid: 10, StartsAt: r.clock.now, EndsAt: r.clock.now.Add(time.Hour)},
			code:   "TITLE_REQUIRED",
		},
		{
			name:   "non-positive minimum bid",
			params: CreateParams{Title: "x", MinimumBid: 0, StartsAt: r.clock.now, EndsAt: r.clock.now.Add(time.Hour)},
			code:   "INVALID_AMOUNT",
		},
		{
			name:   "window inverted",
			params: CreateParams{Title: "x", MinimumBid: 10, StartsAt: r.clock.now.Add(time.Hour), EndsAt: r.clock.now},
			code:   "INVALID_WINDOW",
		},
		{
			name:   "window in the past",
			params: CreateParams{Title: "x", MinimumBid: 10, StartsAt: r.clock.now.Add(-2 * time.Hour), EndsAt: r.clock.now.Add(-time.Hour)},
			code:   "INVALID_WINDOW",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.registry.Create(ctx, tc.params)
			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, tc.code, appErr.Code)
		})
	}
}

func TestGetActive(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a, err := r.registry.GetActive(ctx)
	require.NoError(t, err)
	require.Nil(t, a)

	created := r.openAuction(t, 100, time.Hour)
	a, err = r.registry.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.Equal(t, created.ID, a.ID)
}

func TestSetStatusTransitions(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	pending, err := r.registry.Create(ctx, CreateParams{
		Title:      "Later",
		MinimumBid: 10,
		StartsAt:   r.clock.now.Add(time.Hour),
		EndsAt:     r.clock.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	// Admin can force-open a pending auction.
	a, err := r.registry.SetStatus(ctx, pending.ID, models.AuctionActive)
	require.NoError(t, err)
	require.Equal(t, models.AuctionActive, a.Status)

	// active→ended is reserved for settlement.
	_, err = r.registry.SetStatus(ctx, pending.ID, models.AuctionEnded)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = r.registry.SetStatus(ctx, pending.ID, models.AuctionCancelled)
	require.NoError(t, err)

	// Terminal states are immutable.
	_, err = r.registry.SetStatus(ctx, pending.ID, models.AuctionActive)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestCancelRefundsStandingBid(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a := r.openAuction(t, 100, time.Hour)
	bidder := storetest.NewAccount(t, r.db, "alice", 1000)

	_, err := r.engine.PlaceBid(ctx, a.ID, bidder.ID, 300)
	require.NoError(t, err)
	require.EqualValues(t, 700, r.balance(t, bidder.ID))

	_, err = r.registry.SetStatus(ctx, a.ID, models.AuctionCancelled)
	require.NoError(t, err)
	require.EqualValues(t, 1000, r.balance(t, bidder.ID))

	var bid models.Bid
	require.NoError(t, r.db.Where("auction_id = ?", a.ID).First(&bid).Error)
	require.Equal(t, models.BidCancelled, bid.Status)
}

func TestDeleteRequiresTerminalStatus(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a := r.openAuction(t, 100, time.Hour)
	require.ErrorIs(t, r.registry.Delete(ctx, a.ID), apperrors.ErrInvalidTransition)

	_, err := r.registry.SetStatus(ctx, a.ID, models.AuctionCancelled)
	require.NoError(t, err)
	require.NoError(t, r.registry.Delete(ctx, a.ID))

	_, err = r.registry.Get(ctx, a.ID)
	require.ErrorIs(t, err, apperrors.ErrAuctionNotFound)
}

func TestListVisibility(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.registry.Create(ctx, CreateParams{
		Title:      "Future",
		MinimumBid: 10,
		StartsAt:   r.clock.now.Add(time.Hour),
		EndsAt:     r.clock.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	all, err := r.registry.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// The pending auction has not started; regular users don't see it.
	visible, err := r.registry.List(ctx, false)
	require.NoError(t, err)
	require.Empty(t, visible)
}
