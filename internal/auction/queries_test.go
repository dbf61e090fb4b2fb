package auction

import (
	"context"
	"testing"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/apperrors"
	"github.com/TEESTIMONY/playmarket-api/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardRanksByHighestBid(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a := r.openAuction(t, 10, time.Hour)
	alice := storetest.NewAccount(t, r.db, "alice", 100000)
	bob := storetest.NewAccount(t, r.db, "bob", 100000)
	carol := storetest.NewAccount(t, r.db, "carol", 100000)

	for _, bid := range []struct {
		acc    uint
		amount int64
	}{
		{alice.ID, 10},
		{bob.ID, 20},
		{carol.ID, 30},
		{alice.ID, 40},
	} {
		_, err := r.engine.PlaceBid(ctx, a.ID, bid.acc, bid.amount)
		require.NoError(t, err)
	}

	lb, err := r.registry.Leaderboard(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 40, lb.CurrentHighestBid)
	require.Equal(t, "alice", lb.CurrentHighestBidder)
	require.Equal(t, 4, lb.TotalBids)

	require.Len(t, lb.TopBidders, 3)
	require.Equal(t, "alice", lb.TopBidders[0].Username)
	require.EqualValues(t, 40, lb.TopBidders[0].HighestBid)
	require.EqualValues(t, 2, lb.TopBidders[0].TotalBids)
	require.Equal(t, "carol", lb.TopBidders[1].Username)
	require.Equal(t, "bob", lb.TopBidders[2].Username)
}

func TestLeaderboardUnknownAuction(t *testing.T) {
	r := newRig(t)
	_, err := r.registry.Leaderboard(context.Background(), 404)
	require.ErrorIs(t, err, apperrors.ErrAuctionNotFound)
}

func TestUserHistory(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a := r.openAuction(t, 10, time.Hour)
	alice := storetest.NewAccount(t, r.db, "alice", 100000)
	bob := storetest.NewAccount(t, r.db, "bob", 100000)

	_, err := r.engine.PlaceBid(ctx, a.ID, alice.ID, 10)
	require.NoError(t, err)
	_, err = r.engine.PlaceBid(ctx, a.ID, bob.ID, 20)
	require.NoError(t, err)
	_, err = r.engine.PlaceBid(ctx, a.ID, alice.ID, 30)
	require.NoError(t, err)

	_, err = r.settlement.EndAuction(ctx, a.ID)
	require.NoError(t, err)

	bids, wins, err := r.registry.UserHistory(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Len(t, wins, 1)
	require.EqualValues(t, 30, wins[0].WinningAmount)

	bids, wins, err = r.registry.UserHistory(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	require.Empty(t, wins)
}
