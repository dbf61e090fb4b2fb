package auction

import (
	"context"
	"testing"
	"time"

	"github.com/TEESTIMONY/playmarket-api/internal/events"
	"github.com/TEESTIMONY/playmarket-api/internal/models"
	"github.com/TEESTIMONY/playmarket-api/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestSweepActivatesPendingAuction(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a, err := r.registry.Create(ctx, CreateParams{
		Title:      "Soon",
		MinimumBid: 10,
		StartsAt:   r.clock.now.Add(time.Hour),
		EndsAt:     r.clock.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	activated, ended := r.sweeper.SweepOnce(ctx)
	require.Zero(t, activated)
	require.Zero(t, ended)
	require.Equal(t, models.AuctionPending, r.reload(t, a.ID).Status)

	r.clock.Advance(90 * time.Minute)
	activated, ended = r.sweeper.SweepOnce(ctx)
	require.Equal(t, 1, activated)
	require.Zero(t, ended)
	require.Equal(t, models.AuctionActive, r.reload(t, a.ID).Status)
}

func TestSweepEndsExpiredAuction(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a := r.openAuction(t, 100, 10*time.Minute)
	alice := storetest.NewAccount(t, r.db, "alice", 1000)
	_, err := r.engine.PlaceBid(ctx, a.ID, alice.ID, 120)
	require.NoError(t, err)

	ch, cancel := r.broker.Subscribe(events.AuctionTopic(a.ID), 4)
	defer cancel()

	r.clock.Advance(11 * time.Minute)
	activated, ended := r.sweeper.SweepOnce(ctx)
	require.Zero(t, activated)
	require.Equal(t, 1, ended)

	require.Equal(t, models.AuctionEnded, r.reload(t, a.ID).Status)
	var winner models.Winner
	require.NoError(t, r.db.Where("auction_id = ?", a.ID).First(&winner).Error)
	require.Equal(t, alice.ID, winner.WinnerID)
	require.EqualValues(t, 120, winner.WinningAmount)

	select {
	case ev := <-ch:
		require.Equal(t, events.TypeAuctionEnded, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("auction_ended event not published")
	}

	// The next sweep finds nothing to do.
	activated, ended = r.sweeper.SweepOnce(ctx)
	require.Zero(t, activated)
	require.Zero(t, ended)
}

func TestSweepHandlesWholeLifecycle(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	a, err := r.registry.Create(ctx, CreateParams{
		Title:      "Full Cycle",
		MinimumBid: 10,
		StartsAt:   r.clock.now.Add(time.Minute),
		EndsAt:     r.clock.now.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	// Window opens and closes between two sweeps: the pending auction
	// goes straight to ended, with no winner.
	r.clock.Advance(3 * time.Minute)
	activated, _ := r.sweeper.SweepOnce(ctx)
	require.Equal(t, 1, activated)

	got := r.reload(t, a.ID)
	require.Equal(t, models.AuctionEnded, got.Status)
	var count int64
	require.NoError(t, r.db.Model(&models.Winner{}).Where("auction_id = ?", a.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r := newRig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
