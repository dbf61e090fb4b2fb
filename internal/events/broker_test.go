package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch1, cancel1 := b.Subscribe(TopicAuctionUpdates, 4)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(TopicAuctionUpdates, 4)
	defer cancel2()

	b.Publish(TopicAuctionUpdates, Event{Type: TypeAuctionCreated, AuctionID: 1})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			require.Equal(t, TypeAuctionCreated, ev.Type)
			require.EqualValues(t, 1, ev.AuctionID)
			require.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishIsScopedToTopic(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch, cancel := b.Subscribe(AuctionTopic(7), 4)
	defer cancel()

	b.Publish(AuctionTopic(8), Event{Type: TypeNewBid, AuctionID: 8})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event on other topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch, cancel := b.Subscribe(AuctionTopic(1), 1)
	defer cancel()

	// Nothing drains the channel; the second publish must not block.
	done := make(chan struct{})
	go func() {
		b.Publish(AuctionTopic(1), Event{Type: TypeNewBid})
		b.Publish(AuctionTopic(1), Event{Type: TypeNewBid})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a saturated subscriber")
	}
	require.Len(t, ch, 1)
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ch, cancel := b.Subscribe(LeaderboardTopic(3), 1)
	cancel()
	cancel() // second cancel is a no-op

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel reaches nobody and must not panic.
	b.Publish(LeaderboardTopic(3), Event{Type: TypeNewBid})
}
