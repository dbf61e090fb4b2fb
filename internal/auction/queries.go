package auction

import (
	"context"

	"github.com/TEESTIMONY/playmarket-api/internal/models"
)

// LeaderboardEntry is one ranked bidder.
type LeaderboardEntry struct {
	AccountID  uint   `json:"account_id"`
	Username   string `json:"username"`
	HighestBid int64  `json:"highest_bid"`
	TotalBids  int64  `json:"total_bids"`
}

// Leaderboard ranks an auction's bidders by their highest bid.
type Leaderboard struct {
	AuctionID            uint               `json:"auction_id"`
	CurrentHighestBid    int64              `json:"current_highest_bid"`
	CurrentHighestBidder string             `json:"current_highest_bidder,omitempty"`
	TotalBids            int                `json:"total_bids"`
	TopBidders           []LeaderboardEntry `json:"top_bidders"`
}

// Leaderboard returns the top bidders for an auction (up to 10, ranked by
// each bidder's highest bid) plus the standing highest bid and bidder.
func (r *Registry) Leaderboard(ctx context.Context, auctionID uint) (*Leaderboard, error) {
	a, err := r.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	var top []LeaderboardEntry
	err = r.db.WithContext(ctx).Model(&models.Bid{}).
		Select("bids.bidder_id AS account_id, users.name AS username, MAX(bids.amount) AS highest_bid, COUNT(bids.id) AS total_bids").
		Joins("JOIN accounts ON accounts.id = bids.bidder_id").
		Joins("JOIN users ON users.id = accounts.user_id").
		Where("bids.auction_id = ?", auctionID).
		Group("bids.bidder_id, users.name").
		Order("highest_bid DESC").
		Limit(10).
		Scan(&top).Error
	if err != nil {
		return nil, err
	}

	lb := &Leaderboard{
		AuctionID:         a.ID,
		CurrentHighestBid: a.CurrentHighestBid,
		TotalBids:         a.TotalBidCount,
		TopBidders:        top,
	}
	if a.CurrentHighestBidderID != nil {
		var name string
		err := r.db.WithContext(ctx).Model(&models.Account{}).
			Select("users.name").
			Joins("JOIN users ON users.id = accounts.user_id").
			Where("accounts.id = ?", *a.CurrentHighestBidderID).
			Scan(&name).Error
		if err != nil {
			return nil, err
		}
		lb.CurrentHighestBidder = name
	}
	return lb, nil
}

// UserHistory returns an account's bids and wins, newest first.
func (r *Registry) UserHistory(ctx context.Context, accountID uint) ([]models.Bid, []models.Winner, error) {
	var bids []models.Bid
	if err := r.db.WithContext(ctx).
		Where("bidder_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Find(&bids).Error; err != nil {
		return nil, nil, err
	}

	var wins []models.Winner
	if err := r.db.WithContext(ctx).
		Where("winner_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Find(&wins).Error; err != nil {
		return nil, nil, err
	}
	return bids, wins, nil
}
