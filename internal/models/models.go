package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name     string `gorm:"size:50;not null"`
	Email    string `gorm:"uniqueIndex;size:255;not null"`
	Password string `gorm:"size:255"`
}

// Account holds a user's coin balance. Created on first authentication,
// never deleted; mutated only through the ledger's atomic credit/debit.
type Account struct {
	gorm.Model
	UserID  uint  `gorm:"uniqueIndex;not null"`
	Balance int64 `gorm:"not null;default:0"`
	IsAdmin bool  `gorm:"not null;default:false"`
}

// Ledger entry categories.
const (
	CategoryBountyReward     = "bounty_reward"
	CategoryCodeRedemption   = "code_redemption"
	CategoryAdminAdjustment  = "admin_adjustment"
	CategoryBidReserve       = "bid_reserve"
	CategoryBidRefund        = "bid_refund"
	CategoryAuctionPayment   = "auction_payment"
	CategoryExternalTransfer = "external_transfer"
)

// LedgerEntry is an immutable, append-only record of a balance change.
// Positive amounts are credits, negative are debits.
type LedgerEntry struct {
	gorm.Model
	AccountID   uint   `gorm:"index;not null"`
	Amount      int64  `gorm:"not null"`
	Category    string `gorm:"size:32;index;not null"`
	ReferenceID string `gorm:"size:100;index"`
	Description string `gorm:"size:255"`
}

// Auction statuses.
const (
	AuctionPending   = "pending"
	AuctionActive    = "active"
	AuctionEnded     = "ended"
	AuctionCancelled = "cancelled"
)

// Auction is the single sale item. At most one auction may be in a
// non-terminal status (pending or active) at any time, system-wide.
type Auction struct {
	gorm.Model
	Title                  string `gorm:"size:255;not null"`
	Description            string
	MinimumBid             int64     `gorm:"not null"`
	StartsAt               time.Time `gorm:"not null"`
	EndsAt                 time.Time `gorm:"not null"` // mutable: extended by anti-snipe
	Status                 string    `gorm:"size:20;index;not null;default:pending"`
	CurrentHighestBid      int64     `gorm:"not null;default:0"`
	CurrentHighestBidderID *uint     `gorm:"index"`
	TotalBidCount          int       `gorm:"not null;default:0"`
	CreatedByID            uint      `gorm:"index"`
	ImageURLs              datatypes.JSON
}

// Terminal reports whether the auction can no longer change state
// (except for the winner-settlement link).
func (a *Auction) Terminal() bool {
	return a.Status == AuctionEnded || a.Status == AuctionCancelled
}

// Bid statuses.
const (
	BidPending   = "pending"
	BidAccepted  = "accepted"
	BidOutbid    = "outbid"
	BidRejected  = "rejected"
	BidCancelled = "cancelled"
)

// Bid is a single bid on an auction. At most one accepted bid per
// (auction, bidder) pair at any instant. Status transitions only,
// rows are never deleted.
type Bid struct {
	gorm.Model
	AuctionID       uint   `gorm:"index:idx_bids_auction_status;index:idx_bids_auction_amount;not null"`
	BidderID        uint   `gorm:"index;not null"`
	Amount          int64  `gorm:"index:idx_bids_auction_amount;not null"`
	Status          string `gorm:"size:20;index:idx_bids_auction_status;not null;default:pending"`
	MinimumRequired int64  `gorm:"not null"`
	PreviousHighest int64  `gorm:"not null;default:0"`
}

// Winner records the settlement outcome of an ended auction. Created
// exactly once per auction; immutable except for the transfer fields.
type Winner struct {
	gorm.Model
	AuctionID           uint  `gorm:"uniqueIndex;not null"`
	WinnerID            uint  `gorm:"index;not null"`
	WinningAmount       int64 `gorm:"not null"`
	CoinsTransferred    bool  `gorm:"index;not null;default:false"`
	TransferCompletedAt *time.Time
}

// Point transfer statuses.
const (
	TransferSuccess = "success"
	TransferFailed  = "failed"
)

// PointTransfer records the outcome of an external (PlayEngine) coin
// transfer. TransferID is the idempotency token for the local credit.
type PointTransfer struct {
	gorm.Model
	UserID          uint   `gorm:"index;not null"`
	Email           string `gorm:"size:255;not null"`
	Amount          int64  `gorm:"not null"`
	TransferID      string `gorm:"uniqueIndex;size:36;not null"`
	Status          string `gorm:"size:20;index;not null"`
	ProviderError   string `gorm:"size:64"`
	CreditedBalance int64
}
