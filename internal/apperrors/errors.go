// Package apperrors defines the typed errors surfaced by the auction core.
// Every user-visible failure carries a stable machine-readable code so
// clients can branch on it instead of parsing messages.
package apperrors

import "fmt"

// Kind classifies an error for HTTP status mapping.
type Kind int

const (
	KindValidation Kind = iota // bad input shape, rejected before any lock
	KindDomain                 // business rule violation, no side effects
	KindNotFound
	KindConcurrency // lock-wait timeout, retryable
	KindInfra       // storage failure, never partially applied
)

// Error is a domain error with a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors by code, so dynamic copies (e.g. BidTooLow with the
// current minimum baked into the message) still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrAuctionNotFound     = &Error{Kind: KindNotFound, Code: "AUCTION_NOT_FOUND", Message: "auction not found"}
	ErrAccountNotFound     = &Error{Kind: KindNotFound, Code: "ACCOUNT_NOT_FOUND", Message: "account not found"}
	ErrWinnerNotFound      = &Error{Kind: KindNotFound, Code: "WINNER_NOT_FOUND", Message: "winner not found"}
	ErrAuctionNotActive    = &Error{Kind: KindDomain, Code: "AUCTION_NOT_ACTIVE", Message: "auction is not active"}
	ErrAuctionNotStarted   = &Error{Kind: KindDomain, Code: "AUCTION_NOT_STARTED", Message: "auction has not started yet"}
	ErrAuctionEnded        = &Error{Kind: KindDomain, Code: "AUCTION_ENDED", Message: "auction has ended"}
	ErrBidTooLow           = &Error{Kind: KindDomain, Code: "BID_TOO_LOW", Message: "bid amount too low"}
	ErrInsufficientFunds   = &Error{Kind: KindDomain, Code: "INSUFFICIENT_FUNDS", Message: "insufficient coin balance"}
	ErrActiveAuctionExists = &Error{Kind: KindDomain, Code: "ACTIVE_AUCTION_EXISTS", Message: "another auction is already open"}
	ErrAlreadySettled      = &Error{Kind: KindDomain, Code: "ALREADY_SETTLED", Message: "winner transfer already completed"}
	ErrInvalidTransition   = &Error{Kind: KindDomain, Code: "INVALID_STATUS_TRANSITION", Message: "invalid auction status transition"}
	ErrInvalidAmount       = &Error{Kind: KindValidation, Code: "INVALID_AMOUNT", Message: "amount must be a positive integer"}
	ErrBusy                = &Error{Kind: KindConcurrency, Code: "BUSY_TRY_AGAIN", Message: "resource busy, try again"}

	ErrTransferNotConfigured = &Error{Kind: KindInfra, Code: "TRANSFER_SERVICE_NOT_CONFIGURED", Message: "transfer service is not configured"}
	ErrTransferUnavailable   = &Error{Kind: KindInfra, Code: "TRANSFER_SERVICE_UNAVAILABLE", Message: "transfer service is unavailable"}
)

// BidTooLow returns a copy of ErrBidTooLow carrying the current minimum.
func BidTooLow(minimum int64) *Error {
	return &Error{Kind: KindDomain, Code: ErrBidTooLow.Code, Message: fmt.Sprintf("bid must be at least %d coins", minimum)}
}

// Domain wraps a provider-supplied failure code as a domain error.
func Domain(code, message string) *Error {
	return &Error{Kind: KindDomain, Code: code, Message: message}
}
