package service

import "errors"

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidderNotFound  = errors.New("bidder not found")
	ErrInvalidAuction  = errors.New("invalid auction")

	// ErrNotCancellable is returned when cancelling an auction that already
	// reached a terminal status.
	ErrNotCancellable = errors.New("auction already ended or cancelled")

	// ErrConflict is the transient outcome of exhausting optimistic
	// concurrency retries. The bid was neither accepted nor rejected; the
	// caller may resubmit.
	ErrConflict = errors.New("concurrent update conflict, retries exhausted")

	// ErrUnavailable is the transient outcome of exhausting persistence
	// retries. Distinct from a rejection so the caller never confuses
	// "your bid was bad" with "try again".
	ErrUnavailable = errors.New("store unavailable")
)
