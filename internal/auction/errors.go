package auction

import "fmt"

// RejectReason identifies why a candidate bid was rejected. Rejections are
// deterministic and never retried.
type RejectReason string

const (
	ReasonBidTooLow          RejectReason = "BID_TOO_LOW"
	ReasonBidTooHigh         RejectReason = "BID_TOO_HIGH"
	ReasonBelowReserve       RejectReason = "BELOW_RESERVE"
	ReasonAuctionNotBiddable RejectReason = "AUCTION_NOT_BIDDABLE"
)

// RejectionError is a validation verdict, distinct from transient
// infrastructure failures so callers can always tell "your bid was bad"
// from "try again".
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func reject(reason RejectReason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
