package auction

import (
	"time"

	"auction-service/internal/models"
)

// ValidateBid checks per-type legality of a candidate amount against the
// auction's authoritative current state. status must come from Evaluate with
// the same now. Returns nil when the bid is acceptable. Pure; no side
// effects.
//
// Comparisons are boundary-inclusive: a bid exactly at currentPrice plus the
// minimum increment (or minus the decrement, or at the reserve) is valid.
// There is no anti-self-bid rule; a bidder may raise their own lead.
func ValidateBid(a *models.Auction, status models.Status, amount int64, now time.Time) *RejectionError {
	if !status.Biddable() {
		return reject(ReasonAuctionNotBiddable, "auction is %s", status)
	}

	switch a.Type {
	case models.AuctionTypeTraditional:
		if min := a.CurrentPrice + a.PriceStep; amount < min {
			return reject(ReasonBidTooLow, "minimum acceptable bid is %d", min)
		}

	case models.AuctionTypeReverse:
		if max := a.CurrentPrice - a.PriceStep; amount > max {
			return reject(ReasonBidTooHigh, "maximum acceptable bid is %d", max)
		}
		if a.ReservePrice != nil && amount < *a.ReservePrice {
			return reject(ReasonBelowReserve, "reserve price is %d", *a.ReservePrice)
		}

	case models.AuctionTypeDutch:
		// A Dutch bid is an accept of the displayed scheduled price. The
		// schedule only falls, so an amount at or above the current tick
		// means the bidder saw this price or an older, higher one. A closed
		// Dutch auction never reaches this point: the forced ENDED status is
		// caught above.
		if displayed := DutchPrice(a, now); amount < displayed {
			return reject(ReasonBidTooLow, "displayed price is %d", displayed)
		}
	}

	return nil
}
