package auction

import (
	"time"

	"auction-service/internal/models"
)

// DutchPrice returns the scheduled displayed price of a Dutch auction at
// now: the initial price minus one decay step per full interval elapsed
// since start, floored at the reserve price (zero when no reserve is set).
// The price never rises; before start it is the initial price.
func DutchPrice(a *models.Auction, now time.Time) int64 {
	price := a.InitialPrice
	if a.DecayAmount <= 0 || a.DecayIntervalSeconds <= 0 {
		return price
	}
	if elapsed := now.Sub(a.StartTime); elapsed > 0 {
		steps := int64(elapsed / (time.Duration(a.DecayIntervalSeconds) * time.Second))
		price -= steps * a.DecayAmount
	}
	var floor int64
	if a.ReservePrice != nil {
		floor = *a.ReservePrice
	}
	if price < floor {
		price = floor
	}
	return price
}

// DisplayPrice is the price a reader should see for an auction right now.
// For Dutch auctions before the single accept this is the scheduled price;
// for everything else it is the stored current price (last accepted bid, or
// the initial price when no bid was accepted yet).
func DisplayPrice(a *models.Auction, now time.Time) int64 {
	if a.Type == models.AuctionTypeDutch && a.TotalBids == 0 {
		return DutchPrice(a, now)
	}
	return a.CurrentPrice
}
