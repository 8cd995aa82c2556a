package models

import "time"

// AuctionType selects the price-discovery mechanics of an auction.
type AuctionType string

const (
	// AuctionTypeTraditional is an ascending-price auction; highest bid wins.
	AuctionTypeTraditional AuctionType = "TRADITIONAL"
	// AuctionTypeReverse is a descending-price auction; lowest bid above
	// reserve wins.
	AuctionTypeReverse AuctionType = "REVERSE"
	// AuctionTypeDutch decays the price on a fixed schedule; the first
	// bidder to accept the displayed price wins instantly.
	AuctionTypeDutch AuctionType = "DUTCH"
)

// Valid reports whether t is a known auction type.
func (t AuctionType) Valid() bool {
	switch t {
	case AuctionTypeTraditional, AuctionTypeReverse, AuctionTypeDutch:
		return true
	}
	return false
}

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusUpcoming   Status = "UPCOMING"
	StatusActive     Status = "ACTIVE"
	StatusEndingSoon Status = "ENDING_SOON"
	StatusEnded      Status = "ENDED"
	StatusCancelled  Status = "CANCELLED"
)

// statusRank orders the forward-only lifecycle. CANCELLED sits outside the
// ranking; it is reachable from any pre-ENDED state.
var statusRank = map[Status]int{
	StatusUpcoming:   0,
	StatusActive:     1,
	StatusEndingSoon: 2,
	StatusEnded:      3,
}

// CanTransition reports whether a stored status may move to next. Statuses
// only progress forward; they never regress.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusEnded || from == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Biddable reports whether bids may be placed while in s.
func (s Status) Biddable() bool {
	return s == StatusActive || s == StatusEndingSoon
}

// Auction is the aggregate record for one auction. Creation-time fields are
// immutable; only the Bid Acceptance Service mutates price/bids and only the
// Status Evaluator (sweep) mutates status. Version backs optimistic
// concurrency on the store.
type Auction struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	CreditRef   string      `db:"credit_ref" json:"credit_ref"`
	CreditValue int64       `db:"credit_value" json:"credit_value"`
	Type        AuctionType `db:"auction_type" json:"auction_type"`

	InitialPrice int64  `db:"initial_price" json:"initial_price"`
	PriceStep    int64  `db:"price_step" json:"price_step"`
	ReservePrice *int64 `db:"reserve_price" json:"reserve_price,omitempty"`

	// Dutch schedule: price drops DecayAmount every DecayIntervalSeconds
	// after start, floored at the reserve price.
	DecayAmount          int64 `db:"decay_amount" json:"decay_amount,omitempty"`
	DecayIntervalSeconds int64 `db:"decay_interval_seconds" json:"decay_interval_seconds,omitempty"`

	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatorID string    `db:"creator_id" json:"creator_id"`

	CurrentPrice int64      `db:"current_price" json:"current_price"`
	TotalBids    int        `db:"total_bids" json:"total_bids"`
	WatchCount   int        `db:"watch_count" json:"watch_count"`
	Status       Status     `db:"status" json:"status"`
	Cancelled    bool       `db:"cancelled" json:"cancelled"`
	LastBidAt    *time.Time `db:"last_bid_at" json:"last_bid_at,omitempty"`

	Version   int64     `db:"version" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Bid is an accepted bid. Immutable once recorded; AcceptedAt is
// server-assigned and strictly increasing per auction.
type Bid struct {
	ID         string    `db:"id" json:"id"`
	AuctionID  string    `db:"auction_id" json:"auction_id"`
	BidderID   string    `db:"bidder_id" json:"bidder_id"`
	BidderName string    `db:"bidder_name" json:"bidder_name"`
	Amount     int64     `db:"amount" json:"amount"`
	AcceptedAt time.Time `db:"accepted_at" json:"accepted_at"`
}

// Bidder is the identity the identity provider resolves a caller token to.
type Bidder struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
