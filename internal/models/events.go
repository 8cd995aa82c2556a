package models

import "time"

// Event types carried on the live update feed.
const (
	EventTypeBidAccepted   = "BID_ACCEPTED"
	EventTypeStatusChanged = "STATUS_CHANGED"

	// EventTypeSnapshot is emitted hub-locally to a subscriber joining
	// mid-auction, before any incremental events. It never crosses the
	// broker.
	EventTypeSnapshot = "SNAPSHOT"
)

// BaseEvent contains common fields for all feed events. Consumers
// de-duplicate by EventID; delivery is at-least-once.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	AuctionID string    `json:"auction_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BidAcceptedEvent is published after a bid commits.
type BidAcceptedEvent struct {
	BaseEvent
	BidID      string `json:"bid_id"`
	BidderID   string `json:"bidder_id"`
	BidderName string `json:"bidder_name"`
	Amount     int64  `json:"amount"`
	NewPrice   int64  `json:"new_price"`
	TotalBids  int    `json:"total_bids"`
}

// StatusChangedEvent is published when the lifecycle status moves. On the
// transition to ENDED it carries the winning bid so a settlement
// collaborator can pick the auction up.
type StatusChangedEvent struct {
	BaseEvent
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`

	FinalPrice *int64  `json:"final_price,omitempty"`
	WinnerID   *string `json:"winner_id,omitempty"`
	WinnerName *string `json:"winner_name,omitempty"`
}

// SnapshotEvent is the current state of an auction, sent to a subscriber
// before its incremental stream starts.
type SnapshotEvent struct {
	BaseEvent
	Status       Status `json:"status"`
	CurrentPrice int64  `json:"current_price"`
	TotalBids    int    `json:"total_bids"`
	WatchCount   int    `json:"watch_count"`
}
