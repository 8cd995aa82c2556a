package service

import (
	"context"
	"time"

	"auction-service/internal/models"
	"auction-service/internal/store"
)

// Store is the persistence surface the auction services depend on.
// *store.Store is the production implementation; tests substitute an
// in-memory fake.
type Store interface {
	CreateAuction(ctx context.Context, a *models.Auction) error
	GetAuctionByID(ctx context.Context, id string) (*models.Auction, error)
	ListAuctions(ctx context.Context, f store.ListFilter) ([]models.Auction, error)
	ListOpenAuctions(ctx context.Context) ([]models.Auction, error)
	AcceptBidTx(ctx context.Context, a *models.Auction, bid *models.Bid, newStatus models.Status) error
	UpdateStatusCAS(ctx context.Context, id string, from, to models.Status) (bool, error)
	CancelAuctionCAS(ctx context.Context, id string, version int64) (bool, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetLastBid(ctx context.Context, auctionID string) (*models.Bid, error)
	ToggleWatch(ctx context.Context, auctionID, bidderID string) (bool, error)
	ListWatchedAuctions(ctx context.Context, bidderID string) ([]models.Auction, error)
	GetBidderByToken(ctx context.Context, token string) (*models.Bidder, error)
}

// EventPublisher pushes domain events onto the live update feed.
type EventPublisher interface {
	PublishBidAccepted(ctx context.Context, event *models.BidAcceptedEvent) error
	PublishStatusChanged(ctx context.Context, event *models.StatusChangedEvent) error
}

// DistLocker is the cross-instance per-auction lock. Optional; a single
// instance relies on the in-process lock alone.
type DistLocker interface {
	AcquireAuctionLock(ctx context.Context, auctionID string, ttl time.Duration) (string, bool, error)
	ReleaseAuctionLock(ctx context.Context, auctionID, token string) error
}

// IdentityCache caches resolved caller identities.
type IdentityCache interface {
	GetCachedBidder(ctx context.Context, token string) (*models.Bidder, error)
	CacheBidder(ctx context.Context, token string, bidder *models.Bidder, ttl time.Duration) error
}
