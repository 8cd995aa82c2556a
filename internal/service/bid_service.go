package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-service/internal/auction"
	"auction-service/internal/clock"
	"auction-service/internal/models"
	"auction-service/internal/store"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BidServiceConfig holds the acceptance service's tuning knobs.
type BidServiceConfig struct {
	EndingSoonWindow time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	LockTTL          time.Duration
}

func (c *BidServiceConfig) applyDefaults() {
	if c.EndingSoonWindow == 0 {
		c.EndingSoonWindow = auction.DefaultEndingSoonWindow
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 25 * time.Millisecond
	}
	if c.LockTTL == 0 {
		c.LockTTL = 10 * time.Second
	}
}

// BidService is the bid acceptance service: the single serialization point
// for bid submissions. No two bids on the same auction are ever
// validated-and-committed concurrently.
type BidService struct {
	store     Store
	publisher EventPublisher
	clock     clock.Clock
	locks     *auctionLocks
	dlock     DistLocker // nil when running a single instance
	cfg       BidServiceConfig
	logger    *zap.Logger
}

// NewBidService creates a new bid acceptance service. dlock may be nil.
func NewBidService(st Store, publisher EventPublisher, clk clock.Clock, dlock DistLocker, cfg BidServiceConfig) *BidService {
	cfg.applyDefaults()
	return &BidService{
		store:     st,
		publisher: publisher,
		clock:     clk,
		locks:     newAuctionLocks(),
		dlock:     dlock,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// PlaceBidResult is the definite outcome of a bid submission: accepted with
// the new price, or rejected with the specific reason. Transient failures
// surface as an error instead, never as a silent third state.
type PlaceBidResult struct {
	Accepted bool                 `json:"accepted"`
	BidID    string               `json:"bid_id,omitempty"`
	NewPrice int64                `json:"new_price,omitempty"`
	Reason   auction.RejectReason `json:"reason,omitempty"`
}

// PlaceBid validates and commits one bid. The sequence runs entirely inside
// the per-auction critical section: re-read the authoritative state,
// re-evaluate status against the clock authority, validate, commit
// atomically with an optimistic version guard, publish. Version conflicts
// and persistence failures are retried with backoff up to a bounded count.
func (s *BidService) PlaceBid(ctx context.Context, auctionID string, bidder *models.Bidder, amount int64) (*PlaceBidResult, error) {
	ctx, span := util.StartSpan(ctx, "BidService.PlaceBid")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PlaceBidLatency.Observe(time.Since(start).Seconds())
	}()

	s.locks.Lock(auctionID)
	defer s.locks.Unlock(auctionID)

	if s.dlock != nil {
		token, err := s.acquireDistLock(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := s.dlock.ReleaseAuctionLock(ctx, auctionID, token); err != nil {
				s.logger.Warn("Failed to release auction lock",
					zap.String("auction_id", auctionID), zap.Error(err))
			}
		}()
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			util.BidCommitRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}

		result, err := s.tryPlaceBid(ctx, auctionID, bidder, amount)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, err
		}
		lastErr = err
	}

	if errors.Is(lastErr, store.ErrVersionConflict) {
		util.BidsTransientErrorsTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("place bid on auction %s: %w", auctionID, ErrConflict)
	}
	util.BidsTransientErrorsTotal.WithLabelValues("unavailable").Inc()
	s.logger.Error("Bid commit exhausted persistence retries",
		zap.String("auction_id", auctionID), zap.Error(lastErr))
	return nil, fmt.Errorf("place bid on auction %s: %w: %v", auctionID, ErrUnavailable, lastErr)
}

// tryPlaceBid runs one read-validate-commit attempt.
func (s *BidService) tryPlaceBid(ctx context.Context, auctionID string, bidder *models.Bidder, amount int64) (*PlaceBidResult, error) {
	a, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
		}
		return nil, err
	}

	now := s.clock.Now()
	status := auction.Evaluate(a, now, s.cfg.EndingSoonWindow)

	if rej := auction.ValidateBid(a, status, amount, now); rej != nil {
		util.BidsRejectedTotal.WithLabelValues(string(rej.Reason)).Inc()
		s.logger.Info("Bid rejected",
			zap.String("auction_id", auctionID),
			zap.String("bidder_id", bidder.ID),
			zap.Int64("amount", amount),
			zap.String("reason", string(rej.Reason)))
		return &PlaceBidResult{Accepted: false, Reason: rej.Reason}, nil
	}

	// Dutch bids commit at the server-computed displayed price, whatever
	// (higher) tick the client saw.
	commitPrice := amount
	newStatus := status
	if a.Type == models.AuctionTypeDutch {
		commitPrice = auction.DutchPrice(a, now)
		newStatus = models.StatusEnded
	}

	// Server-assigned acceptance time, strictly after the previous bid's so
	// no two bids on one auction ever share a timestamp. Arrival order at
	// the critical section is the tie-break, never client time.
	acceptedAt := now
	if a.LastBidAt != nil && !acceptedAt.After(*a.LastBidAt) {
		acceptedAt = a.LastBidAt.Add(time.Microsecond)
	}

	bid := &models.Bid{
		ID:         uuid.NewString(),
		AuctionID:  a.ID,
		BidderID:   bidder.ID,
		BidderName: bidder.DisplayName,
		Amount:     commitPrice,
		AcceptedAt: acceptedAt,
	}

	if err := s.store.AcceptBidTx(ctx, a, bid, newStatus); err != nil {
		return nil, err
	}

	util.BidsAcceptedTotal.WithLabelValues(string(a.Type)).Inc()
	s.logger.Info("Bid accepted",
		zap.String("auction_id", a.ID),
		zap.String("bid_id", bid.ID),
		zap.String("bidder_id", bidder.ID),
		zap.Int64("new_price", commitPrice))

	s.publishBidAccepted(ctx, a, bid)
	if newStatus == models.StatusEnded && status != models.StatusEnded {
		s.publishAuctionEnded(ctx, a, bid, status)
	}

	return &PlaceBidResult{Accepted: true, BidID: bid.ID, NewPrice: commitPrice}, nil
}

func (s *BidService) acquireDistLock(ctx context.Context, auctionID string) (string, error) {
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		token, ok, err := s.dlock.AcquireAuctionLock(ctx, auctionID, s.cfg.LockTTL)
		if err != nil {
			return "", fmt.Errorf("auction lock: %w: %v", ErrUnavailable, err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt+1)):
		}
	}
	return "", fmt.Errorf("auction %s is busy: %w", auctionID, ErrConflict)
}

func (s *BidService) publishBidAccepted(ctx context.Context, a *models.Auction, bid *models.Bid) {
	event := &models.BidAcceptedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeBidAccepted,
			AuctionID: a.ID,
			Timestamp: bid.AcceptedAt,
		},
		BidID:      bid.ID,
		BidderID:   bid.BidderID,
		BidderName: bid.BidderName,
		Amount:     bid.Amount,
		NewPrice:   bid.Amount,
		TotalBids:  a.TotalBids + 1,
	}

	if err := s.publisher.PublishBidAccepted(ctx, event); err != nil {
		s.logger.Error("Failed to publish BidAccepted event",
			zap.String("auction_id", a.ID), zap.Error(err))
	}
}

// publishAuctionEnded announces the Dutch instant close, carrying the
// winning bid for the settlement handoff.
func (s *BidService) publishAuctionEnded(ctx context.Context, a *models.Auction, winner *models.Bid, oldStatus models.Status) {
	event := &models.StatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeStatusChanged,
			AuctionID: a.ID,
			Timestamp: s.clock.Now(),
		},
		OldStatus:  oldStatus,
		NewStatus:  models.StatusEnded,
		FinalPrice: &winner.Amount,
		WinnerID:   &winner.BidderID,
		WinnerName: &winner.BidderName,
	}

	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish StatusChanged event",
			zap.String("auction_id", a.ID), zap.Error(err))
	}
}
