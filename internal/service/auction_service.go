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

// AuctionService handles operator-side auction lifecycle: creation and
// cancellation. Bids and status transitions belong to BidService and the
// sweep respectively.
type AuctionService struct {
	store            Store
	publisher        EventPublisher
	clock            clock.Clock
	endingSoonWindow time.Duration
	logger           *zap.Logger
}

// NewAuctionService creates a new auction lifecycle service.
func NewAuctionService(st Store, publisher EventPublisher, clk clock.Clock, endingSoonWindow time.Duration) *AuctionService {
	if endingSoonWindow == 0 {
		endingSoonWindow = auction.DefaultEndingSoonWindow
	}
	return &AuctionService{
		store:            st,
		publisher:        publisher,
		clock:            clk,
		endingSoonWindow: endingSoonWindow,
		logger:           util.GetLogger(),
	}
}

// CreateAuctionRequest carries the immutable creation-time fields.
type CreateAuctionRequest struct {
	Title                string             `json:"title" binding:"required"`
	Description          string             `json:"description"`
	CreditRef            string             `json:"credit_ref" binding:"required"`
	CreditValue          int64              `json:"credit_value" binding:"required,min=1"`
	Type                 models.AuctionType `json:"auction_type" binding:"required"`
	InitialPrice         int64              `json:"initial_price" binding:"required,min=1"`
	PriceStep            int64              `json:"price_step"`
	ReservePrice         *int64             `json:"reserve_price"`
	DecayAmount          int64              `json:"decay_amount"`
	DecayIntervalSeconds int64              `json:"decay_interval_seconds"`
	StartTime            time.Time          `json:"start_time" binding:"required"`
	EndTime              time.Time          `json:"end_time" binding:"required"`
}

func (r *CreateAuctionRequest) validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown auction type %q", ErrInvalidAuction, r.Type)
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidAuction)
	}

	switch r.Type {
	case models.AuctionTypeTraditional:
		if r.PriceStep <= 0 {
			return fmt.Errorf("%w: minimum increment must be positive", ErrInvalidAuction)
		}
		if r.ReservePrice != nil {
			return fmt.Errorf("%w: reserve price only applies to reverse and dutch auctions", ErrInvalidAuction)
		}
	case models.AuctionTypeReverse:
		if r.PriceStep <= 0 {
			return fmt.Errorf("%w: minimum decrement must be positive", ErrInvalidAuction)
		}
		if r.ReservePrice != nil && *r.ReservePrice >= r.InitialPrice {
			return fmt.Errorf("%w: reserve price must be below the initial price", ErrInvalidAuction)
		}
	case models.AuctionTypeDutch:
		if r.DecayAmount <= 0 || r.DecayIntervalSeconds <= 0 {
			return fmt.Errorf("%w: dutch auctions need a positive decay amount and interval", ErrInvalidAuction)
		}
		if r.ReservePrice != nil && *r.ReservePrice >= r.InitialPrice {
			return fmt.Errorf("%w: reserve price must be below the initial price", ErrInvalidAuction)
		}
	}
	return nil
}

// CreateAuction creates a new auction. The initial status comes from the
// evaluator: UPCOMING when the start time is in the future, otherwise
// ACTIVE (or ENDING_SOON for a short-fused auction).
func (s *AuctionService) CreateAuction(ctx context.Context, creatorID string, req *CreateAuctionRequest) (*models.Auction, error) {
	ctx, span := util.StartSpan(ctx, "AuctionService.CreateAuction")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	a := &models.Auction{
		ID:                   uuid.NewString(),
		Title:                req.Title,
		Description:          req.Description,
		CreditRef:            req.CreditRef,
		CreditValue:          req.CreditValue,
		Type:                 req.Type,
		InitialPrice:         req.InitialPrice,
		PriceStep:            req.PriceStep,
		ReservePrice:         req.ReservePrice,
		DecayAmount:          req.DecayAmount,
		DecayIntervalSeconds: req.DecayIntervalSeconds,
		StartTime:            req.StartTime.UTC(),
		EndTime:              req.EndTime.UTC(),
		CreatorID:            creatorID,
		CurrentPrice:         req.InitialPrice,
	}
	a.Status = auction.Evaluate(a, s.clock.Now(), s.endingSoonWindow)

	if err := s.store.CreateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	util.AuctionsCreatedTotal.Inc()
	s.logger.Info("Auction created",
		zap.String("auction_id", a.ID),
		zap.String("auction_type", string(a.Type)),
		zap.String("status", string(a.Status)))
	return a, nil
}

// CancelAuction terminally cancels an auction from any pre-ENDED state.
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID string) error {
	ctx, span := util.StartSpan(ctx, "AuctionService.CancelAuction")
	defer span.End()

	for attempt := 0; attempt < 3; attempt++ {
		a, err := s.store.GetAuctionByID(ctx, auctionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
			}
			return err
		}

		status := auction.Evaluate(a, s.clock.Now(), s.endingSoonWindow)
		if status.Terminal() {
			return fmt.Errorf("auction %s: %w", auctionID, ErrNotCancellable)
		}

		ok, err := s.store.CancelAuctionCAS(ctx, auctionID, a.Version)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race with a bid commit or the sweep; re-read and retry.
			continue
		}

		util.AuctionsCancelledTotal.Inc()
		s.logger.Info("Auction cancelled", zap.String("auction_id", auctionID))

		event := &models.StatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.NewString(),
				EventType: models.EventTypeStatusChanged,
				AuctionID: auctionID,
				Timestamp: s.clock.Now(),
			},
			OldStatus: status,
			NewStatus: models.StatusCancelled,
		}
		if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish StatusChanged event",
				zap.String("auction_id", auctionID), zap.Error(err))
		}
		return nil
	}

	return fmt.Errorf("cancel auction %s: %w", auctionID, ErrConflict)
}
