package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"auction-service/internal/store"
	"auction-service/internal/util"

	"go.uber.org/zap"
)

// WatchService manages the bidder-auction watch relation. It is independent
// of auction mutation: toggling never touches price, bids or status.
type WatchService struct {
	store  Store
	logger *zap.Logger
}

// NewWatchService creates a new watch service.
func NewWatchService(st Store) *WatchService {
	return &WatchService{store: st, logger: util.GetLogger()}
}

// Toggle flips the watch edge for (auctionID, bidderID) and returns whether
// the bidder is watching afterwards.
func (w *WatchService) Toggle(ctx context.Context, auctionID, bidderID string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "WatchService.Toggle")
	defer span.End()

	if _, err := w.store.GetAuctionByID(ctx, auctionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
		}
		return false, err
	}

	watching, err := w.store.ToggleWatch(ctx, auctionID, bidderID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle watch: %w", err)
	}

	util.WatchTogglesTotal.WithLabelValues(strconv.FormatBool(watching)).Inc()
	w.logger.Info("Watch toggled",
		zap.String("auction_id", auctionID),
		zap.String("bidder_id", bidderID),
		zap.Bool("watching", watching))
	return watching, nil
}
