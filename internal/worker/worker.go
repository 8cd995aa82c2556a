package worker

import (
	"context"
	"errors"
	"time"

	"auction-service/internal/auction"
	"auction-service/internal/broker"
	"auction-service/internal/clock"
	"auction-service/internal/feed"
	"auction-service/internal/models"
	"auction-service/internal/service"
	"auction-service/internal/store"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedWorker consumes auction events from the broker and fans them out
// to the live update feed hub.
type FeedWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewFeedWorker creates a new feed worker bound to a hub.
func NewFeedWorker(consumer *broker.Consumer, hub *feed.Hub) *FeedWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnBidAccepted(func(_ context.Context, event *models.BidAcceptedEvent) error {
		hub.BroadcastBidAccepted(event)
		return nil
	})
	eventHandler.OnStatusChanged(func(_ context.Context, event *models.StatusChangedEvent) error {
		hub.BroadcastStatusChanged(event)
		return nil
	})

	return &FeedWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes messages until the context is cancelled.
func (w *FeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting feed worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer.
func (w *FeedWorker) Stop() error {
	w.logger.Info("Stopping feed worker")
	return w.consumer.Close()
}

// SweepWorker periodically re-evaluates open auctions and persists any
// status transitions the clock has caused. Reads never depend on the
// sweep; it exists so stored state converges and so transitions produce
// feed events.
type SweepWorker struct {
	store            service.Store
	publisher        service.EventPublisher
	clock            clock.Clock
	interval         time.Duration
	endingSoonWindow time.Duration
	logger           *zap.Logger
}

// NewSweepWorker creates a new sweep worker.
func NewSweepWorker(st service.Store, publisher service.EventPublisher, clk clock.Clock, interval, endingSoonWindow time.Duration) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if endingSoonWindow <= 0 {
		endingSoonWindow = auction.DefaultEndingSoonWindow
	}
	return &SweepWorker{
		store:            st,
		publisher:        publisher,
		clock:            clk,
		interval:         interval,
		endingSoonWindow: endingSoonWindow,
		logger:           util.GetLogger(),
	}
}

// Start runs sweep passes until the context is cancelled.
func (w *SweepWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all open auctions.
func (w *SweepWorker) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		util.SweepLatency.Observe(time.Since(start).Seconds())
	}()

	auctions, err := w.store.ListOpenAuctions(ctx)
	if err != nil {
		w.logger.Error("Sweep failed to list open auctions", zap.Error(err))
		return
	}

	now := w.clock.Now()
	for i := range auctions {
		w.sweepOne(ctx, &auctions[i], now)
	}
}

func (w *SweepWorker) sweepOne(ctx context.Context, a *models.Auction, now time.Time) {
	next := auction.Evaluate(a, now, w.endingSoonWindow)
	if next == a.Status {
		return
	}
	if !models.CanTransition(a.Status, next) {
		// Stored state moved underneath us, most likely a concurrent bid
		// commit or cancel. The next pass sees the fresh row.
		return
	}

	// The guarded update bumps the version, so a bid commit racing this
	// transition conflicts and re-reads instead of resurrecting the old
	// status.
	applied, err := w.store.UpdateStatusCAS(ctx, a.ID, a.Status, next)
	if err != nil {
		w.logger.Error("Sweep transition failed",
			zap.String("auction_id", a.ID),
			zap.String("to_status", string(next)),
			zap.Error(err))
		return
	}
	if !applied {
		return
	}

	util.SweepTransitionsTotal.WithLabelValues(string(next)).Inc()
	w.logger.Info("Auction status transitioned",
		zap.String("auction_id", a.ID),
		zap.String("from_status", string(a.Status)),
		zap.String("to_status", string(next)))

	w.publishTransition(ctx, a, next, now)
}

func (w *SweepWorker) publishTransition(ctx context.Context, a *models.Auction, next models.Status, now time.Time) {
	event := &models.StatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeStatusChanged,
			AuctionID: a.ID,
			Timestamp: now,
		},
		OldStatus: a.Status,
		NewStatus: next,
	}

	if next == models.StatusEnded {
		// Hand the winning bid to downstream settlement. An auction that
		// ends without bids carries no winner.
		winner, err := w.store.GetLastBid(ctx, a.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			w.logger.Error("Failed to load winning bid",
				zap.String("auction_id", a.ID), zap.Error(err))
		} else if winner != nil {
			event.FinalPrice = &winner.Amount
			event.WinnerID = &winner.BidderID
			event.WinnerName = &winner.BidderName
		}
	}

	if err := w.publisher.PublishStatusChanged(ctx, event); err != nil {
		w.logger.Error("Failed to publish StatusChanged event",
			zap.String("auction_id", a.ID), zap.Error(err))
	}
}
