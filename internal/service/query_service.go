package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"auction-service/internal/auction"
	"auction-service/internal/clock"
	"auction-service/internal/models"
	"auction-service/internal/store"
	"auction-service/internal/util"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// QueryService is the read-only façade over the store. Every auction it
// returns has its status recomputed live through the evaluator, never
// served from the possibly-stale stored column, so readers see
// time-accurate state even between sweep ticks.
type QueryService struct {
	store            Store
	clock            clock.Clock
	endingSoonWindow time.Duration
}

// NewQueryService creates a new query façade.
func NewQueryService(st Store, clk clock.Clock, endingSoonWindow time.Duration) *QueryService {
	if endingSoonWindow == 0 {
		endingSoonWindow = auction.DefaultEndingSoonWindow
	}
	return &QueryService{store: st, clock: clk, endingSoonWindow: endingSoonWindow}
}

// QueryFilter narrows a listing. Status matches the live-evaluated status;
// Query fuzzy-matches title and description.
type QueryFilter struct {
	Status models.Status
	Type   models.AuctionType
	Query  string
	Limit  int
}

// auctionCorpus adapts a slice of auctions for fuzzy matching.
type auctionCorpus []models.Auction

func (c auctionCorpus) String(i int) string {
	return c[i].Title + " " + c[i].Description
}

func (c auctionCorpus) Len() int { return len(c) }

// List returns filtered auction summaries with live-evaluated state.
func (q *QueryService) List(ctx context.Context, f QueryFilter) ([]models.Auction, error) {
	ctx, span := util.StartSpan(ctx, "QueryService.List")
	defer span.End()

	// The limit is pushed down to SQL only when nothing is filtered after
	// the fetch. Status and free-text matching run against live-evaluated
	// rows, so limiting the fetch first could starve the page of matches
	// that a stale stored status hides.
	storeFilter := store.ListFilter{Type: f.Type}
	if f.Status == "" && f.Query == "" {
		storeFilter.Limit = f.Limit
	}

	auctions, err := q.store.ListAuctions(ctx, storeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}

	now := q.clock.Now()
	filtered := auctions[:0]
	for i := range auctions {
		q.applyLiveState(&auctions[i], now)
		if f.Status != "" && auctions[i].Status != f.Status {
			continue
		}
		filtered = append(filtered, auctions[i])
	}

	if f.Query != "" {
		matches := fuzzy.FindFrom(f.Query, auctionCorpus(filtered))
		sort.Stable(matches)
		ranked := make([]models.Auction, 0, len(matches))
		for _, m := range matches {
			ranked = append(ranked, filtered[m.Index])
		}
		filtered = ranked
	}

	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, nil
}

// Get returns one auction with its full bid history.
func (q *QueryService) Get(ctx context.Context, auctionID string) (*models.Auction, []models.Bid, error) {
	ctx, span := util.StartSpan(ctx, "QueryService.Get")
	defer span.End()

	a, err := q.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
		}
		return nil, nil, err
	}
	q.applyLiveState(a, q.clock.Now())

	bids, err := q.store.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bids: %w", err)
	}

	return a, bids, nil
}

// ListWatched returns the auctions a bidder watches, live-evaluated.
func (q *QueryService) ListWatched(ctx context.Context, bidderID string) ([]models.Auction, error) {
	auctions, err := q.store.ListWatchedAuctions(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched auctions: %w", err)
	}

	now := q.clock.Now()
	for i := range auctions {
		q.applyLiveState(&auctions[i], now)
	}
	return auctions, nil
}

// Snapshot builds the current-state event a new feed subscriber receives
// before any incremental events.
func (q *QueryService) Snapshot(ctx context.Context, auctionID string) (*models.SnapshotEvent, error) {
	a, err := q.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("auction %s: %w", auctionID, ErrAuctionNotFound)
		}
		return nil, err
	}

	now := q.clock.Now()
	q.applyLiveState(a, now)

	return &models.SnapshotEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeSnapshot,
			AuctionID: a.ID,
			Timestamp: now,
		},
		Status:       a.Status,
		CurrentPrice: a.CurrentPrice,
		TotalBids:    a.TotalBids,
		WatchCount:   a.WatchCount,
	}, nil
}

// applyLiveState overwrites the stored status and, for an open Dutch
// auction, the displayed price with their clock-accurate values.
func (q *QueryService) applyLiveState(a *models.Auction, now time.Time) {
	a.Status = auction.Evaluate(a, now, q.endingSoonWindow)
	a.CurrentPrice = auction.DisplayPrice(a, now)
}
