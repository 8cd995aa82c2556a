package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-service/internal/models"
	"auction-service/internal/store"
)

// memStore is a concurrency-safe in-memory Store with the same optimistic
// concurrency semantics as the Postgres store. Test-only.
type memStore struct {
	mu       sync.Mutex
	auctions map[string]*models.Auction
	bids     map[string][]models.Bid
	watches  map[string]map[string]time.Time
	bidders  map[string]*models.Bidder // token -> bidder

	// Fault injection.
	conflictNext int   // next n AcceptBidTx calls fail with ErrVersionConflict
	acceptErr    error // every AcceptBidTx call fails with this
}

func newMemStore() *memStore {
	return &memStore{
		auctions: make(map[string]*models.Auction),
		bids:     make(map[string][]models.Bid),
		watches:  make(map[string]map[string]time.Time),
		bidders:  make(map[string]*models.Bidder),
	}
}

func (m *memStore) addAuction(a *models.Auction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.auctions[a.ID] = &cp
}

func (m *memStore) CreateAuction(_ context.Context, a *models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[a.ID]; ok {
		return fmt.Errorf("duplicate auction %s", a.ID)
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	m.auctions[a.ID] = &cp
	return nil
}

func (m *memStore) GetAuctionByID(_ context.Context, id string) (*models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, store.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAuctions(_ context.Context, f store.ListFilter) ([]models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Auction
	for _, a := range m.auctions {
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		out = append(out, *a)
	}
	// Newest first with the page cap, like the SQL store.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListOpenAuctions(_ context.Context) ([]models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Auction
	for _, a := range m.auctions {
		if !a.Status.Terminal() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) AcceptBidTx(_ context.Context, a *models.Auction, bid *models.Bid, newStatus models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acceptErr != nil {
		return m.acceptErr
	}
	if m.conflictNext > 0 {
		m.conflictNext--
		return store.ErrVersionConflict
	}

	current, ok := m.auctions[a.ID]
	if !ok {
		return fmt.Errorf("auction %s: %w", a.ID, store.ErrNotFound)
	}
	if current.Version != a.Version {
		return store.ErrVersionConflict
	}

	t := bid.AcceptedAt
	current.CurrentPrice = bid.Amount
	current.TotalBids++
	current.Status = newStatus
	current.LastBidAt = &t
	current.Version++
	current.UpdatedAt = time.Now().UTC()

	m.bids[a.ID] = append(m.bids[a.ID], *bid)
	return nil
}

func (m *memStore) UpdateStatusCAS(_ context.Context, id string, from, to models.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok || a.Status != from || a.Cancelled {
		return false, nil
	}
	a.Status = to
	a.Version++
	return true, nil
}

func (m *memStore) CancelAuctionCAS(_ context.Context, id string, version int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok || a.Version != version || a.Status.Terminal() {
		return false, nil
	}
	a.Cancelled = true
	a.Status = models.StatusCancelled
	a.Version++
	return true, nil
}

func (m *memStore) GetBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bid(nil), m.bids[auctionID]...), nil
}

func (m *memStore) GetLastBid(_ context.Context, auctionID string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bids := m.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("bids for auction %s: %w", auctionID, store.ErrNotFound)
	}
	cp := bids[len(bids)-1]
	return &cp, nil
}

func (m *memStore) ToggleWatch(_ context.Context, auctionID, bidderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[auctionID]
	if !ok {
		return false, fmt.Errorf("auction %s: %w", auctionID, store.ErrNotFound)
	}
	edges := m.watches[auctionID]
	if edges == nil {
		edges = make(map[string]time.Time)
		m.watches[auctionID] = edges
	}
	if _, watching := edges[bidderID]; watching {
		delete(edges, bidderID)
		a.WatchCount--
		return false, nil
	}
	edges[bidderID] = time.Now().UTC()
	a.WatchCount++
	return true, nil
}

func (m *memStore) ListWatchedAuctions(_ context.Context, bidderID string) ([]models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Auction
	for auctionID, edges := range m.watches {
		if _, ok := edges[bidderID]; ok {
			out = append(out, *m.auctions[auctionID])
		}
	}
	return out, nil
}

func (m *memStore) GetBidderByToken(_ context.Context, token string) (*models.Bidder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bidders[token]
	if !ok {
		return nil, fmt.Errorf("bidder token: %w", store.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

// fakePublisher records published events in order.
type fakePublisher struct {
	mu            sync.Mutex
	bidAccepted   []*models.BidAcceptedEvent
	statusChanged []*models.StatusChangedEvent
}

func (p *fakePublisher) PublishBidAccepted(_ context.Context, event *models.BidAcceptedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bidAccepted = append(p.bidAccepted, event)
	return nil
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, event *models.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, event)
	return nil
}

func (p *fakePublisher) bidEvents() []*models.BidAcceptedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.BidAcceptedEvent(nil), p.bidAccepted...)
}

func (p *fakePublisher) statusEvents() []*models.StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.StatusChangedEvent(nil), p.statusChanged...)
}
