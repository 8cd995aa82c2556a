package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-service/internal/clock"
	"auction-service/internal/models"
	"auction-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sweepStore is the minimal in-memory store surface the sweep exercises.
type sweepStore struct {
	mu       sync.Mutex
	auctions map[string]*models.Auction
	lastBid  map[string]*models.Bid
}

func newSweepStore() *sweepStore {
	return &sweepStore{
		auctions: make(map[string]*models.Auction),
		lastBid:  make(map[string]*models.Bid),
	}
}

func (s *sweepStore) add(a *models.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.auctions[a.ID] = &cp
}

func (s *sweepStore) ListOpenAuctions(context.Context) ([]models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Auction
	for _, a := range s.auctions {
		if !a.Status.Terminal() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *sweepStore) UpdateStatusCAS(_ context.Context, id string, from, to models.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok || a.Status != from || a.Cancelled {
		return false, nil
	}
	a.Status = to
	a.Version++
	return true, nil
}

func (s *sweepStore) GetLastBid(_ context.Context, auctionID string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.lastBid[auctionID]
	if !ok {
		return nil, fmt.Errorf("bids for auction %s: %w", auctionID, store.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *sweepStore) status(id string) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auctions[id].Status
}

func (s *sweepStore) CreateAuction(context.Context, *models.Auction) error { panic("unused") }
func (s *sweepStore) GetAuctionByID(context.Context, string) (*models.Auction, error) {
	panic("unused")
}
func (s *sweepStore) ListAuctions(context.Context, store.ListFilter) ([]models.Auction, error) {
	panic("unused")
}
func (s *sweepStore) AcceptBidTx(context.Context, *models.Auction, *models.Bid, models.Status) error {
	panic("unused")
}
func (s *sweepStore) CancelAuctionCAS(context.Context, string, int64) (bool, error) {
	panic("unused")
}
func (s *sweepStore) GetBidsByAuction(context.Context, string) ([]models.Bid, error) {
	panic("unused")
}
func (s *sweepStore) ToggleWatch(context.Context, string, string) (bool, error) { panic("unused") }
func (s *sweepStore) ListWatchedAuctions(context.Context, string) ([]models.Auction, error) {
	panic("unused")
}
func (s *sweepStore) GetBidderByToken(context.Context, string) (*models.Bidder, error) {
	panic("unused")
}

type recordingPublisher struct {
	mu     sync.Mutex
	status []*models.StatusChangedEvent
}

func (p *recordingPublisher) PublishBidAccepted(context.Context, *models.BidAcceptedEvent) error {
	return nil
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, e *models.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, e)
	return nil
}

func (p *recordingPublisher) statusEvents() []*models.StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.StatusChangedEvent(nil), p.status...)
}

func TestSweep_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	st := newSweepStore()
	pub := &recordingPublisher{}

	upcoming := &models.Auction{
		ID:        uuid.NewString(),
		Type:      models.AuctionTypeTraditional,
		Status:    models.StatusUpcoming,
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(2 * time.Hour),
	}
	active := &models.Auction{
		ID:        uuid.NewString(),
		Type:      models.AuctionTypeTraditional,
		Status:    models.StatusActive,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(20 * time.Minute),
	}
	untouched := &models.Auction{
		ID:        uuid.NewString(),
		Type:      models.AuctionTypeTraditional,
		Status:    models.StatusActive,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(3 * time.Hour),
	}
	st.add(upcoming)
	st.add(active)
	st.add(untouched)

	w := NewSweepWorker(st, pub, clk, time.Second, 30*time.Minute)
	w.Sweep(context.Background())

	assert.Equal(t, models.StatusActive, st.status(upcoming.ID))
	assert.Equal(t, models.StatusEndingSoon, st.status(active.ID))
	assert.Equal(t, models.StatusActive, st.status(untouched.ID))

	events := pub.statusEvents()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.NotEqual(t, models.StatusEnded, e.NewStatus)
		assert.Nil(t, e.WinnerID)
	}
}

func TestSweep_EndWithWinnerHandoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	st := newSweepStore()
	pub := &recordingPublisher{}

	a := &models.Auction{
		ID:        uuid.NewString(),
		Type:      models.AuctionTypeTraditional,
		Status:    models.StatusEndingSoon,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-time.Minute),
	}
	st.add(a)
	st.lastBid[a.ID] = &models.Bid{
		ID:         uuid.NewString(),
		AuctionID:  a.ID,
		BidderID:   "b-7",
		BidderName: "Seventh Bidder",
		Amount:     131000,
	}

	w := NewSweepWorker(st, pub, clk, time.Second, 30*time.Minute)
	w.Sweep(context.Background())

	assert.Equal(t, models.StatusEnded, st.status(a.ID))

	events := pub.statusEvents()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, models.StatusEndingSoon, e.OldStatus)
	assert.Equal(t, models.StatusEnded, e.NewStatus)
	require.NotNil(t, e.FinalPrice)
	assert.Equal(t, int64(131000), *e.FinalPrice)
	require.NotNil(t, e.WinnerID)
	assert.Equal(t, "b-7", *e.WinnerID)
}

func TestSweep_EndWithoutBids(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	st := newSweepStore()
	pub := &recordingPublisher{}

	a := &models.Auction{
		ID:        uuid.NewString(),
		Type:      models.AuctionTypeReverse,
		Status:    models.StatusActive,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-time.Hour),
	}
	st.add(a)

	w := NewSweepWorker(st, pub, clk, time.Second, 30*time.Minute)
	w.Sweep(context.Background())

	events := pub.statusEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusEnded, events[0].NewStatus)
	assert.Nil(t, events[0].FinalPrice)
	assert.Nil(t, events[0].WinnerID)
}

func TestSweep_SkipsRacedTransition(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	st := newSweepStore()
	pub := &recordingPublisher{}

	// The listing snapshot says ACTIVE but the row is cancelled by the
	// time the guarded update runs. The stale snapshot must not publish.
	a := &models.Auction{
		ID:        uuid.NewString(),
		Type:      models.AuctionTypeTraditional,
		Status:    models.StatusActive,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-time.Minute),
	}
	st.add(a)
	stale := *a
	st.mu.Lock()
	st.auctions[a.ID].Status = models.StatusCancelled
	st.auctions[a.ID].Cancelled = true
	st.mu.Unlock()

	w := NewSweepWorker(st, pub, clk, time.Second, 30*time.Minute)
	w.sweepOne(context.Background(), &stale, clk.Now())

	assert.Equal(t, models.StatusCancelled, st.status(a.ID))
	assert.Empty(t, pub.statusEvents())
}
