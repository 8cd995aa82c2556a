package service

import (
	"context"
	"testing"
	"time"

	"auction-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryService_GetLiveStatus(t *testing.T) {
	clk, now := testClock()
	st := newMemStore()
	a := activeTraditional(now)
	a.Status = models.StatusUpcoming // stale stored status
	a.EndTime = now.Add(2 * time.Hour)
	st.addAuction(a)
	q := NewQueryService(st, clk, 0)
	ctx := context.Background()

	// The stored column is never trusted; the evaluator wins.
	got, bids, err := q.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Empty(t, bids)

	// Repeated reads with no bid or clock advance are identical.
	again, _, err := q.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Status, again.Status)
	assert.Equal(t, got.CurrentPrice, again.CurrentPrice)

	// The clock, not read traffic, moves the status.
	clk.Advance(3 * time.Hour)
	ended, _, err := q.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnded, ended.Status)
}

func TestQueryService_GetNotFound(t *testing.T) {
	clk, _ := testClock()
	q := NewQueryService(newMemStore(), clk, 0)

	_, _, err := q.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrAuctionNotFound)
}

func TestQueryService_DutchDisplayedPrice(t *testing.T) {
	clk, now := testClock()
	st := newMemStore()
	a := &models.Auction{
		ID:                   uuid.NewString(),
		Title:                "Dutch lot",
		Type:                 models.AuctionTypeDutch,
		InitialPrice:         250000,
		CurrentPrice:         250000,
		DecayAmount:          10000,
		DecayIntervalSeconds: 60,
		Status:               models.StatusActive,
		StartTime:            now.Add(-2 * time.Minute),
		EndTime:              now.Add(time.Hour),
	}
	st.addAuction(a)
	q := NewQueryService(st, clk, 0)

	got, _, err := q.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(230000), got.CurrentPrice)
}

func TestQueryService_ListFilters(t *testing.T) {
	clk, now := testClock()
	st := newMemStore()

	active := activeTraditional(now)
	active.Title = "Verified forestry carbon credits"
	st.addAuction(active)

	upcoming := activeTraditional(now)
	upcoming.ID = uuid.NewString()
	upcoming.Title = "Solar energy credits"
	upcoming.StartTime = now.Add(time.Hour)
	st.addAuction(upcoming)

	reverse := &models.Auction{
		ID:           uuid.NewString(),
		Title:        "Reverse wind credits",
		Type:         models.AuctionTypeReverse,
		InitialPrice: 500000,
		PriceStep:    5000,
		CurrentPrice: 500000,
		Status:       models.StatusActive,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
	}
	st.addAuction(reverse)

	q := NewQueryService(st, clk, 0)
	ctx := context.Background()

	all, err := q.List(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byStatus, err := q.List(ctx, QueryFilter{Status: models.StatusUpcoming})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, upcoming.ID, byStatus[0].ID)

	byType, err := q.List(ctx, QueryFilter{Type: models.AuctionTypeReverse})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, reverse.ID, byType[0].ID)

	byText, err := q.List(ctx, QueryFilter{Query: "forestry"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, active.ID, byText[0].ID)

	// Fuzzy matching tolerates partial terms.
	byText, err = q.List(ctx, QueryFilter{Query: "solr"})
	require.NoError(t, err)
	require.NotEmpty(t, byText)
	assert.Equal(t, upcoming.ID, byText[0].ID)
}

func TestQueryService_LimitAppliesAfterStatusFilter(t *testing.T) {
	clk, now := testClock()
	st := newMemStore()

	// The newest row does not match the status filter. A limit applied at
	// fetch time would return it alone and starve the page of the older
	// match.
	upcoming := activeTraditional(now)
	upcoming.Title = "Newest lot"
	upcoming.StartTime = now.Add(time.Hour)
	upcoming.CreatedAt = now
	st.addAuction(upcoming)

	active := activeTraditional(now)
	active.ID = uuid.NewString()
	active.Title = "Older lot"
	active.CreatedAt = now.Add(-time.Hour)
	st.addAuction(active)

	q := NewQueryService(st, clk, 0)

	got, err := q.List(context.Background(), QueryFilter{
		Status: models.StatusActive,
		Limit:  1,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)

	// The limit still trims the filtered result.
	got, err = q.List(context.Background(), QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWatchService_Toggle(t *testing.T) {
	_, now := testClock()
	st := newMemStore()
	a := activeTraditional(now)
	st.addAuction(a)
	w := NewWatchService(st)
	ctx := context.Background()

	watching, err := w.Toggle(ctx, a.ID, "b-1")
	require.NoError(t, err)
	assert.True(t, watching)

	watching, err = w.Toggle(ctx, a.ID, "b-1")
	require.NoError(t, err)
	assert.False(t, watching)

	_, err = w.Toggle(ctx, uuid.NewString(), "b-1")
	assert.ErrorIs(t, err, ErrAuctionNotFound)
}

func TestAuctionService_CreateAndCancel(t *testing.T) {
	clk, now := testClock()
	st := newMemStore()
	pub := &fakePublisher{}
	svc := NewAuctionService(st, pub, clk, 0)
	ctx := context.Background()

	created, err := svc.CreateAuction(ctx, "op-1", &CreateAuctionRequest{
		Title:        "New lot",
		CreditRef:    "CC-1",
		CreditValue:  100,
		Type:         models.AuctionTypeTraditional,
		InitialPrice: 100000,
		PriceStep:    1000,
		StartTime:    now.Add(time.Hour),
		EndTime:      now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUpcoming, created.Status)
	assert.Equal(t, int64(100000), created.CurrentPrice)

	require.NoError(t, svc.CancelAuction(ctx, created.ID))

	events := pub.statusEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusCancelled, events[0].NewStatus)

	// Cancellation is terminal.
	err = svc.CancelAuction(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestAuctionService_CreateValidation(t *testing.T) {
	clk, now := testClock()
	svc := NewAuctionService(newMemStore(), &fakePublisher{}, clk, 0)
	ctx := context.Background()
	reserve := int64(150000)

	tests := []struct {
		name string
		req  CreateAuctionRequest
	}{
		{
			name: "unknown_type",
			req: CreateAuctionRequest{
				Title: "x", CreditRef: "c", CreditValue: 1, Type: "ENGLISH",
				InitialPrice: 1000, PriceStep: 10,
				StartTime: now, EndTime: now.Add(time.Hour),
			},
		},
		{
			name: "end_before_start",
			req: CreateAuctionRequest{
				Title: "x", CreditRef: "c", CreditValue: 1, Type: models.AuctionTypeTraditional,
				InitialPrice: 1000, PriceStep: 10,
				StartTime: now.Add(time.Hour), EndTime: now,
			},
		},
		{
			name: "traditional_without_increment",
			req: CreateAuctionRequest{
				Title: "x", CreditRef: "c", CreditValue: 1, Type: models.AuctionTypeTraditional,
				InitialPrice: 1000,
				StartTime:    now, EndTime: now.Add(time.Hour),
			},
		},
		{
			name: "traditional_with_reserve",
			req: CreateAuctionRequest{
				Title: "x", CreditRef: "c", CreditValue: 1, Type: models.AuctionTypeTraditional,
				InitialPrice: 1000, PriceStep: 10, ReservePrice: &reserve,
				StartTime: now, EndTime: now.Add(time.Hour),
			},
		},
		{
			name: "dutch_without_schedule",
			req: CreateAuctionRequest{
				Title: "x", CreditRef: "c", CreditValue: 1, Type: models.AuctionTypeDutch,
				InitialPrice: 1000,
				StartTime:    now, EndTime: now.Add(time.Hour),
			},
		},
		{
			name: "reverse_reserve_above_initial",
			req: CreateAuctionRequest{
				Title: "x", CreditRef: "c", CreditValue: 1, Type: models.AuctionTypeReverse,
				InitialPrice: 100000, PriceStep: 10, ReservePrice: &reserve,
				StartTime: now, EndTime: now.Add(time.Hour),
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAuction(ctx, "op-1", &tc.req)
			assert.ErrorIs(t, err, ErrInvalidAuction)
		})
	}
}

func TestIdentityClient_Resolve(t *testing.T) {
	st := newMemStore()
	st.bidders["tok-1"] = &models.Bidder{ID: "b-1", DisplayName: "First Bidder"}
	ic := NewIdentityClient(st, nil)
	ctx := context.Background()

	bidder, err := ic.Resolve(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", bidder.ID)
	assert.Equal(t, "First Bidder", bidder.DisplayName)

	_, err = ic.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, ErrBidderNotFound)

	_, err = ic.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrBidderNotFound)
}
