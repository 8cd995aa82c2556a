package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"auction-service/internal/models"
	"auction-service/internal/util"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

const (
	// defaultBufferSize is the per-subscriber channel depth. A subscriber
	// that falls this far behind is disconnected rather than allowed to
	// stall the broadcast path.
	defaultBufferSize = 32

	// defaultDedupSize is how many recent event ids each subscriber
	// remembers. The broker delivers at least once, so replays inside
	// this window are silently dropped.
	defaultDedupSize = 512
)

// Event is one serialized feed event, ready to write to a subscriber.
type Event struct {
	ID        string
	Type      string
	AuctionID string
	Data      []byte
}

// SnapshotFunc builds the current-state event a new subscriber receives
// before its incremental stream starts.
type SnapshotFunc func(ctx context.Context, auctionID string) (*models.SnapshotEvent, error)

// Subscriber is one live feed connection for a single auction.
type Subscriber struct {
	auctionID string
	ch        chan Event
	seen      *lru.Cache

	// pending buffers events fanned out while the join snapshot is still
	// being built; Subscribe flushes it behind the snapshot. Both fields
	// are guarded by the hub mutex.
	pending []Event
	dropped bool

	once sync.Once
}

// Events returns the subscriber's delivery channel. The hub closes it
// when the subscriber is dropped; the client is expected to reconnect
// and pick up a fresh snapshot.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// AuctionID returns the auction this subscriber follows.
func (s *Subscriber) AuctionID() string {
	return s.auctionID
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub fans auction events out to live subscribers. Delivery from the
// broker is at-least-once; the hub de-duplicates per subscriber by event
// id, so each subscriber sees an event at most once per connection.
type Hub struct {
	mu         sync.Mutex
	subs       map[string]map[*Subscriber]struct{}
	snapshot   SnapshotFunc
	bufferSize int
	dedupSize  int
	logger     *zap.Logger
}

// NewHub creates a new feed hub.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		subs:       make(map[string]map[*Subscriber]struct{}),
		snapshot:   snapshot,
		bufferSize: defaultBufferSize,
		dedupSize:  defaultDedupSize,
		logger:     util.GetLogger(),
	}
}

// Subscribe registers a new subscriber for an auction. The snapshot of
// the auction's current state is already queued on the returned
// subscriber's channel, ahead of any incremental events.
//
// Registration happens before the snapshot read: an event fanned out
// while the snapshot is being built is buffered and flushed behind the
// snapshot instead of being lost. If the snapshot already reflects such
// an event the subscriber sees it twice in different shapes, which the
// event-id dedup and state-based snapshot make harmless.
func (h *Hub) Subscribe(ctx context.Context, auctionID string) (*Subscriber, error) {
	seen, err := lru.New(h.dedupSize)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		auctionID: auctionID,
		ch:        make(chan Event, h.bufferSize),
		seen:      seen,
		pending:   make([]Event, 0, 4),
	}

	h.mu.Lock()
	set, ok := h.subs[auctionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[auctionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	util.FeedSubscribers.Inc()

	snap, err := h.snapshot(ctx, auctionID)
	if err != nil {
		h.Unsubscribe(sub)
		return nil, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		h.Unsubscribe(sub)
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	h.mu.Lock()
	if !sub.dropped {
		// Nothing has been sent yet, so the buffered channel cannot be
		// full here.
		sub.ch <- Event{
			ID:        snap.EventID,
			Type:      models.EventTypeSnapshot,
			AuctionID: auctionID,
			Data:      data,
		}
		for _, ev := range sub.pending {
			if sub.dropped {
				break
			}
			h.deliverLocked(sub, ev)
		}
	}
	sub.pending = nil
	h.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// for a subscriber the hub already dropped.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	removed := h.removeLocked(sub)
	h.mu.Unlock()

	sub.close()
	if removed {
		util.FeedSubscribers.Dec()
	}
}

// BroadcastBidAccepted fans a BidAccepted event out to the auction's
// subscribers.
func (h *Hub) BroadcastBidAccepted(event *models.BidAcceptedEvent) {
	h.broadcast(event.BaseEvent, event)
}

// BroadcastStatusChanged fans a StatusChanged event out to the auction's
// subscribers.
func (h *Hub) BroadcastStatusChanged(event *models.StatusChangedEvent) {
	h.broadcast(event.BaseEvent, event)
}

func (h *Hub) broadcast(base models.BaseEvent, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal feed event",
			zap.String("event_id", base.EventID),
			zap.Error(err))
		return
	}
	ev := Event{
		ID:        base.EventID,
		Type:      base.EventType,
		AuctionID: base.AuctionID,
		Data:      data,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[ev.AuctionID] {
		if sub.seen.Contains(ev.ID) {
			continue
		}
		sub.seen.Add(ev.ID, struct{}{})

		if sub.pending != nil {
			sub.pending = append(sub.pending, ev)
			continue
		}
		h.deliverLocked(sub, ev)
	}
}

// deliverLocked sends one event to a subscriber without blocking. Caller
// holds h.mu.
func (h *Hub) deliverLocked(sub *Subscriber, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		// The subscriber is not draining its channel. Drop it; a
		// reconnect starts over with a fresh snapshot, so no state
		// is lost.
		h.removeLocked(sub)
		sub.close()
		util.FeedSubscribers.Dec()
		util.FeedEventsDroppedTotal.Inc()
		h.logger.Warn("Dropped slow feed subscriber",
			zap.String("auction_id", ev.AuctionID))
	}
}

// removeLocked deletes a subscriber from its auction's set. Caller holds
// h.mu.
func (h *Hub) removeLocked(sub *Subscriber) bool {
	set, ok := h.subs[sub.auctionID]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	sub.dropped = true
	if len(set) == 0 {
		delete(h.subs, sub.auctionID)
	}
	return true
}

// SubscriberCount reports the number of live subscribers for an auction.
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[auctionID])
}
