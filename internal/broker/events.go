package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-service/internal/models"
	"auction-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes auction domain events to the live update feed.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishBidAccepted publishes a BidAccepted event.
func (ep *EventPublisher) PublishBidAccepted(ctx context.Context, event *models.BidAcceptedEvent) error {
	return ep.producer.PublishEvent(ctx, auctionKey(event.AuctionID), event)
}

// PublishStatusChanged publishes a StatusChanged event.
func (ep *EventPublisher) PublishStatusChanged(ctx context.Context, event *models.StatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, auctionKey(event.AuctionID), event)
}

func auctionKey(auctionID string) string {
	return fmt.Sprintf("auction-%s", auctionID)
}

// EventHandler routes incoming feed messages to typed callbacks.
type EventHandler struct {
	onBidAccepted   func(context.Context, *models.BidAcceptedEvent) error
	onStatusChanged func(context.Context, *models.StatusChangedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnBidAccepted registers a handler for BidAccepted events.
func (eh *EventHandler) OnBidAccepted(handler func(context.Context, *models.BidAcceptedEvent) error) {
	eh.onBidAccepted = handler
}

// OnStatusChanged registers a handler for StatusChanged events.
func (eh *EventHandler) OnStatusChanged(handler func(context.Context, *models.StatusChangedEvent) error) {
	eh.onStatusChanged = handler
}

// HandleMessage routes one message to the registered handler for its type.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch base.EventType {
	case models.EventTypeBidAccepted:
		if eh.onBidAccepted != nil {
			var event models.BidAcceptedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BidAccepted event: %w", err)
			}
			return eh.onBidAccepted(ctx, &event)
		}

	case models.EventTypeStatusChanged:
		if eh.onStatusChanged != nil {
			var event models.StatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StatusChanged event: %w", err)
			}
			return eh.onStatusChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", base.EventType))
	}

	return nil
}
