package redis

import (
	"context"
	"encoding/json"

	"bid-relay/internal/domain"

	"github.com/go-redis/redis/v8"
)

const bidUpdatesChannel = "bid_updates"

// relayEnvelope tags every published update with the publishing instance so
// subscribers can skip their own events.
type relayEnvelope struct {
	Instance  string            `json:"instance"`
	AuctionID string            `json:"auctionId"`
	Update    *domain.BidUpdate `json:"update"`
}

// EventPublisher pushes accepted bids onto a Redis pub/sub channel so peer
// relay instances can fan them out to their own subscribers.
type EventPublisher struct {
	client     *redis.Client
	instanceID string
}

func NewEventPublisher(client *redis.Client, instanceID string) *EventPublisher {
	return &EventPublisher{
		client:     client,
		instanceID: instanceID,
	}
}

func (p *EventPublisher) PublishBidUpdate(ctx context.Context, auctionID string, update *domain.BidUpdate) error {
	data, err := json.Marshal(relayEnvelope{
		Instance:  p.instanceID,
		AuctionID: auctionID,
		Update:    update,
	})
	if err != nil {
		return err
	}

	return p.client.Publish(ctx, bidUpdatesChannel, data).Err()
}
