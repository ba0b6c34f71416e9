package redis

import (
	"context"
	"encoding/json"

	"bid-relay/internal/domain"
	"bid-relay/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// EventSubscriber feeds bid updates published by peer relay instances into
// the local subscription registry.
type EventSubscriber struct {
	client     *redis.Client
	instanceID string
	log        logger.Logger
}

func NewEventSubscriber(client *redis.Client, instanceID string, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{
		client:     client,
		instanceID: instanceID,
		log:        log,
	}
}

// Run blocks until ctx is cancelled, re-broadcasting every remote update.
// Updates published by this instance are skipped; local broadcast already
// happened at intake time.
func (s *EventSubscriber) Run(ctx context.Context, broadcaster domain.Broadcaster) error {
	pubsub := s.client.Subscribe(ctx, bidUpdatesChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	s.log.Info("subscribed to peer bid updates", "channel", bidUpdatesChannel)

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			s.handleMessage(msg.Payload, broadcaster)

		case <-ctx.Done():
			s.log.Info("peer update subscriber stopped")
			return ctx.Err()
		}
	}
}

// handleMessage re-broadcasts one relayed payload. Envelopes published by
// this instance are skipped: the local broadcast already happened at intake
// time, and delivering again would duplicate the update for local subscribers.
func (s *EventSubscriber) handleMessage(payload string, broadcaster domain.Broadcaster) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		s.log.Error("failed to parse relayed update", "payload", payload, "error", err)
		return
	}

	if env.Instance == s.instanceID || env.Update == nil {
		return
	}

	broadcaster.Broadcast(env.AuctionID, env.Update)
}
