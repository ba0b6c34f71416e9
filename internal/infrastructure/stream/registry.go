package stream

import (
	"sync"

	"bid-relay/internal/domain"
	"bid-relay/pkg/logger"

	"github.com/google/uuid"
)

// Subscription is one live server-to-client channel for one auction.
// Owned exclusively by the Registry; handlers only read Events().
type Subscription struct {
	ID        uuid.UUID
	AuctionID string

	events    chan *domain.BidUpdate
	closeOnce sync.Once
}

// Events returns the channel bid updates are delivered on. The channel is
// closed when the subscription is removed from the registry.
func (s *Subscription) Events() <-chan *domain.BidUpdate {
	return s.events
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

// Registry tracks live subscriptions keyed by auction so a broadcast only
// touches the subscribers of that auction. Subscriptions per auction are kept
// in registration order. Safe for concurrent subscribe/unsubscribe/broadcast.
type Registry struct {
	mu      sync.RWMutex
	subs    map[string][]*Subscription
	bufSize int
	log     logger.Logger
}

func NewRegistry(bufSize int, log logger.Logger) *Registry {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Registry{
		subs:    make(map[string][]*Subscription),
		bufSize: bufSize,
		log:     log,
	}
}

// Subscribe registers a new subscription for an auction. Never fails;
// subscriptions never share channels.
func (r *Registry) Subscribe(auctionID string) *Subscription {
	sub := &Subscription{
		ID:        uuid.New(),
		AuctionID: auctionID,
		events:    make(chan *domain.BidUpdate, r.bufSize),
	}

	r.mu.Lock()
	r.subs[auctionID] = append(r.subs[auctionID], sub)
	r.mu.Unlock()

	r.log.Info("subscriber registered", "auction_id", auctionID, "subscription_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Idempotent and
// safe to call concurrently with Broadcast.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	removed := false
	if existing, ok := r.subs[sub.AuctionID]; ok {
		var remaining []*Subscription
		for _, s := range existing {
			if s.ID != sub.ID {
				remaining = append(remaining, s)
			} else {
				removed = true
			}
		}
		if len(remaining) == 0 {
			delete(r.subs, sub.AuctionID)
		} else {
			r.subs[sub.AuctionID] = remaining
		}
	}
	// Close under the lock so Broadcast can never send on a closed channel.
	sub.close()
	r.mu.Unlock()

	if removed {
		r.log.Info("subscriber removed", "auction_id", sub.AuctionID, "subscription_id", sub.ID)
	}
}

// Broadcast delivers an update to every current subscriber of the auction in
// registration order. A subscriber whose buffer is full (client gone or
// stalled) is dropped; delivery to the others is unaffected.
func (r *Registry) Broadcast(auctionID string, update *domain.BidUpdate) {
	var dropped []*Subscription

	r.mu.RLock()
	for _, sub := range r.subs[auctionID] {
		select {
		case sub.events <- update:
		default:
			dropped = append(dropped, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range dropped {
		r.log.Warn("dropping unresponsive subscriber",
			"auction_id", auctionID, "subscription_id", sub.ID)
		r.Unsubscribe(sub)
	}
}

// Counts reports the number of auctions with subscribers and the total
// subscriber count.
func (r *Registry) Counts() (auctions, subscribers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, subs := range r.subs {
		subscribers += len(subs)
	}
	return len(r.subs), subscribers
}
