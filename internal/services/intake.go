package services

import (
	"context"
	"sync"
	"time"

	"bid-relay/internal/domain"
	"bid-relay/pkg/logger"

	"github.com/google/uuid"
)

// BidIntake orchestrates validate -> commit -> record -> broadcast for
// incoming bids.
//
// Submissions are serialized per auction: the lock is held across the whole
// read-validate-write sequence so two near-simultaneous bids can never both
// validate against the same stale price. The record store exposes no
// transactions, so this lock is what keeps the current price monotonic.
type BidIntake struct {
	store       domain.RecordStore
	validator   *BidValidator
	broadcaster domain.Broadcaster
	publisher   domain.EventPublisher // optional
	archive     domain.BidArchive     // optional
	log         logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewBidIntake(
	store domain.RecordStore,
	validator *BidValidator,
	broadcaster domain.Broadcaster,
	log logger.Logger,
) *BidIntake {
	return &BidIntake{
		store:       store,
		validator:   validator,
		broadcaster: broadcaster,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SetEventPublisher wires the optional cross-instance relay.
func (s *BidIntake) SetEventPublisher(publisher domain.EventPublisher) {
	s.publisher = publisher
}

// SetArchive wires the optional local bid history archive.
func (s *BidIntake) SetArchive(archive domain.BidArchive) {
	s.archive = archive
}

// Submit runs one bid to completion. Outcomes are distinguished by error type:
// domain.ErrNotFound (unknown auction), domain.ErrAuctionClosed,
// *domain.InvalidBidError (nothing mutated), *domain.StoreError (store write
// failed), or nil with the resulting update.
func (s *BidIntake) Submit(ctx context.Context, auctionID, userID string, amount float64) (*domain.BidUpdate, error) {
	lock := s.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if auction.Closed(time.Now()) {
		return nil, domain.ErrAuctionClosed
	}

	if err := s.validator.Validate(auction.CurrentPrice, amount); err != nil {
		s.log.Info("bid rejected",
			"auction_id", auctionID, "user_id", userID, "amount", amount,
			"current_price", auction.CurrentPrice, "reason", err)
		return nil, err
	}

	if err := s.store.UpdateAuction(ctx, auctionID, amount, userID); err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendBid(ctx, bid); err != nil {
		return nil, err
	}

	update := &domain.BidUpdate{
		CurrentPrice: amount,
		WinnerID:     userID,
		NewBid:       bid,
		UserName:     s.resolveUserName(ctx, userID),
	}

	s.broadcaster.Broadcast(auctionID, update)

	if s.publisher != nil {
		if err := s.publisher.PublishBidUpdate(ctx, auctionID, update); err != nil {
			s.log.Error("failed to publish bid update", "auction_id", auctionID, "error", err)
		}
	}

	if s.archive != nil {
		go func() {
			if err := s.archive.SaveBid(context.Background(), bid); err != nil {
				s.log.Error("failed to archive bid", "bid_id", bid.ID, "error", err)
			}
		}()
	}

	s.log.Info("bid accepted",
		"auction_id", auctionID, "user_id", userID, "amount", amount, "bid_id", bid.ID)
	return update, nil
}

// resolveUserName is best-effort: a slow or failing account lookup degrades to
// a placeholder name rather than blocking or failing the bid.
func (s *BidIntake) resolveUserName(ctx context.Context, userID string) string {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil || account.Name == "" {
		if err != nil {
			s.log.Warn("account lookup failed, using placeholder", "user_id", userID, "error", err)
		}
		return "User " + userID
	}
	return account.Name
}

// auctionLock returns the intake mutex for one auction. Entries are never
// evicted: the map holds one mutex per auction that has ever seen a bid, and
// stays bounded only by the auction catalog's size.
func (s *BidIntake) auctionLock(auctionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[auctionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[auctionID] = lock
	}
	return lock
}
