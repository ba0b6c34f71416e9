package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bid-relay/internal/domain"
	"bid-relay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory stand-in for the external record store.
type fakeStore struct {
	mu       sync.Mutex
	auctions map[string]*domain.Auction
	bids     []*domain.Bid
	accounts map[string]*domain.Account

	updateErr  error
	appendErr  error
	accountErr error

	priceHistory map[string][]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions:     make(map[string]*domain.Auction),
		accounts:     make(map[string]*domain.Account),
		priceHistory: make(map[string][]float64),
	}
}

func (f *fakeStore) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	auction, ok := f.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	snapshot := *auction
	return &snapshot, nil
}

func (f *fakeStore) UpdateAuction(_ context.Context, auctionID string, currentPrice float64, winnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	auction, ok := f.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
	}
	auction.CurrentPrice = currentPrice
	auction.WinnerID = winnerID
	f.priceHistory[auctionID] = append(f.priceHistory[auctionID], currentPrice)
	return nil
}

func (f *fakeStore) AppendBid(_ context.Context, bid *domain.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return f.appendErr
	}
	f.bids = append(f.bids, bid)
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.accountErr != nil {
		return nil, f.accountErr
	}
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return account, nil
}

func (f *fakeStore) ListBids(_ context.Context, auctionID string) ([]*domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Bid
	for _, bid := range f.bids {
		if bid.AuctionID == auctionID {
			out = append(out, bid)
		}
	}
	return out, nil
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	updates map[string][]*domain.BidUpdate
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{updates: make(map[string][]*domain.BidUpdate)}
}

func (f *fakeBroadcaster) Broadcast(auctionID string, update *domain.BidUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[auctionID] = append(f.updates[auctionID], update)
}

func (f *fakeBroadcaster) count(auctionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates[auctionID])
}

func newTestIntake(store *fakeStore, broadcaster *fakeBroadcaster) *BidIntake {
	return NewBidIntake(store, NewBidValidator(0), broadcaster, logger.Nop())
}

func TestSubmitAcceptsHigherBid(t *testing.T) {
	store := newFakeStore()
	store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100}
	store.accounts["u1"] = &domain.Account{ID: "u1", Name: "Alice"}
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	update, err := intake.Submit(context.Background(), "x", "u1", 150)
	require.NoError(t, err)

	assert.Equal(t, 150.0, update.CurrentPrice)
	assert.Equal(t, "u1", update.WinnerID)
	assert.Equal(t, "Alice", update.UserName)
	require.NotNil(t, update.NewBid)
	assert.Equal(t, "x", update.NewBid.AuctionID)
	assert.Equal(t, 150.0, update.NewBid.Amount)
	assert.NotEmpty(t, update.NewBid.ID)
	assert.False(t, update.NewBid.Timestamp.IsZero())

	// Store committed, bid appended, exactly one broadcast
	assert.Equal(t, 150.0, store.auctions["x"].CurrentPrice)
	assert.Equal(t, "u1", store.auctions["x"].WinnerID)
	assert.Len(t, store.bids, 1)
	assert.Equal(t, 1, broadcaster.count("x"))
}

func TestSubmitRejectsLowerBidAfterAccept(t *testing.T) {
	store := newFakeStore()
	store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100}
	store.accounts["u1"] = &domain.Account{ID: "u1", Name: "Alice"}
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	_, err := intake.Submit(context.Background(), "x", "u1", 150)
	require.NoError(t, err)

	_, err = intake.Submit(context.Background(), "x", "u2", 140)
	var invalid *domain.InvalidBidError
	require.True(t, errors.As(err, &invalid))

	// State unchanged, no second broadcast, no second bid record
	assert.Equal(t, 150.0, store.auctions["x"].CurrentPrice)
	assert.Equal(t, "u1", store.auctions["x"].WinnerID)
	assert.Len(t, store.bids, 1)
	assert.Equal(t, 1, broadcaster.count("x"))
}

func TestSubmitRejectionMutatesNothing(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
	}{
		{"equal to current price", 100},
		{"negative", -5},
		{"over ceiling", 10_000_001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100}
			broadcaster := newFakeBroadcaster()
			intake := newTestIntake(store, broadcaster)

			_, err := intake.Submit(context.Background(), "x", "u1", tt.amount)

			var invalid *domain.InvalidBidError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, 100.0, store.auctions["x"].CurrentPrice)
			assert.Empty(t, store.bids)
			assert.Equal(t, 0, broadcaster.count("x"))
		})
	}
}

func TestSubmitUnknownAuction(t *testing.T) {
	store := newFakeStore()
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	_, err := intake.Submit(context.Background(), "missing", "u1", 50)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 0, broadcaster.count("missing"))
}

func TestSubmitClosedAuction(t *testing.T) {
	ended := time.Now().Add(-time.Minute)
	store := newFakeStore()
	store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100, EndTime: &ended}
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	_, err := intake.Submit(context.Background(), "x", "u1", 150)
	assert.True(t, errors.Is(err, domain.ErrAuctionClosed))
	assert.Equal(t, 100.0, store.auctions["x"].CurrentPrice)
	assert.Equal(t, 0, broadcaster.count("x"))
}

func TestSubmitStoreFailureSurfaced(t *testing.T) {
	store := newFakeStore()
	store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100}
	store.updateErr = &domain.StoreError{Op: "PATCH /auctions/x", Status: 503}
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	_, err := intake.Submit(context.Background(), "x", "u1", 150)

	var storeErr *domain.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, 0, broadcaster.count("x"))
}

func TestSubmitAccountLookupFallsBackToPlaceholder(t *testing.T) {
	store := newFakeStore()
	store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100}
	// no account record for u7
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	update, err := intake.Submit(context.Background(), "x", "u7", 150)
	require.NoError(t, err)

	assert.Equal(t, "User u7", update.UserName)
	assert.Equal(t, 1, broadcaster.count("x"), "a failed name lookup must not block the broadcast")
}

// Two bids racing on the same auction must never both validate against the
// same stale price: the higher bid wins no matter which goroutine runs first.
func TestSubmitSerializesPerAuction(t *testing.T) {
	store := newFakeStore()
	store.auctions["x"] = &domain.Auction{ID: "x", CurrentPrice: 100}
	store.accounts["u1"] = &domain.Account{ID: "u1", Name: "Alice"}
	store.accounts["u2"] = &domain.Account{ID: "u2", Name: "Bob"}
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		intake.Submit(context.Background(), "x", "u1", 150)
	}()
	go func() {
		defer wg.Done()
		intake.Submit(context.Background(), "x", "u2", 160)
	}()
	wg.Wait()

	assert.Equal(t, 160.0, store.auctions["x"].CurrentPrice)
	assert.Equal(t, "u2", store.auctions["x"].WinnerID)

	// Committed prices must be monotonically increasing
	prices := store.priceHistory["x"]
	for i := 1; i < len(prices); i++ {
		assert.Greater(t, prices[i], prices[i-1])
	}
}

func TestSubmitLocksAreIndependentAcrossAuctions(t *testing.T) {
	store := newFakeStore()
	store.auctions["a"] = &domain.Auction{ID: "a", CurrentPrice: 10}
	store.auctions["b"] = &domain.Auction{ID: "b", CurrentPrice: 20}
	broadcaster := newFakeBroadcaster()
	intake := newTestIntake(store, broadcaster)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		amount := float64(100 + i)
		go func() {
			defer wg.Done()
			intake.Submit(context.Background(), "a", "u1", amount)
		}()
		go func() {
			defer wg.Done()
			intake.Submit(context.Background(), "b", "u2", amount)
		}()
	}
	wg.Wait()

	assert.Equal(t, 119.0, store.auctions["a"].CurrentPrice)
	assert.Equal(t, 119.0, store.auctions["b"].CurrentPrice)
}
