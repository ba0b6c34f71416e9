package domain

import (
	"context"
)

// RecordStore is the external system of record for auctions, bids and accounts.
type RecordStore interface {
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuction(ctx context.Context, auctionID string, currentPrice float64, winnerID string) error
	AppendBid(ctx context.Context, bid *Bid) error
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	ListBids(ctx context.Context, auctionID string) ([]*Bid, error)
}

// Broadcaster fans a bid update out to every live subscriber of an auction.
type Broadcaster interface {
	Broadcast(auctionID string, update *BidUpdate)
}

// EventPublisher relays accepted bids to peer instances.
type EventPublisher interface {
	PublishBidUpdate(ctx context.Context, auctionID string, update *BidUpdate) error
}

// BidArchive keeps a queryable local history of accepted bids.
type BidArchive interface {
	SaveBid(ctx context.Context, bid *Bid) error
	GetBidHistory(ctx context.Context, auctionID string) ([]*Bid, error)
}
