package domain

import (
	"time"
)

// Auction is the relay's projection of an auction record. The record store
// owns the full document; the relay only reads and writes the price/winner
// fields and uses the end time to gate late bids.
type Auction struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	BasePrice    float64    `json:"basePrice,omitempty"`
	CurrentPrice float64    `json:"currentPrice"`
	WinnerID     string     `json:"winnerId,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
}

// Closed reports whether the auction's bidding window has already ended.
// Auctions with no end time never close from the relay's point of view.
func (a *Auction) Closed(now time.Time) bool {
	return a.EndTime != nil && a.EndTime.Before(now)
}

// Bid is immutable once appended to the record store.
type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auctionId"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"bid"`
	Timestamp time.Time `json:"timestamp"`
}

type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// BidUpdate is the broadcast frame pushed to every subscriber of an auction
// after a bid commits. Ephemeral, never persisted.
type BidUpdate struct {
	CurrentPrice float64 `json:"currentPrice"`
	WinnerID     string  `json:"winnerId"`
	NewBid       *Bid    `json:"newBid"`
	UserName     string  `json:"userName"`
}
