package mysql

import (
	"context"
	"database/sql"
	"time"

	"bid-relay/internal/domain"
)

// BidArchive keeps a local, queryable copy of every accepted bid. The record
// store remains the system of record; the archive only serves history reads.
type BidArchive struct {
	db *sql.DB
}

func NewBidArchive(db *sql.DB) *BidArchive {
	return &BidArchive{db: db}
}

func (r *BidArchive) SaveBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, user_id, amount, bid_time, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.UserID, bid.Amount,
		bid.Timestamp, time.Now())
	return err
}

func (r *BidArchive) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, bid_time
        FROM bids
        WHERE auction_id = ?
        ORDER BY bid_time ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.UserID, &bid.Amount, &bid.Timestamp)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
