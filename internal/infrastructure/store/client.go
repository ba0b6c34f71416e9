package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bid-relay/internal/domain"
	"bid-relay/pkg/logger"
)

// Client talks to the external record store, a JSON-over-HTTP document store
// exposing /auctions, /bids and /accounts resources.
//
// Auction updates go out as a PATCH carrying only the price/winner projection
// so fields owned by other systems (title, schedule, images) are left intact.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *Client) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	var auction domain.Auction
	path := "/auctions/" + url.PathEscape(auctionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &auction); err != nil {
		return nil, err
	}
	return &auction, nil
}

func (c *Client) UpdateAuction(ctx context.Context, auctionID string, currentPrice float64, winnerID string) error {
	body := map[string]interface{}{
		"currentPrice": currentPrice,
		"winnerId":     winnerID,
	}
	path := "/auctions/" + url.PathEscape(auctionID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) AppendBid(ctx context.Context, bid *domain.Bid) error {
	return c.do(ctx, http.MethodPost, "/bids", bid, nil)
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	path := "/accounts/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	path := "/bids?auctionId=" + url.QueryEscape(auctionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.StoreError{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.log.Warn("record store returned unexpected status", "op", op, "status", resp.StatusCode)
		return &domain.StoreError{Op: op, Status: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.StoreError{Op: op, Err: err}
		}
	}
	return nil
}
