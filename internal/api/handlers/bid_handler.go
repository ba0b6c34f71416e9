package handlers

import (
	"errors"
	"net/http"

	"bid-relay/internal/domain"
	"bid-relay/internal/services"
	"bid-relay/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	intake  *services.BidIntake
	store   domain.RecordStore
	archive domain.BidArchive // optional; history falls back to the store
	log     logger.Logger
}

type PlaceBidRequest struct {
	Bid    float64 `json:"bid"`
	UserID string  `json:"userId"`
}

type PlaceBidResponse struct {
	Success      bool    `json:"success"`
	CurrentPrice float64 `json:"currentPrice"`
	WinnerID     string  `json:"winnerId"`
}

func NewBidHandler(intake *services.BidIntake, store domain.RecordStore, log logger.Logger) *BidHandler {
	return &BidHandler{
		intake: intake,
		store:  store,
		log:    log,
	}
}

// SetArchive makes bid history reads hit the local archive instead of the store.
func (h *BidHandler) SetArchive(archive domain.BidArchive) {
	h.archive = archive
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("auctionId")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("failed to bind bid request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "userId is required"})
	}

	update, err := h.intake.Submit(c.Request().Context(), auctionID, req.UserID, req.Bid)
	if err != nil {
		var invalid *domain.InvalidBidError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		case errors.Is(err, domain.ErrAuctionClosed):
			return c.JSON(http.StatusConflict, map[string]string{"error": "auction has ended"})
		case errors.As(err, &invalid):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": invalid.Reason})
		default:
			h.log.Error("failed to process bid", "auction_id", auctionID, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process bid"})
		}
	}

	return c.JSON(http.StatusOK, PlaceBidResponse{
		Success:      true,
		CurrentPrice: update.CurrentPrice,
		WinnerID:     update.WinnerID,
	})
}

func (h *BidHandler) GetBidHistory(c echo.Context) error {
	auctionID := c.Param("auctionId")
	ctx := c.Request().Context()

	var (
		bids []*domain.Bid
		err  error
	)
	if h.archive != nil {
		bids, err = h.archive.GetBidHistory(ctx, auctionID)
	} else {
		bids, err = h.store.ListBids(ctx, auctionID)
	}
	if err != nil {
		h.log.Error("failed to load bid history", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load bid history"})
	}

	if bids == nil {
		bids = []*domain.Bid{}
	}
	return c.JSON(http.StatusOK, bids)
}
