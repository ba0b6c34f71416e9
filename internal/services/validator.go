package services

import (
	"fmt"

	"bid-relay/internal/domain"
)

// DefaultBidCeiling is the sanity ceiling applied when none is configured.
const DefaultBidCeiling = 10_000_000

// BidValidator decides whether a proposed amount is acceptable against the
// current price. Pure and deterministic; no side effects.
type BidValidator struct {
	ceiling float64
}

func NewBidValidator(ceiling float64) *BidValidator {
	if ceiling <= 0 {
		ceiling = DefaultBidCeiling
	}
	return &BidValidator{ceiling: ceiling}
}

// Validate returns nil when the bid is acceptable, or an *domain.InvalidBidError
// carrying the rejection reason. Amounts must be strictly greater than the
// current price.
func (v *BidValidator) Validate(currentPrice, amount float64) error {
	switch {
	case amount < 0:
		return &domain.InvalidBidError{Reason: "bid amount cannot be negative"}
	case amount > v.ceiling:
		return &domain.InvalidBidError{Reason: fmt.Sprintf("bid amount exceeds the ceiling of %.0f", v.ceiling)}
	case amount <= currentPrice:
		return &domain.InvalidBidError{Reason: "bid must be strictly greater than the current price"}
	}
	return nil
}
