package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an unknown auction or account identifier.
	ErrNotFound = errors.New("not found")

	// ErrAuctionClosed marks a bid against an auction whose end time has passed.
	ErrAuctionClosed = errors.New("auction has ended")
)

// InvalidBidError is returned when a proposed bid fails validation.
// No state is mutated when this error is produced.
type InvalidBidError struct {
	Reason string
}

func (e *InvalidBidError) Error() string {
	return "invalid bid: " + e.Reason
}

// StoreError wraps a failed round trip to the record store.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("record store %s: unexpected status %d", e.Op, e.Status)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
