package models

import (
	"errors"
	"math/big"
	"time"
)

// Snapshot records the auction state observed during one poll cycle. The
// watcher keeps a rolling log of snapshots to detect outbids and first bids
// between cycles.
type Snapshot struct {
	ID            string    `json:"id"`
	HighestBid    *big.Int  `json:"highest_bid"`
	HighestBidder string    `json:"highest_bidder"` // Hex address
	TotalBids     *big.Int  `json:"total_bids"`
	HasFirstBid   bool      `json:"has_first_bid"`
	EndTime       int64     `json:"end_time"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
}

// Validate checks that all snapshot fields are valid.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}
	if s.HighestBid == nil || s.HighestBid.Sign() < 0 {
		return errors.New("highest bid must be a non-negative amount")
	}
	if s.TotalBids == nil || s.TotalBids.Sign() < 0 {
		return errors.New("total bids must be non-negative")
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if s.Timestamp.After(time.Now().Add(time.Minute)) {
		return errors.New("timestamp must not be in the future")
	}
	return nil
}
