// Package models defines the core domain entities for the auction frame client.
// These models mirror the on-chain auction contract state plus the local,
// ephemeral session data the bid engine needs. All models include built-in
// validation to ensure data integrity throughout the application.
//
// Terminology (matching the contract's own naming):
//   - Lot: the single NFT under auction, identified by a fixed token id.
//   - FID: the Farcaster user id carried alongside each bid.
package models

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AuctionState is a point-in-time read of the auction contract. It is
// refreshed wholesale by polling and never mutated locally between reads.
// All monetary amounts are in wei.
type AuctionState struct {
	ReservePrice     *big.Int       `json:"reserve_price"`      // Minimum first bid
	MinIncrementBps  *big.Int       `json:"min_increment_bps"`  // Basis points (1/10000) over the highest bid
	HighestBid       *big.Int       `json:"highest_bid"`        // 0 until the first bid lands
	HighestBidder    common.Address `json:"highest_bidder"`     // Zero address when no bid yet
	HighestBidderFID uint64         `json:"highest_bidder_fid"` // 0 when unresolved or no bid
	HasFirstBid      bool           `json:"has_first_bid"`
	FirstBidderFID   uint64         `json:"first_bidder_fid"` // Informational badge only
	TotalBids        *big.Int       `json:"total_bids"`
	EndTime          int64          `json:"end_time"` // Unix seconds; fixed for the lot's lifetime
}

// Validate checks the contract-level invariants on a freshly read state.
func (s *AuctionState) Validate() error {
	if s.ReservePrice == nil || s.ReservePrice.Sign() < 0 {
		return errors.New("reserve price must be a non-negative amount")
	}
	if s.MinIncrementBps == nil || s.MinIncrementBps.Sign() < 0 {
		return errors.New("min increment bps must be non-negative")
	}
	if s.HighestBid == nil || s.HighestBid.Sign() < 0 {
		return errors.New("highest bid must be a non-negative amount")
	}
	if s.TotalBids == nil || s.TotalBids.Sign() < 0 {
		return errors.New("total bids must be non-negative")
	}
	if s.HasFirstBid {
		if s.HighestBid.Cmp(s.ReservePrice) < 0 {
			return errors.New("highest bid must be >= reserve price once a bid exists")
		}
		if s.TotalBids.Sign() == 0 {
			return errors.New("total bids must be positive once a bid exists")
		}
	} else {
		if s.HighestBid.Sign() != 0 {
			return errors.New("highest bid must be zero before the first bid")
		}
		if s.HighestBidder != (common.Address{}) {
			return errors.New("highest bidder must be the zero address before the first bid")
		}
		if s.TotalBids.Sign() != 0 {
			return errors.New("total bids must be zero before the first bid")
		}
	}
	if s.EndTime <= 0 {
		return errors.New("end time must be set")
	}
	return nil
}

// SecondsRemaining returns the seconds until EndTime at the given unix time,
// floored at zero.
func (s *AuctionState) SecondsRemaining(nowUnix int64) int64 {
	remaining := s.EndTime - nowUnix
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone returns a deep copy so callers can hold a state across a refresh
// without aliasing the engine's big.Int fields.
func (s *AuctionState) Clone() *AuctionState {
	if s == nil {
		return nil
	}
	c := *s
	c.ReservePrice = new(big.Int).Set(s.ReservePrice)
	c.MinIncrementBps = new(big.Int).Set(s.MinIncrementBps)
	c.HighestBid = new(big.Int).Set(s.HighestBid)
	c.TotalBids = new(big.Int).Set(s.TotalBids)
	return &c
}
