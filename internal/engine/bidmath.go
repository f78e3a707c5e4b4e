// Package engine implements the bid engine: minimum-bid arithmetic, local
// bid validation, and the session lifecycle state machine that drives a
// single-lot on-chain auction from a frame client.
//
// The bid rule is the one piece of domain logic the contract and client must
// agree on exactly:
//
//	nextValidBid = reservePrice                                  (no bid yet)
//	nextValidBid = highestBid + floor(highestBid * minIncrementBps / 10000)
//
// Integer arithmetic throughout, multiply before divide, truncating division.
// Rounding the required increment down deliberately favors the bidder.
// Local validation is advisory only; the contract re-checks on submission
// and its verdict is authoritative.
package engine

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/jc4p/jc4p-auction-frame/internal/models"
)

// bpsDenominator converts basis points to a fraction (1 bps = 1/10000).
var bpsDenominator = big.NewInt(10000)

// weiPerEther is the decimal exponent between ether and wei.
const weiPerEtherExp = 18

// NextValidBid computes the minimum acceptable next bid in wei. Pure
// function; the returned value is freshly allocated and never aliases state.
func NextValidBid(state *models.AuctionState) *big.Int {
	if !state.HasFirstBid {
		return new(big.Int).Set(state.ReservePrice)
	}
	increment := new(big.Int).Mul(state.HighestBid, state.MinIncrementBps)
	increment.Quo(increment, bpsDenominator)
	return increment.Add(increment, state.HighestBid)
}

// ValidateBid checks a proposed bid against the current state. Returns
// ErrInvalidAmount for nil or non-positive amounts, a *BelowMinimumError
// carrying the computed minimum when the bid is too low, and nil otherwise.
func ValidateBid(amount *big.Int, state *models.AuctionState) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	minimum := NextValidBid(state)
	if amount.Cmp(minimum) < 0 {
		return &BelowMinimumError{Minimum: minimum}
	}
	return nil
}

// ParseEther converts a user-entered decimal ETH string to wei. Rejects
// malformed input, non-positive values, and sub-wei precision, all as
// ErrInvalidAmount so callers show a single "invalid amount" message.
func ParseEther(text string) (*big.Int, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if d.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	wei := d.Shift(weiPerEtherExp)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("%w: %q has sub-wei precision", ErrInvalidAmount, text)
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount as a decimal ETH string for display.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -weiPerEtherExp).String()
}
