package engine

import (
	"errors"
	"fmt"
	"math/big"
)

// Session-setup failures are terminal: the controller parks in
// PhaseUnavailable and the user must reload the frame.
var (
	// ErrIdentityUnavailable means the frame host did not supply a Farcaster
	// identity. Identity arrives once at load time; there is no retry path.
	ErrIdentityUnavailable = errors.New("farcaster identity unavailable")

	// ErrWalletUnavailable means no wallet account could be obtained.
	ErrWalletUnavailable = errors.New("wallet unavailable")

	// ErrNetworkMismatch means the wallet's active network is not the
	// auction's chain.
	ErrNetworkMismatch = errors.New("wallet network does not match auction chain")

	// ErrInvalidAmount means the proposed bid could not be parsed as a
	// positive amount.
	ErrInvalidAmount = errors.New("bid amount must be a positive amount")

	// ErrAuctionEnded rejects actions after the deadline, locally and
	// without contacting the contract.
	ErrAuctionEnded = errors.New("auction has ended")

	// ErrNotReady rejects bid submissions outside the Ready phase.
	ErrNotReady = errors.New("session is not ready to bid")
)

// BelowMinimumError rejects a bid under the computed minimum. It carries the
// minimum so callers can show it.
type BelowMinimumError struct {
	Minimum *big.Int
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("bid is below minimum: minimum is %s wei", e.Minimum)
}

// ReadError wraps a failed contract read. Display-only reads degrade the
// affected field; the rest of the interface keeps working.
type ReadError struct {
	What string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.What, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// SubmissionError reports a failed bid submission. Rejected is true when the
// wallet layer reported user cancellation; otherwise Reason carries a
// truncated upstream message. Neither case mutates local auction state.
type SubmissionError struct {
	Rejected bool
	Reason   string
}

func (e *SubmissionError) Error() string {
	if e.Rejected {
		return "transaction cancelled by user"
	}
	return fmt.Sprintf("transaction failed: %s", e.Reason)
}

// MaxErrorDisplayLength bounds user-visible error text so it fits the
// fixed-size status region.
const MaxErrorDisplayLength = 120

// Truncate bounds a message to max runes for display.
func Truncate(msg string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max])
}
