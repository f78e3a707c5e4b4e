package models

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// UserSession holds the local, ephemeral identity for one frame session.
// It is created at startup and discarded on teardown; both fields must be
// present before a bid submission is permitted.
type UserSession struct {
	FID     uint64         `json:"fid"`     // Farcaster user id, 0 = unresolved
	Account common.Address `json:"account"` // Wallet identity, zero = not connected
}

// HasIdentity reports whether the Farcaster identity was resolved.
func (u *UserSession) HasIdentity() bool {
	return u.FID != 0
}

// HasAccount reports whether a wallet account is connected.
func (u *UserSession) HasAccount() bool {
	return u.Account != (common.Address{})
}

// Validate checks the session is complete enough to submit a bid.
func (u *UserSession) Validate() error {
	if !u.HasIdentity() {
		return errors.New("session has no resolved FID")
	}
	if !u.HasAccount() {
		return errors.New("session has no connected account")
	}
	return nil
}

// BidderStats is a per-identity contract read. It is never cached; callers
// always take a fresh read.
type BidderStats struct {
	BidCount uint64 `json:"bid_count"`
	FID      uint64 `json:"fid"` // 0 when unresolved
}
