package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/jc4p/jc4p-auction-frame/internal/models"
	"github.com/jc4p/jc4p-auction-frame/internal/wallet"
)

// Phase is the observed client-side auction lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseAwaitingIdentity
	PhaseAwaitingWallet
	PhaseReady
	PhaseSubmitting
	PhaseConfirmedOrUnknown
	// PhaseEnded is terminal: bidding controls stay disabled and no further
	// transitions occur.
	PhaseEnded
	// PhaseUnavailable is terminal: a setup failure disabled bidding for
	// this session and the user must reload the frame.
	PhaseUnavailable
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseAwaitingIdentity:
		return "awaiting-identity"
	case PhaseAwaitingWallet:
		return "awaiting-wallet"
	case PhaseReady:
		return "ready"
	case PhaseSubmitting:
		return "submitting"
	case PhaseConfirmedOrUnknown:
		return "confirmed-or-unknown"
	case PhaseEnded:
		return "ended"
	case PhaseUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseUnavailable
}

// IdentityResolver supplies the frame host's Farcaster identity. Identity is
// resolved once at session start; a failure is terminal for the session.
type IdentityResolver interface {
	ResolveFID(ctx context.Context) (uint64, error)
}

// ContractReader reads point-in-time auction state from the contract.
type ContractReader interface {
	ReadState(ctx context.Context) (*models.AuctionState, error)
	BidderStats(ctx context.Context, addr common.Address) (models.BidderStats, error)
}

// BidSubmitter issues the value-carrying placeBid call.
type BidSubmitter interface {
	PlaceBid(ctx context.Context, fid uint64, amount *big.Int) (common.Hash, error)
}

// Submission records a broadcast bid attempt.
type Submission struct {
	ID     string
	TxHash common.Hash
	Amount *big.Int
	At     time.Time
}

// Countdown is one tick of the one-second deadline timer. RefreshDue is set
// exactly once, at the instant remaining time reaches zero; the caller
// performs the single state refetch it requests. The tick itself never does
// I/O.
type Countdown struct {
	Seconds    int64
	Display    string
	Urgent     bool
	RefreshDue bool
}

// ControllerConfig tunes the lifecycle controller.
type ControllerConfig struct {
	// ChainID is the auction's chain; a wallet on any other network is a
	// terminal mismatch for the session.
	ChainID *big.Int
	// ConfirmDelay is the fixed wait between broadcasting a bid and the
	// assume-confirmed refresh.
	ConfirmDelay time.Duration
	// UrgencyWindow marks the countdown urgent when less time remains.
	UrgencyWindow time.Duration
}

// Controller owns the session state machine. It runs single-writer: all
// mutations happen at well-defined points between suspension and resume of
// its own calls, so no locking is needed as long as callers drive it from
// one goroutine.
type Controller struct {
	identity  IdentityResolver
	wallet    wallet.Wallet
	reader    ContractReader
	submitter BidSubmitter

	chainID       *big.Int
	confirmDelay  time.Duration
	urgencyWindow time.Duration

	phase          Phase
	state          *models.AuctionState
	session        models.UserSession
	lastSubmission *Submission
	endedRefetched bool

	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewController creates a controller in PhaseUninitialized.
func NewController(identity IdentityResolver, w wallet.Wallet, reader ContractReader, submitter BidSubmitter, cfg ControllerConfig) *Controller {
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = 9 * time.Second
	}
	if cfg.UrgencyWindow <= 0 {
		cfg.UrgencyWindow = time.Hour
	}
	return &Controller{
		identity:      identity,
		wallet:        w,
		reader:        reader,
		submitter:     submitter,
		chainID:       cfg.ChainID,
		confirmDelay:  cfg.ConfirmDelay,
		urgencyWindow: cfg.UrgencyWindow,
		phase:         PhaseUninitialized,
		nowFn:         time.Now,
		sleepFn:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase { return c.phase }

// Session returns the local user session.
func (c *Controller) Session() models.UserSession { return c.session }

// State returns a copy of the last-read auction state, or nil before the
// first successful read.
func (c *Controller) State() *models.AuctionState { return c.state.Clone() }

// LastSubmission returns the most recent broadcast bid, or nil.
func (c *Controller) LastSubmission() *Submission { return c.lastSubmission }

// Connect walks the setup chain: resolve identity, obtain a wallet account
// on the auction's chain, and take the initial state read. Any failure is
// terminal for the session (PhaseUnavailable, no automatic retry).
func (c *Controller) Connect(ctx context.Context) error {
	if c.phase != PhaseUninitialized {
		return fmt.Errorf("connect called in phase %s", c.phase)
	}

	c.phase = PhaseAwaitingIdentity
	fid, err := c.identity.ResolveFID(ctx)
	if err != nil {
		c.phase = PhaseUnavailable
		return fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	if fid == 0 {
		c.phase = PhaseUnavailable
		return ErrIdentityUnavailable
	}
	c.session.FID = fid

	c.phase = PhaseAwaitingWallet
	account, err := c.wallet.Account(ctx)
	if err != nil {
		c.phase = PhaseUnavailable
		return fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	if account == (common.Address{}) {
		c.phase = PhaseUnavailable
		return ErrWalletUnavailable
	}

	if c.chainID != nil {
		walletChain, err := c.wallet.ChainID(ctx)
		if err != nil {
			c.phase = PhaseUnavailable
			return fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
		}
		if walletChain == nil || walletChain.Cmp(c.chainID) != 0 {
			c.phase = PhaseUnavailable
			return fmt.Errorf("%w: wallet on chain %v, auction on chain %v", ErrNetworkMismatch, walletChain, c.chainID)
		}
	}
	c.session.Account = account

	state, err := c.reader.ReadState(ctx)
	if err != nil {
		c.phase = PhaseUnavailable
		return &ReadError{What: "auction state", Err: err}
	}
	c.state = state

	if state.SecondsRemaining(c.nowFn().Unix()) == 0 {
		c.phase = PhaseEnded
		return nil
	}
	c.phase = PhaseReady
	return nil
}

// canBid reports whether a submission may start in the current phase.
func (c *Controller) canBid() bool {
	return c.phase == PhaseReady || c.phase == PhaseConfirmedOrUnknown
}

// Refresh re-reads auction state. It replaces the held state wholesale and
// never changes the lifecycle phase by itself, except entering Ended when
// the new read reports no time remaining.
func (c *Controller) Refresh(ctx context.Context) error {
	switch c.phase {
	case PhaseUninitialized, PhaseAwaitingIdentity, PhaseAwaitingWallet, PhaseUnavailable:
		return ErrNotReady
	}
	state, err := c.reader.ReadState(ctx)
	if err != nil {
		return &ReadError{What: "auction state", Err: err}
	}
	c.state = state
	if !c.phase.Terminal() && state.SecondsRemaining(c.nowFn().Unix()) == 0 {
		c.phase = PhaseEnded
	}
	return nil
}

// NextBid returns the minimum acceptable next bid from the held state, or
// nil before the first read.
func (c *Controller) NextBid() *big.Int {
	if c.state == nil {
		return nil
	}
	return NextValidBid(c.state)
}

// BidderStats takes a fresh per-identity read; it is never cached.
func (c *Controller) BidderStats(ctx context.Context, addr common.Address) (models.BidderStats, error) {
	stats, err := c.reader.BidderStats(ctx, addr)
	if err != nil {
		return models.BidderStats{}, &ReadError{What: "bidder stats", Err: err}
	}
	return stats, nil
}

// Tick advances the one-second countdown. Once the deadline passes it moves
// any non-terminal phase to Ended and requests the single at-zero refetch.
func (c *Controller) Tick() Countdown {
	if c.state == nil {
		return Countdown{}
	}
	remaining := c.state.SecondsRemaining(c.nowFn().Unix())
	cd := Countdown{
		Seconds: remaining,
		Display: FormatRemaining(remaining),
		Urgent:  remaining > 0 && time.Duration(remaining)*time.Second < c.urgencyWindow,
	}
	if remaining > 0 {
		return cd
	}
	if !c.phase.Terminal() {
		c.phase = PhaseEnded
	}
	if c.phase == PhaseEnded && !c.endedRefetched {
		c.endedRefetched = true
		cd.RefreshDue = true
	}
	return cd
}

// PlaceBid validates the amount locally and, if valid, issues one
// value-carrying placeBid call through the submitter. Returns the
// transaction hash immediately; call AwaitConfirmation afterwards.
// Validation is advisory: the contract re-checks on submission and a
// contract-side rejection is authoritative even when local validation
// passed.
func (c *Controller) PlaceBid(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if c.phase == PhaseEnded {
		return common.Hash{}, ErrAuctionEnded
	}
	if !c.canBid() {
		return common.Hash{}, ErrNotReady
	}
	if c.state.SecondsRemaining(c.nowFn().Unix()) == 0 {
		c.phase = PhaseEnded
		return common.Hash{}, ErrAuctionEnded
	}
	if err := c.session.Validate(); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if err := ValidateBid(amount, c.state); err != nil {
		return common.Hash{}, err
	}

	c.phase = PhaseSubmitting
	hash, err := c.submitter.PlaceBid(ctx, c.session.FID, amount)
	if err != nil {
		// Recoverable: the action re-enables and the user may retry.
		// Local auction state is untouched.
		c.phase = PhaseReady
		if errors.Is(err, wallet.ErrRejected) {
			return common.Hash{}, &SubmissionError{Rejected: true}
		}
		return common.Hash{}, &SubmissionError{Reason: Truncate(err.Error(), MaxErrorDisplayLength)}
	}

	c.lastSubmission = &Submission{
		ID:     uuid.New().String(),
		TxHash: hash,
		Amount: new(big.Int).Set(amount),
		At:     c.nowFn(),
	}
	return hash, nil
}

// AwaitConfirmation waits the fixed post-submission delay, refreshes state
// once, and settles in ConfirmedOrUnknown (or Ended if the deadline passed
// meanwhile). It deliberately does not verify the transaction landed; the
// refresh gives eventual consistency and the UI never blocks waiting for
// hard confirmation. A failed refresh degrades the display but still
// settles the phase.
func (c *Controller) AwaitConfirmation(ctx context.Context) error {
	if c.phase != PhaseSubmitting {
		return ErrNotReady
	}
	if err := c.sleepFn(ctx, c.confirmDelay); err != nil {
		return err
	}
	refreshErr := c.Refresh(ctx)
	if !c.phase.Terminal() {
		c.phase = PhaseConfirmedOrUnknown
	}
	return refreshErr
}

// FormatRemaining renders a second count as "Xd hh:mm:ss" (days only when
// nonzero), matching the frame's countdown display.
func FormatRemaining(seconds int64) string {
	if seconds <= 0 {
		return "00:00:00"
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
