package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jc4p/jc4p-auction-frame/internal/models"
	"github.com/jc4p/jc4p-auction-frame/internal/wallet"
)

// ---- fakes ----

type fakeIdentity struct {
	fid uint64
	err error
}

func (f *fakeIdentity) ResolveFID(ctx context.Context) (uint64, error) {
	return f.fid, f.err
}

type fakeWallet struct {
	account    common.Address
	chainID    *big.Int
	accountErr error
}

func (f *fakeWallet) Account(ctx context.Context) (common.Address, error) {
	return f.account, f.accountErr
}

func (f *fakeWallet) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeWallet) Submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	return common.Hash{}, errors.New("not used in tests")
}

type fakeReader struct {
	state     *models.AuctionState
	stats     models.BidderStats
	readErr   error
	statsErr  error
	readCalls int
}

func (f *fakeReader) ReadState(ctx context.Context) (*models.AuctionState, error) {
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.state.Clone(), nil
}

func (f *fakeReader) BidderStats(ctx context.Context, addr common.Address) (models.BidderStats, error) {
	return f.stats, f.statsErr
}

type fakeSubmitter struct {
	hash  common.Hash
	err   error
	calls int

	// onPlace runs before returning, letting tests mutate chain state the
	// way a landed bid would.
	onPlace func(fid uint64, amount *big.Int)
}

func (f *fakeSubmitter) PlaceBid(ctx context.Context, fid uint64, amount *big.Int) (common.Hash, error) {
	f.calls++
	if f.onPlace != nil {
		f.onPlace(fid, amount)
	}
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return f.hash, nil
}

func newTestController(identity *fakeIdentity, w *fakeWallet, reader *fakeReader, submitter *fakeSubmitter) *Controller {
	c := NewController(identity, w, reader, submitter, ControllerConfig{
		ChainID:      big.NewInt(8453),
		ConfirmDelay: time.Second,
	})
	c.sleepFn = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func liveState(endInUnix int64) *models.AuctionState {
	return &models.AuctionState{
		ReservePrice:    big.NewInt(100),
		MinIncrementBps: big.NewInt(1000),
		HighestBid:      big.NewInt(0),
		HasFirstBid:     false,
		TotalBids:       big.NewInt(0),
		EndTime:         endInUnix,
	}
}

var (
	testAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testTxHash  = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
)

func fixedNow(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

// ---- tests ----

func TestConnect_HappyPath(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	c := newTestController(
		&fakeIdentity{fid: 12345},
		&fakeWallet{account: testAccount, chainID: big.NewInt(8453)},
		reader,
		&fakeSubmitter{hash: testTxHash},
	)
	c.nowFn = fixedNow(1000)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Phase() != PhaseReady {
		t.Errorf("expected PhaseReady, got %s", c.Phase())
	}
	sess := c.Session()
	if sess.FID != 12345 || sess.Account != testAccount {
		t.Errorf("unexpected session: %+v", sess)
	}
	if c.NextBid().Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected next bid 100, got %s", c.NextBid())
	}
}

func TestConnect_IdentityFailureIsTerminal(t *testing.T) {
	c := newTestController(
		&fakeIdentity{err: errors.New("no frame context")},
		&fakeWallet{account: testAccount, chainID: big.NewInt(8453)},
		&fakeReader{state: liveState(2000)},
		&fakeSubmitter{},
	)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable, got %v", err)
	}
	if c.Phase() != PhaseUnavailable {
		t.Errorf("expected PhaseUnavailable, got %s", c.Phase())
	}

	// No retry path: a second Connect is refused
	if err := c.Connect(context.Background()); err == nil {
		t.Error("expected error on repeated Connect")
	}
}

func TestConnect_ZeroFIDIsUnavailable(t *testing.T) {
	c := newTestController(
		&fakeIdentity{fid: 0},
		&fakeWallet{account: testAccount, chainID: big.NewInt(8453)},
		&fakeReader{state: liveState(2000)},
		&fakeSubmitter{},
	)
	if err := c.Connect(context.Background()); !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable for fid 0, got %v", err)
	}
	if c.Phase() != PhaseUnavailable {
		t.Errorf("expected PhaseUnavailable, got %s", c.Phase())
	}
}

func TestConnect_NetworkMismatchIsTerminal(t *testing.T) {
	c := newTestController(
		&fakeIdentity{fid: 12345},
		&fakeWallet{account: testAccount, chainID: big.NewInt(1)}, // mainnet, not Base
		&fakeReader{state: liveState(2000)},
		&fakeSubmitter{},
	)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrNetworkMismatch) {
		t.Fatalf("expected ErrNetworkMismatch, got %v", err)
	}
	if c.Phase() != PhaseUnavailable {
		t.Errorf("expected PhaseUnavailable, got %s", c.Phase())
	}
}

func TestConnect_WalletFailureIsTerminal(t *testing.T) {
	c := newTestController(
		&fakeIdentity{fid: 12345},
		&fakeWallet{accountErr: errors.New("provider not found")},
		&fakeReader{state: liveState(2000)},
		&fakeSubmitter{},
	)
	if err := c.Connect(context.Background()); !errors.Is(err, ErrWalletUnavailable) {
		t.Fatalf("expected ErrWalletUnavailable, got %v", err)
	}
	if c.Phase() != PhaseUnavailable {
		t.Errorf("expected PhaseUnavailable, got %s", c.Phase())
	}
}

func TestConnect_AlreadyEndedAuction(t *testing.T) {
	c := newTestController(
		&fakeIdentity{fid: 12345},
		&fakeWallet{account: testAccount, chainID: big.NewInt(8453)},
		&fakeReader{state: liveState(500)},
		&fakeSubmitter{},
	)
	c.nowFn = fixedNow(1000)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Phase() != PhaseEnded {
		t.Errorf("expected PhaseEnded for past deadline, got %s", c.Phase())
	}
}

func connectReady(t *testing.T, reader *fakeReader, submitter *fakeSubmitter, nowUnix int64) *Controller {
	t.Helper()
	c := newTestController(
		&fakeIdentity{fid: 12345},
		&fakeWallet{account: testAccount, chainID: big.NewInt(8453)},
		reader,
		submitter,
	)
	c.nowFn = fixedNow(nowUnix)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Phase() != PhaseReady {
		t.Fatalf("expected PhaseReady, got %s", c.Phase())
	}
	return c
}

func TestPlaceBid_EndToEndFirstBid(t *testing.T) {
	// reservePrice=100, minIncrementBps=1000, no prior bids, so next bid is 100.
	// After the bid lands, next valid bid recomputes to 110.
	reader := &fakeReader{state: liveState(2000)}
	submitter := &fakeSubmitter{hash: testTxHash}
	submitter.onPlace = func(fid uint64, amount *big.Int) {
		reader.state.HasFirstBid = true
		reader.state.HighestBid = new(big.Int).Set(amount)
		reader.state.HighestBidder = testAccount
		reader.state.HighestBidderFID = fid
		reader.state.TotalBids = big.NewInt(1)
	}

	c := connectReady(t, reader, submitter, 1000)

	hash, err := c.PlaceBid(context.Background(), big.NewInt(100))
	if err != nil {
		t.Fatalf("PlaceBid failed: %v", err)
	}
	if hash != testTxHash {
		t.Errorf("unexpected tx hash: %s", hash)
	}
	if c.Phase() != PhaseSubmitting {
		t.Errorf("expected PhaseSubmitting, got %s", c.Phase())
	}
	if c.LastSubmission() == nil || c.LastSubmission().TxHash != testTxHash {
		t.Error("submission not recorded")
	}

	if err := c.AwaitConfirmation(context.Background()); err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}
	if c.Phase() != PhaseConfirmedOrUnknown {
		t.Errorf("expected PhaseConfirmedOrUnknown, got %s", c.Phase())
	}

	state := c.State()
	if !state.HasFirstBid || state.HighestBid.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("refreshed state not applied: %+v", state)
	}
	if c.NextBid().Cmp(big.NewInt(110)) != 0 {
		t.Errorf("expected recomputed next bid 110, got %s", c.NextBid())
	}
}

func TestPlaceBid_BelowMinimumDoesNotSubmit(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	submitter := &fakeSubmitter{hash: testTxHash}
	c := connectReady(t, reader, submitter, 1000)

	_, err := c.PlaceBid(context.Background(), big.NewInt(99))
	var below *BelowMinimumError
	if !errors.As(err, &below) {
		t.Fatalf("expected BelowMinimumError, got %v", err)
	}
	if submitter.calls != 0 {
		t.Error("submitter called for an invalid bid")
	}
	if c.Phase() != PhaseReady {
		t.Errorf("phase changed on rejected bid: %s", c.Phase())
	}
}

func TestPlaceBid_UserRejectionIsRecoverable(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	submitter := &fakeSubmitter{err: fmt.Errorf("send: %w", wallet.ErrRejected)}
	c := connectReady(t, reader, submitter, 1000)

	_, err := c.PlaceBid(context.Background(), big.NewInt(100))
	var subErr *SubmissionError
	if !errors.As(err, &subErr) || !subErr.Rejected {
		t.Fatalf("expected rejected SubmissionError, got %v", err)
	}
	if c.Phase() != PhaseReady {
		t.Errorf("expected PhaseReady after rejection, got %s", c.Phase())
	}

	// Retry immediately succeeds
	submitter.err = nil
	submitter.hash = testTxHash
	if _, err := c.PlaceBid(context.Background(), big.NewInt(100)); err != nil {
		t.Errorf("retry after rejection failed: %v", err)
	}
}

func TestPlaceBid_UpstreamFailureTruncated(t *testing.T) {
	longMsg := make([]byte, 500)
	for i := range longMsg {
		longMsg[i] = 'e'
	}
	reader := &fakeReader{state: liveState(2000)}
	submitter := &fakeSubmitter{err: errors.New(string(longMsg))}
	c := connectReady(t, reader, submitter, 1000)

	_, err := c.PlaceBid(context.Background(), big.NewInt(100))
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if len([]rune(subErr.Reason)) > MaxErrorDisplayLength {
		t.Errorf("reason not truncated: %d runes", len([]rune(subErr.Reason)))
	}
}

func TestTick_TransitionsToEndedOnce(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	c := connectReady(t, reader, &fakeSubmitter{}, 1000)

	cd := c.Tick()
	if cd.Seconds != 1000 || cd.Display != "00:16:40" {
		t.Errorf("unexpected countdown: %+v", cd)
	}
	if !cd.Urgent {
		t.Error("expected urgent flag under one hour remaining")
	}

	// Deadline passes
	c.nowFn = fixedNow(2000)
	cd = c.Tick()
	if c.Phase() != PhaseEnded {
		t.Errorf("expected PhaseEnded, got %s", c.Phase())
	}
	if !cd.RefreshDue {
		t.Error("expected the single at-zero refetch request")
	}

	// The refetch fires exactly once
	cd = c.Tick()
	if cd.RefreshDue {
		t.Error("refetch requested twice")
	}
}

func TestEnded_RejectsSubmissionsLocally(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	submitter := &fakeSubmitter{hash: testTxHash}
	c := connectReady(t, reader, submitter, 1000)

	c.nowFn = fixedNow(3000)
	c.Tick()
	if c.Phase() != PhaseEnded {
		t.Fatalf("expected PhaseEnded, got %s", c.Phase())
	}

	readsBefore := reader.readCalls
	_, err := c.PlaceBid(context.Background(), big.NewInt(1_000_000))
	if !errors.Is(err, ErrAuctionEnded) {
		t.Fatalf("expected ErrAuctionEnded, got %v", err)
	}
	if submitter.calls != 0 {
		t.Error("contract contacted after auction end")
	}
	if reader.readCalls != readsBefore {
		t.Error("contract read issued by a rejected-after-end submission")
	}
}

func TestRefresh_DoesNotChangePhase(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	c := connectReady(t, reader, &fakeSubmitter{}, 1000)

	reader.state.HighestBid = big.NewInt(0) // unchanged live state
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if c.Phase() != PhaseReady {
		t.Errorf("refresh changed phase to %s", c.Phase())
	}

	// Refresh after Ended stays Ended
	c.nowFn = fixedNow(3000)
	c.Tick()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh after end failed: %v", err)
	}
	if c.Phase() != PhaseEnded {
		t.Errorf("expected PhaseEnded after refresh, got %s", c.Phase())
	}
}

func TestRefresh_ReadFailureDegrades(t *testing.T) {
	reader := &fakeReader{state: liveState(2000)}
	c := connectReady(t, reader, &fakeSubmitter{}, 1000)

	before := c.State()
	reader.readErr = errors.New("rpc timeout")
	err := c.Refresh(context.Background())
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if c.Phase() != PhaseReady {
		t.Errorf("read failure changed phase: %s", c.Phase())
	}
	after := c.State()
	if after.HighestBid.Cmp(before.HighestBid) != 0 {
		t.Error("failed refresh mutated held state")
	}
}

func TestBidderStats_WrapsReadFailure(t *testing.T) {
	reader := &fakeReader{state: liveState(2000), statsErr: errors.New("revert")}
	c := connectReady(t, reader, &fakeSubmitter{}, 1000)

	_, err := c.BidderStats(context.Background(), testAccount)
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{-5, "00:00:00"},
		{59, "00:00:59"},
		{3661, "01:01:01"},
		{90061, "1d 01:01:01"},
	}
	for _, tc := range cases {
		if got := FormatRemaining(tc.seconds); got != tc.want {
			t.Errorf("FormatRemaining(%d) = %s, want %s", tc.seconds, got, tc.want)
		}
	}
}
