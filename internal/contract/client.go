// Package contract reads and writes the on-chain auction through eth_call
// and the wallet boundary. All reads are point-in-time against the latest
// block; the client never caches auction state.
package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/jc4p/jc4p-auction-frame/internal/logger"
	"github.com/jc4p/jc4p-auction-frame/internal/models"
	"github.com/jc4p/jc4p-auction-frame/internal/wallet"
)

// Caller is the read-only subset of an Ethereum RPC client the auction
// client needs. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client talks to one auction contract for one fixed token id.
type Client struct {
	caller  Caller
	wallet  wallet.Wallet
	abi     abi.ABI
	address common.Address
	tokenID *big.Int

	// preferRenderData is cleared after the first failed combined read so
	// later refreshes go straight to the individual views.
	preferRenderData bool
}

// NewClient creates a client for the auction contract at address, lot
// tokenID. The wallet may be nil for read-only use.
func NewClient(caller Caller, w wallet.Wallet, address common.Address, tokenID int64) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(auctionABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse auction ABI: %w", err)
	}
	return &Client{
		caller:           caller,
		wallet:           w,
		abi:              parsed,
		address:          address,
		tokenID:          big.NewInt(tokenID),
		preferRenderData: true,
	}, nil
}

// call packs, executes, and unpacks one view method.
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// ReadState reads the full auction state. It prefers the combined
// getRenderData call and falls back to the individual views when that read
// fails. The highest bidder's FID resolves via getBidderStats; a failure
// there degrades just that field instead of failing the whole read.
func (c *Client) ReadState(ctx context.Context) (*models.AuctionState, error) {
	if c.preferRenderData {
		state, _, err := c.readRenderData(ctx)
		if err == nil {
			c.resolveHighestBidderFID(ctx, state)
			return state, nil
		}
		logger.Warn("getRenderData unavailable, falling back to individual reads: %v", err)
		c.preferRenderData = false
	}

	state, err := c.readIndividually(ctx)
	if err != nil {
		return nil, err
	}
	c.resolveHighestBidderFID(ctx, state)
	return state, nil
}

// readRenderData issues the combined read and returns state plus the token
// metadata URI.
func (c *Client) readRenderData(ctx context.Context) (*models.AuctionState, string, error) {
	values, err := c.call(ctx, "getRenderData", c.tokenID)
	if err != nil {
		return nil, "", err
	}
	if len(values) != 9 {
		return nil, "", fmt.Errorf("getRenderData: expected 9 values, got %d", len(values))
	}

	state := &models.AuctionState{
		ReservePrice:    values[0].(*big.Int),
		MinIncrementBps: values[1].(*big.Int),
		HighestBidder:   values[2].(common.Address),
		HighestBid:      values[3].(*big.Int),
		HasFirstBid:     values[4].(bool),
		FirstBidderFID:  values[5].(uint64),
		TotalBids:       values[6].(*big.Int),
		EndTime:         values[7].(*big.Int).Int64(),
	}
	uri := values[8].(string)

	if err := state.Validate(); err != nil {
		return nil, "", fmt.Errorf("getRenderData returned inconsistent state: %w", err)
	}
	return state, uri, nil
}

// readIndividually reads the state one view at a time.
func (c *Client) readIndividually(ctx context.Context) (*models.AuctionState, error) {
	state := &models.AuctionState{}

	values, err := c.call(ctx, "reservePrice")
	if err != nil {
		return nil, err
	}
	state.ReservePrice = values[0].(*big.Int)

	values, err = c.call(ctx, "minIncrementBps")
	if err != nil {
		return nil, err
	}
	state.MinIncrementBps = values[0].(*big.Int)

	values, err = c.call(ctx, "getAuctionInfo")
	if err != nil {
		return nil, err
	}
	state.HighestBidder = values[0].(common.Address)
	state.HighestBid = values[1].(*big.Int)

	values, err = c.call(ctx, "hasFirstBid")
	if err != nil {
		return nil, err
	}
	state.HasFirstBid = values[0].(bool)

	if state.HasFirstBid {
		values, err = c.call(ctx, "firstBidderFID")
		if err != nil {
			return nil, err
		}
		state.FirstBidderFID = values[0].(uint64)
	}

	values, err = c.call(ctx, "totalBids")
	if err != nil {
		return nil, err
	}
	state.TotalBids = values[0].(*big.Int)

	values, err = c.call(ctx, "endTime")
	if err != nil {
		return nil, err
	}
	state.EndTime = values[0].(*big.Int).Int64()

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("contract returned inconsistent state: %w", err)
	}
	return state, nil
}

// resolveHighestBidderFID fills in the current leader's FID. Failure leaves
// the field at zero; the caller's display shows it as unresolved.
func (c *Client) resolveHighestBidderFID(ctx context.Context, state *models.AuctionState) {
	if state.HighestBidder == (common.Address{}) {
		return
	}
	stats, err := c.BidderStats(ctx, state.HighestBidder)
	if err != nil {
		logger.Warn("could not resolve FID for highest bidder %s: %v", state.HighestBidder.Hex(), err)
		return
	}
	state.HighestBidderFID = stats.FID
}

// BidderStats takes a fresh per-address read.
func (c *Client) BidderStats(ctx context.Context, addr common.Address) (models.BidderStats, error) {
	values, err := c.call(ctx, "getBidderStats", addr)
	if err != nil {
		return models.BidderStats{}, err
	}
	return models.BidderStats{
		BidCount: values[0].(*big.Int).Uint64(),
		FID:      values[1].(uint64),
	}, nil
}

// TokenURI reads the lot's metadata URI.
func (c *Client) TokenURI(ctx context.Context) (string, error) {
	values, err := c.call(ctx, "tokenURI", c.tokenID)
	if err != nil {
		return "", err
	}
	return values[0].(string), nil
}

// PlaceBid submits one value-carrying placeBid(fid) call through the wallet.
// It returns the transaction hash immediately and does not wait for
// inclusion.
func (c *Client) PlaceBid(ctx context.Context, fid uint64, amount *big.Int) (common.Hash, error) {
	if c.wallet == nil {
		return common.Hash{}, fmt.Errorf("no wallet configured")
	}
	data, err := c.abi.Pack("placeBid", fid)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack placeBid: %w", err)
	}
	return c.wallet.Submit(ctx, c.address, amount, data)
}
