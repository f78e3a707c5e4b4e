// Package wallet is the boundary to the transaction-signing runtime. The bid
// engine talks to the Wallet interface only and never holds key material;
// inside a frame the host environment implements it, while the standalone
// watcher uses KeyedWallet with a key taken from the environment.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrRejected is returned when the signing runtime reports that the user
// cancelled the transaction.
var ErrRejected = errors.New("transaction rejected by user")

// Wallet exposes account access, the active network, and transaction
// submission. Implementations sign and broadcast; callers never see keys.
type Wallet interface {
	// Account returns the connected account address.
	Account(ctx context.Context) (common.Address, error)

	// ChainID returns the wallet's active network id.
	ChainID(ctx context.Context) (*big.Int, error)

	// Submit signs and broadcasts a value-carrying call and returns the
	// transaction hash. It does not wait for inclusion.
	Submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// Backend is the subset of an Ethereum RPC client the keyed wallet needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyedWallet signs locally with a secp256k1 key and broadcasts through an
// RPC backend.
type KeyedWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	backend Backend
}

// NewKeyedWallet creates a wallet from a hex-encoded private key.
func NewKeyedWallet(hexKey string, chainID *big.Int, backend Backend) (*KeyedWallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeyedWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		backend: backend,
	}, nil
}

// NewKeyedWalletFromEnv reads the hex private key from the named environment
// variable. The key stays inside this package.
func NewKeyedWalletFromEnv(envVar string, chainID *big.Int, backend Backend) (*KeyedWallet, error) {
	hexKey := os.Getenv(envVar)
	if hexKey == "" {
		return nil, fmt.Errorf("environment variable %s is not set", envVar)
	}
	return NewKeyedWallet(hexKey, chainID, backend)
}

// Account returns the address derived from the signing key.
func (w *KeyedWallet) Account(ctx context.Context) (common.Address, error) {
	return w.address, nil
}

// ChainID reports the backend's network id, which is the keyed wallet's
// active network.
func (w *KeyedWallet) ChainID(ctx context.Context) (*big.Int, error) {
	return w.backend.ChainID(ctx)
}

// Submit builds, signs, and broadcasts a legacy transaction carrying value
// and calldata to the given address. Returns the hash immediately; inclusion
// is confirmed by the caller re-polling state.
func (w *KeyedWallet) Submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		// Estimation failure usually means the contract would revert the
		// bid (e.g. another bid landed first). The contract's verdict is
		// authoritative.
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast transaction: %w", err)
	}

	return signed.Hash(), nil
}
