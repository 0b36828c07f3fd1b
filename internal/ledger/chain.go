package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
)

const routerABIJSON = `[
{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"uint8","name":"bucketId","type":"uint8"}],"name":"bucketBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint8","name":"bucketId","type":"uint8"}],"name":"bucketYieldRate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"bucketsInitialized","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"uint8","name":"fromBucket","type":"uint8"},{"internalType":"uint8","name":"toBucket","type":"uint8"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"sweep","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic("failed to parse payment router ABI: " + err.Error())
	}
	routerABI = parsed
}

// ChainOptions parameterise the on-chain ledger adapter.
type ChainOptions struct {
	RPCURL        string
	RouterAddress string
	PrivateKey    string // hex, keeper signing key; reads work without it
	ChainID       int64
	TokenDecimals int32
	Timeout       time.Duration
}

// Chain reads bucket state from the deployed vault router over Ethereum
// RPC and submits sweep transactions with the keeper key.
type Chain struct {
	opts      ChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
	key       *ecdsa.PrivateKey
	keyErr    error
	keyOnce   sync.Once
}

// NewChain builds the chain-backed ledger.
func NewChain(opts ChainOptions, logger zerolog.Logger) *Chain {
	if opts.TokenDecimals <= 0 {
		opts.TokenDecimals = 6
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Chain{opts: opts, logger: logger.With().Str("component", "chain_ledger").Logger()}
}

func (c *Chain) BalanceOf(ctx context.Context, user string, k bucket.Kind) (decimal.Decimal, error) {
	out, err := c.call(ctx, "bucketBalance", common.HexToAddress(user), uint8(k))
	if err != nil {
		return decimal.Decimal{}, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("unexpected bucketBalance response")
	}
	return decimal.NewFromBigInt(raw, -c.opts.TokenDecimals), nil
}

func (c *Chain) YieldRateOf(ctx context.Context, k bucket.Kind) (int64, error) {
	out, err := c.call(ctx, "bucketYieldRate", uint8(k))
	if err != nil {
		return 0, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("unexpected bucketYieldRate response")
	}
	return raw.Int64(), nil
}

func (c *Chain) BucketsWired(ctx context.Context, user string) (bool, error) {
	out, err := c.call(ctx, "bucketsInitialized", common.HexToAddress(user))
	if err != nil {
		return false, err
	}
	wired, ok := out[0].(bool)
	if !ok {
		return false, errors.New("unexpected bucketsInitialized response")
	}
	return wired, nil
}

// Transfer submits a signed sweep transaction to the router. The router
// contract is the serialization point: it re-checks balances on-chain.
func (c *Chain) Transfer(ctx context.Context, user string, from, to bucket.Kind, amount decimal.Decimal) error {
	key, err := c.signingKey()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return err
	}

	atoms := amount.Shift(c.opts.TokenDecimals).Round(0).BigInt()
	payload, err := routerABI.Pack("sweep", common.HexToAddress(user), uint8(from), uint8(to), atoms)
	if err != nil {
		return err
	}

	sender := crypto.PubkeyToAddress(key.PublicKey)
	router := common.HexToAddress(c.opts.RouterAddress)

	nonce, err := client.PendingNonceAt(ctx, sender)
	if err != nil {
		return err
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: sender, To: &router, Data: payload})
	if err != nil {
		return err
	}

	chainID := big.NewInt(c.opts.ChainID)
	if c.opts.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			return err
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &router,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     payload,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return err
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return err
	}

	c.logger.Info().
		Str("user", user).
		Str("from", from.String()).
		Str("to", to.String()).
		Str("amount", amount.String()).
		Str("tx", signed.Hash().Hex()).
		Msg("sweep transaction submitted")
	return nil
}

func (c *Chain) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if c.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if c.opts.RouterAddress == "" {
		return nil, errors.New("router contract address not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := routerABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(c.opts.RouterAddress)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	out, err := routerABI.Unpack(method, res)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.New("unexpected response arity from " + method)
	}
	return out, nil
}

func (c *Chain) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *Chain) signingKey() (*ecdsa.PrivateKey, error) {
	c.keyOnce.Do(func() {
		if c.opts.PrivateKey == "" {
			c.keyErr = errors.New("keeper private key not configured")
			return
		}
		c.key, c.keyErr = crypto.HexToECDSA(strings.TrimPrefix(c.opts.PrivateKey, "0x"))
	})
	return c.key, c.keyErr
}

var _ Ledger = (*Chain)(nil)
