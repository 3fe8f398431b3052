// Package gateway abstracts a single Ethereum-compatible RPC endpoint: new
// block/log subscriptions with reconnect-and-gap-fill, view calls, raw
// transaction submission, receipt polling and private-bundle submission.
// Every method here is a suspension point per the concurrency model in
// spec section 5 and carries an explicit deadline.
package gateway

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
)

// Default per-call deadlines, spec section 5.
const (
	ViewCallDeadline    = 1500 * time.Millisecond
	QuoterCallDeadline  = 3 * time.Second
	ReceiptPollDeadline = 10 * time.Second
)

// BlockHeader is the subset of go-ethereum's Header the core consumes.
type BlockHeader struct {
	Number  uint64
	Hash    common.Hash
	BaseFee *big.Int
}

// PrivateBundleSubmitter sends a set of raw transactions to a relay
// targeting the next N blocks. It is a separate interface because it has
// no equivalent JSON-RPC method on a plain node; a real relay client (e.g.
// a Flashbots-compatible one) is wired in behind it.
type PrivateBundleSubmitter interface {
	SendPrivateBundle(ctx context.Context, txs []*types.Transaction, targetBlocks []uint64) (bundleID string, err error)
}

// Gateway is the Chain Gateway of spec section 4/6.
type Gateway struct {
	cfg *config.Config
	log *zap.Logger
	ec  *ethclient.Client
	ws  *wsSubscriber
	rl  *limiter
	rel PrivateBundleSubmitter
}

// New dials the configured HTTP RPC endpoint and, if configured, opens the
// websocket endpoint used for subscriptions.
func New(cfg *config.Config, log *zap.Logger, rel PrivateBundleSubmitter) (*Gateway, error) {
	ec, err := ethclient.Dial(cfg.Chain.RPCHTTP)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial rpc: %w", err)
	}
	g := &Gateway{
		cfg: cfg,
		log: log,
		ec:  ec,
		rl:  newLimiter(cfg.Chain.MaxConcurrentRequests),
		rel: rel,
	}
	if cfg.Chain.RPCWS != "" {
		g.ws = newWSSubscriber(cfg.Chain.RPCWS, log)
	}
	return g, nil
}

// Close releases the underlying RPC connections.
func (g *Gateway) Close() {
	g.ec.Close()
	if g.ws != nil {
		g.ws.Close()
	}
}

// Call performs an eth_call against the given contract with a bounded
// deadline, respecting the concurrent-request cap.
func (g *Gateway) Call(ctx context.Context, to common.Address, data []byte, blockTag *big.Int) ([]byte, error) {
	if err := g.rl.acquire(ctx); err != nil {
		return nil, fmt.Errorf("gateway: request cap: %w", err)
	}
	defer g.rl.release()

	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	return g.ec.CallContract(cctx, ethereum.CallMsg{To: &to, Data: data}, blockTag)
}

// CallWithDeadline is Call with a caller-chosen deadline, used for the
// authoritative quoter call which spec section 5 gives a longer budget.
func (g *Gateway) CallWithDeadline(ctx context.Context, to common.Address, data []byte, blockTag *big.Int, deadline time.Duration) ([]byte, error) {
	if err := g.rl.acquire(ctx); err != nil {
		return nil, fmt.Errorf("gateway: request cap: %w", err)
	}
	defer g.rl.release()

	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	return g.ec.CallContract(cctx, ethereum.CallMsg{To: &to, Data: data}, blockTag)
}

// SendRawTransaction submits a signed transaction to the public mempool.
func (g *Gateway) SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	if err := g.ec.SendTransaction(cctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("gateway: send tx: %w", err)
	}
	return tx.Hash(), nil
}

// SendPrivateBundle forwards to the configured relay client, if any.
func (g *Gateway) SendPrivateBundle(ctx context.Context, txs []*types.Transaction, targetBlocks []uint64) (string, error) {
	if g.rel == nil {
		return "", fmt.Errorf("gateway: no private relay configured")
	}
	return g.rel.SendPrivateBundle(ctx, txs, targetBlocks)
}

// GetTransactionReceipt returns nil, nil if the receipt is not yet
// available rather than an error, matching spec section 6's optional<Receipt>.
func (g *Gateway) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	cctx, cancel := context.WithTimeout(ctx, ReceiptPollDeadline)
	defer cancel()
	r, err := g.ec.TransactionReceipt(cctx, hash)
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("gateway: get receipt: %w", err)
	}
	return r, nil
}

// HeadBlockNumber returns the current chain head height.
func (g *Gateway) HeadBlockNumber(ctx context.Context) (uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	h, err := g.ec.HeaderByNumber(cctx, nil)
	if err != nil {
		return 0, fmt.Errorf("gateway: head header: %w", err)
	}
	return h.Number.Uint64(), nil
}

// SuggestFees returns the current base fee and a suggested priority fee.
func (g *Gateway) SuggestFees(ctx context.Context) (baseFee, tip *big.Int, err error) {
	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	h, err := g.ec.HeaderByNumber(cctx, nil)
	if err != nil || h.BaseFee == nil {
		return nil, nil, fmt.Errorf("gateway: base fee: %w", err)
	}
	tip, err = g.ec.SuggestGasTipCap(cctx)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: suggest tip: %w", err)
	}
	return h.BaseFee, tip, nil
}

// ChainID returns the connected chain's id; each call issues an eth_chainId
// request.
func (g *Gateway) ChainID(ctx context.Context) (*big.Int, error) {
	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	return g.ec.ChainID(cctx)
}

// PendingNonceAt returns the next usable nonce for the given account.
func (g *Gateway) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	return g.ec.PendingNonceAt(cctx, addr)
}

// EstimateGas estimates gas for a call, falling back to the caller-supplied
// default on failure.
func (g *Gateway) EstimateGas(ctx context.Context, msg ethereum.CallMsg, fallback uint64) uint64 {
	cctx, cancel := context.WithTimeout(ctx, ViewCallDeadline)
	defer cancel()
	gas, err := g.ec.EstimateGas(cctx, msg)
	if err != nil || gas == 0 {
		return fallback
	}
	return gas
}
