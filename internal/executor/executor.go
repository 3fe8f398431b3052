// Package executor drives a Trade Attempt through the state machine of
// spec section 4.7: Queued -> Building -> Submitted -> {Included, Reverted,
// Dropped, Timeout}, owning the wallet nonce and reconciling reorgs.
package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/arbcore/triarb/internal/config"
	"github.com/arbcore/triarb/internal/metrics"
	"github.com/arbcore/triarb/internal/pathindex"
	"github.com/arbcore/triarb/internal/types"
)

// ChainClient is the subset of gateway.Gateway the executor needs; kept as
// a local interface so this package can be tested without a real gateway.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SuggestFees(ctx context.Context) (baseFee, tip *big.Int, err error)
	SendRawTransaction(ctx context.Context, tx *gethtypes.Transaction) (common.Hash, error)
	SendPrivateBundle(ctx context.Context, txs []*gethtypes.Transaction, targetBlocks []uint64) (string, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
	HeadBlockNumber(ctx context.Context) (uint64, error)
	Call(ctx context.Context, to common.Address, data []byte, blockTag *big.Int) ([]byte, error)
}

// Store is the persistence collaborator's write side (spec section 6):
// append-only recording of terminal trade attempts.
type Store interface {
	RecordAttempt(ctx context.Context, attempt types.TradeAttempt) error
}

const defaultGasLimit = 450_000

// Executor owns exactly one wallet's nonce and drives attempts serially per
// nonce slot while allowing many attempts to be built/sized concurrently.
type Executor struct {
	cfg    *config.Config
	chain  ChainClient
	store  Store
	idx    *pathindex.Index
	log    *zap.Logger
	priv   *ecdsa.PrivateKey
	wallet common.Address

	mu    sync.Mutex
	nonce uint64
	ready bool

	inflight sync.Map // common.Hash -> *inflightRecord
}

// inflightRecord pairs a submitted attempt with the transaction that was
// sent, so a revert can be re-simulated for structured decoding.
type inflightRecord struct {
	attempt *types.TradeAttempt
	tx      *gethtypes.Transaction
	retried bool
}

// maxFeeBumpMultiplier caps how far a single timeout retry may push the
// priority fee above the original submission, per spec section 4.7.
const maxFeeBumpMultiplier = 3.0

// feeBumpFactor scales the priority fee on the one retry a Timeout gets.
const feeBumpFactor = 1.5

// New constructs an Executor bound to one wallet key.
func New(cfg *config.Config, chain ChainClient, store Store, idx *pathindex.Index, log *zap.Logger, priv *ecdsa.PrivateKey) *Executor {
	return &Executor{
		cfg:    cfg,
		chain:  chain,
		store:  store,
		idx:    idx,
		log:    log,
		priv:   priv,
		wallet: crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Submit takes an Opportunity off the bus and drives it through the state
// machine to a terminal state. It returns once the transaction is built and
// the submission call has returned; receipt observation runs in a background
// goroutine.
func (e *Executor) Submit(ctx context.Context, opp types.Opportunity, headBlock uint64) {
	attempt := &types.TradeAttempt{
		AttemptID:       fmt.Sprintf("%d-%d-%d", opp.PathID, opp.DetectedAtBlock, headBlock),
		OpportunityRef:  opp,
		SubmissionRoute: types.SubmissionRoute(e.cfg.Risk.SubmissionRoute),
		State:           types.StateQueued,
		CreatedAt:       nowStamp(),
	}
	metrics.ExecutorInflight.Inc()
	defer metrics.ExecutorInflight.Dec()

	if headBlock < opp.DetectedAtBlock || headBlock-opp.DetectedAtBlock > e.cfg.Risk.MaxStalenessBlocks {
		e.abandon(ctx, attempt, types.AbandonStale)
		return
	}

	path, ok := e.idx.Lookup(opp.PathID)
	if !ok {
		e.log.Error("executor: unknown path id", zap.Uint64("path_id", opp.PathID))
		e.abandon(ctx, attempt, types.AbandonStale)
		return
	}

	attempt.State = types.StateBuilding
	tx, err := e.build(ctx, path, opp)
	if err != nil {
		e.log.Warn("executor: build failed", zap.Error(err), zap.Uint64("path_id", opp.PathID))
		e.ReleaseNonceOnFailedBuild()
		e.finish(ctx, attempt, types.StateDropped, nil)
		return
	}

	attempt.State = types.StateSubmitted
	attempt.TxHashes = append(attempt.TxHashes, tx.Hash())
	if err := e.submit(ctx, tx); err != nil {
		e.log.Warn("executor: submission failed", zap.Error(err), zap.String("tx", tx.Hash().Hex()))
		e.finish(ctx, attempt, types.StateDropped, nil)
		return
	}

	rec := &inflightRecord{attempt: attempt, tx: tx}
	e.inflight.Store(tx.Hash(), rec)
	go e.observe(ctx, rec)
}

func (e *Executor) build(ctx context.Context, path types.TriangularPath, opp types.Opportunity) (*gethtypes.Transaction, error) {
	e.mu.Lock()
	if !e.ready {
		n, err := e.chain.PendingNonceAt(ctx, e.wallet)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("executor: initial nonce: %w", err)
		}
		e.nonce = n
		e.ready = true
	}
	nonce := e.nonce
	e.nonce++
	e.mu.Unlock()

	chainID, err := e.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: chain id: %w", err)
	}
	baseFee, tip, err := e.chain.SuggestFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: suggest fees: %w", err)
	}

	// The path's first hop pool doubles as the flash-loan source: it
	// already holds tokenA, so the borrowed amount and its fee are repaid
	// without routing through a fourth contract.
	minProfit := applySlippage(opp.EstNetProfit, e.cfg.Risk.MaxSlippageBps)
	data, err := PackExecuteArbitrage(BuildCallParams{
		FlashPool: path.Pool1, TokenA: path.TokenA, TokenB: path.TokenB, TokenC: path.TokenC,
		Fee1: path.Fee1, Fee2: path.Fee2, Fee3: path.Fee3,
		AmountIn: opp.InputAmount, MinProfit: minProfit,
	})
	if err != nil {
		return nil, err
	}

	executorAddr := common.HexToAddress(e.cfg.Contracts.ExecutorAddress)
	tx := BuildDynamicFeeTx(chainID, executorAddr, nonce, defaultGasLimit, baseFee, tip, e.cfg.Risk.GasPriceMultiplier, data)
	signed, err := SignTx(tx, chainID, e.priv)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func applySlippage(grossOut *big.Int, maxSlippageBps int) *big.Int {
	if grossOut == nil {
		return big.NewInt(0)
	}
	factor := big.NewInt(10_000 - int64(maxSlippageBps))
	out := new(big.Int).Mul(grossOut, factor)
	return out.Div(out, big.NewInt(10_000))
}

func (e *Executor) submit(ctx context.Context, tx *gethtypes.Transaction) error {
	// Private bundles target the next bundleTargetBlocks blocks after head.
	const bundleTargetBlocks = 3
	route := config.SubmissionRoute(e.cfg.Risk.SubmissionRoute)
	var targets []uint64
	if route == config.RouteFlashbots || route == config.RouteBoth {
		head, err := e.chain.HeadBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("executor: head block for bundle targets: %w", err)
		}
		for i := uint64(1); i <= bundleTargetBlocks; i++ {
			targets = append(targets, head+i)
		}
	}
	switch route {
	case config.RouteNormal:
		_, err := e.chain.SendRawTransaction(ctx, tx)
		return err
	case config.RouteFlashbots:
		_, err := e.chain.SendPrivateBundle(ctx, []*gethtypes.Transaction{tx}, targets)
		return err
	case config.RouteBoth:
		_, err1 := e.chain.SendRawTransaction(ctx, tx)
		_, err2 := e.chain.SendPrivateBundle(ctx, []*gethtypes.Transaction{tx}, targets)
		if err1 != nil && err2 != nil {
			return fmt.Errorf("both routes failed: public=%v private=%v", err1, err2)
		}
		return nil
	default:
		return fmt.Errorf("executor: unknown submission route %q", e.cfg.Risk.SubmissionRoute)
	}
}

// observe polls for a receipt, then watches reorg_safety blocks for the
// inclusion to be orphaned.
func (e *Executor) observe(ctx context.Context, rec *inflightRecord) {
	txHash := rec.tx.Hash()
	attempt := rec.attempt
	defer e.inflight.Delete(txHash)

	ticker := time.NewTicker(e.cfg.ReceiptPollInterval())
	defer ticker.Stop()

	var receipt *gethtypes.Receipt
	deadline := time.Now().Add(2 * time.Minute)
	for receipt == nil {
		select {
		case <-ctx.Done():
			e.handleTimeout(ctx, rec)
			return
		case <-ticker.C:
			r, err := e.chain.GetTransactionReceipt(ctx, txHash)
			if err != nil {
				e.log.Warn("executor: receipt poll error", zap.Error(err))
				continue
			}
			receipt = r
			if receipt == nil && time.Now().After(deadline) {
				e.handleTimeout(ctx, rec)
				return
			}
		}
	}

	if receipt.Status == gethtypes.ReceiptStatusFailed {
		e.decodeAndFinishRevert(ctx, rec, receipt)
		return
	}

	attempt.BlockNumber = receipt.BlockNumber.Uint64()
	e.watchReorg(ctx, attempt, txHash, receipt.BlockNumber.Uint64())
}

// handleTimeout implements spec section 4.7's Timeout outcome: the first
// timeout on an attempt gets one resubmission with a bumped priority fee;
// a timeout on that retry (or any failure rebuilding/resubmitting it)
// terminalizes the attempt as Timeout.
func (e *Executor) handleTimeout(ctx context.Context, rec *inflightRecord) {
	if rec.retried {
		e.finish(ctx, rec.attempt, types.StateTimeout, nil)
		return
	}

	newTx, err := e.rebuildWithBumpedFee(rec)
	if err != nil {
		e.log.Warn("executor: fee-bump rebuild failed, finalizing timeout",
			zap.Error(err), zap.String("attempt_id", rec.attempt.AttemptID))
		e.finish(ctx, rec.attempt, types.StateTimeout, nil)
		return
	}

	submitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.submit(submitCtx, newTx); err != nil {
		e.log.Warn("executor: fee-bump resubmission failed, finalizing timeout",
			zap.Error(err), zap.String("attempt_id", rec.attempt.AttemptID))
		e.finish(ctx, rec.attempt, types.StateTimeout, nil)
		return
	}

	e.log.Info("executor: resubmitted with bumped priority fee after timeout",
		zap.String("attempt_id", rec.attempt.AttemptID),
		zap.String("old_tx", rec.tx.Hash().Hex()),
		zap.String("new_tx", newTx.Hash().Hex()))
	metrics.ExecutorRetries.Inc()

	rec.retried = true
	rec.tx = newTx
	rec.attempt.TxHashes = append(rec.attempt.TxHashes, newTx.Hash())
	e.inflight.Store(newTx.Hash(), rec)
	e.observe(ctx, rec)
}

// rebuildWithBumpedFee re-signs the attempt's transaction at the same nonce
// with a higher priority fee, capped at maxFeeBumpMultiplier times the
// original tip so a stuck fee market can't be chased indefinitely.
func (e *Executor) rebuildWithBumpedFee(rec *inflightRecord) (*gethtypes.Transaction, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := e.chain.ChainID(callCtx)
	if err != nil {
		return nil, fmt.Errorf("executor: chain id for retry: %w", err)
	}
	baseFee, suggestedTip, err := e.chain.SuggestFees(callCtx)
	if err != nil {
		return nil, fmt.Errorf("executor: suggest fees for retry: %w", err)
	}

	origTip := new(big.Int).Set(rec.tx.GasTipCap())
	bumpedTip := scaleFee(origTip, feeBumpFactor)
	if suggestedTip.Cmp(bumpedTip) > 0 {
		bumpedTip = new(big.Int).Set(suggestedTip)
	}
	cap := scaleFee(origTip, maxFeeBumpMultiplier)
	if bumpedTip.Cmp(cap) > 0 {
		bumpedTip = cap
	}

	tx := BuildDynamicFeeTx(chainID, *rec.tx.To(), rec.tx.Nonce(), rec.tx.Gas(), baseFee, bumpedTip, e.cfg.Risk.GasPriceMultiplier, rec.tx.Data())
	return SignTx(tx, chainID, e.priv)
}

// decodeAndFinishRevert re-simulates the reverted transaction as an
// eth_call at its own block to recover the revert data (a mined receipt
// carries a status bit, not the revert reason), then decodes it by
// selector for the trade attempt's hop trace.
func (e *Executor) decodeAndFinishRevert(ctx context.Context, rec *inflightRecord, receipt *gethtypes.Receipt) {
	attempt := rec.attempt
	to := rec.tx.To()
	var info RevertInfo
	if to != nil {
		blockTag := new(big.Int).Set(receipt.BlockNumber)
		if _, err := e.chain.Call(ctx, *to, rec.tx.Data(), blockTag); err != nil {
			if de, ok := err.(interface{ ErrorData() interface{} }); ok {
				if raw, ok := de.ErrorData().([]byte); ok {
					info = DecodeRevert(raw)
				}
			}
		}
	}
	attempt.HopTrace = info.HopTrace
	e.log.Warn("executor: attempt reverted",
		zap.String("attempt_id", attempt.AttemptID),
		zap.String("revert_kind", info.Kind),
		zap.String("revert_message", info.Message))
	e.finish(ctx, attempt, types.StateReverted, nil)
}

func (e *Executor) watchReorg(ctx context.Context, attempt *types.TradeAttempt, txHash common.Hash, includedAt uint64) {
	ticker := time.NewTicker(e.cfg.ReceiptPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := e.chain.HeadBlockNumber(ctx)
			if err != nil {
				continue
			}
			r, err := e.chain.GetTransactionReceipt(ctx, txHash)
			if err != nil {
				continue
			}
			if r == nil {
				// The receipt disappeared: an orphaning reorg. Per spec
				// section 4.7 this is Dropped, not retried.
				e.finish(ctx, attempt, types.StateDropped, nil)
				return
			}
			if head-includedAt >= e.cfg.Risk.ReorgSafety {
				var profit *big.Int
				if l := logFor(r, ArbitrageExecutedTopic); l != nil {
					if ev, err := DecodeExecuted(l); err == nil {
						profit = ev.Profit
					} else {
						e.log.Warn("executor: ArbitrageExecuted decode failed", zap.Error(err), zap.String("attempt_id", attempt.AttemptID))
					}
				}
				e.finish(ctx, attempt, types.StateIncluded, profit)
				return
			}
		}
	}
}

func logFor(r *gethtypes.Receipt, topic common.Hash) *gethtypes.Log {
	for _, l := range r.Logs {
		if len(l.Topics) > 0 && l.Topics[0] == topic {
			return l
		}
	}
	return nil
}

func (e *Executor) abandon(ctx context.Context, attempt *types.TradeAttempt, reason types.AbandonReason) {
	attempt.State = types.StateAbandoned
	attempt.AbandonReason = reason
	metrics.ExecutorOutcomes.WithLabelValues(string(types.StateAbandoned)).Inc()
	if err := e.store.RecordAttempt(ctx, *attempt); err != nil {
		e.log.Warn("executor: record abandoned attempt failed", zap.Error(err))
	}
}

func (e *Executor) finish(ctx context.Context, attempt *types.TradeAttempt, state types.AttemptState, finalProfit *big.Int) {
	attempt.State = state
	attempt.FinalProfitRaw = finalProfit
	metrics.ExecutorOutcomes.WithLabelValues(string(state)).Inc()
	if err := e.store.RecordAttempt(ctx, *attempt); err != nil {
		e.log.Warn("executor: record attempt failed", zap.Error(err), zap.String("attempt_id", attempt.AttemptID))
	}
}

// ReleaseNonceOnFailedBuild is called when building/signing failed before a
// nonce was ever broadcast, so the reserved slot isn't stranded.
func (e *Executor) ReleaseNonceOnFailedBuild() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nonce > 0 {
		e.nonce--
	}
}

func nowStamp() time.Time {
	return time.Now()
}
