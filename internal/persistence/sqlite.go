// Package persistence stores settled trade attempts in a local append-only
// database and, optionally, keeps the pool/path configuration warm from a
// Redis-backed change feed.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbcore/triarb/internal/types"
)

const createTradeAttemptsTable = `
CREATE TABLE IF NOT EXISTS trade_attempts (
	attempt_id      TEXT PRIMARY KEY,
	path_id         INTEGER NOT NULL,
	amount_in       TEXT NOT NULL,
	amount_out      TEXT NOT NULL,
	profit_raw      TEXT NOT NULL,
	gas_wei         TEXT NOT NULL,
	route           TEXT NOT NULL,
	tx_hashes       TEXT NOT NULL,
	terminal_state  TEXT NOT NULL,
	abandon_reason  TEXT NOT NULL,
	block_number    INTEGER NOT NULL,
	created_at      DATETIME NOT NULL
)`

// Store is the executor's append-only record of settled trade attempts.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// migrates the trade_attempts table.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTradeAttemptsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: migrate trade_attempts: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordAttempt persists one terminal trade attempt. It satisfies
// executor.Store.
func (s *Store) RecordAttempt(ctx context.Context, attempt types.TradeAttempt) error {
	profitRaw := "0"
	if attempt.FinalProfitRaw != nil {
		profitRaw = attempt.FinalProfitRaw.String()
	}
	amountIn := "0"
	amountOut := "0"
	gasWei := "0"
	if attempt.OpportunityRef.InputAmount != nil {
		amountIn = attempt.OpportunityRef.InputAmount.String()
	}
	if attempt.OpportunityRef.EstGrossOut != nil {
		amountOut = attempt.OpportunityRef.EstGrossOut.String()
	}
	if attempt.OpportunityRef.EstGasWei != nil {
		gasWei = attempt.OpportunityRef.EstGasWei.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_attempts (
			attempt_id, path_id, amount_in, amount_out, profit_raw, gas_wei,
			route, tx_hashes, terminal_state, abandon_reason, block_number, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attempt_id) DO UPDATE SET
			terminal_state = excluded.terminal_state,
			abandon_reason = excluded.abandon_reason,
			profit_raw = excluded.profit_raw,
			tx_hashes = excluded.tx_hashes,
			block_number = excluded.block_number`,
		attempt.AttemptID,
		attempt.OpportunityRef.PathID,
		amountIn,
		amountOut,
		profitRaw,
		gasWei,
		string(attempt.SubmissionRoute),
		joinHashes(attempt.TxHashes),
		string(attempt.State),
		string(attempt.AbandonReason),
		attempt.BlockNumber,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("persistence: record attempt %s: %w", attempt.AttemptID, err)
	}
	return nil
}

func joinHashes(hashes []common.Hash) string {
	if len(hashes) == 0 {
		return ""
	}
	parts := make([]string, len(hashes))
	for i, h := range hashes {
		parts[i] = h.Hex()
	}
	return strings.Join(parts, ",")
}
