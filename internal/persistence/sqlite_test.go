package persistence

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/triarb/internal/types"
)

func TestRecordAttemptInsertsRow(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	defer store.Close()

	attempt := types.TradeAttempt{
		AttemptID: "attempt-1",
		OpportunityRef: types.Opportunity{
			PathID:      42,
			InputAmount: big.NewInt(1000),
			EstGrossOut: big.NewInt(1050),
			EstGasWei:   big.NewInt(21_000),
		},
		SubmissionRoute: types.RoutePublic,
		TxHashes:        []common.Hash{common.HexToHash("0x1")},
		State:           types.StateIncluded,
		FinalProfitRaw:  big.NewInt(29),
		BlockNumber:     100,
		CreatedAt:       time.Unix(0, 0).UTC(),
	}

	require.NoError(t, store.RecordAttempt(context.Background(), attempt))

	var state, profitRaw string
	var pathID int64
	row := store.db.QueryRow(`SELECT terminal_state, profit_raw, path_id FROM trade_attempts WHERE attempt_id = ?`, "attempt-1")
	require.NoError(t, row.Scan(&state, &profitRaw, &pathID))
	require.Equal(t, "Included", state)
	require.Equal(t, "29", profitRaw)
	require.Equal(t, int64(42), pathID)
}

func TestRecordAttemptUpsertsOnRetry(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	defer store.Close()

	base := types.TradeAttempt{
		AttemptID:       "attempt-2",
		OpportunityRef:  types.Opportunity{PathID: 1, InputAmount: big.NewInt(1), EstGrossOut: big.NewInt(1), EstGasWei: big.NewInt(1)},
		SubmissionRoute: types.RoutePublic,
		State:           types.StateSubmitted,
		CreatedAt:       time.Unix(0, 0).UTC(),
	}
	require.NoError(t, store.RecordAttempt(context.Background(), base))

	base.State = types.StateIncluded
	base.FinalProfitRaw = big.NewInt(500)
	require.NoError(t, store.RecordAttempt(context.Background(), base))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM trade_attempts WHERE attempt_id = ?`, "attempt-2").Scan(&count))
	require.Equal(t, 1, count)

	var state string
	require.NoError(t, store.db.QueryRow(`SELECT terminal_state FROM trade_attempts WHERE attempt_id = ?`, "attempt-2").Scan(&state))
	require.Equal(t, "Included", state)
}
