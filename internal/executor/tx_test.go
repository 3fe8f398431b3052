package executor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDynamicFeeTxAppliesGasMultiplier(t *testing.T) {
	to := common.HexToAddress("0x1111000000000000000000000000000000aaaa")
	tx := BuildDynamicFeeTx(big.NewInt(1), to, 5, 450_000, big.NewInt(100), big.NewInt(10), 1.2, []byte{0xde, 0xad})

	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, uint64(450_000), tx.Gas())
	assert.Equal(t, big.NewInt(10), tx.GasTipCap())
	// (100+10) * 1.2 = 132.
	assert.Equal(t, big.NewInt(132), tx.GasFeeCap())
	assert.Equal(t, to, *tx.To())
}

func TestScaleFee(t *testing.T) {
	assert.Equal(t, big.NewInt(115), scaleFee(big.NewInt(100), 1.15))
	assert.Equal(t, big.NewInt(100), scaleFee(big.NewInt(100), 1.0))
}

func TestSignTxRoundTrips(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x1111000000000000000000000000000000aaaa")
	tx := BuildDynamicFeeTx(big.NewInt(1), to, 0, 21_000, big.NewInt(1), big.NewInt(1), 1.0, nil)

	signed, err := SignTx(tx, big.NewInt(1), priv)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewLondonSigner(big.NewInt(1)), signed)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), sender)
}

func TestLoadPrivateKeyAcceptsWithAndWithoutPrefix(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(priv))

	got, err := LoadPrivateKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, priv.D, got.D)

	got2, err := LoadPrivateKey("0x" + hexKey)
	require.NoError(t, err)
	assert.Equal(t, priv.D, got2.D)
}

func TestLoadPrivateKeyRejectsGarbage(t *testing.T) {
	_, err := LoadPrivateKey("not-a-key")
	assert.Error(t, err)
}
