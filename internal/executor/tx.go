package executor

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// BuildDynamicFeeTx constructs an unsigned EIP-1559 transaction targeting
// the executor contract's executeArbitrage entry point.
func BuildDynamicFeeTx(chainID *big.Int, to common.Address, nonce uint64, gasLimit uint64, baseFee, priorityFee *big.Int, gasPriceMultiplier float64, data []byte) *types.Transaction {
	tip := new(big.Int).Set(priorityFee)
	maxFeePerGas := scaleFee(new(big.Int).Add(baseFee, tip), gasPriceMultiplier)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
}

// scaleFee multiplies fee by a float multiplier (e.g. 1.15 for 15% headroom
// over the raw base+tip estimate), keeping the arithmetic in big.Int by
// scaling to a fixed-point numerator/denominator pair.
func scaleFee(fee *big.Int, multiplier float64) *big.Int {
	const scale = 1_000_000
	num := big.NewInt(int64(multiplier * scale))
	out := new(big.Int).Mul(fee, num)
	return out.Div(out, big.NewInt(scale))
}

// SignTx signs tx with priv for the given chain, matching the signer the
// rest of the pack uses for post-London transactions.
func SignTx(tx *types.Transaction, chainID *big.Int, priv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.NewLondonSigner(chainID)
	signed, err := types.SignTx(tx, signer, priv)
	if err != nil {
		return nil, fmt.Errorf("executor: sign tx: %w", err)
	}
	return signed, nil
}

// LoadPrivateKey parses a hex-encoded ECDSA private key (with or without a
// leading 0x), the same wallet-key format the teacher's chain config uses.
func LoadPrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) >= 2 && hexKey[0:2] == "0x" {
		hexKey = hexKey[2:]
	}
	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("executor: parse wallet key: %w", err)
	}
	return priv, nil
}
