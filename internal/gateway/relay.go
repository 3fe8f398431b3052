package gateway

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// FlashbotsRelay submits eth_sendBundle requests to a Flashbots-compatible
// relay, authenticated the way the relay protocol requires: a detached
// secp256k1 signature over the request body, keyed to a reputation identity
// unrelated to the wallet that signs the bundled transactions themselves.
type FlashbotsRelay struct {
	url        string
	signingKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewFlashbotsRelay builds a relay client. signingKey is the relay
// reputation key (X-Flashbots-Signature), never the wallet key used to sign
// bundled transactions.
func NewFlashbotsRelay(url string, signingKey *ecdsa.PrivateKey) *FlashbotsRelay {
	return &FlashbotsRelay{
		url:        url,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type jsonrpcCall struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type sendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

// SendPrivateBundle implements executor/gateway's PrivateBundleSubmitter.
// It targets only the first entry of targetBlocks; a bundle valid for
// multiple blocks would need one request per block, which callers can do by
// calling this once per target.
func (r *FlashbotsRelay) SendPrivateBundle(ctx context.Context, txs []*gethtypes.Transaction, targetBlocks []uint64) (string, error) {
	if len(targetBlocks) == 0 {
		return "", fmt.Errorf("gateway: flashbots bundle requires at least one target block")
	}
	rawTxs := make([]string, len(txs))
	for i, tx := range txs {
		b, err := tx.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("gateway: marshal bundle tx: %w", err)
		}
		rawTxs[i] = "0x" + hex.EncodeToString(b)
	}

	call := jsonrpcCall{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendBundle",
		Params: []sendBundleParams{{
			Txs:         rawTxs,
			BlockNumber: fmt.Sprintf("0x%x", targetBlocks[0]),
		}},
	}
	body, err := json.Marshal(call)
	if err != nil {
		return "", fmt.Errorf("gateway: marshal bundle request: %w", err)
	}

	sig, err := r.sign(body)
	if err != nil {
		return "", fmt.Errorf("gateway: sign bundle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gateway: build bundle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: bundle request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Result sendBundleResult `json:"result"`
		Error  *jsonrpcError    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gateway: decode bundle response: %w", err)
	}
	if out.Error != nil {
		return "", out.Error
	}
	return out.Result.BundleHash, nil
}

// sign produces the "<address>:<signature>" header value the Flashbots relay
// protocol expects, over keccak256(body) rather than the raw body.
func (r *FlashbotsRelay) sign(body []byte) (string, error) {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(body)
	digest := hash.Sum(nil)

	sig, err := crypto.Sign(digest, r.signingKey)
	if err != nil {
		return "", err
	}
	addr := crypto.PubkeyToAddress(r.signingKey.PublicKey)
	return fmt.Sprintf("%s:0x%s", addr.Hex(), hex.EncodeToString(sig)), nil
}
