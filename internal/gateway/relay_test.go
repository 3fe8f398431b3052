package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

func testBundleTx(t *testing.T) *types.Transaction {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x2222000000000000000000000000000000eeee")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(20_000_000_000),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(0),
	})
	signed, err := types.SignTx(tx, types.HomesteadSigner{}, priv)
	require.NoError(t, err)
	return signed
}

func TestSignProducesRecoverableSignature(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	r := NewFlashbotsRelay("https://relay.example.test", priv)

	body := []byte(`{"hello":"world"}`)
	header, err := r.sign(body)
	require.NoError(t, err)

	parts := strings.SplitN(header, ":", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey).Hex(), parts[0])

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(parts[1], "0x"))
	require.NoError(t, err)

	hash := sha3.NewLegacyKeccak256()
	hash.Write(body)
	digest := hash.Sum(nil)

	pub, err := crypto.SigToPub(digest, sigBytes)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), crypto.PubkeyToAddress(*pub))
}

func TestSendPrivateBundlePostsSignedRequest(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	var gotSig string
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotSig = req.Header.Get("X-Flashbots-Signature")
		body, _ := io.ReadAll(req.Body)
		var call jsonrpcCall
		require.NoError(t, json.Unmarshal(body, &call))
		gotMethod = call.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xdeadbeef"}}`))
	}))
	defer srv.Close()

	r := NewFlashbotsRelay(srv.URL, priv)
	hash, err := r.SendPrivateBundle(context.Background(), []*types.Transaction{testBundleTx(t)}, []uint64{100})
	require.NoError(t, err)

	assert.Equal(t, "0xdeadbeef", hash)
	assert.Equal(t, "eth_sendBundle", gotMethod)
	assert.Contains(t, gotSig, crypto.PubkeyToAddress(priv.PublicKey).Hex())
}

func TestSendPrivateBundleRequiresTargetBlock(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	r := NewFlashbotsRelay("https://relay.example.test", priv)

	_, err = r.SendPrivateBundle(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestSendPrivateBundlePropagatesRPCError(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"bundle rejected"}}`))
	}))
	defer srv.Close()

	r := NewFlashbotsRelay(srv.URL, priv)
	_, err = r.SendPrivateBundle(context.Background(), []*types.Transaction{testBundleTx(t)}, []uint64{100})
	assert.ErrorContains(t, err, "bundle rejected")
}
