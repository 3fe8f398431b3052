package multicall

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// multicallABI targets Multicall2's tryAggregate rather than the original
// Multicall1 aggregate: aggregate reverts the whole batch on any one call
// failing, which is unusable for a pool batch where one dead pool must not
// blank out every other pool in the same round trip. tryAggregate(false, ..)
// runs every call best-effort and reports success per call instead.
const multicallABI = `[
{
    "constant": false,
    "inputs": [
        {
            "name": "requireSuccess",
            "type": "bool"
        },
        {
            "components": [
                {
                    "name": "target",
                    "type": "address"
                },
                {
                    "name": "callData",
                    "type": "bytes"
                }
            ],
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "tryAggregate",
    "outputs": [
        {
            "components": [
                {
                    "name": "success",
                    "type": "bool"
                },
                {
                    "name": "returnData",
                    "type": "bytes"
                }
            ],
            "name": "returnData",
            "type": "tuple[]"
        }
    ],
    "payable": false,
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

// IClient is the batch-call transport PoolBatchClient (poolbatch.go) is
// built on; a fake satisfying it stands in for a live Multicall2 deployment
// in tests.
type IClient interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    *ethclient.Client
	addr common.Address
	abi  abi.ABI
}

func New(c *ethclient.Client, multicallAddr common.Address) (IClient, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{c: c, addr: multicallAddr, abi: parsedABI}, nil
}

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

// tryAggregateResult mirrors the tuple[] tryAggregate returns per call.
type tryAggregateResult struct {
	Success    bool
	ReturnData []byte
}

// Aggregate runs calls through tryAggregate(false, calls) so a single
// reverting call surfaces as Result.Success=false on its own entry instead
// of failing every other call in the batch.
func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	payload, err := c.abi.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	res, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}

	var results []tryAggregateResult
	if err := c.abi.UnpackIntoInterface(&results, "tryAggregate", res); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Success: r.Success, Data: r.ReturnData}
	}
	return out, nil
}