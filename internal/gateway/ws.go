package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// jsonrpcRequest and jsonrpcResponse are the minimal eth_subscribe envelope;
// the core never needs a general-purpose JSON-RPC client, only the
// subscribe/unsubscribe/notification shapes.
type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonrpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *jsonrpcError   `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonrpcError) Error() string { return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message) }

// NewHeadsHandler and LogsHandler are the callbacks fed to Subscribe*; they
// run on the subscriber's read loop goroutine and must not block.
type NewHeadsHandler func(BlockHeader)
type LogsHandler func(types.Log)

// wsSubscriber owns a single persistent websocket connection used for
// eth_subscribe/eth_unsubscribe, reconnecting on drop and replaying any
// block range it may have missed while disconnected via the caller-supplied
// gap-fill callback.
type wsSubscriber struct {
	url string
	log *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan jsonrpcResponse

	heads   map[string]NewHeadsHandler
	logs    map[string]LogsHandler
	closing int32
	done    chan struct{}
}

func newWSSubscriber(url string, log *zap.Logger) *wsSubscriber {
	s := &wsSubscriber{
		url:     url,
		log:     log,
		pending: make(map[uint64]chan jsonrpcResponse),
		heads:   make(map[string]NewHeadsHandler),
		logs:    make(map[string]LogsHandler),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *wsSubscriber) Close() {
	atomic.StoreInt32(&s.closing, 1)
	close(s.done)
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

// run dials, reads notifications until the connection drops, then
// reconnects with backoff. Gap-fill of any blocks missed while disconnected
// is the caller's responsibility (SubscribeLogs callers backfill via
// Gateway.FilterLogsRange for the range between the last-seen block and the newly (re)subscribed
// head, per spec section 4.1).
func (s *wsSubscriber) run() {
	backoff := time.Second
	for atomic.LoadInt32(&s.closing) == 0 {
		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			s.log.Warn("gateway: websocket dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-s.done:
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.log.Info("gateway: websocket connected", zap.String("url", s.url))
		s.readLoop(conn)

		if atomic.LoadInt32(&s.closing) == 1 {
			return
		}
		s.log.Warn("gateway: websocket disconnected, reconnecting")
	}
}

func (s *wsSubscriber) readLoop(conn *websocket.Conn) {
	for {
		var resp jsonrpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			return
		}
		if resp.Method == "eth_subscription" {
			s.dispatch(resp.Params.Subscription, resp.Params.Result)
			continue
		}
		s.mu.Lock()
		ch, ok := s.pending[resp.ID]
		if ok {
			delete(s.pending, resp.ID)
		}
		s.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (s *wsSubscriber) dispatch(subID string, raw json.RawMessage) {
	s.mu.Lock()
	headHandler, isHead := s.heads[subID]
	logHandler, isLog := s.logs[subID]
	s.mu.Unlock()

	if isHead {
		var h struct {
			Number  string `json:"number"`
			Hash    string `json:"hash"`
			BaseFee string `json:"baseFeePerGas"`
		}
		if err := json.Unmarshal(raw, &h); err == nil {
			headHandler(BlockHeader{
				Number:  hexToUint64(h.Number),
				Hash:    common.HexToHash(h.Hash),
				BaseFee: hexToBigInt(h.BaseFee),
			})
		}
	}
	if isLog {
		var l types.Log
		if err := json.Unmarshal(raw, &l); err == nil {
			logHandler(l)
		}
	}
}

func (s *wsSubscriber) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("gateway: websocket not connected")
	}
	id := s.nextID
	s.nextID++
	ch := make(chan jsonrpcResponse, 1)
	s.pending[id] = ch
	conn := s.conn
	s.mu.Unlock()

	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("gateway: websocket write: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubscribeNewHeads registers handler for every new block header.
func (s *wsSubscriber) SubscribeNewHeads(ctx context.Context, handler NewHeadsHandler) (string, error) {
	raw, err := s.call(ctx, "eth_subscribe", "newHeads")
	if err != nil {
		return "", err
	}
	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil {
		return "", fmt.Errorf("gateway: decode subscription id: %w", err)
	}
	s.mu.Lock()
	s.heads[subID] = handler
	s.mu.Unlock()
	return subID, nil
}

// SubscribeLogs registers handler for logs matching the given addresses.
func (s *wsSubscriber) SubscribeLogs(ctx context.Context, addresses []common.Address, topics [][]common.Hash, handler LogsHandler) (string, error) {
	filter := map[string]interface{}{"address": addresses}
	if len(topics) > 0 {
		filter["topics"] = topics
	}
	raw, err := s.call(ctx, "eth_subscribe", "logs", filter)
	if err != nil {
		return "", err
	}
	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil {
		return "", fmt.Errorf("gateway: decode subscription id: %w", err)
	}
	s.mu.Lock()
	s.logs[subID] = handler
	s.mu.Unlock()
	return subID, nil
}

// Unsubscribe cancels a prior subscription by id.
func (s *wsSubscriber) Unsubscribe(ctx context.Context, subID string) error {
	_, err := s.call(ctx, "eth_unsubscribe", subID)
	s.mu.Lock()
	delete(s.heads, subID)
	delete(s.logs, subID)
	s.mu.Unlock()
	return err
}

// SubscribeNewHeads exposes the underlying websocket subscription on the
// Gateway, returning an error if no websocket endpoint was configured.
func (g *Gateway) SubscribeNewHeads(ctx context.Context, handler NewHeadsHandler) (string, error) {
	if g.ws == nil {
		return "", fmt.Errorf("gateway: no websocket endpoint configured")
	}
	return g.ws.SubscribeNewHeads(ctx, handler)
}

// SubscribeLogs exposes the underlying websocket log subscription. Callers
// are responsible for gap-fill: on reconnect they should re-query
// FilterLogs for the block range between their last-applied block and the
// current head, since a dropped connection may have silently missed logs.
func (g *Gateway) SubscribeLogs(ctx context.Context, addresses []common.Address, topics [][]common.Hash, handler LogsHandler) (string, error) {
	if g.ws == nil {
		return "", fmt.Errorf("gateway: no websocket endpoint configured")
	}
	return g.ws.SubscribeLogs(ctx, addresses, topics, handler)
}

// Unsubscribe cancels a prior websocket subscription.
func (g *Gateway) Unsubscribe(ctx context.Context, subID string) error {
	if g.ws == nil {
		return nil
	}
	return g.ws.Unsubscribe(ctx, subID)
}

// FilterLogsRange performs an eth_getLogs backfill over [fromBlock,
// toBlock], used by SubscribeLogs callers to gap-fill after a reconnect.
func (g *Gateway) FilterLogsRange(ctx context.Context, addresses []common.Address, topics [][]common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	cctx, cancel := context.WithTimeout(ctx, ReceiptPollDeadline)
	defer cancel()
	return g.ec.FilterLogs(cctx, ethereumFilterQuery(addresses, topics, fromBlock, toBlock))
}
