package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ErrNotFound is returned when the node reports a missing block or
// transaction.
var ErrNotFound = errors.New("not found on chain node")

const (
	defaultRequestTimeout = 10 * time.Second
	txSearchPageSize      = 100
)

// Client talks JSON-RPC to a single CometBFT node.
type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	idCounter  uint64
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{},
		timeout:    cfg.Timeout,
	}, nil
}

func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	var result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	}
	if err := c.call(ctx, "status", map[string]any{}, &result); err != nil {
		return 0, err
	}
	return strconv.ParseInt(result.SyncInfo.LatestBlockHeight, 10, 64)
}

func (c *Client) BlockByHeight(ctx context.Context, height string) (*RawBlock, error) {
	var block RawBlock
	if err := c.call(ctx, "block", map[string]any{"height": height}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *Client) BlockByHash(ctx context.Context, hash string) (*RawBlock, error) {
	var block RawBlock
	if err := c.call(ctx, "block_by_hash", map[string]any{"hash": hash}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *Client) LatestBlock(ctx context.Context) (*RawBlock, error) {
	var block RawBlock
	if err := c.call(ctx, "block", map[string]any{}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *Client) TxByHash(ctx context.Context, hash string) (*RawTxResult, error) {
	var tx RawTxResult
	if err := c.call(ctx, "tx", map[string]any{"hash": hash, "prove": false}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// TxsByHeight pages through tx_search until all transactions of the height
// are collected.
func (c *Client) TxsByHeight(ctx context.Context, height string) ([]RawTxResult, error) {
	var txs []RawTxResult
	for page := 1; ; page++ {
		var result struct {
			Txs        []RawTxResult `json:"txs"`
			TotalCount string        `json:"total_count"`
		}
		params := map[string]any{
			"query":    fmt.Sprintf("tx.height=%s", height),
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(txSearchPageSize),
			"order_by": "asc",
		}
		if err := c.call(ctx, "tx_search", params, &result); err != nil {
			return nil, err
		}
		txs = append(txs, result.Txs...)
		total, err := strconv.Atoi(result.TotalCount)
		if err != nil || len(txs) >= total || len(result.Txs) == 0 {
			return txs, nil
		}
	}
}

// Raw variants return the node response verbatim for callers that requested
// the unnormalized shape.

func (c *Client) BlockRawByHeight(ctx context.Context, height string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "block", map[string]any{"height": height}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) TxRawByHash(ctx context.Context, hash string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "tx", map[string]any{"hash": hash, "prove": false}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) TxsRawByHeight(ctx context.Context, height string) (json.RawMessage, error) {
	var raw json.RawMessage
	params := map[string]any{
		"query":    fmt.Sprintf("tx.height=%s", height),
		"page":     "1",
		"per_page": strconv.Itoa(txSearchPageSize),
		"order_by": "asc",
	}
	if err := c.call(ctx, "tx_search", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      uint64         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		detail := decoded.Error.Message
		if decoded.Error.Data != "" {
			detail = detail + ": " + decoded.Error.Data
		}
		if isNotFound(detail) {
			return fmt.Errorf("%w: %s", ErrNotFound, detail)
		}
		return fmt.Errorf("rpc error %d: %s", decoded.Error.Code, detail)
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.New("rpc result is empty")
	}
	return json.Unmarshal(decoded.Result, result)
}

func isNotFound(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "is not available")
}
