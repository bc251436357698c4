package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

// RPCClient talks JSON-RPC 1.0 to a BSV node.
type RPCClient struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Int64
}

// Compile-time interface check.
var _ BlockchainService = (*RPCClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRPCClient creates a client for cfg. Basic auth is sent when User is set.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	return &RPCClient{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Call invokes method and decodes the result into result, which may be nil.
// Transport failures wrap ErrConnectionFailed and undecodable replies wrap
// ErrInvalidResponse; node-side errors carry the node's code and message.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("network: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var rpcResp rpcResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrConnectionFailed, err)
	}
	// Nodes answer RPC errors with HTTP 500 and a JSON body; prefer the body.
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: HTTP %d", ErrConnectionFailed, resp.StatusCode)
		}
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("network: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// btcToSat converts a coin amount as reported by the node to satoshis.
func btcToSat(btc float64) uint64 {
	return uint64(math.Round(btc * 1e8))
}

type listUnspentResult struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Address       string  `json:"address"`
	Confirmations int64   `json:"confirmations"`
}

// ListUnspent calls `listunspent 0 9999999 ["address"]`. Zero-confirmation
// outputs are included so a payout's change is spendable immediately.
func (c *RPCClient) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	params := []interface{}{0, 9999999, []string{address}}
	var results []listUnspentResult
	if err := c.Call(ctx, "listunspent", params, &results); err != nil {
		return nil, err
	}

	utxos := make([]*UTXO, len(results))
	for i, r := range results {
		utxos[i] = &UTXO{
			TxID:          r.TxID,
			Vout:          r.Vout,
			Amount:        btcToSat(r.Amount),
			ScriptPubKey:  r.ScriptPubKey,
			Address:       r.Address,
			Confirmations: r.Confirmations,
		}
	}
	return utxos, nil
}

// BroadcastTx calls `sendrawtransaction "hex"`.
func (c *RPCClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{rawTxHex}, &txid); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	return txid, nil
}
