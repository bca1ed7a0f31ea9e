package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// u128Max is the amount cap passed to collect simulations.
const u128Max = "0xffffffffffffffffffffffffffffffff"

// HTTPClient implements ChainReader using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	router      string // position router contract
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithRouter overrides the position router contract address.
func WithRouter(address string) ClientOption {
	return func(c *HTTPClient) {
		c.router = address
	}
}

// NewHTTPClient creates a Starknet JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		router:      domain.NFTRouter,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// callRequest is the request body of starknet_call.
type callRequest struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// Call invokes a view entrypoint at the latest block.
func (c *HTTPClient) Call(ctx context.Context, contract, entrypoint string, calldata []string) ([]string, error) {
	if calldata == nil {
		calldata = []string{}
	}
	params := map[string]interface{}{
		"request": callRequest{
			ContractAddress:    contract,
			EntryPointSelector: Selector(entrypoint),
			Calldata:           calldata,
		},
		"block_id": "latest",
	}

	var result []string
	if err := c.call(ctx, "starknet_call", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// BlockNumber returns the latest block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "starknet_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// Nonce returns the current nonce of an account as a felt.
func (c *HTTPClient) Nonce(ctx context.Context, account string) (string, error) {
	params := map[string]interface{}{
		"block_id":         "latest",
		"contract_address": account,
	}

	var result string
	if err := c.call(ctx, "starknet_getNonce", params, &result); err != nil {
		return "", err
	}
	return result, nil
}

// TokenMetadata reads name, symbol and decimals from an ERC-20 contract.
// Name and symbol are Cairo short strings; unreadable fields come back as
// zero values for the caller to default.
func (c *HTTPClient) TokenMetadata(ctx context.Context, token string) (*TokenMetadata, error) {
	meta := &TokenMetadata{}

	if words, err := c.Call(ctx, token, "name", nil); err == nil && len(words) > 0 {
		if text, err := FeltToText(words[0]); err == nil {
			meta.Name = text
		}
	}
	if words, err := c.Call(ctx, token, "symbol", nil); err == nil && len(words) > 0 {
		if text, err := FeltToText(words[0]); err == nil {
			meta.Symbol = text
		}
	}

	words, err := c.Call(ctx, token, "decimals", nil)
	if err != nil {
		return nil, fmt.Errorf("decimals call: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("decimals call: empty result")
	}
	dec, err := FeltToInt64(words[0])
	if err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	meta.Decimals = int(dec)

	return meta, nil
}

// FeeGrowthGlobals reads both fee growth accumulators from a pool contract.
// Each comes back as a u256 (low, high) pair.
func (c *HTTPClient) FeeGrowthGlobals(ctx context.Context, pool string) (string, string, error) {
	words0, err := c.Call(ctx, pool, "get_fee_growth_global_0X128", nil)
	if err != nil {
		return "", "", fmt.Errorf("fee growth 0: %w", err)
	}
	words1, err := c.Call(ctx, pool, "get_fee_growth_global_1X128", nil)
	if err != nil {
		return "", "", fmt.Errorf("fee growth 1: %w", err)
	}
	if len(words0) < 2 || len(words1) < 2 {
		return "", "", fmt.Errorf("fee growth result too short: %d, %d", len(words0), len(words1))
	}

	fg0, err := CombineU256(words0[0], words0[1])
	if err != nil {
		return "", "", err
	}
	fg1, err := CombineU256(words1[0], words1[1])
	if err != nil {
		return "", "", err
	}
	return fg0.String(), fg1.String(), nil
}

// PositionInfo reads a router position. The view returns
// [token0, token1, fee, tickLower.mag, tickLower.sign, tickUpper.mag,
// tickUpper.sign, liquidity]; tick signs use the i32 (mag, sign) encoding.
func (c *HTTPClient) PositionInfo(ctx context.Context, positionID uint64) (*PositionInfo, error) {
	calldata := []string{fmt.Sprintf("%#x", positionID), "0x0"}

	words, err := c.Call(ctx, c.router, "get_position", calldata)
	if err != nil {
		return nil, err
	}
	if len(words) < 8 {
		return nil, fmt.Errorf("position result too short: %d words", len(words))
	}

	fee, err := FeltToInt64(words[2])
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	tickLower, err := feltToSignedTick(words[3], words[4])
	if err != nil {
		return nil, fmt.Errorf("tick lower: %w", err)
	}
	tickUpper, err := feltToSignedTick(words[5], words[6])
	if err != nil {
		return nil, fmt.Errorf("tick upper: %w", err)
	}
	liquidity, err := FeltToDecimal(words[7])
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}

	return &PositionInfo{
		Token0:    words[0],
		Token1:    words[1],
		FeeTier:   fee,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity,
	}, nil
}

// feltToSignedTick decodes the (mag, sign) i32 encoding; sign 1 = negative.
func feltToSignedTick(mag, sign string) (int64, error) {
	v, err := FeltToInt64(mag)
	if err != nil {
		return 0, err
	}
	neg, err := FeltToInt64(sign)
	if err != nil {
		return 0, err
	}
	if neg != 0 {
		return -v, nil
	}
	return v, nil
}

// simulateTxn is an INVOKE transaction body for starknet_simulateTransactions.
type simulateTxn struct {
	Type          string   `json:"type"`
	Version       string   `json:"version"`
	SenderAddress string   `json:"sender_address"`
	Calldata      []string `json:"calldata"`
	MaxFee        string   `json:"max_fee"`
	Signature     []string `json:"signature"`
	Nonce         string   `json:"nonce"`
}

// simulateResult is a single entry of the simulation response.
type simulateResult struct {
	TransactionTrace struct {
		ExecuteInvocation struct {
			Result []string `json:"result"`
		} `json:"execute_invocation"`
	} `json:"transaction_trace"`
}

// SimulateCollect simulates a collect(position_id, recipient, max, max)
// call through the account, with validation and fee charge skipped. The
// call returns (amount0: u128, amount1: u128) as the last two result words.
func (c *HTTPClient) SimulateCollect(ctx context.Context, account string, positionID uint64) (*CollectResult, error) {
	nonce, err := c.Nonce(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	// Account __execute__ calldata: one call to the router's collect.
	calldata := []string{
		"0x1",                // call array length
		c.router,             // to
		Selector("collect"),  // selector
		"0x5",                // calldata length
		fmt.Sprintf("%#x", positionID), "0x0", // position id (u256)
		account, // recipient
		u128Max, // amount0_max
		u128Max, // amount1_max
	}

	params := map[string]interface{}{
		"block_id": "latest",
		"transactions": []simulateTxn{{
			Type:          "INVOKE",
			Version:       "0x1",
			SenderAddress: account,
			Calldata:      calldata,
			MaxFee:        "0x0",
			Signature:     []string{},
			Nonce:         nonce,
		}},
		"simulation_flags": []string{"SKIP_VALIDATE", "SKIP_FEE_CHARGE"},
	}

	var results []simulateResult
	if err := c.call(ctx, "starknet_simulateTransactions", params, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("empty simulation result")
	}

	words := results[0].TransactionTrace.ExecuteInvocation.Result
	if len(words) < 2 {
		return nil, fmt.Errorf("collect result too short: %d words", len(words))
	}

	amount0, err := FeltToDecimal(words[len(words)-2])
	if err != nil {
		return nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := FeltToDecimal(words[len(words)-1])
	if err != nil {
		return nil, fmt.Errorf("amount1: %w", err)
	}

	return &CollectResult{Amount0: amount0, Amount1: amount1}, nil
}
