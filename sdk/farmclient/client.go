package farmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	jsonRPCVersion = "2.0"
	maxErrorBody   = 1024
	codeReverted   = -32003
)

// Revert reasons reported by the farm contract.
const (
	ReasonNoLiquidity        = "No liquidity in farm"
	ReasonNotSeasonalToken   = "Only Seasonal Tokens can be donated"
	ReasonInvalidTradingPair = "Invalid trading pair"
	ReasonWrongFeeTier       = "Fee tier must be 0.01%"
	ReasonNotFullRange       = "Liquidity must cover full range of prices"
	ReasonNotUniswapToken    = "Only Uniswap v3 liquidity tokens can be deposited"
	ReasonDonorMustOwnTokens = "Tokens must be donated by the address that owns them."
)

// Error is a JSON-RPC error returned by the node.
type Error struct {
	Code    int
	Message string
	Data    string
}

func (e *Error) Error() string {
	if e.Data != "" && e.Data != e.Message {
		return fmt.Sprintf("farmclient: rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("farmclient: rpc error %d: %s", e.Code, e.Message)
}

// Reverted reports whether the call reached a contract and reverted.
func (e *Error) Reverted() bool { return e.Code == codeReverted }

// IsRevert reports whether err is a contract revert with the given reason.
func IsRevert(err error, reason string) bool {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Reverted() && rpcErr.Data == reason
}

// Client wraps the farm node JSON-RPC endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	authToken  string
	caller     string
	nextID     atomic.Int64
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for RPC calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuthToken sets the bearer token identifying the caller of write calls.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// WithCaller names the account write calls execute as on a development node
// running without authentication.
func WithCaller(addr common.Address) Option {
	return func(c *Client) {
		c.caller = addr.Hex()
	}
}

// readMethods are safe to resend. Every other method changes state on the
// node and is sent again only when the previous attempt never connected.
var readMethods = map[string]struct{}{
	"farm_getEffectiveTotalAllocationSize":        {},
	"farm_numberOfReAllocations":                  {},
	"farm_allocationSizes":                        {},
	"farm_cumulativeTokensFarmedPerUnitLiquidity": {},
	"farm_getPayoutSizes":                         {},
	"farm_liquidityToken":                         {},
	"farm_nextWithdrawalTime":                     {},
	"farm_balanceOf":                              {},
	"farm_tokenOfOwnerByIndex":                    {},
	"farm_constants":                              {},
	"token_balanceOf":                             {},
	"token_allowance":                             {},
	"position_get":                                {},
	"position_ownerOf":                            {},
	"dev_time":                                    {},
}

type writeCallKey struct{}

func withWriteCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, writeCallKey{}, true)
}

func isWriteCall(ctx context.Context) bool {
	write, _ := ctx.Value(writeCallKey{}).(bool)
	return write
}

// retryPolicy is retryablehttp's default policy for reads. A write is only
// retried after a dial failure, when the node cannot have seen it.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if !isWriteCall(ctx) {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if err != nil && errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// NewRetryClient returns the default transport: reads retry with backoff on
// connection errors, 429 and 5xx, writes only on dial errors. Requests are
// traced with otelhttp.
func NewRetryClient(retryMax int) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Transport = otelhttp.NewTransport(rc.HTTPClient.Transport)
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc.StandardClient()
}

// New initialises a client bound to the provided JSON-RPC endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("farmclient: endpoint required")
	}
	c := &Client{endpoint: trimmed}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.httpClient == nil {
		c.httpClient = NewRetryClient(3)
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	payload := rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      c.nextID.Add(1),
		Method:  method,
	}
	if params != nil {
		payload.Params = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("farmclient: encode rpc payload: %w", err)
	}
	if _, ok := readMethods[method]; !ok {
		ctx = withWriteCall(ctx)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("farmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("farmclient: %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("farmclient: read response: %w", err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			snippet := raw
			if len(snippet) > maxErrorBody {
				snippet = snippet[:maxErrorBody]
			}
			return fmt.Errorf("farmclient: rpc error status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		return fmt.Errorf("farmclient: decode response: %w", err)
	}
	if decoded.Error != nil {
		return &Error{Code: decoded.Error.Code, Message: decoded.Error.Message, Data: errorData(decoded.Error.Data)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("farmclient: rpc error status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("farmclient: decode %s result: %w", method, err)
	}
	return nil
}

func errorData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
