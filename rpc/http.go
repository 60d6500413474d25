package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"seasonfarm/core/events"
	"seasonfarm/core/runtime"
	"seasonfarm/native/farm"
	"seasonfarm/native/positions"
	"seasonfarm/native/token"
	"seasonfarm/observability/metrics"
	telemetry "seasonfarm/observability/otel"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeReverted       = -32003
	codeRateLimited    = -32020
)

var tracer = telemetry.Tracer("seasonfarm/rpc")

type handlerFunc func(r *http.Request, req *RPCRequest) (interface{}, error)

// Options wires the node components served over JSON-RPC.
type Options struct {
	Runtime   *runtime.Runtime
	Farm      *farm.Engine
	Tokens    []*token.Token
	Positions *positions.Manager
	Feed      *events.Feed
	Auth      AuthConfig
	RateLimit RateLimit
	Metrics   *metrics.FarmMetrics
	Logger    *slog.Logger
	DevMode   bool
}

type Server struct {
	rt        *runtime.Runtime
	farm      *farm.Engine
	tokens    map[common.Address]*token.Token
	positions *positions.Manager
	feed      *events.Feed
	auth      *Authenticator
	limiter   *RateLimiter
	metrics   *metrics.FarmMetrics
	logger    *slog.Logger
	devMode   bool
	methods   map[string]handlerFunc
}

func NewServer(opts Options) (*Server, error) {
	if opts.Runtime == nil || opts.Farm == nil || opts.Positions == nil {
		return nil, errors.New("rpc: runtime, farm and position manager are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := NewAuthenticator(opts.Auth)
	if err != nil {
		return nil, err
	}
	auth.logger = logger
	s := &Server{
		rt:        opts.Runtime,
		farm:      opts.Farm,
		tokens:    make(map[common.Address]*token.Token, len(opts.Tokens)),
		positions: opts.Positions,
		feed:      opts.Feed,
		auth:      auth,
		limiter:   NewRateLimiter(opts.RateLimit),
		metrics:   opts.Metrics,
		logger:    logger,
		devMode:   opts.DevMode,
	}
	for _, tok := range opts.Tokens {
		if tok != nil {
			s.tokens[tok.Address()] = tok
		}
	}
	s.registerMethods()
	return s, nil
}

func (s *Server) registerMethods() {
	s.methods = map[string]handlerFunc{
		"farm_getEffectiveTotalAllocationSize":        s.handleEffectiveTotalAllocationSize,
		"farm_numberOfReAllocations":                  s.handleNumberOfReAllocations,
		"farm_allocationSizes":                        s.handleAllocationSizes,
		"farm_cumulativeTokensFarmedPerUnitLiquidity": s.handleCumulativeTokensFarmed,
		"farm_getPayoutSizes":                         s.handleGetPayoutSizes,
		"farm_liquidityToken":                         s.handleLiquidityToken,
		"farm_nextWithdrawalTime":                     s.handleNextWithdrawalTime,
		"farm_balanceOf":                              s.handleFarmBalanceOf,
		"farm_tokenOfOwnerByIndex":                    s.handleTokenOfOwnerByIndex,
		"farm_constants":                              s.handleConstants,
		"farm_receiveSeasonalTokens":                  s.handleReceiveSeasonalTokens,
		"farm_harvest":                                s.handleHarvest,
		"farm_withdraw":                               s.handleWithdraw,
		"token_balanceOf":                             s.handleTokenBalanceOf,
		"token_allowance":                             s.handleTokenAllowance,
		"token_approve":                               s.handleTokenApprove,
		"token_transfer":                              s.handleTokenTransfer,
		"position_get":                                s.handlePositionGet,
		"position_ownerOf":                            s.handlePositionOwnerOf,
		"position_safeTransferFrom":                   s.handlePositionSafeTransfer,
	}
	if !s.devMode {
		return
	}
	s.methods["dev_setBalance"] = s.handleDevSetBalance
	s.methods["dev_mintPosition"] = s.handleDevMintPosition
	s.methods["dev_increaseTime"] = s.handleDevIncreaseTime
	s.methods["dev_time"] = s.handleDevTime
}

// Handler returns the HTTP surface of the node: JSON-RPC on "/", health,
// prometheus metrics and the websocket event stream.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(requestID)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.With(s.auth.Middleware).Get("/ws/events", s.handleEventsWS)
	router.With(s.auth.Middleware, s.limiter.Middleware(s.metrics)).Post("/", s.handle)
	return otelhttp.NewHandler(router, "farmd.rpc")
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	ctx, span := tracer.Start(r.Context(), "rpc."+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	start := time.Now()
	result, err := handler(r.WithContext(ctx), req)
	s.metrics.ObserveRequest(req.Method, err, time.Since(start))
	if err != nil {
		status, rpcErr := toRPCError(err)
		span.SetAttributes(attribute.Int("rpc.error_code", rpcErr.Code))
		if rpcErr.Code == codeReverted {
			span.SetAttributes(attribute.String("farm.revert_reason", fmt.Sprint(rpcErr.Data)))
		} else {
			span.SetStatus(codes.Error, rpcErr.Message)
		}
		s.logger.Debug("rpc call failed",
			slog.String("method", req.Method),
			slog.String("requestid", requestIDFrom(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

var revertedErrors = []error{
	farm.ErrInvalidTradingPair,
	farm.ErrWrongFeeTier,
	farm.ErrNotFullRange,
	farm.ErrNotUniswapToken,
	farm.ErrNotSeasonalToken,
	farm.ErrNotTokenOwner,
	farm.ErrNoEligibleLiquidity,
	farm.ErrNotOwner,
	farm.ErrWithdrawalUnavailable,
	farm.ErrPositionNotFound,
	farm.ErrIndexOutOfRange,
	farm.ErrInvalidAmount,
	farm.ErrDonationTooSmall,
	farm.ErrOverflow,
	token.ErrInsufficientBalance,
	token.ErrInsufficientAllowance,
	token.ErrZeroAddress,
	positions.ErrTokenNotFound,
	positions.ErrNotApproved,
	positions.ErrWrongOwner,
	positions.ErrZeroAddress,
	positions.ErrNonReceiver,
}

// toRPCError maps handler failures onto JSON-RPC errors. Contract reverts
// carry the revert reason in the data field.
func toRPCError(err error) (int, *RPCError) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeUnauthorized:
			return http.StatusUnauthorized, rpcErr
		case codeServerError:
			return http.StatusInternalServerError, rpcErr
		default:
			return http.StatusBadRequest, rpcErr
		}
	}
	for _, sentinel := range revertedErrors {
		if errors.Is(err, sentinel) {
			return http.StatusOK, &RPCError{Code: codeReverted, Message: err.Error(), Data: farm.RevertReason(err)}
		}
	}
	return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: err.Error()}
}
