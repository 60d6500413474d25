package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"seasonfarm/core/events"
	"seasonfarm/core/runtime"
	"seasonfarm/native/farm"
	"seasonfarm/native/positions"
	"seasonfarm/native/token"
	"seasonfarm/storage"
)

const (
	baseTime = uint64(1_700_000_000)
	day      = uint64(24 * 60 * 60)
)

var (
	farmAddr    = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	managerAddr = common.HexToAddress("0x0000000000000000000000000000000000009001")
	wethAddr    = common.HexToAddress("0x0000000000000000000000000000000000000e7e")
	seasonAddrs = [farm.NumSeasons]common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000001"),
		common.HexToAddress("0x0000000000000000000000000000000000000002"),
		common.HexToAddress("0x0000000000000000000000000000000000000003"),
		common.HexToAddress("0x0000000000000000000000000000000000000004"),
	}
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type testNode struct {
	server *Server
	feed   *events.Feed
	rt     *runtime.Runtime
}

func newTestNode(t *testing.T, mutate func(*Options)) *testNode {
	t.Helper()
	feed := events.NewFeed()
	rt := runtime.New(storage.NewMemDB(),
		runtime.WithClock(func() uint64 { return baseTime }),
		runtime.WithEmitter(feed))
	manager := positions.NewManager(managerAddr)
	tokens := []*token.Token{token.New(wethAddr, "WETH", 18)}
	var caps [farm.NumSeasons]farm.FungibleToken
	for i, addr := range seasonAddrs {
		tok := token.New(addr, farm.Season(i).String(), 18)
		tokens = append(tokens, tok)
		caps[i] = tok
	}
	engine, err := farm.NewEngine(farm.Config{
		Address:         farmAddr,
		PositionManager: managerAddr,
		SeasonTokens:    seasonAddrs,
		WrappedNative:   wethAddr,
		StartTime:       baseTime + 120*day,
	}, caps, manager)
	require.NoError(t, err)
	rt.Register(farmAddr, engine)
	rt.Register(managerAddr, manager)

	opts := Options{
		Runtime:   rt,
		Farm:      engine,
		Tokens:    tokens,
		Positions: manager,
		Feed:      feed,
		DevMode:   true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	server, err := NewServer(opts)
	require.NoError(t, err)
	return &testNode{server: server, feed: feed, rt: rt}
}

type rpcReply struct {
	Status int
	ID     interface{}
	Result json.RawMessage
	Error  *RPCError
}

func (n *testNode) call(t *testing.T, method string, params interface{}, headers ...string) rpcReply {
	t.Helper()
	body := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	n.server.Handler().ServeHTTP(rec, req)

	var decoded struct {
		ID     interface{}     `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rpcReply{Status: rec.Code, ID: decoded.ID, Result: decoded.Result, Error: decoded.Error}
}

func (n *testNode) mustCall(t *testing.T, method string, params interface{}, out interface{}) {
	t.Helper()
	reply := n.call(t, method, params)
	require.Nil(t, reply.Error, "%s failed: %+v", method, reply.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(reply.Result, out))
	}
}

func (n *testNode) mintFullRange(t *testing.T, owner common.Address, season farm.Season) uint64 {
	t.Helper()
	var minted MintResult
	n.mustCall(t, "dev_mintPosition", map[string]interface{}{
		"owner":     owner.Hex(),
		"token0":    wethAddr.Hex(),
		"token1":    seasonAddrs[season].Hex(),
		"fee":       farm.RequiredFee,
		"tickLower": farm.MinTick,
		"tickUpper": farm.MaxTick,
		"liquidity": "10000000000",
	}, &minted)
	return minted.TokenID
}

func TestHealthz(t *testing.T) {
	node := newTestNode(t, nil)
	rec := httptest.NewRecorder()
	node.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	node := newTestNode(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	node.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestEnvelopeErrors(t *testing.T) {
	node := newTestNode(t, nil)
	handler := node.server.Handler()

	cases := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"empty body", "", http.StatusBadRequest, codeInvalidRequest},
		{"malformed json", "{", http.StatusBadRequest, codeParseError},
		{"wrong version", `{"jsonrpc":"1.0","method":"farm_constants","id":1}`, http.StatusBadRequest, codeInvalidRequest},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, http.StatusBadRequest, codeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"farm_nope","id":1}`, http.StatusNotFound, codeMethodNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tc.body)))
			require.Equal(t, tc.status, rec.Code)
			var resp RPCResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestDevMethodsRequireDevMode(t *testing.T) {
	node := newTestNode(t, func(o *Options) { o.DevMode = false })
	reply := node.call(t, "dev_time", nil)
	require.Equal(t, http.StatusNotFound, reply.Status)
	require.Equal(t, codeMethodNotFound, reply.Error.Code)
}

func TestInvalidParams(t *testing.T) {
	node := newTestNode(t, nil)

	reply := node.call(t, "farm_balanceOf", map[string]string{"owner": "not-an-address"})
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	reply = node.call(t, "farm_liquidityToken", map[string]string{})
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	reply = node.call(t, "farm_harvest", map[string]interface{}{"tokenId": 0})
	require.Equal(t, codeInvalidParams, reply.Error.Code)
	require.Contains(t, reply.Error.Message, "caller")

	reply = node.call(t, "token_balanceOf", map[string]string{"token": farmAddr.Hex(), "owner": alice.Hex()})
	require.Equal(t, codeInvalidParams, reply.Error.Code)
}

func TestReadOnlyFarmViews(t *testing.T) {
	node := newTestNode(t, nil)

	var constants ConstantsResult
	node.mustCall(t, "farm_constants", nil, &constants)
	require.Equal(t, farm.ReallocationInterval, constants.ReallocationInterval)
	require.Equal(t, uint32(100), constants.RequiredFee)
	require.Equal(t, [4]uint64{5, 6, 7, 8}, constants.BaseAllocations)
	require.Equal(t, seasonAddrs[farm.Winter].Hex(), constants.SeasonTokens.Winter)

	var sizes AllocationSizesResult
	node.mustCall(t, "farm_allocationSizes", nil, &sizes)
	require.Equal(t, AllocationSizesResult{Spring: 5, Summer: 6, Autumn: 7, Winter: 8}, sizes)

	var total uint64
	node.mustCall(t, "farm_getEffectiveTotalAllocationSize", map[string]bool{"spring": true, "winter": true}, &total)
	require.Equal(t, uint64(13), total)

	var reallocations uint64
	node.mustCall(t, "farm_numberOfReAllocations", nil, &reallocations)
	require.Zero(t, reallocations)

	var cumulative string
	node.mustCall(t, "farm_cumulativeTokensFarmedPerUnitLiquidity", map[string]string{
		"pairToken":   seasonAddrs[farm.Spring].Hex(),
		"seasonToken": seasonAddrs[farm.Summer].Hex(),
	}, &cumulative)
	require.Equal(t, "0", cumulative)
}

func TestFarmLifecycleOverRPC(t *testing.T) {
	node := newTestNode(t, nil)
	donation := "1000000000000000000"

	id := node.mintFullRange(t, alice, farm.Spring)
	require.Equal(t, uint64(0), id)

	node.mustCall(t, "position_safeTransferFrom", map[string]interface{}{
		"caller": alice.Hex(), "to": farmAddr.Hex(), "tokenId": id,
	}, nil)

	var owner string
	node.mustCall(t, "position_ownerOf", map[string]interface{}{"tokenId": id}, &owner)
	require.Equal(t, farmAddr.Hex(), owner)

	var count uint64
	node.mustCall(t, "farm_balanceOf", map[string]string{"owner": alice.Hex()}, &count)
	require.Equal(t, uint64(1), count)

	var byIndex uint64
	node.mustCall(t, "farm_tokenOfOwnerByIndex", map[string]interface{}{"owner": alice.Hex(), "index": 0}, &byIndex)
	require.Equal(t, id, byIndex)

	var record LiquidityTokenResult
	node.mustCall(t, "farm_liquidityToken", map[string]interface{}{"tokenId": id}, &record)
	require.Equal(t, alice.Hex(), record.Owner)
	require.Equal(t, "spring", record.Season)
	require.Equal(t, "10000000000", record.Liquidity)
	require.False(t, record.WithdrawalAvailable)
	require.Equal(t, baseTime+30*day, record.NextWithdrawalTime)

	node.mustCall(t, "dev_setBalance", map[string]string{
		"token": seasonAddrs[farm.Summer].Hex(), "owner": bob.Hex(), "amount": donation,
	}, nil)
	node.mustCall(t, "token_approve", map[string]string{
		"caller": bob.Hex(), "token": seasonAddrs[farm.Summer].Hex(), "spender": farmAddr.Hex(), "amount": donation,
	}, nil)
	node.mustCall(t, "farm_receiveSeasonalTokens", map[string]string{
		"caller": bob.Hex(), "token": seasonAddrs[farm.Summer].Hex(), "amount": donation,
	}, nil)

	var payouts SeasonAmounts
	node.mustCall(t, "farm_getPayoutSizes", map[string]interface{}{"tokenId": id}, &payouts)
	require.Equal(t, "0", payouts.Spring)
	summer := uint256.MustFromDecimal(payouts.Summer)
	require.True(t, summer.Cmp(uint256.MustFromDecimal("999999999999999990")) >= 0, payouts.Summer)

	node.mustCall(t, "farm_harvest", map[string]interface{}{"caller": alice.Hex(), "tokenId": id}, nil)
	var balance string
	node.mustCall(t, "token_balanceOf", map[string]string{"token": seasonAddrs[farm.Summer].Hex(), "owner": alice.Hex()}, &balance)
	require.Equal(t, payouts.Summer, balance)

	reply := node.call(t, "farm_withdraw", map[string]interface{}{"caller": alice.Hex(), "tokenId": id})
	require.NotNil(t, reply.Error)
	require.Equal(t, codeReverted, reply.Error.Code)

	var now uint64
	node.mustCall(t, "dev_increaseTime", map[string]uint64{"seconds": 30 * day}, &now)
	require.Equal(t, baseTime+30*day, now)
	node.mustCall(t, "dev_time", nil, &now)
	require.Equal(t, baseTime+30*day, now)

	node.mustCall(t, "farm_withdraw", map[string]interface{}{"caller": alice.Hex(), "tokenId": id}, nil)
	node.mustCall(t, "position_ownerOf", map[string]interface{}{"tokenId": id}, &owner)
	require.Equal(t, alice.Hex(), owner)
	node.mustCall(t, "farm_balanceOf", map[string]string{"owner": alice.Hex()}, &count)
	require.Zero(t, count)

	var position PositionResult
	node.mustCall(t, "position_get", map[string]interface{}{"tokenId": id}, &position)
	require.Equal(t, farm.MinTick, position.TickLower)
	require.Equal(t, wethAddr.Hex(), position.Token0)
}

func TestRevertCarriesContractReason(t *testing.T) {
	node := newTestNode(t, nil)
	node.mustCall(t, "dev_setBalance", map[string]string{
		"token": seasonAddrs[farm.Spring].Hex(), "owner": bob.Hex(), "amount": "100",
	}, nil)
	node.mustCall(t, "token_approve", map[string]string{
		"caller": bob.Hex(), "token": seasonAddrs[farm.Spring].Hex(), "spender": farmAddr.Hex(), "amount": "100",
	}, nil)

	reply := node.call(t, "farm_receiveSeasonalTokens", map[string]string{
		"caller": bob.Hex(), "token": seasonAddrs[farm.Spring].Hex(), "amount": "100",
	})
	require.Equal(t, http.StatusOK, reply.Status)
	require.Equal(t, codeReverted, reply.Error.Code)
	require.Equal(t, "No liquidity in farm", reply.Error.Data)

	reply = node.call(t, "farm_receiveSeasonalTokens", map[string]string{
		"caller": bob.Hex(), "token": wethAddr.Hex(), "amount": "100",
	})
	require.Equal(t, "Only Seasonal Tokens can be donated", reply.Error.Data)

	reply = node.call(t, "farm_receiveSeasonalTokens", map[string]string{
		"caller": bob.Hex(), "donor": alice.Hex(), "token": seasonAddrs[farm.Spring].Hex(), "amount": "100",
	})
	require.Equal(t, "Tokens must be donated by the address that owns them.", reply.Error.Data)
}

func TestDepositOfInvalidPositionReverts(t *testing.T) {
	node := newTestNode(t, nil)
	var minted MintResult
	node.mustCall(t, "dev_mintPosition", map[string]interface{}{
		"owner":     alice.Hex(),
		"token0":    wethAddr.Hex(),
		"token1":    seasonAddrs[farm.Autumn].Hex(),
		"fee":       500,
		"tickLower": farm.MinTick,
		"tickUpper": farm.MaxTick,
		"liquidity": "10",
	}, &minted)

	reply := node.call(t, "position_safeTransferFrom", map[string]interface{}{
		"caller": alice.Hex(), "to": farmAddr.Hex(), "tokenId": minted.TokenID,
	})
	require.Equal(t, codeReverted, reply.Error.Code)
	require.Equal(t, "Fee tier must be 0.01%", reply.Error.Data)

	var owner string
	node.mustCall(t, "position_ownerOf", map[string]interface{}{"tokenId": minted.TokenID}, &owner)
	require.Equal(t, alice.Hex(), owner)
}

func TestMintRejectsOversizedLiquidity(t *testing.T) {
	node := newTestNode(t, nil)
	reply := node.call(t, "dev_mintPosition", map[string]interface{}{
		"owner":     alice.Hex(),
		"token0":    wethAddr.Hex(),
		"token1":    seasonAddrs[farm.Autumn].Hex(),
		"fee":       100,
		"tickLower": farm.MinTick,
		"tickUpper": farm.MaxTick,
		"liquidity": new(uint256.Int).Lsh(uint256.NewInt(1), 128).Dec(),
	})
	require.Equal(t, codeInvalidParams, reply.Error.Code)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	node := newTestNode(t, func(o *Options) { o.RateLimit = RateLimit{RequestsPerSecond: 0.001, Burst: 2} })
	for i := 0; i < 2; i++ {
		reply := node.call(t, "dev_time", nil)
		require.Nil(t, reply.Error, "request %s", strconv.Itoa(i))
	}
	reply := node.call(t, "dev_time", nil)
	require.Equal(t, http.StatusTooManyRequests, reply.Status)
	require.Equal(t, codeRateLimited, reply.Error.Code)

	rec := httptest.NewRecorder()
	node.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
