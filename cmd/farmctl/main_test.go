package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"seasonfarm/core/runtime"
	"seasonfarm/native/farm"
	"seasonfarm/native/positions"
	"seasonfarm/native/token"
	"seasonfarm/rpc"
	"seasonfarm/storage"
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

func startNode(t *testing.T) string {
	t.Helper()
	start := uint64(1_700_000_000)
	rt := runtime.New(storage.NewMemDB(), runtime.WithClock(func() uint64 { return start }))
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
		StartTime:       start,
	}, caps, manager)
	require.NoError(t, err)
	rt.Register(farmAddr, engine)
	rt.Register(managerAddr, manager)
	server, err := rpc.NewServer(rpc.Options{
		Runtime:   rt,
		Farm:      engine,
		Tokens:    tokens,
		Positions: manager,
		DevMode:   true,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// farmctl runs the CLI and decodes its JSON output into out when non-nil.
func farmctl(t *testing.T, endpoint string, out interface{}, args ...string) error {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"-rpc", endpoint}, args...), &stdout, &stderr)
	if err == nil && out != nil {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), out), stdout.String())
	}
	return err
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.ErrorIs(t, run(nil, &stdout, &stderr), errUsage)
	require.Contains(t, stderr.String(), "Commands:")

	stderr.Reset()
	require.ErrorIs(t, run([]string{"bogus"}, &stdout, &stderr), errUsage)
	require.Contains(t, stderr.String(), `unknown command "bogus"`)

	endpoint := startNode(t)
	stderr.Reset()
	err := run([]string{"-rpc", endpoint, "harvest"}, &stdout, &stderr)
	require.ErrorIs(t, err, errUsage)
	require.Contains(t, stderr.String(), "usage: farmctl harvest <tokenId>")
}

func TestFarmWorkflow(t *testing.T) {
	endpoint := startNode(t)
	from := func(addr common.Address) string { return addr.Hex() }

	var constants rpc.ConstantsResult
	require.NoError(t, farmctl(t, endpoint, &constants, "constants"))
	require.Equal(t, farmAddr.Hex(), constants.Farm)

	var minted struct {
		TokenID uint64 `json:"tokenId"`
	}
	require.NoError(t, farmctl(t, endpoint, &minted, "-from", from(alice), "dev-mint", "autumn", "5000000"))

	// Write commands need a sender.
	require.Error(t, farmctl(t, endpoint, nil, "deposit", "0"))
	require.NoError(t, farmctl(t, endpoint, nil, "-from", from(alice), "deposit", "0"))

	var listed struct {
		TokenIDs []uint64 `json:"tokenIds"`
	}
	require.NoError(t, farmctl(t, endpoint, &listed, "-from", from(alice), "positions"))
	require.Equal(t, []uint64{minted.TokenID}, listed.TokenIDs)

	require.NoError(t, farmctl(t, endpoint, nil, "dev-fund", "spring", from(bob), "50"))
	require.NoError(t, farmctl(t, endpoint, nil, "-from", from(bob), "donate", "spring", "20"))

	var balance struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, farmctl(t, endpoint, &balance, "balance", "spring", from(bob)))
	require.Equal(t, "30", balance.Balance)

	var position struct {
		Position rpc.LiquidityTokenResult `json:"position"`
		Payouts  rpc.SeasonAmounts        `json:"payouts"`
	}
	require.NoError(t, farmctl(t, endpoint, &position, "position", "0"))
	require.Equal(t, alice.Hex(), position.Position.Owner)
	require.NotEqual(t, "0", position.Payouts.Spring)

	require.NoError(t, farmctl(t, endpoint, nil, "-from", from(alice), "harvest", "0"))
	err := farmctl(t, endpoint, nil, "-from", from(alice), "withdraw", "0")
	require.Error(t, err)

	var advanced struct {
		Time uint64 `json:"time"`
	}
	require.NoError(t, farmctl(t, endpoint, &advanced, "dev-advance", "720h"))
	require.Equal(t, uint64(1_700_000_000+30*24*3600), advanced.Time)
	require.NoError(t, farmctl(t, endpoint, nil, "-from", from(alice), "withdraw", "0"))
}

func TestDonateRejectedWithoutLiquidity(t *testing.T) {
	endpoint := startNode(t)
	require.NoError(t, farmctl(t, endpoint, nil, "dev-fund", "winter", bob.Hex(), "1"))
	err := farmctl(t, endpoint, nil, "-from", bob.Hex(), "donate", "winter", "1")
	require.ErrorContains(t, err, "No liquidity in farm")
}

func TestSignedTokenIsAccepted(t *testing.T) {
	secret := []byte("farmctl-test-secret")
	auth, err := rpc.NewAuthenticator(rpc.AuthConfig{
		Enabled:    true,
		HMACSecret: secret,
		Issuer:     "farmctl",
		Audience:   "farmd",
	})
	require.NoError(t, err)

	token, err := signToken(secret, alice.Hex(), "farmctl", "farmd", time.Now(), time.Hour)
	require.NoError(t, err)
	caller, err := auth.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, alice, caller)

	expired, err := signToken(secret, alice.Hex(), "farmctl", "farmd", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = auth.Authenticate(expired)
	require.Error(t, err)
}

func TestJWTCommand(t *testing.T) {
	t.Setenv("FARMCTL_TEST_SECRET", "s3cret")
	var stdout, stderr bytes.Buffer
	err := run([]string{"jwt", "-secret-env", "FARMCTL_TEST_SECRET", "-sub", alice.Hex()}, &stdout, &stderr)
	require.NoError(t, err)

	auth, err := rpc.NewAuthenticator(rpc.AuthConfig{Enabled: true, HMACSecret: []byte("s3cret")})
	require.NoError(t, err)
	caller, err := auth.Authenticate(string(bytes.TrimSpace(stdout.Bytes())))
	require.NoError(t, err)
	require.Equal(t, alice, caller)

	require.Error(t, run([]string{"jwt", "-sub", "nope"}, &stdout, &stderr))
}
