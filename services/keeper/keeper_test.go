package keeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"seasonfarm/rpc"
	"seasonfarm/sdk/farmclient"
)

var (
	farmAddr   = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	springAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")
	winterAddr = common.HexToAddress("0x0000000000000000000000000000000000000004")
	donorAddr  = common.HexToAddress("0x00000000000000000000000000000000000d0a0e")
)

type fakeDonor struct {
	allowance string
	donateErr error
	approvals []string
	donations []string
}

func (f *fakeDonor) Constants(context.Context) (*rpc.ConstantsResult, error) {
	return &rpc.ConstantsResult{
		Farm: farmAddr.Hex(),
		SeasonTokens: rpc.SeasonTokens{
			Spring: springAddr.Hex(),
			Summer: common.HexToAddress("0x02").Hex(),
			Autumn: common.HexToAddress("0x03").Hex(),
			Winter: winterAddr.Hex(),
		},
	}, nil
}

func (f *fakeDonor) Allowance(_ context.Context, _, owner, spender common.Address) (string, error) {
	if owner != donorAddr || spender != farmAddr {
		return "", errors.New("unexpected allowance query")
	}
	return f.allowance, nil
}

func (f *fakeDonor) Approve(_ context.Context, token, _ common.Address, amount string) (*rpc.TxResult, error) {
	f.approvals = append(f.approvals, token.Hex()+":"+amount)
	f.allowance = amount
	return &rpc.TxResult{Success: true}, nil
}

func (f *fakeDonor) Donate(_ context.Context, token common.Address, amount string) (*rpc.TxResult, error) {
	if f.donateErr != nil {
		return nil, f.donateErr
	}
	f.donations = append(f.donations, token.Hex()+":"+amount)
	f.allowance = "0"
	return &rpc.TxResult{Success: true}, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestKeeper(t *testing.T, donor *fakeDonor, c *clock, schedules ...ScheduleConfig) *Keeper {
	t.Helper()
	k, err := New(donor, donorAddr, WithClock(c.Now), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, k.Start(context.Background(), schedules))
	return k
}

func schedule(name, token, amount string, interval time.Duration) ScheduleConfig {
	return ScheduleConfig{Name: name, Token: token, Amount: amount, Interval: Duration{interval}}
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, donorAddr)
	require.Error(t, err)
	_, err = New(&fakeDonor{}, common.Address{})
	require.Error(t, err)
}

func TestStartResolvesTokens(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	donor := &fakeDonor{allowance: "0"}

	k, err := New(donor, donorAddr, WithClock(c.Now))
	require.NoError(t, err)
	require.NoError(t, k.Start(context.Background(), []ScheduleConfig{
		schedule("a", "Spring", "1", time.Hour),
		schedule("b", winterAddr.Hex(), "2", time.Hour),
	}))
	require.Len(t, k.Schedules(), 2)

	err = k.Start(context.Background(), []ScheduleConfig{schedule("c", "monsoon", "1", time.Hour)})
	require.Error(t, err)
	err = k.Start(context.Background(), []ScheduleConfig{schedule("d", farmAddr.Hex(), "1", time.Hour)})
	require.ErrorContains(t, err, "not a season token")
	err = k.Start(context.Background(), []ScheduleConfig{schedule("e", "spring", "0", time.Hour)})
	require.ErrorContains(t, err, "positive")
}

func TestRunOnceApprovesAndDonates(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	donor := &fakeDonor{allowance: "0"}
	k := newTestKeeper(t, donor, c, schedule("spring", "spring", "1.5", time.Hour))

	require.NoError(t, k.RunOnce(context.Background()))
	want := springAddr.Hex() + ":1500000000000000000"
	require.Equal(t, []string{want}, donor.approvals)
	require.Equal(t, []string{want}, donor.donations)
	require.Equal(t, c.now.Add(time.Hour), k.Schedules()["spring"])

	// Not due yet.
	c.now = c.now.Add(30 * time.Minute)
	require.NoError(t, k.RunOnce(context.Background()))
	require.Len(t, donor.donations, 1)

	c.now = c.now.Add(30 * time.Minute)
	donor.allowance = "2000000000000000000"
	require.NoError(t, k.RunOnce(context.Background()))
	require.Len(t, donor.donations, 2)
	require.Len(t, donor.approvals, 1)
}

func TestRunOnceSkipsWhenFarmIsEmpty(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	donor := &fakeDonor{
		allowance: "0",
		donateErr: &farmclient.Error{Code: -32003, Message: "reverted", Data: farmclient.ReasonNoLiquidity},
	}
	k := newTestKeeper(t, donor, c, schedule("winter", "winter", "1", time.Hour))

	require.NoError(t, k.RunOnce(context.Background()))
	require.Empty(t, donor.donations)
	require.Equal(t, c.now.Add(time.Hour), k.Schedules()["winter"])
}

func TestRunOnceRetriesFailures(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	donor := &fakeDonor{allowance: "0", donateErr: errors.New("connection refused")}
	k := newTestKeeper(t, donor, c, schedule("winter", "winter", "1", time.Hour))

	err := k.RunOnce(context.Background())
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, c.now, k.Schedules()["winter"])

	donor.donateErr = nil
	require.NoError(t, k.RunOnce(context.Background()))
	require.Len(t, donor.donations, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	donor := &fakeDonor{allowance: "0"}
	k, err := New(donor, donorAddr, WithClock(c.Now), WithLogger(quietLogger()), WithTick(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, k.Start(context.Background(), []ScheduleConfig{schedule("s", "spring", "1", time.Hour)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()
	require.Eventually(t, func() bool { return len(k.Schedules()) == 1 && k.Schedules()["s"].After(c.now) }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("keeper did not stop")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
donor: "0x00000000000000000000000000000000000d0a0e"
schedules:
  - token: spring
    amount: "10"
    interval: 24h
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8545", cfg.Endpoint)
	require.Equal(t, 30*time.Second, cfg.Tick.Duration)
	require.Equal(t, "spring", cfg.Schedules[0].Name)
	require.Equal(t, 24*time.Hour, cfg.Schedules[0].Interval.Duration)
	require.Equal(t, filepath.Join(dir, defaultStateFile), cfg.StatePath)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing donor":   "schedules:\n  - token: spring\n    amount: \"1\"\n    interval: 1h\n",
		"no schedules":    "donor: \"0x01\"\n",
		"zero interval":   "donor: \"0x01\"\nschedules:\n  - token: spring\n    amount: \"1\"\n",
		"duplicate names": "donor: \"0x01\"\nschedules:\n  - token: spring\n    amount: \"1\"\n    interval: 1h\n  - token: spring\n    amount: \"2\"\n    interval: 1h\n",
		"unknown field":   "donor: \"0x01\"\nbogus: true\n",
		"bad duration":    "donor: \"0x01\"\nschedules:\n  - token: spring\n    amount: \"1\"\n    interval: soon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "keeper.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadConfig(path)
			require.Error(t, err)
		})
	}
}

func TestAuthTokenFromEnv(t *testing.T) {
	cfg := Config{}
	token, err := cfg.AuthToken()
	require.NoError(t, err)
	require.Empty(t, token)

	cfg.AuthTokenEnv = "KEEPER_TEST_TOKEN"
	t.Setenv("KEEPER_TEST_TOKEN", "")
	_, err = cfg.AuthToken()
	require.Error(t, err)

	t.Setenv("KEEPER_TEST_TOKEN", " secret ")
	token, err = cfg.AuthToken()
	require.NoError(t, err)
	require.Equal(t, "secret", token)
}

func TestRestartResumesFromStoredCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	donor := &fakeDonor{allowance: "0"}
	schedules := []ScheduleConfig{schedule("spring", "spring", "1", time.Hour)}

	start := func() (*Keeper, *Store) {
		store, err := NewStore(path, nil)
		require.NoError(t, err)
		k, err := New(donor, donorAddr, WithClock(c.Now), WithLogger(quietLogger()), WithCursors(store))
		require.NoError(t, err)
		require.NoError(t, k.Start(context.Background(), schedules))
		return k, store
	}

	k, store := start()
	require.NoError(t, k.RunOnce(context.Background()))
	require.Len(t, donor.donations, 1)
	require.NoError(t, store.Close())

	c.now = c.now.Add(10 * time.Minute)
	k, store = start()
	require.True(t, k.Schedules()["spring"].Equal(time.Unix(1_700_000_000, 0).Add(time.Hour)))
	require.NoError(t, k.RunOnce(context.Background()))
	require.Len(t, donor.donations, 1)

	c.now = c.now.Add(50 * time.Minute)
	require.NoError(t, k.RunOnce(context.Background()))
	require.Len(t, donor.donations, 2)

	cursor, ok, err := store.Load("spring")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, springAddr, cursor.Token)
	require.Equal(t, outcomeOK, cursor.LastOutcome)
	require.True(t, cursor.Next.Equal(c.now.Add(time.Hour)))
	require.NoError(t, store.Close())
}

func TestCursorForOtherTokenIsIgnored(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	defer store.Close()
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, store.Save("weekly", Cursor{Token: winterAddr, Next: now.Add(24 * time.Hour)}))

	c := &clock{now: now}
	k, err := New(&fakeDonor{allowance: "0"}, donorAddr, WithClock(c.Now), WithCursors(store))
	require.NoError(t, err)
	require.NoError(t, k.Start(context.Background(), []ScheduleConfig{schedule("weekly", "spring", "1", time.Hour)}))
	require.Equal(t, now, k.Schedules()["weekly"])

	_, ok, err := store.Load("missing")
	require.NoError(t, err)
	require.False(t, ok)
}
