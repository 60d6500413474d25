package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"seasonfarm/config"
	"seasonfarm/core/runtime"
	"seasonfarm/native/farm"
	"seasonfarm/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildNodeServesFarm(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := config.Default(now)
	db := storage.NewMemDB()

	n, err := buildNode(cfg, db, quietLogger(), runtime.WithClock(func() uint64 { return uint64(now.Unix()) }))
	require.NoError(t, err)

	srv := httptest.NewServer(n.server.Handler())
	defer srv.Close()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"farm_constants","params":[]}`)
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result struct {
			Farm      string `json:"farm"`
			StartTime uint64 `json:"startTime"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, cfg.Farm.Address, out.Result.Farm)
	require.Equal(t, cfg.Farm.StartTime, out.Result.StartTime)
}

func TestBuildNodeChecksGenesis(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := config.Default(now)
	db := storage.NewMemDB()

	_, err := buildNode(cfg, db, quietLogger())
	require.NoError(t, err)
	_, err = buildNode(cfg, db, quietLogger())
	require.NoError(t, err)

	cfg.Farm.StartTime++
	_, err = buildNode(cfg, db, quietLogger())
	require.ErrorIs(t, err, farm.ErrGenesisMismatch)
}

func TestBuildNodeRequiresAuthSecret(t *testing.T) {
	cfg := config.Default(time.Unix(1_700_000_000, 0))
	cfg.Auth.Enabled = true
	cfg.Auth.HMACSecretEnv = "FARMD_TEST_SECRET"
	t.Setenv("FARMD_TEST_SECRET", "")

	_, err := buildNode(cfg, storage.NewMemDB(), quietLogger())
	require.Error(t, err)
}
