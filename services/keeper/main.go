package keeper

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seasonfarm/observability/logging"
	"seasonfarm/observability/metrics"
	telemetry "seasonfarm/observability/otel"
	"seasonfarm/sdk/farmclient"
)

// Main initialises and runs the donation keeper.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/keeper/config.yaml", "path to keeper configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SEASONFARM_ENV"))
	logger := logging.Setup("farm-keeper", env)
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("farm-keeper", env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !common.IsHexAddress(cfg.Donor) {
		return fmt.Errorf("donor %q is not an address", cfg.Donor)
	}
	donor := common.HexToAddress(cfg.Donor)
	token, err := cfg.AuthToken()
	if err != nil {
		return err
	}
	opts := []farmclient.Option{farmclient.WithCaller(donor)}
	if token != "" {
		opts = append(opts, farmclient.WithAuthToken(token))
	}
	client, err := farmclient.New(cfg.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	store, err := NewStore(cfg.StatePath, nil)
	if err != nil {
		return fmt.Errorf("open state %s: %w", cfg.StatePath, err)
	}
	defer store.Close()

	k, err := New(client, donor,
		WithTick(cfg.Tick.Duration),
		WithMetrics(metrics.Keeper()),
		WithLogger(logger),
		WithCursors(store))
	if err != nil {
		return err
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(stopCtx, 30*time.Second)
	err = k.Start(startCtx, cfg.Schedules)
	cancel()
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("keeper metrics listening", slog.String("addr", cfg.MetricsListen))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("keeper started",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("donor", donor.Hex()),
		slog.Int("schedules", len(cfg.Schedules)))
	err = k.Run(stopCtx)
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
