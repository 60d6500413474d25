package main

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

	"seasonfarm/config"
	"seasonfarm/observability/logging"
	telemetry "seasonfarm/observability/otel"
	"seasonfarm/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "farmd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(cfg.Environment)
	if fromEnv := strings.TrimSpace(os.Getenv("SEASONFARM_ENV")); fromEnv != "" {
		env = fromEnv
	}
	logger := logging.SetupWithOptions("farmd", env, logging.Options{
		Level:    logging.ParseLevel(cfg.LogLevel),
		FilePath: cfg.LogFile,
	})

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "farmd",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() { _ = shutdownTelemetry(context.Background()) }()
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	n, err := buildNode(cfg, db, logger)
	if err != nil {
		return err
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go n.trackDropped(stopCtx, 15*time.Second)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           n.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info("farmd listening",
			slog.String("addr", cfg.ListenAddress),
			slog.String("farm", n.farm.Address().Hex()),
			slog.Bool("devMode", cfg.DevMode))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
