package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"seasonfarm/config"
	"seasonfarm/core/events"
	"seasonfarm/core/runtime"
	"seasonfarm/native/farm"
	"seasonfarm/native/positions"
	"seasonfarm/native/token"
	"seasonfarm/observability/metrics"
	"seasonfarm/rpc"
	"seasonfarm/storage"
)

// node bundles the contracts and the RPC server of a running farm.
type node struct {
	runtime *runtime.Runtime
	farm    *farm.Engine
	feed    *events.Feed
	server  *rpc.Server
}

// buildNode deploys the tokens, the position manager and the farm on top of
// db and records the farm genesis.
func buildNode(cfg *config.Config, db storage.Database, logger *slog.Logger, opts ...runtime.Option) (*node, error) {
	params, err := cfg.FarmParams()
	if err != nil {
		return nil, err
	}
	feed := events.NewFeed()
	rtOpts := []runtime.Option{
		runtime.WithEmitter(events.Multi{feed, metrics.Farm()}),
		runtime.WithLogger(logger),
	}
	rt := runtime.New(db, append(rtOpts, opts...)...)

	manager := positions.NewManager(params.PositionManager)
	tokens := []*token.Token{token.New(params.WrappedNative, "WETH", 18)}
	var seasonTokens [farm.NumSeasons]farm.FungibleToken
	for i, addr := range params.SeasonTokens {
		tok := token.New(addr, strings.ToUpper(farm.Season(i).String()), 18)
		tokens = append(tokens, tok)
		seasonTokens[i] = tok
	}
	engine, err := farm.NewEngine(params, seasonTokens, manager)
	if err != nil {
		return nil, fmt.Errorf("init farm: %w", err)
	}
	for _, tok := range tokens {
		rt.Register(tok.Address(), tok)
	}
	rt.Register(manager.Address(), manager)
	rt.Register(engine.Address(), engine)

	var written bool
	err = rt.Execute(config.DefaultDeployer, engine.Address(), func(ctx *runtime.Context) error {
		var err error
		written, err = engine.InitGenesis(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("farm genesis: %w", err)
	}
	if written {
		logger.Info("recorded farm genesis",
			slog.String("farm", engine.Address().Hex()),
			slog.Uint64("startTime", params.StartTime))
	}

	secret, err := cfg.AuthSecret()
	if err != nil {
		return nil, err
	}
	server, err := rpc.NewServer(rpc.Options{
		Runtime:   rt,
		Farm:      engine,
		Tokens:    tokens,
		Positions: manager,
		Feed:      feed,
		Auth: rpc.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Metrics: metrics.Farm(),
		Logger:  logger,
		DevMode: cfg.DevMode,
	})
	if err != nil {
		return nil, fmt.Errorf("init rpc: %w", err)
	}
	return &node{runtime: rt, farm: engine, feed: feed, server: server}, nil
}

// trackDropped reports events the feed discarded for slow subscribers until
// ctx is cancelled.
func (n *node) trackDropped(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped := n.feed.Dropped()
			if dropped > last {
				metrics.Farm().RecordDropped(dropped - last)
				last = dropped
			}
		}
	}
}
