package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/cache"
	"github.com/quantonic/setforge/internal/config"
	"github.com/quantonic/setforge/internal/journal"
	"github.com/quantonic/setforge/internal/net/breaker"
	"github.com/quantonic/setforge/internal/net/ratelimit"
	"github.com/quantonic/setforge/internal/providers/bybit"
	"github.com/quantonic/setforge/internal/screener"
	"github.com/quantonic/setforge/internal/setup"
	"github.com/quantonic/setforge/internal/telemetry"
)

// app is the assembled dependency graph shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	client   *bybit.Client
	detector *setup.Detector
	screener *screener.Screener
	journal  *journal.Repo
}

// buildApp loads configuration and wires the pipeline. The journal is
// optional: without a DSN the field stays nil.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLevel != "" {
		cfg.LogLevel = flagLevel
	}
	log := newLogger(cfg.LogLevel)

	if flagFilters != "" {
		guards, err := config.LoadFilterGuards(flagFilters)
		if err != nil {
			return nil, err
		}
		guards.Apply(&cfg.Detector)
		log.Info().Str("profile", guards.Active).Msg("filter profile applied")
	}
	if err := cfg.Detector.Validate(); err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}

	metrics := telemetry.New()

	store := cache.NewAuto(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	candles := cache.NewCandles(store, cfg.Cache.TTL())

	limiter := ratelimit.NewLimiter(cfg.Provider.RPS, cfg.Provider.Burst)
	brk := breaker.New("bybit", breaker.DefaultSettings(), log)
	client := bybit.NewClient(bybit.Options{
		BaseURL:    cfg.Provider.BaseURL,
		Category:   cfg.Provider.Category,
		Timeout:    cfg.Provider.Timeout(),
		MaxRetries: cfg.Provider.MaxRetries,
	}, limiter, brk, candles, metrics, log)

	detector := setup.NewDetector(cfg.Detector)
	scr := screener.New(client, detector, screener.Options{
		Workers:       cfg.Screener.Workers,
		Top:           cfg.Screener.Top,
		MinConfidence: cfg.Backtest.MinConfidence,
	}, metrics, log)

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		client:   client,
		detector: detector,
		screener: scr,
	}

	if cfg.Journal.DSN != "" {
		repo, err := journal.Open(ctx, cfg.Journal.DSN, cfg.Journal.Timeout(), log)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.journal = repo
	}
	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("journal close failed")
		}
	}
}
