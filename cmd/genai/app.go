package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"code-reels/internal/cache"
	"code-reels/internal/config"
	"code-reels/internal/infra/provider"
	"code-reels/internal/observability/metrics"
	"code-reels/internal/observability/tracing"
	"code-reels/internal/resilience/circuitbreaker"
	"code-reels/internal/usecase/generate"
)

// app wires one generation pipeline from configuration.
type app struct {
	cfg       *config.GenAIConfig
	logger    *slog.Logger
	registry  *prometheus.Registry
	service   *generate.Service
	breakers  *circuitbreaker.Registry
	completer provider.Completer
	shutdown  func(context.Context) error
}

func newApp(cfg *config.GenAIConfig, logger *slog.Logger, providerOpts ...provider.Option) (*app, error) {
	c, err := cache.New(cfg.CacheSettings(), cache.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	validator, err := cfg.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}

	registry := prometheus.NewRegistry()
	breakerOpts := []circuitbreaker.Option{circuitbreaker.WithLogger(logger)}
	var collectorOpts []metrics.Option
	var recorder *metrics.PrometheusRecorder
	if cfg.Observability.MetricsEnabled {
		recorder = metrics.NewPrometheusRecorder(registry)
		collectorOpts = append(collectorOpts, metrics.WithRecorder(recorder))
		breakerOpts = append(breakerOpts, circuitbreaker.WithStateChangeHook(
			func(name string, _, to gobreaker.State) {
				recorder.SetCircuitState(name, to)
			}))
	}
	breakers := circuitbreaker.NewRegistry(cfg.BreakerSettings(""), breakerOpts...)
	collector := metrics.NewCollector(collectorOpts...)

	completer, err := provider.New(cfg.Provider, append(providerOpts, provider.WithLogger(logger))...)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	svcOpts := []generate.Option{generate.WithLogger(logger)}
	if recorder != nil {
		svcOpts = append(svcOpts, generate.WithGauges(recorder))
	}
	svc, err := generate.NewService(c, breakers, validator, collector, generate.Config{
		Retry:           cfg.RetrySettings(),
		DefaultProvider: completer.Name(),
		Deduplicate:     cfg.Provider.Deduplicate,
		SharedTimeout:   cfg.SharedCallTimeout(),
	}, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create generate service: %w", err)
	}

	shutdown := func(context.Context) error { return nil }
	if cfg.Observability.TracingEnabled {
		shutdown = tracing.Setup(logger)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		service:   svc,
		breakers:  breakers,
		completer: completer,
		shutdown:  shutdown,
	}, nil
}
