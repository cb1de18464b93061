package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/acksell/registers/config"
	"github.com/acksell/registers/ingest"
	"github.com/acksell/registers/metric"
	"github.com/acksell/registers/register"
	"github.com/acksell/registers/representation"
	"github.com/acksell/registers/store"
	"github.com/acksell/registers/store/badgerstore"
	"github.com/acksell/registers/store/dynamostore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is the wired service shared by every command.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    store.RecordStore
	metrics  *metric.Metrics
	gatherer *prometheus.Registry
	registry *register.Registry
	codecs   *representation.Registry
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	links, err := cfg.LinkTable()
	if err != nil {
		return nil, err
	}

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	metrics := metric.NewMetrics()
	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(gatherer); err != nil {
		s.Close()
		return nil, err
	}

	pipeline := ingest.New(s,
		ingest.WithFetcher(ingest.NewFetcher(&http.Client{Timeout: cfg.FetchTimeout})),
		ingest.WithBatchSize(cfg.BatchSize),
		ingest.WithLogger(log),
		ingest.WithMetrics(metrics),
	)
	registry := register.NewRegistry(s,
		register.WithLoader(pipeline),
		register.WithPageSize(cfg.PageSize),
		register.WithArchiveURL(cfg.ArchiveURL),
		register.WithLogger(log),
		register.WithMetrics(metrics),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    s,
		metrics:  metrics,
		gatherer: gatherer,
		registry: registry,
		codecs:   representation.DefaultRegistry(links),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.RecordStore, error) {
	switch cfg.Backend {
	case config.BackendDynamoDB:
		client, err := cfg.DynamoDBClient(ctx)
		if err != nil {
			return nil, err
		}
		s, err := dynamostore.New(client, cfg.DynamoDB.Table, dynamostore.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBadger:
		s, err := badgerstore.New(badgerstore.StoreOptions{
			Path:     cfg.DataDir,
			InMemory: cfg.InMemory,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func (a *app) Close() error {
	return a.store.Close()
}
