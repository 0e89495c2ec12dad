// Package main implements the device telemetry normalization connector. It
// subscribes to raw device events, normalizes them against the configured
// template collection, and publishes the resulting measurements to a
// JetStream stream for downstream FHIR conversion.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/NANATribe/iomt-fhir/config"
	"github.com/NANATribe/iomt-fhir/health"
	"github.com/NANATribe/iomt-fhir/ingest"
	"github.com/NANATribe/iomt-fhir/metric"
	"github.com/NANATribe/iomt-fhir/natsclient"
	"github.com/NANATribe/iomt-fhir/normalize"
	"github.com/NANATribe/iomt-fhir/sink"
	"github.com/NANATribe/iomt-fhir/template"
	"github.com/NANATribe/iomt-fhir/templatestore"
)

const (
	Version = "0.1.0"
	appName = "iomt-normalize"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("connector failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("starting connector",
		"version", Version,
		"template_id", cfg.Normalization.TemplateID,
		"ingest_subject", cfg.Ingest.Subject,
		"sink_stream", cfg.Sink.Stream)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	coreMetrics := registry.CoreMetrics()
	monitor := health.NewMonitor()

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		metricsServer.SetHealthHandler(monitor.Handler(appName))
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server exited", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Stop() }()
		logger.Info("metrics server listening", "address", metricsServer.Address())
	}

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(coreMetrics),
		natsclient.WithClientName(cfg.NATS.ClientName),
		natsclient.WithTimeout(cfg.NATS.Timeout),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithDrainTimeout(cfg.NATS.DrainTimeout))
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	monitor.SetHealthy(health.ComponentNATS, "connected")
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.NATS.DrainTimeout)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	if _, err := client.CreateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Sink.Stream,
		Subjects: []string{cfg.Sink.Subject},
	}); err != nil {
		return err
	}

	store, err := templatestore.NewStore(ctx, client)
	if err != nil {
		return err
	}

	mode, err := template.ParseMatchMode(cfg.Normalization.MatchMode)
	if err != nil {
		return err
	}

	service, err := normalize.NewService(normalize.Config{
		Logger:    logger,
		Registry:  registry,
		Workers:   cfg.Normalization.Workers,
		QueueSize: cfg.Normalization.QueueSize,
	})
	if err != nil {
		return err
	}

	templateText, err := store.Get(ctx, cfg.Normalization.TemplateID)
	if err != nil {
		return err
	}
	if err := service.ReloadFromDocument([]byte(templateText), mode); err != nil {
		return err
	}
	monitor.SetHealthy(health.ComponentTemplates, "collection loaded")

	collector, err := sink.NewJetStreamCollector(client, cfg.Sink.Subject,
		cfg.Sink.FlushTimeout, logger, registry)
	if err != nil {
		return err
	}

	if err := service.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = service.Stop(cliCfg.ShutdownTimeout) }()

	batcher, err := ingest.NewBatcher(cfg.Normalization.BatchSize,
		cfg.Normalization.BatchWindow, cfg.Ingest.Partition)
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx, cfg.Ingest.Subject, func(msgCtx context.Context, data []byte, headers map[string][]string) {
		if err := batcher.Accept(msgCtx, data, ingest.HeaderProperties(headers)); err != nil {
			logger.Warn("event not accepted", "error", err)
		}
	}); err != nil {
		return err
	}

	// Reload the template collection when the store document changes.
	templateUpdates, err := store.Watch(ctx, cfg.Normalization.TemplateID)
	if err != nil {
		return err
	}
	go func() {
		for text := range templateUpdates {
			if err := service.ReloadFromDocument([]byte(text), mode); err != nil {
				logger.Error("template reload rejected, keeping current collection", "error", err)
				monitor.SetDegraded(health.ComponentTemplates, "latest template document rejected")
				continue
			}
			monitor.SetHealthy(health.ComponentTemplates, "collection reloaded")
		}
	}()

	go func() { _ = batcher.Run(ctx) }()

	coreMetrics.ServiceStatus.WithLabelValues(appName).Set(1)
	defer coreMetrics.ServiceStatus.WithLabelValues(appName).Set(0)
	monitor.SetHealthy(health.ComponentPipeline, "processing")
	monitor.SetHealthy(health.ComponentSink, "publishing")
	logger.Info("connector running")

	for batch := range batcher.Batches() {
		stats, err := service.ProcessBatch(ctx, batch, collector)
		if err != nil {
			// Batch-level failures are retried on the next batch; the
			// collector keeps unflushed measurements buffered.
			logger.Error("batch processing failed", "events", stats.Events, "error", err)
			monitor.SetDegraded(health.ComponentSink, "measurement flush failing, buffering")
			continue
		}
		monitor.SetHealthy(health.ComponentSink, "publishing")
		logger.Debug("batch processed",
			"events", stats.Events,
			"normalized", stats.Normalized,
			"dropped", stats.Dropped,
			"failed", stats.Failed,
			"measurements", stats.Measurements)
	}

	logger.Info("connector stopped")
	return nil
}
