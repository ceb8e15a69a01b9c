package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/process-projector-go/config"
	"github.com/AntonStoeckl/process-projector-go/consumer"
	"github.com/AntonStoeckl/process-projector-go/handlers"
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/projector/oteladapters"
	"github.com/AntonStoeckl/process-projector-go/projector/promadapters"
)

const (
	instrumentationName = "process-projector"
	metricsShutdownWait = 5 * time.Second
)

// observability bundles the optional collectors every component is configured with.
type observability struct {
	logger           *slog.Logger
	contextualLogger projector.ContextualLogger
	metrics          projector.MetricsCollector
	tracing          projector.TracingCollector
	registry         *prometheus.Registry
}

func run(ctx context.Context, input io.Reader, logOutput io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obs, err := newObservability(cfg, logOutput)
	if err != nil {
		return err
	}

	if cfg.MetricsAddress != "" {
		stopMetrics, err := serveMetrics(cfg.MetricsAddress, obs)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	sources, malformed, err := consumer.ReadAll(ctx, consumer.NewJSONLSource(input))
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	if malformed > 0 {
		obs.logger.Warn("skipped malformed records", "count", malformed)
	}

	checkpointDB, err := config.OpenBadger(cfg.CheckpointPath, obs.logger)
	if err != nil {
		return err
	}
	defer func() { _ = checkpointDB.Close() }()

	checkpoints, err := consumer.NewBadgerCheckpointStore(checkpointDB)
	if err != nil {
		return err
	}

	watermarks, err := checkpoints.WatermarkOptions()
	if err != nil {
		return err
	}

	metadata, err := projector.NewExporterMetadata(watermarks...)
	if err != nil {
		return err
	}

	processCache, err := projector.NewLRUReferenceCache[int64, projector.CachedProcess](
		cfg.ProcessCacheSize,
		projector.WithCacheName("process"),
		projector.WithCacheMetrics(obs.metrics),
	)
	if err != nil {
		return err
	}

	registry, err := handlers.NewRegistry(handlers.Dependencies{
		ProcessCache: processCache,
		Metadata:     metadata,
		Logger:       obs.logger,
	})
	if err != nil {
		return err
	}

	store, closeStore, err := openDocumentStore(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer closeStore()

	consumers, err := newPartitionConsumers(cfg, sources, registry, store, checkpoints, obs)
	if err != nil {
		return err
	}

	obs.logger.Info("replay started",
		"engine", cfg.Engine,
		"partitions", len(consumers),
		"handlers", registry.Len(),
	)

	runErr := consumer.RunPartitions(ctx, consumers...)

	// Watermarks are saved even after a failed run, they are first-observed keys and never move.
	if err := checkpoints.SaveWatermarks(metadata); err != nil {
		return errors.Join(runErr, err)
	}

	if runErr != nil {
		return runErr
	}

	for _, c := range consumers {
		obs.logger.Info("partition replayed",
			"partition_id", c.PartitionID(),
			"acknowledged_position", c.AcknowledgedPosition(),
		)
	}

	return nil
}

func newObservability(cfg config.Config, logOutput io.Writer) (observability, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return observability{}, errors.Join(config.ErrInvalidConfig, err)
	}

	obs := observability{
		logger:   slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level})),
		registry: prometheus.NewRegistry(),
	}

	if cfg.OTelEnabled {
		obs.contextualLogger = oteladapters.NewSlogBridgeLogger(instrumentationName)
		obs.tracing = oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))
	}

	if cfg.MetricsAddress != "" {
		metrics, err := promadapters.NewMetricsCollector(obs.registry)
		if err != nil {
			return observability{}, err
		}
		obs.metrics = metrics
	}

	return obs, nil
}

func serveMetrics(address string, obs observability) (func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(obs.registry, promhttp.HandlerOpts{}))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.logger.Error("metrics endpoint stopped", "error", err.Error())
		}
	}()

	obs.logger.Info("serving metrics", "address", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownWait)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func newPartitionConsumers(
	cfg config.Config,
	sources map[int32]*consumer.SliceSource,
	registry projector.Registry,
	store projector.DocumentStore,
	checkpoints *consumer.BadgerCheckpointStore,
	obs observability,
) ([]*consumer.PartitionConsumer, error) {
	consumers := make([]*consumer.PartitionConsumer, 0, len(sources))

	for partitionID, source := range sources {
		writer, err := projector.NewBatchWriter(registry, store, writerOptions(cfg, obs)...)
		if err != nil {
			return nil, err
		}

		options := []consumer.Option{
			consumer.WithAcknowledger(checkpoints),
			consumer.WithRetryOptions(
				consumer.WithMaxAttempts(cfg.RetryMaxAttempts),
				consumer.WithBaseDelay(cfg.RetryBaseDelay),
				consumer.WithJitterFactor(cfg.RetryJitterFactor),
			),
			consumer.WithLogger(obs.logger),
		}

		position, found, err := checkpoints.Position(partitionID)
		if err != nil {
			return nil, err
		}
		if found {
			options = append(options, consumer.WithResumePosition(position))
		}

		if obs.contextualLogger != nil {
			options = append(options, consumer.WithContextualLogger(obs.contextualLogger))
		}
		if obs.metrics != nil {
			options = append(options, consumer.WithMetrics(obs.metrics))
		}

		partitionConsumer, err := consumer.NewPartitionConsumer(partitionID, source, writer, options...)
		if err != nil {
			return nil, err
		}

		consumers = append(consumers, partitionConsumer)
	}

	return consumers, nil
}

func writerOptions(cfg config.Config, obs observability) []projector.Option {
	options := []projector.Option{
		projector.WithMaxRecordsPerWindow(cfg.MaxRecordsPerWindow),
		projector.WithMaxCachedEntities(cfg.MaxCachedEntities),
		projector.WithLogger(obs.logger),
	}

	if obs.contextualLogger != nil {
		options = append(options, projector.WithContextualLogger(obs.contextualLogger))
	}
	if obs.metrics != nil {
		options = append(options, projector.WithMetrics(obs.metrics))
	}
	if obs.tracing != nil {
		options = append(options, projector.WithTracing(obs.tracing))
	}

	return options
}
