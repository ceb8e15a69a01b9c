// Package oteladapters implements the projector observability interfaces on top of OpenTelemetry.
//
// The adapters are safe for concurrent use, one set can serve all partition consumers:
//
//	metrics := oteladapters.NewMetricsCollector(otel.Meter("projector"))
//	tracing := oteladapters.NewTracingCollector(otel.Tracer("projector"))
//	logger := oteladapters.NewSlogBridgeLogger("projector")
//
//	writer, _ := projector.NewBatchWriter(registry, store,
//		projector.WithMetrics(metrics),
//		projector.WithTracing(tracing),
//		projector.WithContextualLogger(logger),
//	)
package oteladapters
