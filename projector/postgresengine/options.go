package postgresengine

import (
	"github.com/AntonStoeckl/process-projector-go/projector"
)

// Option defines a functional option for configuring DocumentStore.
type Option func(*DocumentStore) error

// WithTableName sets the table name for the DocumentStore.
func WithTableName(tableName string) Option {
	return func(s *DocumentStore) error {
		if tableName == "" {
			return projector.ErrEmptyDocumentTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the DocumentStore.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: operation counts and durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that fail the bulk.
func WithLogger(logger projector.Logger) Option {
	return func(s *DocumentStore) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain logger.
func WithContextualLogger(logger projector.ContextualLogger) Option {
	return func(s *DocumentStore) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for bulk durations, operation counts and database errors.
func WithMetrics(collector projector.MetricsCollector) Option {
	return func(s *DocumentStore) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector that receives one span per bulk.
func WithTracing(collector projector.TracingCollector) Option {
	return func(s *DocumentStore) error {
		s.tracingCollector = collector
		return nil
	}
}
