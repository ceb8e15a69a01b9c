package projector

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxRecordsPerWindow = 1000
	defaultMaxCachedEntities   = 10000
	logMsgRecordSkipped        = "record skipped for entity, handler rejected it as malformed"
	logMsgEntitySkipped        = "entity skipped at flush, handler failed to emit its operations"
	logMsgFlushFailed          = "flushing the processing window failed"
	logMsgRecordDispatched     = "record dispatched"
	logMsgNoHandler            = "no handler accepted the record"
	logMsgWindowFlushed        = "window flushed"
	logMsgOperation            = "projector operation: "
	logAttrError               = "error"
	logAttrWindowID            = "window_id"
	logAttrRecordKey           = "record_key"
	logAttrValueType           = "value_type"
	logAttrIntent              = "intent"
	logAttrPosition            = "position"
	logAttrPartitionID         = "partition_id"
	logAttrEntityType          = "entity_type"
	logAttrEntityID            = "entity_id"
	logAttrHandlerCount        = "handler_count"
	logAttrRecordCount         = "record_count"
	logAttrEntityCount         = "entity_count"
	logAttrOperationCount      = "operation_count"
	logAttrDurationMS          = "duration_ms"
)

type entityKey struct {
	entityType string
	id         string
}

type cachedEntity struct {
	handler BoundHandler
	entity  Entity
}

// BatchWriter drives the handlers for one partition: it loads or creates entities per generated id,
// mutates them and flushes all buffered entities as one BatchRequest per processing window.
//
// A BatchWriter is not safe for concurrent use; run one per partition.
type BatchWriter struct {
	registry            Registry
	store               DocumentStore
	maxRecordsPerWindow int
	maxCachedEntities   int
	logger              Logger
	contextualLogger    ContextualLogger
	metricsCollector    MetricsCollector
	tracingCollector    TracingCollector

	entities     map[entityKey]cachedEntity
	order        []entityKey
	recordCount  int
	lastPosition int64
	newWindowID  func() string
}

// Option defines a functional option for configuring a BatchWriter.
type Option func(*BatchWriter) error

// WithMaxRecordsPerWindow sets the record count after which ShouldFlush reports true.
func WithMaxRecordsPerWindow(maxRecords int) Option {
	return func(w *BatchWriter) error {
		if maxRecords <= 0 {
			return ErrInvalidWindowSize
		}

		w.maxRecordsPerWindow = maxRecords

		return nil
	}
}

// WithMaxCachedEntities sets the buffered entity count after which ShouldFlush reports true.
func WithMaxCachedEntities(maxEntities int) Option {
	return func(w *BatchWriter) error {
		if maxEntities <= 0 {
			return ErrInvalidWindowSize
		}

		w.maxCachedEntities = maxEntities

		return nil
	}
}

// WithLogger sets the logger for the BatchWriter.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: dispatched records (development use)
// Info level: flushed windows with counts and durations (production-safe)
// Warn level: skipped records and entities
// Error level: failed flushes.
func WithLogger(logger Logger) Option {
	return func(w *BatchWriter) error {
		w.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the BatchWriter.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(w *BatchWriter) error {
		w.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the BatchWriter.
// It receives flush durations, operation counts, skipped records and flush errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(w *BatchWriter) error {
		w.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the BatchWriter. Every flush gets its own span.
func WithTracing(collector TracingCollector) Option {
	return func(w *BatchWriter) error {
		w.tracingCollector = collector
		return nil
	}
}

// NewBatchWriter creates a BatchWriter for the handlers of registry writing to store.
func NewBatchWriter(registry Registry, store DocumentStore, options ...Option) (*BatchWriter, error) {
	if store == nil {
		return nil, ErrNilDocumentStore
	}

	if registry.handlers == nil {
		return nil, ErrNilRegistry
	}

	w := &BatchWriter{
		registry:            registry,
		store:               store,
		maxRecordsPerWindow: defaultMaxRecordsPerWindow,
		maxCachedEntities:   defaultMaxCachedEntities,
		newWindowID:         func() string { return uuid.NewString() },
	}

	for _, option := range options {
		if err := option(w); err != nil {
			return nil, err
		}
	}

	w.resetWindow()

	return w, nil
}

// AddRecord runs every accepting handler on the record.
// Malformed records are logged and skipped per entity; they never fail the window.
func (w *BatchWriter) AddRecord(ctx context.Context, record Record) {
	handlers := w.registry.HandlersFor(record)

	w.recordCount++
	if record.Position > w.lastPosition {
		w.lastPosition = record.Position
	}

	if len(handlers) == 0 {
		w.logDebug(ctx, logMsgNoHandler, w.recordAttrs(record)...)
		return
	}

	for _, handler := range handlers {
		for _, id := range handler.GenerateIDs(record) {
			w.updateEntity(ctx, handler, record, id)
		}
	}

	w.logDebug(ctx, logMsgRecordDispatched, append(w.recordAttrs(record), logAttrHandlerCount, len(handlers))...)
}

func (w *BatchWriter) updateEntity(ctx context.Context, handler BoundHandler, record Record, id string) {
	key := entityKey{entityType: handler.EntityType(), id: id}

	cached, buffered := w.entities[key]
	if !buffered {
		cached = cachedEntity{handler: handler, entity: handler.CreateNewEntity(id)}
	}

	if err := handler.UpdateEntity(record, cached.entity); err != nil {
		w.logWarn(ctx, logMsgRecordSkipped, append(
			w.recordAttrs(record),
			logAttrEntityType, key.entityType,
			logAttrEntityID, id,
			logAttrError, err.Error(),
		)...)
		w.recordSkipped(ctx, key.entityType)

		return
	}

	if !buffered {
		w.entities[key] = cached
		w.order = append(w.order, key)
	}
}

// ShouldFlush reports whether the processing window reached one of its bounds.
func (w *BatchWriter) ShouldFlush() bool {
	return w.recordCount >= w.maxRecordsPerWindow || len(w.entities) >= w.maxCachedEntities
}

// RecordsInWindow returns the number of records added since the last successful flush.
func (w *BatchWriter) RecordsInWindow() int {
	return w.recordCount
}

// CachedEntities returns the number of buffered entities.
func (w *BatchWriter) CachedEntities() int {
	return len(w.entities)
}

// LastPosition returns the highest position added since the last successful flush, or zero.
func (w *BatchWriter) LastPosition() int64 {
	return w.lastPosition
}

// Flush emits all buffered entities into one BatchRequest and executes it.
//
// On success the window is cleared. On failure the window is kept untouched, so calling Flush again
// re-submits the same idempotent operations. The returned error wraps ErrFlushFailed.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.entities) == 0 {
		w.resetWindow()
		return nil
	}

	windowID := w.newWindowID()
	tracer, ctx := w.startFlushTracing(ctx, windowID)
	metrics := w.startFlushMetrics(ctx)

	batch := NewBatchRequest(w.store)
	for _, key := range w.order {
		cached := w.entities[key]
		if err := cached.handler.Flush(cached.entity, batch); err != nil {
			w.logWarn(ctx, logMsgEntitySkipped,
				logAttrWindowID, windowID,
				logAttrEntityType, key.entityType,
				logAttrEntityID, key.id,
				logAttrError, err.Error(),
			)
		}
	}

	start := time.Now()
	err := batch.Execute(ctx)
	duration := time.Since(start)

	if err != nil {
		w.logError(ctx, logMsgFlushFailed, err,
			logAttrWindowID, windowID,
			logAttrOperationCount, batch.Len(),
			logAttrDurationMS, w.toMilliseconds(duration),
		)
		metrics.recordError(duration)
		tracer.finishError(duration)

		return err
	}

	w.logOperation(ctx, logMsgWindowFlushed,
		logAttrWindowID, windowID,
		logAttrRecordCount, w.recordCount,
		logAttrEntityCount, len(w.entities),
		logAttrOperationCount, batch.Len(),
		logAttrDurationMS, w.toMilliseconds(duration),
	)
	metrics.recordSuccess(batch.Len(), duration)
	tracer.finishSuccess(w.recordCount, batch.Len(), duration)

	w.resetWindow()

	return nil
}

func (w *BatchWriter) resetWindow() {
	w.entities = make(map[entityKey]cachedEntity)
	w.order = make([]entityKey, 0)
	w.recordCount = 0
	w.lastPosition = 0
}

func (w *BatchWriter) recordAttrs(record Record) []any {
	return []any{
		logAttrRecordKey, record.Key,
		logAttrValueType, string(record.ValueType),
		logAttrIntent, string(record.Intent),
		logAttrPosition, record.Position,
		logAttrPartitionID, record.PartitionID,
	}
}
