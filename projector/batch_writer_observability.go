package projector

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	metricFlushDuration     = "projector_flush_duration_seconds"
	metricOperationsFlushed = "projector_operations_flushed"
	metricFlushErrors       = "projector_flush_errors_total"
	metricRecordsSkipped    = "projector_records_skipped_total"
	spanNameFlush           = "projector.flush"
	spanAttrOperation       = "operation"
	spanAttrWindowID        = "window_id"
	spanAttrRecordCount     = "record_count"
	spanAttrEntityCount     = "entity_count"
	spanAttrOperationCount  = "operation_count"
	spanAttrDurationMS      = "duration_ms"
	spanAttrErrorType       = "error_type"
	labelStatus             = "status"
	labelEntityType         = "entity_type"
	operationFlush          = "flush"
	statusSuccess           = "success"
	statusError             = "error"
	errorTypeFlushFailed    = "flush_failed"
)

// logDebug logs at debug level, preferring the contextual logger if one is configured.
func (w *BatchWriter) logDebug(ctx context.Context, msg string, args ...any) {
	if w.contextualLogger != nil {
		w.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

// logWarn logs at warn level, preferring the contextual logger if one is configured.
func (w *BatchWriter) logWarn(ctx context.Context, msg string, args ...any) {
	if w.contextualLogger != nil {
		w.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

// logOperation logs operational information at info level.
func (w *BatchWriter) logOperation(ctx context.Context, action string, args ...any) {
	if w.contextualLogger != nil {
		w.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if w.logger != nil {
		w.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level.
func (w *BatchWriter) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if w.contextualLogger != nil {
		w.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if w.logger != nil {
		w.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (w *BatchWriter) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordSkipped counts records a handler rejected as malformed.
func (w *BatchWriter) recordSkipped(ctx context.Context, entityType string) {
	if w.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelEntityType: entityType}

	if contextualCollector, ok := w.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricRecordsSkipped, labels)
	} else {
		w.metricsCollector.IncrementCounter(metricRecordsSkipped, labels)
	}
}

// === Metrics Observer Pattern ===

// flushMetricsObserver encapsulates the metrics collection for flush operations.
type flushMetricsObserver struct {
	w   *BatchWriter
	ctx context.Context
}

func (w *BatchWriter) startFlushMetrics(ctx context.Context) *flushMetricsObserver {
	return &flushMetricsObserver{w: w, ctx: ctx}
}

// recordSuccess records all metrics for a successful flush.
func (o *flushMetricsObserver) recordSuccess(operationCount int, duration time.Duration) {
	o.recordDuration(duration, statusSuccess)
	o.recordValue(float64(operationCount), statusSuccess)
}

// recordError records all metrics for a failed flush.
func (o *flushMetricsObserver) recordError(duration time.Duration) {
	o.recordDuration(duration, statusError)

	collector := o.w.metricsCollector
	if collector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationFlush,
		labelStatus:       statusError,
		spanAttrErrorType: errorTypeFlushFailed,
	}

	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(o.ctx, metricFlushErrors, labels)
	} else {
		collector.IncrementCounter(metricFlushErrors, labels)
	}
}

func (o *flushMetricsObserver) recordDuration(duration time.Duration, status string) {
	collector := o.w.metricsCollector
	if collector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operationFlush, labelStatus: status}

	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(o.ctx, metricFlushDuration, duration, labels)
	} else {
		collector.RecordDuration(metricFlushDuration, duration, labels)
	}
}

func (o *flushMetricsObserver) recordValue(value float64, status string) {
	collector := o.w.metricsCollector
	if collector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operationFlush, labelStatus: status}

	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(o.ctx, metricOperationsFlushed, value, labels)
	} else {
		collector.RecordValue(metricOperationsFlushed, value, labels)
	}
}

// === Tracing Observer Pattern ===

// flushTracingObserver encapsulates tracing span lifecycle management for flush operations.
type flushTracingObserver struct {
	w    *BatchWriter
	span SpanContext
}

func (w *BatchWriter) startFlushTracing(ctx context.Context, windowID string) (*flushTracingObserver, context.Context) {
	observer := &flushTracingObserver{w: w}
	if w.tracingCollector == nil {
		return observer, ctx
	}

	newCtx, span := w.tracingCollector.StartSpan(ctx, spanNameFlush, map[string]string{
		spanAttrOperation:   operationFlush,
		spanAttrWindowID:    windowID,
		spanAttrEntityCount: fmt.Sprintf("%d", len(w.entities)),
	})
	observer.span = span

	return observer, newCtx
}

// finishSuccess completes the flush span for successful operations.
func (o *flushTracingObserver) finishSuccess(recordCount, operationCount int, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusSuccess)
	o.span.AddAttribute(spanAttrDurationMS, o.formatDuration(duration))

	o.w.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrRecordCount:    fmt.Sprintf("%d", recordCount),
		spanAttrOperationCount: fmt.Sprintf("%d", operationCount),
	})
}

// finishError completes the flush span with error details.
func (o *flushTracingObserver) finishError(duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorTypeFlushFailed)
	o.span.AddAttribute(spanAttrDurationMS, o.formatDuration(duration))

	o.w.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorTypeFlushFailed})
}

func (o *flushTracingObserver) formatDuration(duration time.Duration) string {
	return fmt.Sprintf("%.2f", o.w.toMilliseconds(duration))
}
