package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	metricBulkDuration      = "documentstore_bulk_duration_seconds"
	metricOperationsWritten = "documentstore_operations_written"
	metricDatabaseErrors    = "documentstore_database_errors_total"
	spanNameBulk            = "documentstore.bulk"
	spanAttrOperation       = "operation"
	spanAttrOperationCount  = "operation_count"
	spanAttrDurationMS      = "duration_ms"
	spanAttrErrorType       = "error_type"
	spanAttrTable           = "table"
	labelStatus             = "status"
	operationBulk           = "bulk"
	statusSuccess           = "success"
	statusError             = "error"
	errorTypeBuildStatement = "build_statement_failed"
	errorTypeExecFailed     = "exec_failed"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *DocumentStore) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (s *DocumentStore) logOperation(ctx context.Context, action string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

func (s *DocumentStore) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// logError logs error information at the error level.
func (s *DocumentStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s *DocumentStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// bulkMetricsObserver encapsulates the metrics collection for bulk writes.
type bulkMetricsObserver struct {
	collector projector.MetricsCollector
	ctx       context.Context
}

func (s *DocumentStore) startBulkMetrics(ctx context.Context) *bulkMetricsObserver {
	return &bulkMetricsObserver{collector: s.metricsCollector, ctx: ctx}
}

func (o *bulkMetricsObserver) recordSuccess(operationCount int, duration time.Duration) {
	if o.collector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operationBulk, labelStatus: statusSuccess}

	if contextualCollector, ok := o.collector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(o.ctx, metricBulkDuration, duration, labels)
		contextualCollector.RecordValueContext(o.ctx, metricOperationsWritten, float64(operationCount), labels)
		return
	}

	o.collector.RecordDuration(metricBulkDuration, duration, labels)
	o.collector.RecordValue(metricOperationsWritten, float64(operationCount), labels)
}

func (o *bulkMetricsObserver) recordError(errorType string, duration time.Duration) {
	if o.collector == nil {
		return
	}

	durationLabels := map[string]string{spanAttrOperation: operationBulk, labelStatus: statusError}
	errorLabels := map[string]string{spanAttrOperation: operationBulk, labelStatus: statusError, spanAttrErrorType: errorType}

	if contextualCollector, ok := o.collector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(o.ctx, metricBulkDuration, duration, durationLabels)
		contextualCollector.IncrementCounterContext(o.ctx, metricDatabaseErrors, errorLabels)
		return
	}

	o.collector.RecordDuration(metricBulkDuration, duration, durationLabels)
	o.collector.IncrementCounter(metricDatabaseErrors, errorLabels)
}

// bulkTracingObserver encapsulates the span lifecycle of a bulk write.
type bulkTracingObserver struct {
	collector projector.TracingCollector
	span      projector.SpanContext
}

func (s *DocumentStore) startBulkTracing(ctx context.Context, operationCount int) (context.Context, *bulkTracingObserver) {
	observer := &bulkTracingObserver{collector: s.tracingCollector}
	if s.tracingCollector == nil {
		return ctx, observer
	}

	newCtx, span := s.tracingCollector.StartSpan(ctx, spanNameBulk, map[string]string{
		spanAttrOperation:      operationBulk,
		spanAttrTable:          s.tableName,
		spanAttrOperationCount: fmt.Sprintf("%d", operationCount),
	})
	observer.span = span

	return newCtx, observer
}

func (o *bulkTracingObserver) finishSuccess(operationCount int, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusSuccess)
	o.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", float64(duration.Nanoseconds())/1e6))

	o.collector.FinishSpan(o.span, statusSuccess, map[string]string{
		spanAttrOperationCount: fmt.Sprintf("%d", operationCount),
	})
}

func (o *bulkTracingObserver) finishError(errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.span.SetStatus(statusError)
	o.span.AddAttribute(spanAttrErrorType, errorType)
	o.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", float64(duration.Nanoseconds())/1e6))

	o.collector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
}
