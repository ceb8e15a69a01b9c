package consumer

import (
	"context"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

func (c *PartitionConsumer) logWarn(ctx context.Context, msg string, args ...any) {
	args = append([]any{logAttrPartitionID, c.partitionID}, args...)

	if c.contextualLogger != nil {
		c.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// logOperation logs operational information at info level.
func (c *PartitionConsumer) logOperation(ctx context.Context, action string, args ...any) {
	args = append([]any{logAttrPartitionID, c.partitionID}, args...)

	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if c.logger != nil {
		c.logger.Info(logMsgOperation+action, args...)
	}
}

func (c *PartitionConsumer) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append([]any{logAttrPartitionID, c.partitionID, logAttrError, err.Error()}, args...)

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

func (c *PartitionConsumer) labels() map[string]string {
	return map[string]string{logAttrPartitionID: c.partitionLabelText}
}

func (c *PartitionConsumer) incrementCounter(ctx context.Context, metric string) {
	if c.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := c.metricsCollector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, c.labels())
	} else {
		c.metricsCollector.IncrementCounter(metric, c.labels())
	}
}

func (c *PartitionConsumer) recordValue(ctx context.Context, metric string, value float64) {
	if c.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := c.metricsCollector.(projector.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, c.labels())
	} else {
		c.metricsCollector.RecordValue(metric, value, c.labels())
	}
}
