// Package consumer drives one BatchWriter per partition from a record source: it dispatches records in
// partition order, flushes processing windows, retries failed flushes and acknowledges flushed positions.
package consumer

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/AntonStoeckl/process-projector-go/projector"
)

const (
	logMsgRecordMalformed     = "malformed record skipped by partition consumer"
	logMsgForeignPartition    = "record of another partition skipped"
	logMsgWindowAcknowledged  = "window acknowledged"
	logMsgFlushGaveUp         = "flushing the window failed after retries, partition consumer stops"
	logMsgConsumerStopped     = "partition consumer stopped"
	logMsgOperation           = "consumer operation: "
	logAttrPartitionID        = "partition_id"
	logAttrRecordPartitionID  = "record_partition_id"
	logAttrPosition           = "position"
	logAttrRecordCount        = "record_count"
	logAttrError              = "error"
	metricRecordsConsumed     = "projector_partition_records_consumed_total"
	metricRecordsMalformed    = "projector_partition_records_malformed_total"
	metricAcknowledgedPos     = "projector_partition_acknowledged_position"
	metricFlushAttemptsFailed = "projector_partition_flush_failures_total"
)

var (
	ErrNilRecordSource   = errors.New("nil record source supplied")
	ErrNilWriter         = errors.New("nil batch writer supplied")
	ErrSourceFailed      = errors.New("reading from the record source failed")
	ErrAcknowledgeFailed = errors.New("acknowledging the flushed position failed")
)

// RecordSource delivers the records of one partition in position order. Next returns io.EOF at stream end.
type RecordSource interface {
	Next(ctx context.Context) (projector.Record, error)
}

// PositionAcknowledger is told the highest position of every successfully flushed window.
type PositionAcknowledger interface {
	Acknowledge(ctx context.Context, partitionID int32, position int64) error
}

// Writer is what PartitionConsumer needs from a projector.BatchWriter.
type Writer interface {
	AddRecord(ctx context.Context, record projector.Record)
	ShouldFlush() bool
	RecordsInWindow() int
	LastPosition() int64
	Flush(ctx context.Context) error
}

// PartitionConsumer processes the records of one partition sequentially.
// Records at or below the resume position were already acknowledged and are skipped.
type PartitionConsumer struct {
	partitionID        int32
	source             RecordSource
	writer             Writer
	acknowledger       PositionAcknowledger
	retryOptions       []RetryOption
	resumePosition     int64
	acknowledged       int64
	logger             projector.Logger
	contextualLogger   projector.ContextualLogger
	metricsCollector   projector.MetricsCollector
	partitionLabelText string
}

// Option defines a functional option for configuring a PartitionConsumer.
type Option func(*PartitionConsumer) error

// WithAcknowledger sets the acknowledger of flushed positions.
func WithAcknowledger(acknowledger PositionAcknowledger) Option {
	return func(c *PartitionConsumer) error {
		c.acknowledger = acknowledger
		return nil
	}
}

// WithRetryOptions tunes the retries of failed flushes.
func WithRetryOptions(options ...RetryOption) Option {
	return func(c *PartitionConsumer) error {
		c.retryOptions = append(c.retryOptions, options...)
		return nil
	}
}

// WithResumePosition skips all records up to and including position, e.g. restored from a checkpoint.
func WithResumePosition(position int64) Option {
	return func(c *PartitionConsumer) error {
		c.resumePosition = position
		c.acknowledged = position
		return nil
	}
}

// WithLogger sets the logger for the consumer.
func WithLogger(logger projector.Logger) Option {
	return func(c *PartitionConsumer) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain logger.
func WithContextualLogger(logger projector.ContextualLogger) Option {
	return func(c *PartitionConsumer) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the consumer and its flush retries.
func WithMetrics(collector projector.MetricsCollector) Option {
	return func(c *PartitionConsumer) error {
		c.metricsCollector = collector
		return nil
	}
}

// NewPartitionConsumer creates a PartitionConsumer. The retry options are validated here.
func NewPartitionConsumer(partitionID int32, source RecordSource, writer Writer, options ...Option) (*PartitionConsumer, error) {
	if source == nil {
		return nil, ErrNilRecordSource
	}

	if writer == nil {
		return nil, ErrNilWriter
	}

	c := &PartitionConsumer{
		partitionID:        partitionID,
		source:             source,
		writer:             writer,
		partitionLabelText: strconv.FormatInt(int64(partitionID), 10),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	if c.metricsCollector != nil {
		c.retryOptions = append(c.retryOptions, WithRetryMetrics(c.metricsCollector, c.partitionLabelText))
	}

	if _, err := newRetryConfig(c.retryOptions...); err != nil {
		return nil, err
	}

	return c, nil
}

// PartitionID returns the partition this consumer processes.
func (c *PartitionConsumer) PartitionID() int32 {
	return c.partitionID
}

// AcknowledgedPosition returns the highest acknowledged position.
func (c *PartitionConsumer) AcknowledgedPosition() int64 {
	return c.acknowledged
}

// Run consumes the source until io.EOF, flushing whenever the writer reports a full window
// and once more at stream end.
//
// A canceled context ends Run with ctx.Err() and does not flush the open window;
// its records are re-delivered after the last acknowledged position.
func (c *PartitionConsumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.logOperation(ctx, logMsgConsumerStopped, logAttrPosition, c.acknowledged, logAttrError, err.Error())
			return err
		}

		record, err := c.source.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			if err := c.flush(ctx); err != nil {
				return err
			}
			c.logOperation(ctx, logMsgConsumerStopped, logAttrPosition, c.acknowledged)
			return nil

		case errors.Is(err, projector.ErrMalformedRecord):
			c.logWarn(ctx, logMsgRecordMalformed, logAttrError, err.Error())
			c.incrementCounter(ctx, metricRecordsMalformed)
			continue

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err

		case err != nil:
			return errors.Join(ErrSourceFailed, err)
		}

		if record.PartitionID != c.partitionID {
			c.logWarn(ctx, logMsgForeignPartition,
				logAttrRecordPartitionID, record.PartitionID,
				logAttrPosition, record.Position,
			)
			continue
		}

		if record.Position <= c.resumePosition {
			continue
		}

		c.writer.AddRecord(ctx, record)
		c.incrementCounter(ctx, metricRecordsConsumed)

		if c.writer.ShouldFlush() {
			if err := c.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// flush captures the window position before flushing, the writer resets it on success.
func (c *PartitionConsumer) flush(ctx context.Context) error {
	recordCount := c.writer.RecordsInWindow()
	if recordCount == 0 {
		return nil
	}

	position := c.writer.LastPosition()

	if err := RetryWithExponentialBackoff(ctx, c.writer.Flush, c.retryOptions...); err != nil {
		c.logError(ctx, logMsgFlushGaveUp, err, logAttrPosition, position, logAttrRecordCount, recordCount)
		c.incrementCounter(ctx, metricFlushAttemptsFailed)
		return err
	}

	if c.acknowledger != nil {
		if err := c.acknowledger.Acknowledge(ctx, c.partitionID, position); err != nil {
			return errors.Join(ErrAcknowledgeFailed, err)
		}
	}

	c.acknowledged = position
	c.recordValue(ctx, metricAcknowledgedPos, float64(position))
	c.logOperation(ctx, logMsgWindowAcknowledged, logAttrPosition, position, logAttrRecordCount, recordCount)

	return nil
}
